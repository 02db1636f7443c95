package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Store defines the interface for saving, retrieving, and deleting image
// assets. Implementations must be interchangeable: the analysis pipeline
// never assumes the backing bytes are on the local filesystem and always
// materializes a temporary copy before random-access reads.
type Store interface {
	// Save stores data under the asset type's namespace and returns the
	// reference to pass to Open/Delete/URL later
	Save(assetType AssetType, filename string, data io.Reader) (string, error)
	// Open retrieves a reader for an asset
	Open(ref string) (io.ReadCloser, error)
	// Delete removes an asset; deleting a missing asset is not an error
	Delete(ref string) error
	// URL returns the public URL for an asset reference
	URL(ref string) string
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath  string               // absolute root for all stored assets
	subDirMap map[AssetType]string // maps AssetType to subdirectory name
	publicURL string               // URL prefix the asset route serves from
	logger    zerolog.Logger
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath, publicURL string, logger zerolog.Logger) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	subDirs := map[AssetType]string{
		AssetTypeWall:   string(AssetTypeWall),
		AssetTypeDepth:  string(AssetTypeDepth),
		AssetTypeMockup: string(AssetTypeMockup),
	}

	logger.Info().Str("path", absBasePath).Msg("initialized local media storage")
	return &LocalStorage{
		basePath:  absBasePath,
		subDirMap: subDirs,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// BasePath returns the absolute storage root, used by the asset server.
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

// Save data to the store under assetType/filename.
func (ls *LocalStorage) Save(assetType AssetType, filename string, data io.Reader) (string, error) {
	subDir, ok := ls.subDirMap[assetType]
	if !ok {
		return "", fmt.Errorf("unknown asset type '%s'", assetType)
	}
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}

	targetDir := filepath.Join(ls.basePath, subDir)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create asset directory '%s': %w", targetDir, err)
	}

	fullSavePath := filepath.Join(targetDir, filename)
	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	ref := subDir + "/" + filename
	ls.logger.Debug().Str("ref", ref).Msg("saved asset")
	return ref, nil
}

func (ls *LocalStorage) Open(ref string) (io.ReadCloser, error) {
	fullPath, err := ls.fullPath(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("asset not found at '%s': %w", ref, err)
		}
		return nil, fmt.Errorf("failed to open asset '%s': %w", ref, err)
	}
	return file, nil
}

// Delete removes an asset file. Missing files are treated as success so
// retried cleanups stay idempotent.
func (ls *LocalStorage) Delete(ref string) error {
	fullPath, err := ls.fullPath(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", ref, err)
	}
	if err == nil {
		ls.logger.Debug().Str("ref", ref).Msg("deleted asset")
	}
	return nil
}

func (ls *LocalStorage) URL(ref string) string {
	return ls.publicURL + "/" + strings.TrimLeft(ref, "/")
}

// fullPath calculates the absolute path and guards against traversal.
func (ls *LocalStorage) fullPath(ref string) (string, error) {
	cleanRef := filepath.Clean(filepath.FromSlash(ref))
	fullPath := filepath.Join(ls.basePath, cleanRef)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", ref, err)
	}
	if !strings.HasPrefix(absFullPath, ls.basePath) {
		return "", fmt.Errorf("invalid asset reference: access denied for '%s'", ref)
	}
	return absFullPath, nil
}
