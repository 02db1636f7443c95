package media

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// RemoteStorage implements Store against an S3-style HTTP object gateway.
// Objects are addressed as {assetType}/{filename} under a single bucket
// path; reads stream the response body so large originals are never
// buffered in memory.
type RemoteStorage struct {
	client    *resty.Client
	publicURL string
	logger    zerolog.Logger
}

// NewRemoteStorage creates a store backed by the gateway at baseURL.
// publicURL is the externally reachable prefix for serving assets (a CDN
// or the gateway itself).
func NewRemoteStorage(baseURL, publicURL string, logger zerolog.Logger) *RemoteStorage {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	logger.Info().Str("base_url", baseURL).Msg("initialized remote media storage")
	return &RemoteStorage{
		client:    client,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

func (rs *RemoteStorage) Save(assetType AssetType, filename string, data io.Reader) (string, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}
	ref := string(assetType) + "/" + filename

	resp, err := rs.client.R().
		SetBody(data).
		SetHeader("Content-Type", "application/octet-stream").
		Put("/" + ref)
	if err != nil {
		return "", fmt.Errorf("remote store put '%s' failed: %w", ref, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("remote store put '%s' returned %s", ref, resp.Status())
	}

	rs.logger.Debug().Str("ref", ref).Msg("saved remote asset")
	return ref, nil
}

func (rs *RemoteStorage) Open(ref string) (io.ReadCloser, error) {
	resp, err := rs.client.R().
		SetDoNotParseResponse(true).
		Get("/" + strings.TrimLeft(ref, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote store get '%s' failed: %w", ref, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		resp.RawBody().Close()
		return nil, fmt.Errorf("asset not found at '%s'", ref)
	}
	if resp.StatusCode() >= 400 {
		resp.RawBody().Close()
		return nil, fmt.Errorf("remote store get '%s' returned %s", ref, resp.Status())
	}
	return resp.RawBody(), nil
}

func (rs *RemoteStorage) Delete(ref string) error {
	resp, err := rs.client.R().Delete("/" + strings.TrimLeft(ref, "/"))
	if err != nil {
		return fmt.Errorf("remote store delete '%s' failed: %w", ref, err)
	}
	// 404 means already gone, which is what Delete wants anyway
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("remote store delete '%s' returned %s", ref, resp.Status())
	}
	rs.logger.Debug().Str("ref", ref).Msg("deleted remote asset")
	return nil
}

func (rs *RemoteStorage) URL(ref string) string {
	return rs.publicURL + "/" + strings.TrimLeft(ref, "/")
}
