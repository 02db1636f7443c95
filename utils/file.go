package utils

import (
	"path/filepath"
	"strings"
)

// MaxUploadBytes caps uploaded wall photos (matches the client-side limit).
const MaxUploadBytes = 10 * 1024 * 1024

var allowedUploadTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// AllowedUploadExt returns the canonical file extension for a permitted
// upload content type, or false when the type is not accepted.
func AllowedUploadExt(contentType string) (string, bool) {
	ext, ok := allowedUploadTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsRasterImage checks if the filename has a supported raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}
