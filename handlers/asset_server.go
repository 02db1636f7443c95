package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AssetServer creates a handler serving stored assets from the local media
// directory. The route prefix (e.g. "/media/") is stripped off the request
// path and the remainder resolved inside baseStoragePath only.
func AssetServer(baseStoragePath, routePrefix string, logger zerolog.Logger) http.HandlerFunc {
	cleanBase := filepath.Clean(baseStoragePath)
	if !strings.HasSuffix(routePrefix, "/") {
		routePrefix += "/"
	}
	logger.Info().Str("prefix", routePrefix).Str("dir", cleanBase).Msg("serving local assets")

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)
		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		requestedAssetPath := filepath.Join(cleanBase, filepath.FromSlash(relativePath))
		cleanedAssetPath := filepath.Clean(requestedAssetPath)

		if !strings.HasPrefix(cleanedAssetPath, cleanBase) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			logger.Warn().Str("request", r.URL.Path).Str("resolved", cleanedAssetPath).Msg("attempted asset access outside storage directory")
			return
		}

		if _, err := os.Stat(cleanedAssetPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Error().Err(err).Str("path", cleanedAssetPath).Msg("error stating asset file")
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
