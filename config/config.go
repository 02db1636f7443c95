package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	StorageBackendLocal  = "local"
	StorageBackendRemote = "remote"
)

const (
	defaultAnalysisQueueSize  = 100
	defaultNumAnalysisWorkers = 2

	defaultSoftTimeout     = 30 * time.Second
	defaultHardTimeout     = 45 * time.Second
	defaultReclaimInterval = time.Minute

	defaultSweepInterval = 6 * time.Hour
	defaultRetentionAge  = 24 * time.Hour
)

type Config struct {
	// HTTP listen port
	Port string

	// database path (sqlite)
	DatabasePath string

	// media storage configuration
	StorageBackend   string // "local" or "remote"
	MediaStoragePath string // local backend root for stored assets
	MediaPublicURL   string // URL prefix assets are served from
	RemoteStorageURL string // remote backend: object gateway base URL
	RemotePublicURL  string // remote backend: public serving prefix

	// depth model (ONNX) weights path
	DepthModelPath string

	// worker settings
	AnalysisQueueSize  int
	NumAnalysisWorkers int

	// analysis job time budget
	SoftTimeout     time.Duration // cooperative abort into manual
	HardTimeout     time.Duration // stuck-processing reclaim threshold
	ReclaimInterval time.Duration

	// retention sweep settings
	SweepInterval time.Duration
	RetentionAge  time.Duration

	// CORS
	AllowedOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "mockups.db")

	backend := strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageBackendLocal))
	if backend != StorageBackendLocal && backend != StorageBackendRemote {
		return Config{}, fmt.Errorf("invalid STORAGE_BACKEND '%s': must be 'local' or 'remote'", backend)
	}

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	remoteURL := getEnvOrDefault("REMOTE_STORAGE_URL", "")
	remotePublicURL := getEnvOrDefault("REMOTE_PUBLIC_URL", remoteURL)
	if backend == StorageBackendRemote && remoteURL == "" {
		return Config{}, fmt.Errorf("REMOTE_STORAGE_URL is required when STORAGE_BACKEND=remote")
	}

	origins := strings.Split(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		DatabasePath:       dbPath,
		StorageBackend:     backend,
		MediaStoragePath:   absMediaStorage,
		MediaPublicURL:     getEnvOrDefault("MEDIA_PUBLIC_URL", "/media"),
		RemoteStorageURL:   remoteURL,
		RemotePublicURL:    remotePublicURL,
		DepthModelPath:     getEnvOrDefault("DEPTH_MODEL_PATH", "./models/dpt_swin2_tiny_256.onnx"),
		AnalysisQueueSize:  getEnvIntOrDefault("ANALYSIS_QUEUE_SIZE", defaultAnalysisQueueSize),
		NumAnalysisWorkers: getEnvIntOrDefault("NUM_ANALYSIS_WORKERS", defaultNumAnalysisWorkers),
		SoftTimeout:        getEnvDurationOrDefault("ANALYSIS_SOFT_TIMEOUT", defaultSoftTimeout),
		HardTimeout:        getEnvDurationOrDefault("ANALYSIS_HARD_TIMEOUT", defaultHardTimeout),
		ReclaimInterval:    getEnvDurationOrDefault("ANALYSIS_RECLAIM_INTERVAL", defaultReclaimInterval),
		SweepInterval:      getEnvDurationOrDefault("RETENTION_SWEEP_INTERVAL", defaultSweepInterval),
		RetentionAge:       getEnvDurationOrDefault("RETENTION_AGE", defaultRetentionAge),
		AllowedOrigins:     origins,
	}

	return cfg, nil
}
