package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/framecraft/mockupbackend/config"
	"github.com/framecraft/mockupbackend/database"
	"github.com/framecraft/mockupbackend/handlers"
	"github.com/framecraft/mockupbackend/media"
	"github.com/framecraft/mockupbackend/repository"
	"github.com/framecraft/mockupbackend/workers"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := database.AutoMigrateModels(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database schema")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access underlying sql.DB")
	}
	defer sqlDB.Close()

	var store media.Store
	if cfg.StorageBackend == config.StorageBackendRemote {
		store = media.NewRemoteStorage(cfg.RemoteStorageURL, cfg.RemotePublicURL, logger)
	} else {
		localStore, storeErr := media.NewLocalStorage(cfg.MediaStoragePath, cfg.MediaPublicURL, logger)
		if storeErr != nil {
			logger.Fatal().Err(storeErr).Msg("failed to initialize media store")
		}
		store = localStore
	}

	analysisRepo := repository.NewAnalysisRepository(db)
	mockupRepo := repository.NewMockupRepository(db)

	depthEngine := media.NewDepthEngine(cfg.DepthModelPath, logger)
	defer depthEngine.Close()

	processor := workers.NewAnalysisProcessor(
		analysisRepo, store, depthEngine,
		cfg.SoftTimeout, cfg.AnalysisQueueSize, cfg.NumAnalysisWorkers, logger)

	reclaimer := workers.NewReclaimer(sqlDB, analysisRepo, cfg.HardTimeout, cfg.ReclaimInterval, logger)
	reclaimer.Start()

	sweeper := workers.NewRetentionSweeper(sqlDB, analysisRepo, mockupRepo, store, cfg.RetentionAge, cfg.SweepInterval, logger)
	sweeper.Start()

	validate := validator.New()

	analysisHandler := &handlers.WallAnalysisHandler{
		Repo:      analysisRepo,
		Store:     store,
		Processor: processor,
		Validate:  validate,
		Logger:    logger,
	}
	mockupHandler := &handlers.SavedMockupHandler{
		Repo:         mockupRepo,
		AnalysisRepo: analysisRepo,
		Store:        store,
		Validate:     validate,
		Logger:       logger,
	}

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	r.Route("/api/mockups", func(r chi.Router) {
		r.Route("/walls", func(r chi.Router) {
			r.Post("/", analysisHandler.UploadWallImage)
			r.Route("/{analysis_id}", func(r chi.Router) {
				r.Get("/", analysisHandler.GetWallAnalysis)
				r.Patch("/", analysisHandler.UpdateWallAnalysis)
			})
		})
		r.Route("/saved", func(r chi.Router) {
			r.Post("/", mockupHandler.SaveMockup)
			r.Get("/{mockup_id}", mockupHandler.GetMockup)
		})
	})

	if localStore, ok := store.(*media.LocalStorage); ok {
		r.Get(cfg.MediaPublicURL+"/*", handlers.AssetServer(localStore.BasePath(), cfg.MediaPublicURL, logger))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	sweeper.Stop()
	reclaimer.Stop()
	processor.Stop()
	logger.Info().Msg("shutdown complete")
}
