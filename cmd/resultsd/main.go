package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/esports-results/brackets"
	"github.com/Dosada05/esports-results/config"
	"github.com/Dosada05/esports-results/db"
	"github.com/Dosada05/esports-results/events"
	"github.com/Dosada05/esports-results/handlers"
	"github.com/Dosada05/esports-results/middleware"
	"github.com/Dosada05/esports-results/realtime"
	"github.com/Dosada05/esports-results/repositories"
	api "github.com/Dosada05/esports-results/routes"
	"github.com/Dosada05/esports-results/scoring"
	"github.com/Dosada05/esports-results/services"
	"github.com/Dosada05/esports-results/storage"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	bus := events.NewGoChannelBus(logger)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("failed to close event bus", slog.Any("error", err))
		}
	}()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	wsHub := realtime.NewHub(logger)
	go wsHub.Run(rootCtx)
	if err := wsHub.ConsumeBus(rootCtx, bus,
		events.TopicMatchResultConfirmed,
		events.TopicMatchResultDisputed,
		events.TopicMatchResultFinalized,
		events.TopicDisputeResolved,
	); err != nil {
		logger.Error("failed to attach websocket hub to event bus", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("WebSocket hub started")

	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	gameConfigRepo := repositories.NewPostgresGameConfigRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	txRunner := repositories.NewTxRunner(dbConn)
	logger.Info("repositories initialized")

	scoringEngine := scoring.NewEngine(gameConfigRepo)
	progressor := brackets.NewProgressor(bracketRepo, logger)

	submissionService := services.NewSubmissionService(
		txRunner,
		submissionRepo,
		disputeRepo,
		matchRepo,
		bus,
		logger,
	)
	verificationService := services.NewVerificationService(
		txRunner,
		submissionRepo,
		disputeRepo,
		matchRepo,
		scoringEngine,
		progressor,
		bus,
		logger,
	)
	disputeService := services.NewDisputeService(
		txRunner,
		disputeRepo,
		submissionRepo,
		matchRepo,
		verificationService,
		bus,
		logger,
	)
	standingService := services.NewStandingService(
		txRunner,
		standingRepo,
		matchRepo,
		bus,
		logger,
	)
	logger.Info("services initialized")

	// Standings follow finalized results through the event bus rather than
	// through direct service calls.
	go func() {
		if err := standingService.ConsumeFinalized(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("standing consumer stopped", slog.Any("error", err))
		}
	}()

	// Pending submissions whose confirmation window has passed are swept on
	// a fixed interval. Each run is idempotent, a missed tick is harmless.
	go func() {
		ticker := time.NewTicker(cfg.AutoConfirmSweepInterval)
		defer ticker.Stop()
		logger.Info("auto-confirm sweeper started", slog.Duration("interval", cfg.AutoConfirmSweepInterval))

		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				count, err := submissionService.AutoConfirmExpired(rootCtx, time.Now())
				if err != nil {
					logger.Error("auto-confirm sweep failed", slog.Any("error", err))
					continue
				}
				if count > 0 {
					logger.Info("auto-confirm sweep completed", slog.Int("confirmed", count))
				}
			}
		}
	}()

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := api.SetupRoutes(api.Handlers{
		Submission: handlers.NewSubmissionHandler(submissionService, verificationService),
		Dispute:    handlers.NewDisputeHandler(disputeService),
		Tournament: handlers.NewTournamentHandler(standingService, bracketRepo),
		Upload:     handlers.NewUploadHandler(cloudflareUploader),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, logger),
	}, authenticator)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
