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

	"github.com/maneesh/talentdrop/internal/blob"
	"github.com/maneesh/talentdrop/internal/candidate"
	"github.com/maneesh/talentdrop/internal/chunker"
	"github.com/maneesh/talentdrop/internal/config"
	"github.com/maneesh/talentdrop/internal/handlers"
	"github.com/maneesh/talentdrop/internal/storage"
	"github.com/maneesh/talentdrop/internal/tracing"
	"github.com/maneesh/talentdrop/internal/upload"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting talentdrop service", "port", cfg.ServicePort, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.JaegerEndpoint,
		Enabled:        cfg.TracingEnabled,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("error shutting down tracer", "error", err)
		}
	}()

	// Record store
	sqlStore, err := openRecordStore(cfg)
	if err != nil {
		return err
	}
	defer sqlStore.Close()
	if err := sqlStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	logger.Info("record store ready", "driver", sqlStore.Driver())

	// Blob objects
	objects, err := openObjectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("object store ready", "backend", cfg.BlobBackend)

	blobOpts := []blob.Option{blob.WithLogger(logger)}
	svcOpts := []candidate.Option{candidate.WithLogger(logger)}

	// Redis cache is optional; the service runs uncached when it is unreachable.
	if cfg.CacheEnabled {
		redisClient, err := storage.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, running without cache", "addr", cfg.GetRedisAddr(), "error", err)
		} else {
			defer redisClient.Close()
			blobOpts = append(blobOpts, blob.WithCache(redisClient))
			svcOpts = append(svcOpts, candidate.WithCache(redisClient))
			logger.Info("redis cache ready", "addr", cfg.GetRedisAddr())
		}
	}

	blobs := blob.NewChunkedStore(objects, sqlStore, chunker.NewChunker(cfg.GetChunkSizeBytes()), blobOpts...)
	service := candidate.NewService(sqlStore, blobs, svcOpts...)

	router := handlers.NewRouter(handlers.RouterConfig{
		Service:      service,
		Gate:         upload.NewGate(blobs, logger),
		ResumePolicy: upload.ResumePolicy(cfg.GetResumeMaxBytes()),
		VideoPolicy:  upload.VideoPolicy(cfg.GetVideoMaxBytes()),
		BasePath:     cfg.APIBasePath,
		CORSOrigin:   cfg.CORSOrigin,
		Logger:       logger,
	})

	// Uploads of large videos need a longer read window than JSON calls.
	srv := &http.Server{
		Addr:              ":" + cfg.ServicePort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "base_path", cfg.APIBasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
	return nil
}

func openRecordStore(cfg *config.Config) (*storage.SQLStore, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		s, err := storage.NewSQLiteClient(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		return s, nil
	default:
		s, err := storage.NewTiDBClient(cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to TiDB: %w", err)
		}
		return s, nil
	}
}

func openObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blob.ObjectStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendFS:
		s, err := storage.NewFSObjectStore(cfg.BlobFSRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to open blob directory: %w", err)
		}
		return s, nil
	default:
		s, err := storage.NewMinioClient(ctx,
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
		}
		return s, nil
	}
}
