package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/config"
	"github.com/kerc-health/recordvault/internal/events"
	v1 "github.com/kerc-health/recordvault/internal/handler/v1"
	"github.com/kerc-health/recordvault/internal/pinning"
	"github.com/kerc-health/recordvault/internal/repository/postgres"
	"github.com/kerc-health/recordvault/internal/service"
	"github.com/kerc-health/recordvault/internal/uploader"
	"github.com/kerc-health/recordvault/pkg/auth"
	"github.com/kerc-health/recordvault/pkg/database"
	"github.com/kerc-health/recordvault/pkg/logger"
	"github.com/kerc-health/recordvault/pkg/metrics"
	"github.com/kerc-health/recordvault/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment),
	)

	ownerID, err := uuid.Parse(cfg.Registry.OwnerID)
	if err != nil {
		return fmt.Errorf("parsing REGISTRY_OWNER_ID: %w", err)
	}

	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(cfg.Tracing)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown", zap.Error(err))
			}
		}()
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(db, log); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kp, err := events.NewKafkaPublisher(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("creating event publisher: %w", err)
		}
		publisher = kp
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("closing event publisher", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector(cfg.App.Name)
	jwtManager := auth.NewJWTManager(cfg.JWT)

	recordRepo := postgres.NewRecordRepository(db)
	accessRepo := postgres.NewAccessRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	userRepo := postgres.NewUserRepository(db)

	policy := service.NewOwnerPolicy(ownerID)
	auditSvc := service.NewAuditService(auditRepo, collector, log)
	defer auditSvc.Shutdown()

	registrySvc := service.NewRegistryService(recordRepo, policy, publisher, auditSvc, collector, log)
	accessSvc := service.NewAccessService(accessRepo, recordRepo, policy, publisher, auditSvc, collector, log)
	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)

	pinner := pinning.NewClient(cfg.Pinning, collector, log)
	uploadOpts := uploader.Options{
		BatchSize: cfg.Registry.UploadBatchSize,
		MediaType: cfg.Registry.AllowedMediaType,
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := v1.NewRouter(v1.Handlers{
		Auth:   v1.NewAuthHandler(authSvc),
		Record: v1.NewRecordHandler(registrySvc),
		Access: v1.NewAccessHandler(accessSvc),
		Upload: v1.NewUploadHandler(pinner, registrySvc, policy, uploadOpts, cfg.Registry.MaxUploadBytes, collector, log),
	}, jwtManager, collector)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("stopped")
	return nil
}
