package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/waitroom-api/internal/config"
	doctorHandler "github.com/jwalitptl/waitroom-api/internal/handler/doctor"
	eventsHandler "github.com/jwalitptl/waitroom-api/internal/handler/events"
	policyHandler "github.com/jwalitptl/waitroom-api/internal/handler/policy"
	wsHandler "github.com/jwalitptl/waitroom-api/internal/handler/ws"
	"github.com/jwalitptl/waitroom-api/internal/hub"
	"github.com/jwalitptl/waitroom-api/internal/middleware"
	"github.com/jwalitptl/waitroom-api/internal/repository/postgres"
	"github.com/jwalitptl/waitroom-api/internal/router"
	doctorService "github.com/jwalitptl/waitroom-api/internal/service/doctor"
	policyService "github.com/jwalitptl/waitroom-api/internal/service/policy"
	queueService "github.com/jwalitptl/waitroom-api/internal/service/queue"
	"github.com/jwalitptl/waitroom-api/pkg/logger"
	"github.com/jwalitptl/waitroom-api/pkg/messaging/redis"
	"github.com/jwalitptl/waitroom-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{Level: logger.ParseLevel(cfg.Log.Level)})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	entryRepo := postgres.NewQueueEntryRepository(db)

	pinGen := queueService.NewPINGenerator(entryRepo)
	queueSvc := queueService.NewService(doctorRepo, patientRepo, entryRepo, pinGen, log)
	doctorSvc := doctorService.NewService(doctorRepo, entryRepo)
	policySvc := policyService.NewService(entryRepo, patientRepo, doctorRepo, cfg.Conference.HostPrefix, log)

	roomHub, err := newHub(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize broadcast hub")
	}
	defer roomHub.Close()

	pool := worker.NewPool(cfg.Conference.WorkerPoolSize)
	defer pool.Close()

	doctorH := doctorHandler.NewHandler(doctorSvc)
	policyH := policyHandler.NewHandler(policySvc)
	eventsH := eventsHandler.NewHandler(queueSvc, entryRepo, roomHub, log)
	wsH := wsHandler.NewHandler(doctorSvc, queueSvc, roomHub, pool, log)

	r := router.NewRouter(doctorH, policyH, eventsH, wsH, log, router.Config{
		ProviderRateLimit: rate.Limit(50),
		ProviderRateBurst: 100,
		CORSConfig:        middleware.DefaultCORSConfig(),
		RequestTimeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		MetricsPrefix:     "waitroom",
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func newHub(cfg *config.Config, log zerolog.Logger) (hub.Hub, error) {
	switch cfg.Hub.Backend {
	case config.HubBackendRedis:
		broker, err := redis.NewRedisBroker(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log)
		if err != nil {
			return nil, err
		}
		return hub.NewBrokerHub(broker, log), nil
	case config.HubBackendMemory, "":
		return hub.NewMemoryHub(log), nil
	default:
		return nil, fmt.Errorf("unknown hub backend %q", cfg.Hub.Backend)
	}
}
