package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/damon-houk/exchange-rate-resolver/internal/application/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/config"
	"github.com/damon-houk/exchange-rate-resolver/internal/domain/repository"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/api"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/db"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/handler"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/metrics"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/middleware"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/notify"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/scheduler"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	logger.SetDefaultLogger(log)

	log.Info("Starting exchange rate resolver", map[string]interface{}{
		"storage":   cfg.Storage.Driver,
		"providers": cfg.EnabledProviders(),
		"notifier":  cfg.Notifier.Driver,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open rate store", map[string]interface{}{"error": err.Error()})
	}
	defer closeStore()

	notifier, closeNotifier, err := openNotifier(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize notifier", map[string]interface{}{"error": err.Error()})
	}
	defer closeNotifier()

	providers, err := buildProviders(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize providers", map[string]interface{}{"error": err.Error()})
	}

	earliest, err := cfg.EarliestDate()
	if err != nil {
		log.Fatal("Invalid earliest date", map[string]interface{}{"error": err.Error()})
	}

	rateMetrics := metrics.NewRateMetrics(prometheus.DefaultRegisterer)

	rateService, err := service.NewRateService(ctx, store, providers, log,
		service.WithMetrics(rateMetrics),
		service.WithNotifier(notifier),
		service.WithEarliestDate(earliest),
	)
	if err != nil {
		log.Fatal("Failed to initialize rate service", map[string]interface{}{"error": err.Error()})
	}

	sched, err := scheduler.New(cfg.Scheduler.Spec, rateService, cfg.Scheduler.Timeout, log)
	if err != nil {
		log.Fatal("Invalid scheduler spec", map[string]interface{}{"error": err.Error()})
	}
	if cfg.Scheduler.Enabled {
		sched.Start()
		defer sched.Stop()
	}

	router := mux.NewRouter()
	router.Use(middleware.Standard(log, prometheus.DefaultRegisterer)...)

	handler.NewRateHandler(rateService, sched, log).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.HTTPServer.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("Server failed", map[string]interface{}{"error": err.Error()})
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}

// openStore opens the configured rate store and returns its close function
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.RateRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		dsn := cfg.PostgresDSN()
		if cfg.Postgres.Migrate {
			if err := db.RunMigrations(dsn, log); err != nil {
				return nil, nil, err
			}
		}

		initCtx, cancel := context.WithTimeout(ctx, cfg.Postgres.Timeout)
		defer cancel()

		repo, err := db.InitPostgres(initCtx, dsn, log)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil

	default:
		if err := os.MkdirAll(cfg.Storage.BadgerDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}

		badgerDB, err := db.OpenBadger(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, nil, err
		}

		closeDB := func() {
			if err := badgerDB.Close(); err != nil {
				log.Error("Error closing BadgerDB", map[string]interface{}{"error": err.Error()})
			}
		}

		repo, err := db.NewBadgerRateRepository(badgerDB, log)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		return repo, closeDB, nil
	}
}

// openNotifier builds the change notifier selected by NOTIFIER_DRIVER
func openNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (service.ChangeNotifier, func(), error) {
	switch cfg.Notifier.Driver {
	case "redis":
		client, err := notify.InitRedis(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Error("Error closing redis client", map[string]interface{}{"error": err.Error()})
			}
		}
		return notify.NewRedisNotifier(client, cfg.Redis.Channel, log), closeClient, nil

	case "kafka":
		n := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.KafkaBrokers(), cfg.Kafka.Topic), log)
		closeWriter := func() {
			if err := n.Close(); err != nil {
				log.Error("Error closing kafka writer", map[string]interface{}{"error": err.Error()})
			}
		}
		return n, closeWriter, nil

	default:
		return notify.NopNotifier{}, func() {}, nil
	}
}

// buildProviders creates the enabled providers, each with its own HTTP client
func buildProviders(cfg *config.Config, log logger.Logger) ([]domain.RateProvider, error) {
	var providers []domain.RateProvider

	for _, name := range cfg.EnabledProviders() {
		client := &http.Client{Timeout: cfg.Providers.Timeout}

		switch strings.ToUpper(name) {
		case api.ECBSource:
			providers = append(providers, api.NewECBClient(cfg.Providers.ECBURL, client, log))
		case api.BOCSource:
			providers = append(providers, api.NewBOCClient(cfg.Providers.BOCURL, client, log))
		case api.TreasurySource:
			providers = append(providers, api.NewTreasuryAPIClient(cfg.Providers.TreasuryURL, client, log))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}

	return providers, nil
}
