package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/example/room-scheduler/internal/adapters"
	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/config"
	"github.com/example/room-scheduler/internal/events"
	httptransport "github.com/example/room-scheduler/internal/http"
	"github.com/example/room-scheduler/internal/lock"
	"github.com/example/room-scheduler/internal/metrics"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/memory"
	"github.com/example/room-scheduler/internal/persistence/postgres"
	"github.com/example/room-scheduler/internal/persistence/sqlite"
	"github.com/example/room-scheduler/internal/recurrence"
	"github.com/example/room-scheduler/internal/scheduler"
)

// app holds the wired service graph for one process.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	storage persistence.Storage
	service *application.ReservationService
	metrics *metrics.Metrics
	closers []func() error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Storage, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresURL, logger)
	case config.DriverMemory:
		return memory.Open(), nil
	default:
		return sqlite.Open(ctx, cfg.SQLiteDSN, logger)
	}
}

// newApp opens storage, applies migrations, loads the catalog file when one is
// configured and builds the reservation service.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.StoreDriver, err)
	}
	a := &app{cfg: cfg, logger: logger, storage: storage, metrics: metrics.New()}
	a.closers = append(a.closers, storage.Close)

	if err := storage.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	if cfg.CatalogFile != "" {
		catalog, err := loadCatalog(cfg.CatalogFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		if err := seedCatalog(ctx, storage, catalog); err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.Info("catalog loaded", "rooms", len(catalog.Rooms), "meeting_types", len(catalog.MeetingTypes))
	}

	var locker application.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == config.LockRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, lock.RedisConfig{TTL: cfg.LockTTL, Logger: logger})
	}

	var publisher application.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Logger:  logger,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, kafkaPublisher.Close)
		publisher = kafkaPublisher
	}

	a.service = application.NewReservationService(application.ReservationServiceConfig{
		Store:        adapters.NewReservationStore(storage),
		Rooms:        adapters.NewRoomCatalog(storage),
		MeetingTypes: adapters.NewMeetingTypeCatalog(storage),
		Locker:       locker,
		Events:       publisher,
		Metrics:      a.metrics,
		Planner:      scheduler.NewPlanner(scheduler.DefaultPolicy()),
		Recurrence:   recurrence.NewEngine(cfg.MaxOccurrences),
		Location:     cfg.Location,
		Logger:       logger,
	})
	return a, nil
}

// Handler returns the HTTP API with the process middleware applied.
func (a *app) Handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(a.service, a.logger),
		Rooms:        httptransport.NewRoomHandler(a.service, a.logger),
		Metrics:      a.metrics.Handler(),
		Health:       a.storage.Ping,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(a.logger),
			httptransport.CORS(a.cfg.CORSAllowedOrigins),
			httptransport.ObserveRequests(a.metrics),
			httptransport.Identity(),
		},
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
