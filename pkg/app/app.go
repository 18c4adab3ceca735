// Package app assembles the service from its configuration: database pool
// and migrations, the scan pipeline, Kafka in and out, and the HTTP surface.
// The deployment entrypoint binds config, builds an App, attaches its
// dependency container middleware, and drives Start/Serve/Stop around the
// process lifetime.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/matchpair"
	"github.com/Ramsey-B/fern/internal/repositories/person"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/dupescan"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/progress"
	dupescanroutes "github.com/Ramsey-B/fern/pkg/routes/dupescan"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	matchpairroutes "github.com/Ramsey-B/fern/pkg/routes/matchpair"
)

// App holds every wired component. The exported fields are what the
// entrypoint registers into its dependency container for the routes.
type App struct {
	Config config.Config
	Logger ectologger.Logger
	DB     database.DB
	Echo   *echo.Echo
	Bus    *progress.Bus
	Runner *dupescan.Runner
	Pairs  *matchpair.Repository
	People *person.Repository
	Health *health.Checker

	sqlxDB   *sqlx.DB
	producer *kafka.Producer
	consumer *kafka.Consumer
	emitter  *events.Emitter
}

// New connects to Postgres, applies migrations, and wires the scan pipeline,
// Kafka and the HTTP routes. Nothing starts running until Start.
func New(cfg config.Config, logger ectologger.Logger, version string) (*App, error) {
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, connectionString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	driver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{DatabaseName: cfg.DatabaseName})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration driver")
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	db := database.NewDatabaseInstance(sqlxDB, logger)
	pairs := matchpair.NewRepository(db, logger)
	people := person.NewRepository(db, logger)

	bus := progress.NewBus()
	orchestrator := dupescan.NewOrchestrator(logger, people, pairs, bus, cfg.ScanMaxMatches, cfg.ScanProgressFloor)
	runner := dupescan.NewRunner(logger, db, orchestrator, bus)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaProgressTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeoutMs) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	emitter := events.NewEmitter(producer, bus, logger)

	var consumer *kafka.Consumer
	var consumerHealth health.ConsumerHealth
	if cfg.KafkaConsumerEnabled {
		decisions := processor.New(db, pairs, logger)
		consumer = kafka.NewConsumer(cfg, logger, decisions.Handle)
		consumerHealth = consumer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(sqlxDB, consumerHealth, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	dupescanroutes.Register(api.Group("/dupescan"))
	matchpairroutes.Register(api.Group("/match-pairs"))

	return &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Echo:   e,
		Bus:    bus,
		Runner: runner,
		Pairs:  pairs,
		People: people,
		Health: checker,

		sqlxDB:   sqlxDB,
		producer: producer,
		consumer: consumer,
		emitter:  emitter,
	}, nil
}

// Start launches the background workers and marks the service ready.
func (a *App) Start(ctx context.Context) error {
	a.emitter.Start(ctx)
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start decision consumer")
		}
	}
	a.Health.SetReady(true)
	a.Logger.WithContext(ctx).WithField("app", a.Config.AppName).Info("Application started")
	return nil
}

// Serve runs the HTTP server until it is shut down.
func (a *App) Serve() error {
	return a.Echo.Start(fmt.Sprintf(":%d", a.Config.Port))
}

// Stop drains the service in reverse order of Start: readiness off first so
// traffic falls away, then the server, the workers, and the pool.
func (a *App) Stop(ctx context.Context) error {
	a.Health.SetReady(false)
	if err := a.Echo.Shutdown(ctx); err != nil {
		a.Logger.WithContext(ctx).WithError(err).Error("Failed to shut down http server")
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil {
			a.Logger.WithContext(ctx).WithError(err).Error("Failed to stop decision consumer")
		}
	}
	a.emitter.Stop()
	if err := a.producer.Close(); err != nil {
		a.Logger.WithContext(ctx).WithError(err).Error("Failed to close progress producer")
	}
	return a.sqlxDB.Close()
}

func connectionString(cfg config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseUserName,
		cfg.DatabasePassword,
		cfg.DatabaseName,
		cfg.DatabaseSSLMode,
	)
}
