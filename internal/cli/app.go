package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/invalidation"
	"fintrack/internal/live"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

// App is the wired application graph shared by the commands.
type App struct {
	Config   *config.Config
	Logger   *applog.Logger
	Registry *prometheus.Registry
	Service  *services.FinanceService

	amqp    *amqp.Client
	results *cache.LRUCache[any]
}

// NewApp opens the store and builds the engine and service on top of it.
// The AMQP client is only dialed when cfg enables it.
func NewApp(cfg *config.Config, logger *applog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tracker := invalidation.NewTracker()
	repo, err := InitSQLite(logger, cfg.SQLiteDBPath, tracker)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, Registry: reg}

	engineOpts := []live.Option{live.WithMetrics(m), live.WithLogger(logger)}
	if cfg.ResultCacheSize > 0 {
		app.results = cache.NewLRUCache[any](cfg.ResultCacheSize, cfg.ResultCacheTTL)
		engineOpts = append(engineOpts, live.WithCache(app.results))
	}
	engine := live.NewEngine(repo.DB(), tracker, engineOpts...)

	serviceOpts := []services.Option{services.WithMetrics(m), services.WithLogger(logger)}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChangesQueue, cfg.AMQPRestoreQueue)
		if err != nil {
			engine.Close()
			repo.Close()
			return nil, fmt.Errorf("connect AMQP: %w", err)
		}
		app.amqp = client
		serviceOpts = append(serviceOpts, services.WithPublisher(client))
		logger.Info("Remote sync enabled",
			"exchange", cfg.AMQPExchange,
			"changes_queue", cfg.AMQPChangesQueue,
			"restore_queue", cfg.AMQPRestoreQueue)
	}

	app.Service = services.NewFinanceService(repo, engine, serviceOpts...)
	return app, nil
}

// Close ends subscriptions, closes the store, then the broker connection.
func (a *App) Close() error {
	var errs []error
	if err := a.Service.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
