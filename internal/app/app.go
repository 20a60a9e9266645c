package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/config"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/andymarkow/qvasun/internal/logger"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/retention"
	"github.com/andymarkow/qvasun/internal/scheduler"
	"github.com/andymarkow/qvasun/internal/server"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/simulation"
	"github.com/andymarkow/qvasun/internal/simulation/accrual"
	"github.com/andymarkow/qvasun/internal/simulation/lifecycle"
	"github.com/andymarkow/qvasun/internal/simulation/processor"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/andymarkow/qvasun/internal/storage/filestore"
	"github.com/andymarkow/qvasun/internal/storage/inmemory"
	"github.com/andymarkow/qvasun/internal/storage/pgstorage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Application struct {
	log        *zap.Logger
	store      storage.Storage
	session    *session.Session
	server     *server.Server
	simulation *simulation.Simulation
	scheduler  *scheduler.Scheduler
	retention  *retention.Job
	webhook    *notify.WebhookSink
}

func New() (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logg, err := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logger.LogFormatJSON),
		logger.WithAddSource(false),
	)
	if err != nil {
		return nil, fmt.Errorf("logger.NewLogger: %w", err)
	}

	store, err := newStorage(cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("newStorage: %w", err)
	}

	clk := clock.Real{}
	catalog := plans.Default()
	feed := notify.NewFeed(notify.DefaultFeedSize)

	sinks := notify.Multi{notify.NewLogSink(logg), feed}

	var webhook *notify.WebhookSink
	if cfg.WebhookURL != "" {
		webhook = notify.NewWebhookSink(cfg.WebhookURL,
			notify.WithUserID(cfg.UserID),
			notify.WithWebhookLogger(logg),
		)
		sinks = append(sinks, webhook)
	}

	sess := session.New(store, cfg.UserID, session.WithLogger(logg))

	machine, err := lifecycle.NewMachine(cfg.OrderShipAfter, cfg.OrderDeliverAfter)
	if err != nil {
		return nil, fmt.Errorf("lifecycle.NewMachine: %w", err)
	}

	calc := accrual.New(catalog,
		accrual.WithLogger(logg),
		accrual.WithMaturity(cfg.Maturity),
	)

	proc := processor.New(calc, machine,
		processor.WithLogger(logg),
		processor.WithNegligible(decimal.NewFromFloat(cfg.NegligibleCoins)),
	)

	sim := simulation.New(sess, proc,
		simulation.WithLogger(logg),
		simulation.WithTickInterval(cfg.TickInterval),
		simulation.WithClock(clk),
		simulation.WithSink(sinks),
	)

	sched := scheduler.New(logg)

	job := retention.NewJob(sess,
		retention.WithLogger(logg),
		retention.WithClock(clk),
		retention.WithWindow(cfg.OrderRetention),
	)

	if err := sched.AddJob(cfg.RetentionSchedule, job); err != nil {
		return nil, fmt.Errorf("scheduler.AddJob: %w", err)
	}

	srv, err := server.NewServer(store, sess,
		server.WithServerAddr(cfg.ServerAddr),
		server.WithLogger(logg),
		server.WithCatalog(catalog),
		server.WithFeed(feed),
		server.WithClock(clk),
	)
	if err != nil {
		return nil, fmt.Errorf("server.NewServer: %w", err)
	}

	return &Application{
		log:        logg,
		store:      store,
		session:    sess,
		server:     srv,
		simulation: sim,
		scheduler:  sched,
		retention:  job,
		webhook:    webhook,
	}, nil
}

// newStorage picks PostgreSQL, then snapshot files, then memory.
func newStorage(cfg config.Config, log *zap.Logger) (storage.Storage, error) {
	switch {
	case cfg.DatabaseURI != "":
		pgstore, err := pgstorage.NewStorage(cfg.DatabaseURI)
		if err != nil {
			return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
		}

		if err := pgstore.Bootstrap(context.Background()); err != nil {
			return nil, fmt.Errorf("pgstore.Bootstrap: %w", err)
		}

		log.Info("Using PostgreSQL storage")

		return storage.NewStorage(pgstore), nil

	case cfg.SnapshotPath != "":
		fstore, err := filestore.NewStorage(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("filestore.NewStorage: %w", err)
		}

		log.Info("Using snapshot file storage", zap.String("path", cfg.SnapshotPath))

		return storage.NewStorage(fstore), nil

	default:
		log.Info("Using in-memory storage")

		return storage.NewStorage(inmemory.NewStorage()), nil
	}
}

func (a *Application) Run() error {
	defer func() {
		if err := a.store.Close(); err != nil {
			a.log.Error("store.Close", zap.Error(err))
		}

		_ = a.log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.session.Load(ctx); err != nil {
		return fmt.Errorf("session.Load: %w", err)
	}

	// Orders that aged out while the service was down are purged right away.
	if err := a.scheduler.RunNow(ctx, a.retention); err != nil {
		a.log.Warn("scheduler.RunNow", zap.String("job", a.retention.Name()), zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.session.Run(ctx)
	})

	if a.webhook != nil {
		g.Go(func() error {
			return a.webhook.Run(ctx)
		})
	}

	g.Go(func() error {
		if err := a.simulation.Run(ctx); err != nil {
			return fmt.Errorf("simulation.Run: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		return a.scheduler.Run(ctx)
	})

	g.Go(func() error {
		if err := a.server.Run(ctx); err != nil {
			return fmt.Errorf("server.Run: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}

	a.log.Info("Application stopped")

	return nil
}
