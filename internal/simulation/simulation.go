// Package simulation runs the time-driven simulation of the session user:
// one offline catch-up at start, then a live tick on a fixed period.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/simulation/processor"
	"go.uber.org/zap"
)

const DefaultTickInterval = 5 * time.Second

type Simulation struct {
	log          *zap.Logger
	tickInterval time.Duration
	clock        clock.Clock
	sink         notify.Sink
	session      *session.Session
	processor    *processor.Processor
}

type Config struct {
	logger       *zap.Logger
	tickInterval time.Duration
	clock        clock.Clock
	sink         notify.Sink
}

type Option func(c *Config)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithTickInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.tickInterval = interval
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.clock = clk
	}
}

func WithSink(sink notify.Sink) Option {
	return func(c *Config) {
		c.sink = sink
	}
}

func New(sess *session.Session, proc *processor.Processor, opts ...Option) *Simulation {
	cfg := &Config{
		logger:       zap.NewNop(),
		tickInterval: DefaultTickInterval,
		clock:        clock.Real{},
		sink:         notify.Multi{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Simulation{
		log:          cfg.logger.With(zap.String("module", "simulation")),
		tickInterval: cfg.tickInterval,
		clock:        cfg.clock,
		sink:         cfg.sink,
		session:      sess,
		processor:    proc,
	}
}

// Run performs the catch-up and then ticks until ctx is done. Ticks never
// overlap: each one runs to completion before the next is taken.
func (s *Simulation) Run(ctx context.Context) error {
	if s.tickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", s.tickInterval)
	}

	if _, err := s.CatchUp(ctx); err != nil {
		return fmt.Errorf("simulation.CatchUp: %w", err)
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.log.Info("Start simulation daemon",
		zap.Duration("tick_interval", s.tickInterval),
		zap.String("negligible", s.processor.Negligible().String()),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Context done, stopping simulation daemon")

			return nil

		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Error("simulation.Tick", zap.Error(err))
			}
		}
	}
}

// CatchUp applies the time the user was away in a single step.
func (s *Simulation) CatchUp(ctx context.Context) (processor.Outcome, error) {
	var out processor.Outcome

	now := s.clock.Now()

	err := s.session.Update(ctx, func(u *users.User) error {
		out = s.processor.CatchUp(u, now)

		return nil
	})
	if err != nil {
		return out, fmt.Errorf("session.Update: %w", err)
	}

	s.dispatch(ctx, out.Events)

	return out, nil
}

// Tick runs one live step over the configured tick interval.
func (s *Simulation) Tick(ctx context.Context) (processor.Outcome, error) {
	var out processor.Outcome

	now := s.clock.Now()

	err := s.session.Update(ctx, func(u *users.User) error {
		out = s.processor.Tick(u, now, s.tickInterval)
		if !out.Commit {
			return session.ErrNoChange
		}

		return nil
	})
	if err != nil && !errors.Is(err, session.ErrNoChange) {
		return out, fmt.Errorf("session.Update: %w", err)
	}

	if out.Commit {
		s.log.Debug("Tick committed",
			zap.String("earned", out.Earned.String()),
			zap.Int("transitions", len(out.Transitions)),
		)
	}

	s.dispatch(ctx, out.Events)

	return out, nil
}

// dispatch hands events to the sink in order. Delivery failures are logged
// only.
func (s *Simulation) dispatch(ctx context.Context, evts []notify.Event) {
	for _, evt := range evts {
		if err := s.sink.Notify(ctx, evt); err != nil {
			s.log.Warn("sink.Notify", zap.String("message", evt.Message), zap.Error(err))
		}
	}
}
