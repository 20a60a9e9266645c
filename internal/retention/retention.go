// Package retention purges delivered orders once they are past the
// retention window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/session"
	"go.uber.org/zap"
)

const (
	DefaultWindow   = 30 * 24 * time.Hour
	DefaultSchedule = "@every 1h"
)

// Job removes orders delivered more than window ago.
type Job struct {
	log     *zap.Logger
	session *session.Session
	clock   clock.Clock
	window  time.Duration
}

type Config struct {
	logger *zap.Logger
	clock  clock.Clock
	window time.Duration
}

type Option func(c *Config)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.clock = clk
	}
}

func WithWindow(window time.Duration) Option {
	return func(c *Config) {
		c.window = window
	}
}

func NewJob(sess *session.Session, opts ...Option) *Job {
	cfg := &Config{
		logger: zap.NewNop(),
		clock:  clock.Real{},
		window: DefaultWindow,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Job{
		log:     cfg.logger.With(zap.String("job", "order_retention")),
		session: sess,
		clock:   cfg.clock,
		window:  cfg.window,
	}
}

func (j *Job) Name() string {
	return "order_retention"
}

func (j *Job) Run(ctx context.Context) error {
	cutoff := j.clock.Now().Add(-j.window)

	var removed int

	err := j.session.Update(ctx, func(u *users.User) error {
		removed = u.PurgeDeliveredOrders(cutoff)
		if removed == 0 {
			return session.ErrNoChange
		}

		return nil
	})
	if err != nil && !errors.Is(err, session.ErrNoChange) {
		return fmt.Errorf("session.Update: %w", err)
	}

	if removed > 0 {
		j.log.Info("Delivered orders purged", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}

	return nil
}
