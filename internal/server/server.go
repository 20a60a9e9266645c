package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/server/router"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv *http.Server
	log *zap.Logger
}

type Config struct {
	serverAddr string
	logger     *zap.Logger
	routerOpts []router.Option
}

type Option func(c *Config)

func WithServerAddr(addr string) Option {
	return func(c *Config) {
		c.serverAddr = addr
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithCatalog(catalog *plans.Catalog) Option {
	return func(c *Config) {
		c.routerOpts = append(c.routerOpts, router.WithCatalog(catalog))
	}
}

func WithFeed(feed *notify.Feed) Option {
	return func(c *Config) {
		c.routerOpts = append(c.routerOpts, router.WithFeed(feed))
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.routerOpts = append(c.routerOpts, router.WithClock(clk))
	}
}

func NewServer(store storage.Storage, sess *session.Session, opts ...Option) (*Server, error) {
	cfg := &Config{
		serverAddr: "0.0.0.0:8080",
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	log := cfg.logger.With(zap.String("module", "server"))

	r := router.NewRouter(store, sess, append(cfg.routerOpts, router.WithLogger(log))...)

	srv := &http.Server{
		Addr:              cfg.serverAddr,
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		srv: srv,
		log: log,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.log.Info(fmt.Sprintf("Starting server on %s", s.srv.Addr))

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server.ListenAndServe: %w", err)
		}

		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		s.log.Info("Gracefully shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}

		return nil
	}
}
