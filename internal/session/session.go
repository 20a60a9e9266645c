// Package session owns the single mutable user state of the running service.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/balance"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrNoChange tells Update to discard the working copy without error.
	ErrNoChange = errors.New("no change")

	ErrNotLoaded = errors.New("session is not loaded")
)

var (
	DefaultStartingUSDT  = decimal.RequireFromString("1240.50")
	DefaultStartingCoins = decimal.NewFromInt(350)
)

const DefaultSaveTimeout = 10 * time.Second

// Session serializes access to the user state. Every mutation works on a
// copy that replaces the current state only when it succeeds. Persistence
// happens outside the state lock: Run saves the latest state in the
// background and Flush saves it on demand.
type Session struct {
	log         *zap.Logger
	store       storage.Storage
	userID      string
	userName    string
	usdt        decimal.Decimal
	coins       decimal.Decimal
	saveTimeout time.Duration

	mu      sync.Mutex
	user    *users.User
	version uint64

	// saveMu orders writes to the store; saved is the last version written.
	saveMu sync.Mutex
	saved  uint64

	dirty chan struct{}
}

type Config struct {
	logger      *zap.Logger
	userName    string
	usdt        decimal.Decimal
	coins       decimal.Decimal
	saveTimeout time.Duration
}

type Option func(c *Config)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithUserName(name string) Option {
	return func(c *Config) {
		c.userName = name
	}
}

// WithStartingBalance sets the wallet given to a user seen for the first time.
func WithStartingBalance(usdt, coins decimal.Decimal) Option {
	return func(c *Config) {
		c.usdt = usdt
		c.coins = coins
	}
}

// WithSaveTimeout bounds a single write to the store, retries included.
func WithSaveTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.saveTimeout = timeout
	}
}

func New(store storage.Storage, userID string, opts ...Option) *Session {
	cfg := &Config{
		logger:      zap.NewNop(),
		userName:    "Invitado",
		usdt:        DefaultStartingUSDT,
		coins:       DefaultStartingCoins,
		saveTimeout: DefaultSaveTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Session{
		log:         cfg.logger.With(zap.String("module", "session")),
		store:       store,
		userID:      userID,
		userName:    cfg.userName,
		usdt:        cfg.usdt,
		coins:       cfg.coins,
		saveTimeout: cfg.saveTimeout,
		dirty:       make(chan struct{}, 1),
	}
}

// Load reads the user snapshot from storage, creating a fresh user with the
// starting balance when none exists.
func (s *Session) Load(ctx context.Context) error {
	usr, err := s.store.GetUser(ctx, s.userID)

	switch {
	case err == nil:
		s.log.Info("User snapshot loaded", zap.String("user_id", s.userID))

	case errors.Is(err, storage.ErrUserNotFound):
		usr, err = users.NewUser(s.userID, s.userName, balance.NewBalance(s.usdt, s.coins, decimal.Zero))
		if err != nil {
			return fmt.Errorf("users.NewUser: %w", err)
		}

		if err := s.store.SaveUser(ctx, usr); err != nil {
			return fmt.Errorf("store.SaveUser: %w", err)
		}

		s.log.Info("New user created", zap.String("user_id", s.userID))

	default:
		return fmt.Errorf("store.GetUser: %w", err)
	}

	s.mu.Lock()
	s.user = usr
	s.mu.Unlock()

	return nil
}

// Snapshot returns a deep copy of the current user.
func (s *Session) Snapshot() (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil, ErrNotLoaded
	}

	return s.user.Clone(), nil
}

// Update applies fn to a copy of the user. When fn succeeds the copy becomes
// the current state and is marked for persistence. When fn returns
// ErrNoChange the copy is dropped and Update returns ErrNoChange.
func (s *Session) Update(_ context.Context, fn func(u *users.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNotLoaded
	}

	working := s.user.Clone()

	if err := fn(working); err != nil {
		return err
	}

	s.user = working
	s.version++

	select {
	case s.dirty <- struct{}{}:
	default:
	}

	return nil
}

// Flush writes the current state to the store unless it is already there.
func (s *Session) Flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()

		return ErrNotLoaded
	}

	usr, version := s.user.Clone(), s.version
	s.mu.Unlock()

	if version == s.saved {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()

	if err := s.store.SaveUser(ctx, usr); err != nil {
		return fmt.Errorf("store.SaveUser: %w", err)
	}

	s.saved = version

	return nil
}

// Run persists committed state in the background until ctx is done, then
// makes a final flush. Updates arriving during a write are coalesced into
// the next one. Write failures are logged and retried on the next change.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrNotLoaded) {
				s.log.Error("session.Flush", zap.Error(err))
			}

			return nil

		case <-s.dirty:
			if err := s.Flush(ctx); err != nil {
				s.log.Error("session.Flush", zap.Error(err))
			}
		}
	}
}
