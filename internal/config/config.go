package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

var (
	ErrTickIntervalInvalid = errors.New("tick interval must be positive")
	ErrThresholdsInvalid   = errors.New("order ship-after must not exceed deliver-after")
	ErrDurationNegative    = errors.New("duration must not be negative")
	ErrNegligibleNegative  = errors.New("negligible coins threshold must not be negative")
	ErrUserIDEmpty         = errors.New("user id is empty")
)

type Config struct {
	ServerAddr        string        `env:"RUN_ADDRESS"`
	LogLevel          string        `env:"LOG_LEVEL"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	SnapshotPath      string        `env:"SNAPSHOT_PATH"`
	UserID            string        `env:"USER_ID"`
	TickInterval      time.Duration `env:"TICK_INTERVAL"`
	OrderShipAfter    time.Duration `env:"ORDER_SHIP_AFTER"`
	OrderDeliverAfter time.Duration `env:"ORDER_DELIVER_AFTER"`
	NegligibleCoins   float64       `env:"NEGLIGIBLE_COINS"`
	Maturity          time.Duration `env:"INVESTMENT_MATURITY"`
	OrderRetention    time.Duration `env:"ORDER_RETENTION"`
	RetentionSchedule string        `env:"ORDER_RETENTION_SCHEDULE"`
	WebhookURL        string        `env:"NOTIFY_WEBHOOK_URL"`
}

func NewConfig() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	return parse(os.Args[0], os.Args[1:])
}

func parse(name string, args []string) (Config, error) {
	cfg := Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	fs.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database connection string [env:DATABASE_URI]")
	fs.StringVar(&cfg.SnapshotPath, "f", "", "snapshot directory for file storage [env:SNAPSHOT_PATH]")
	fs.StringVar(&cfg.UserID, "u", "local", "simulated user id [env:USER_ID]")
	fs.DurationVar(&cfg.TickInterval, "t", 5*time.Second, "simulation tick interval [env:TICK_INTERVAL]")
	fs.DurationVar(&cfg.OrderShipAfter, "ship-after", 30*time.Second, "order age before shipping [env:ORDER_SHIP_AFTER]")
	fs.DurationVar(&cfg.OrderDeliverAfter, "deliver-after", 90*time.Second, "order age before delivery [env:ORDER_DELIVER_AFTER]")
	fs.Float64Var(&cfg.NegligibleCoins, "negligible", 0.01, "coins below this are not committed [env:NEGLIGIBLE_COINS]")
	fs.DurationVar(&cfg.Maturity, "maturity", 0, "investment maturity, 0 means never [env:INVESTMENT_MATURITY]")
	fs.DurationVar(&cfg.OrderRetention, "retention", 720*time.Hour, "delivered order retention [env:ORDER_RETENTION]")
	fs.StringVar(&cfg.RetentionSchedule, "retention-schedule", "@every 1h", "retention job schedule [env:ORDER_RETENTION_SCHEDULE]")
	fs.StringVar(&cfg.WebhookURL, "w", "", "notification webhook URL [env:NOTIFY_WEBHOOK_URL]")

	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("flag.Parse: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config.Validate: %w", err)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.UserID == "" {
		return ErrUserIDEmpty
	}

	if c.TickInterval <= 0 {
		return ErrTickIntervalInvalid
	}

	if c.OrderShipAfter < 0 || c.OrderDeliverAfter < 0 || c.Maturity < 0 || c.OrderRetention < 0 {
		return ErrDurationNegative
	}

	if c.OrderShipAfter > c.OrderDeliverAfter {
		return ErrThresholdsInvalid
	}

	if c.NegligibleCoins < 0 {
		return ErrNegligibleNegative
	}

	return nil
}
