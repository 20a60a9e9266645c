package pgstorage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/andymarkow/qvasun/internal/storage/dbmodels"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	// Postgres driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ storage.Storage = (*Storage)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

type Storage struct {
	db *sql.DB
}

type Config struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
}

type Option func(s *Config)

func WithMaxOpenConns(conns int) Option {
	return func(c *Config) {
		c.maxOpenConns = conns
	}
}

func WithMaxIdleConns(conns int) Option {
	return func(c *Config) {
		c.maxIdleConns = conns
	}
}

func WithConnMaxIdleTime(idleTime time.Duration) Option {
	return func(c *Config) {
		c.connMaxIdleTime = idleTime
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(c *Config) {
		c.connMaxLifetime = lifetime
	}
}

func NewStorage(connStr string, opts ...Option) (*Storage, error) {
	cfg := &Config{
		maxOpenConns:    5,
		maxIdleConns:    2,
		connMaxIdleTime: 180 * time.Second,
		connMaxLifetime: 3600 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	return &Storage{
		db: db,
	}, nil
}

// Bootstrap applies the embedded schema migrations.
func (s *Storage) Bootstrap(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("fs.Sub: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, s.db, fsys)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("provider.Up: %w", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close: %w", err)
	}

	return nil
}

// isRetryableError checks if error is retryable.
func isRetryableError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}

	return false
}

// WithRetry retries operation on retryable errors, waiting 1s, 3s, 5s between
// attempts. It gives up early when ctx is done.
func WithRetry(ctx context.Context, operation func() error) error {
	const (
		retryCount    = 3
		retryInterval = 2
	)

	var err error

	for i := 0; i < retryCount; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return err
		}

		wait := time.Duration(i*retryInterval+1) * time.Second

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("retry attempts exceeded: %w", err)
}

func (s *Storage) Ping(ctx context.Context) error {
	return WithRetry(ctx, func() error {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext: %w", err)
		}

		return nil
	})
}

func (s *Storage) GetUser(ctx context.Context, id string) (*users.User, error) {
	var m *dbmodels.User

	err := WithRetry(ctx, func() error {
		var err error

		m, err = s.loadUser(ctx, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	usr, err := m.ToUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUserInvalid, err)
	}

	return usr, nil
}

func (s *Storage) loadUser(ctx context.Context, id string) (*dbmodels.User, error) {
	m := &dbmodels.User{ID: id}

	var lastSeen, cardIssued sql.NullTime

	row := s.db.QueryRowContext(ctx,
		`SELECT name, usdt, coins, withdrawable, withdrawal_address, checkin_date, checkin_streak,`+
			` card_number, card_balance, card_issued_at, last_seen_at`+
			` FROM users WHERE id = $1`, id)
	if err := row.Scan(
		&m.Name, &m.USDT, &m.Coins, &m.Withdrawable,
		&m.WithdrawalAddress, &m.CheckInDate, &m.CheckInStreak,
		&m.CardNumber, &m.CardBalance, &cardIssued, &lastSeen,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	if lastSeen.Valid {
		m.LastSeenAt = lastSeen.Time
	}

	if cardIssued.Valid {
		m.CardIssuedAt = cardIssued.Time
	}

	var err error

	if m.Investments, err = s.loadInvestments(ctx, id); err != nil {
		return nil, err
	}

	if m.Orders, err = s.loadOrders(ctx, id); err != nil {
		return nil, err
	}

	if m.Withdrawals, err = s.loadWithdrawals(ctx, id); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Storage) loadInvestments(ctx context.Context, userID string) ([]dbmodels.Investment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, plan_name, amount, started_at, daily_earnings, earned_coins, status`+
			` FROM investments WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("db.QueryContext: %w", err)
	}
	defer rows.Close()

	invs := make([]dbmodels.Investment, 0)

	for rows.Next() {
		var inv dbmodels.Investment

		if err := rows.Scan(
			&inv.ID, &inv.PlanID, &inv.PlanName, &inv.Amount,
			&inv.StartedAt, &inv.DailyEarnings, &inv.EarnedCoins, &inv.Status,
		); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		invs = append(invs, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return invs, nil
}

func (s *Storage) loadOrders(ctx context.Context, userID string) ([]dbmodels.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, items, total, status, delivered_at, tracking_number`+
			` FROM orders WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("db.QueryContext: %w", err)
	}
	defer rows.Close()

	ords := make([]dbmodels.Order, 0)

	for rows.Next() {
		var (
			ord         dbmodels.Order
			items       []byte
			deliveredAt sql.NullTime
		)

		if err := rows.Scan(
			&ord.ID, &ord.CreatedAt, &items, &ord.Total, &ord.Status, &deliveredAt, &ord.TrackingNumber,
		); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		if err := json.Unmarshal(items, &ord.Items); err != nil {
			return nil, fmt.Errorf("json.Unmarshal: %w", err)
		}

		if deliveredAt.Valid {
			ord.DeliveredAt = deliveredAt.Time
		}

		ords = append(ords, ord)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return ords, nil
}

func (s *Storage) loadWithdrawals(ctx context.Context, userID string) ([]dbmodels.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, amount, processed_at FROM withdrawals WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db.QueryContext: %w", err)
	}
	defer rows.Close()

	wds := make([]dbmodels.Withdrawal, 0)

	for rows.Next() {
		var wd dbmodels.Withdrawal

		if err := rows.Scan(&wd.Address, &wd.Amount, &wd.ProcessedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		wds = append(wds, wd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return wds, nil
}

// SaveUser replaces the stored snapshot of usr in one transaction.
func (s *Storage) SaveUser(ctx context.Context, usr *users.User) error {
	if err := users.ValidateID(usr.ID()); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUserInvalid, err)
	}

	m := dbmodels.FromUser(usr)

	return WithRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if err := saveUser(ctx, tx, &m); err != nil {
			return err
		}

		if err := saveInvestments(ctx, tx, m.ID, m.Investments); err != nil {
			return err
		}

		if err := saveOrders(ctx, tx, m.ID, m.Orders); err != nil {
			return err
		}

		if err := saveWithdrawals(ctx, tx, m.ID, m.Withdrawals); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func saveUser(ctx context.Context, tx *sql.Tx, m *dbmodels.User) error {
	query := `INSERT INTO users` +
		` (id, name, usdt, coins, withdrawable, withdrawal_address, checkin_date, checkin_streak,` +
		` card_number, card_balance, card_issued_at, last_seen_at)` +
		` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)` +
		` ON CONFLICT (id) DO UPDATE SET` +
		` name = EXCLUDED.name, usdt = EXCLUDED.usdt, coins = EXCLUDED.coins,` +
		` withdrawable = EXCLUDED.withdrawable, withdrawal_address = EXCLUDED.withdrawal_address,` +
		` checkin_date = EXCLUDED.checkin_date, checkin_streak = EXCLUDED.checkin_streak,` +
		` card_number = EXCLUDED.card_number, card_balance = EXCLUDED.card_balance,` +
		` card_issued_at = EXCLUDED.card_issued_at, last_seen_at = EXCLUDED.last_seen_at`

	if _, err := tx.ExecContext(ctx, query,
		m.ID, m.Name, m.USDT, m.Coins, m.Withdrawable,
		m.WithdrawalAddress, m.CheckInDate, m.CheckInStreak,
		m.CardNumber, m.CardBalance, nullTime(m.CardIssuedAt), nullTime(m.LastSeenAt),
	); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	return nil
}

func saveInvestments(ctx context.Context, tx *sql.Tx, userID string, invs []dbmodels.Investment) error {
	query := `INSERT INTO investments` +
		` (id, user_id, position, plan_id, plan_name, amount, started_at, daily_earnings, earned_coins, status)` +
		` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)` +
		` ON CONFLICT (id) DO UPDATE SET` +
		` position = EXCLUDED.position, earned_coins = EXCLUDED.earned_coins, status = EXCLUDED.status`

	ids := make([]string, 0, len(invs))

	for pos, inv := range invs {
		if _, err := tx.ExecContext(ctx, query,
			inv.ID, userID, pos, inv.PlanID, inv.PlanName, inv.Amount,
			inv.StartedAt, inv.DailyEarnings, inv.EarnedCoins, inv.Status,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		ids = append(ids, inv.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM investments WHERE user_id = $1 AND NOT (id = ANY($2))`, userID, pq.Array(ids),
	); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	return nil
}

func saveOrders(ctx context.Context, tx *sql.Tx, userID string, ords []dbmodels.Order) error {
	query := `INSERT INTO orders` +
		` (id, user_id, position, created_at, items, total, status, delivered_at, tracking_number)` +
		` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)` +
		` ON CONFLICT (id) DO UPDATE SET` +
		` position = EXCLUDED.position, status = EXCLUDED.status, delivered_at = EXCLUDED.delivered_at`

	ids := make([]string, 0, len(ords))

	for pos, ord := range ords {
		items, err := json.Marshal(ord.Items)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			ord.ID, userID, pos, ord.CreatedAt, items, ord.Total,
			ord.Status, nullTime(ord.DeliveredAt), ord.TrackingNumber,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		ids = append(ids, ord.ID)
	}

	// Orders removed by retention disappear from the snapshot.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM orders WHERE user_id = $1 AND NOT (id = ANY($2))`, userID, pq.Array(ids),
	); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	return nil
}

func saveWithdrawals(ctx context.Context, tx *sql.Tx, userID string, wds []dbmodels.Withdrawal) error {
	var stored int

	row := tx.QueryRowContext(ctx, `SELECT count(*) FROM withdrawals WHERE user_id = $1`, userID)
	if err := row.Scan(&stored); err != nil {
		return fmt.Errorf("row.Scan: %w", err)
	}

	// Withdrawals are append only, only the tail is new.
	for _, wd := range wds[min(stored, len(wds)):] {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO withdrawals (user_id, address, amount, processed_at) VALUES ($1, $2, $3, $4)`,
			userID, wd.Address, wd.Amount, wd.ProcessedAt,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}
	}

	return nil
}
