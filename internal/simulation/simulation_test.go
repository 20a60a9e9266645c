package simulation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/httpclient"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/simulation/accrual"
	"github.com/andymarkow/qvasun/internal/simulation/lifecycle"
	"github.com/andymarkow/qvasun/internal/simulation/processor"
	"github.com/andymarkow/qvasun/internal/storage/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type failingSink struct{}

func (failingSink) Notify(context.Context, notify.Event) error {
	return errors.New("sink down")
}

type fixture struct {
	sim   *Simulation
	sess  *session.Session
	store *inmemory.Storage
	clk   *clock.Manual
	feed  *notify.Feed
}

func newFixture(t *testing.T, sinks ...notify.Sink) *fixture {
	t.Helper()

	ctx := context.Background()
	store := inmemory.NewStorage()
	sess := session.New(store, "local")
	require.NoError(t, sess.Load(ctx))

	machine, err := lifecycle.NewMachine(lifecycle.DefaultShipAfter, lifecycle.DefaultDeliverAfter)
	require.NoError(t, err)

	proc := processor.New(accrual.New(plans.Default()), machine)
	clk := clock.NewManual(t0)
	feed := notify.NewFeed(10)

	sim := New(sess, proc,
		WithClock(clk),
		WithTickInterval(DefaultTickInterval),
		WithSink(append(notify.Multi{feed}, sinks...)),
	)

	return &fixture{sim: sim, sess: sess, store: store, clk: clk, feed: feed}
}

func (f *fixture) update(t *testing.T, fn func(u *users.User) error) {
	t.Helper()

	require.NoError(t, f.sess.Update(context.Background(), fn))
}

func (f *fixture) snapshot(t *testing.T) *users.User {
	t.Helper()

	usr, err := f.sess.Snapshot()
	require.NoError(t, err)

	return usr
}

func TestCatchUpAfterOneDayAway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.update(t, func(u *users.User) error {
		plan, _ := plans.Default().Get("mundial")
		_, err := u.Invest(plan, decimal.NewFromInt(100), t0)
		u.Touch(t0)

		return err
	})

	f.clk.Advance(accrual.Day)

	out, err := f.sim.CatchUp(ctx)
	require.NoError(t, err)
	assert.True(t, out.Earned.Equal(decimal.NewFromInt(120)))

	usr := f.snapshot(t)
	assert.True(t, usr.Balance().Coins().Equal(decimal.NewFromInt(470)))

	seen, _ := usr.LastSeenAt()
	assert.Equal(t, t0.Add(accrual.Day), seen)

	evts := f.feed.Recent(0)
	require.Len(t, evts, 1)
	assert.Contains(t, evts[0].Message, "while away")

	require.NoError(t, f.sess.Flush(ctx))

	stored, err := f.store.GetUser(ctx, "local")
	require.NoError(t, err)
	assert.True(t, stored.Balance().Coins().Equal(decimal.NewFromInt(470)), "committed state is persisted")
}

func TestTickSkipsNegligibleEarnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.update(t, func(u *users.User) error {
		plan, _ := plans.Default().Get("mundial")
		_, err := u.Invest(plan, decimal.NewFromInt(100), t0)
		u.Touch(t0)

		return err
	})

	before := f.snapshot(t)

	f.clk.Advance(DefaultTickInterval)

	out, err := f.sim.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, out.Commit)

	after := f.snapshot(t)
	assert.True(t, before.Balance().Coins().Equal(after.Balance().Coins()))

	seen, _ := after.LastSeenAt()
	assert.Equal(t, t0, seen)
	assert.Empty(t, f.feed.Recent(0))
}

func TestTickMovesOrdersAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingSink{})

	f.update(t, func(u *users.User) error {
		_, _, err := u.Checkout([]orders.Item{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}}, false, t0)

		return err
	})

	f.clk.Set(t0.Add(31 * time.Second))

	_, err := f.sim.Tick(ctx)
	require.NoError(t, err, "sink failures do not fail the tick")
	assert.Equal(t, orders.OrderStatusShipped, f.snapshot(t).Orders()[0].Status())

	f.clk.Set(t0.Add(95 * time.Second))

	_, err = f.sim.Tick(ctx)
	require.NoError(t, err)

	ord := f.snapshot(t).Orders()[0]
	assert.Equal(t, orders.OrderStatusDelivered, ord.Status())

	deliveredAt, ok := ord.DeliveredAt()
	assert.True(t, ok)
	assert.Equal(t, t0.Add(95*time.Second), deliveredAt)

	evts := f.feed.Recent(0)
	require.Len(t, evts, 2)
	assert.Contains(t, evts[0].Message, "delivered")
	assert.Contains(t, evts[1].Message, "shipped")
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.sim.tickInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- f.sim.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		usr, err := f.sess.Snapshot()
		if err != nil {
			return false
		}

		_, ok := usr.LastSeenAt()

		return ok
	}, time.Second, time.Millisecond, "catch-up stamps last seen")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsBadInterval(t *testing.T) {
	f := newFixture(t)
	f.sim.tickInterval = 0

	assert.Error(t, f.sim.Run(context.Background()))
}

func TestTickIsNotHeldUpBySlowWebhook(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	webhook := notify.NewWebhookSink(srv.URL, notify.WithClient(httpclient.New(
		httpclient.WithRetryCount(3),
		httpclient.WithRetryWaitTime(100*time.Millisecond),
	)))

	f := newFixture(t, webhook)

	f.update(t, func(u *users.User) error {
		item := []orders.Item{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}}

		for i := 0; i < 2; i++ {
			if _, _, err := u.Checkout(item, false, t0); err != nil {
				return err
			}
		}

		return nil
	})

	f.clk.Set(t0.Add(31 * time.Second))

	start := time.Now()

	out, err := f.sim.Tick(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Len(t, out.Events, 2)
	assert.Len(t, f.feed.Recent(0), 2)
}

func TestRestartCreditsEachIntervalOnce(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		investAt time.Duration
		ticks    []time.Duration
		restarts []time.Duration
		want     float64
	}{
		{
			name:     "committed tick then restart",
			amount:   100000,
			ticks:    []time.Duration{5 * time.Second},
			restarts: []time.Duration{time.Hour},
			want:     5000,
		},
		{
			name:     "skipped tick then restart",
			amount:   100,
			ticks:    []time.Duration{5 * time.Second},
			restarts: []time.Duration{time.Hour},
			want:     5,
		},
		{
			name:     "investment made after last seen",
			amount:   100,
			investAt: 10 * time.Hour,
			restarts: []time.Duration{20 * time.Hour},
			want:     50,
		},
		{
			name:     "two restarts",
			amount:   100,
			restarts: []time.Duration{time.Hour, 2 * time.Hour},
			want:     10,
		},
		{
			name:     "restart at the same instant",
			amount:   100,
			restarts: []time.Duration{time.Hour, time.Hour},
			want:     5,
		},
		{
			name:     "ticks then restart",
			amount:   100000,
			ticks:    []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second},
			restarts: []time.Duration{24 * time.Hour},
			want:     120000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := inmemory.NewStorage()
			clk := clock.NewManual(t0)

			machine, err := lifecycle.NewMachine(lifecycle.DefaultShipAfter, lifecycle.DefaultDeliverAfter)
			require.NoError(t, err)

			proc := processor.New(accrual.New(plans.Default()), machine)

			start := func() (*session.Session, *Simulation) {
				sess := session.New(store, "local",
					session.WithStartingBalance(decimal.NewFromInt(tt.amount), decimal.Zero))
				require.NoError(t, sess.Load(ctx))

				return sess, New(sess, proc, WithClock(clk), WithTickInterval(DefaultTickInterval))
			}

			sess, sim := start()

			require.NoError(t, sess.Update(ctx, func(u *users.User) error {
				u.Touch(t0)

				plan, _ := plans.Default().Get("mundial")
				_, err := u.Invest(plan, decimal.NewFromInt(tt.amount), t0.Add(tt.investAt))

				return err
			}))

			for _, at := range tt.ticks {
				clk.Set(t0.Add(at))

				_, err := sim.Tick(ctx)
				require.NoError(t, err)
			}

			require.NoError(t, sess.Flush(ctx))

			for _, at := range tt.restarts {
				clk.Set(t0.Add(at))

				sess, sim = start()

				_, err := sim.CatchUp(ctx)
				require.NoError(t, err)
				require.NoError(t, sess.Flush(ctx))
			}

			stored, err := store.GetUser(ctx, "local")
			require.NoError(t, err)

			assert.InDelta(t, tt.want, stored.Balance().Coins().InexactFloat64(), 1e-9)
			assert.InDelta(t, tt.want, stored.Investments()[0].EarnedCoins().InexactFloat64(), 1e-9)

			seen, ok := stored.LastSeenAt()
			require.True(t, ok)
			assert.Equal(t, t0.Add(tt.restarts[len(tt.restarts)-1]), seen)
		})
	}
}
