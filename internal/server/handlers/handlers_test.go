package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/server/models"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/storage/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	h    *Handlers
	sess *session.Session
	feed *notify.Feed
	clk  *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := inmemory.NewStorage()
	sess := session.New(store, "local")
	require.NoError(t, sess.Load(context.Background()))

	feed := notify.NewFeed(10)
	clk := clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	return &fixture{
		h:    NewHandlers(store, sess, WithFeed(feed), WithClock(clk)),
		sess: sess,
		feed: feed,
		clk:  clk,
	}
}

func do(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	w := httptest.NewRecorder()
	handler(w, req)

	return w
}

func TestPing(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.Ping, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPlans(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.GetPlans, http.MethodGet, "/api/plans", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("content-type"))

	var resp []models.PlanResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 3)
	assert.Equal(t, "local", resp[0].ID)
	assert.InDelta(t, 0.5, resp[0].DailyROIPercent, 1e-9)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.GetUser, http.MethodGet, "/api/user", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "local", resp.ID)
	assert.InDelta(t, 1240.50, resp.Balance.USDT, 1e-9)
	assert.InDelta(t, 350, resp.Balance.Coins, 1e-9)
}

func TestCreateUserInvestment(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "created", body: `{"plan_id":"local","amount":100}`, want: http.StatusCreated},
		{name: "empty payload", body: "", want: http.StatusBadRequest},
		{name: "invalid payload", body: `{"plan_id":`, want: http.StatusBadRequest},
		{name: "unknown plan", body: `{"plan_id":"lunar","amount":100}`, want: http.StatusNotFound},
		{name: "below minimum", body: `{"plan_id":"local","amount":5}`, want: http.StatusUnprocessableEntity},
		{name: "not enough funds", body: `{"plan_id":"mundial","amount":"5000"}`, want: http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := do(f.h.CreateUserInvestment, http.MethodPost, "/api/user/investments", tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGetUserInvestments(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.GetUserInvestments, http.MethodGet, "/api/user/investments", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(f.h.CreateUserInvestment, http.MethodPost, "/api/user/investments", `{"plan_id":"regional","amount":200}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(f.h.GetUserInvestments, http.MethodGet, "/api/user/investments", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []models.InvestmentResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "regional", resp[0].PlanID)
	assert.InDelta(t, 160, resp[0].DailyEarnings, 1e-9)
	assert.Equal(t, "2024-05-01T12:00:00Z", resp[0].StartedAt)
}

func TestCreateUserOrder(t *testing.T) {
	f := newFixture(t)

	body := `{"items":[{"product_id":"p1","name":"Panel","quantity":1,"unit_price":"120.99"}],"use_coins":true}`

	w := do(f.h.CreateUserOrder, http.MethodPost, "/api/user/orders", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.CheckoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.InDelta(t, 120.99, resp.Total, 1e-9)
	assert.InDelta(t, 350, resp.CoinsUsed, 1e-9)
	assert.InDelta(t, 3.5, resp.Discount, 1e-9)
	assert.InDelta(t, 117.49, resp.Final, 1e-9)
	assert.InDelta(t, 117, resp.CoinsEarned, 1e-9)
	assert.Equal(t, "procesando", string(resp.Order.Status))
	assert.Empty(t, resp.Order.DeliveredAt)

	w = do(f.h.GetUserOrders, http.MethodGet, "/api/user/orders", "")
	require.Equal(t, http.StatusOK, w.Code)

	var ords []models.OrderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ords))
	require.Len(t, ords, 1)
	assert.Equal(t, resp.Order.ID, ords[0].ID)
}

func TestCreateUserOrderRejectsEmptyItems(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.CreateUserOrder, http.MethodPost, "/api/user/orders", `{"items":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(f.h.GetUserOrders, http.MethodGet, "/api/user/orders", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestClaimCheckIn(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.ClaimCheckIn, http.MethodPost, "/api/user/checkin", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CheckInResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Streak)
	assert.InDelta(t, 1, resp.Reward, 1e-9)

	w = do(f.h.ClaimCheckIn, http.MethodPost, "/api/user/checkin", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	f.clk.Advance(24 * time.Hour)

	w = do(f.h.ClaimCheckIn, http.MethodPost, "/api/user/checkin", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Streak)
}

func TestExchangeAndWithdraw(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.CreateWithdrawal, http.MethodPost, "/api/user/withdrawals", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "no address saved yet")

	w = do(f.h.SetWithdrawalAddress, http.MethodPut, "/api/user/withdrawal-address", `{"address":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(f.h.SetWithdrawalAddress, http.MethodPut, "/api/user/withdrawal-address", `{"address":"TXa1b2c3"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(f.h.CreateWithdrawal, http.MethodPost, "/api/user/withdrawals", "")
	assert.Equal(t, http.StatusConflict, w.Code, "nothing exchanged yet")

	w = do(f.h.ExchangeCoins, http.MethodPost, "/api/user/exchange", `{"coins":1.5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(f.h.ExchangeCoins, http.MethodPost, "/api/user/exchange", `{"coins":1000}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = do(f.h.ExchangeCoins, http.MethodPost, "/api/user/exchange", `{"coins":100}`)
	require.Equal(t, http.StatusOK, w.Code)

	var exch models.ExchangeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&exch))
	assert.Positive(t, exch.Value)
	assert.InDelta(t, exch.Value, exch.Withdrawable, 1e-9)

	w = do(f.h.CreateWithdrawal, http.MethodPost, "/api/user/withdrawals", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	var wd models.WithdrawalResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&wd))
	assert.Equal(t, "TXa1b2c3", wd.Address)
	assert.InDelta(t, exch.Value, wd.Amount, 1e-9)

	usr, err := f.sess.Snapshot()
	require.NoError(t, err)
	assert.True(t, usr.Balance().Withdrawable().IsZero())
	assert.InDelta(t, 250, usr.Balance().Coins().InexactFloat64(), 1e-9)
}

func TestGetNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := f.clk.Now()

	require.NoError(t, f.feed.Notify(ctx, notify.NewEvent(notify.SeverityInfo, at, "first")))
	require.NoError(t, f.feed.Notify(ctx, notify.NewEvent(notify.SeveritySuccess, at, "second")))

	w := do(f.h.GetNotifications, http.MethodGet, "/api/user/notifications?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []models.NotificationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "second", resp[0].Message)
	assert.Equal(t, "success", resp[0].Severity)

	w = do(f.h.GetNotifications, http.MethodGet, "/api/user/notifications?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fixedIntner int

func (f fixedIntner) IntN(n int) int {
	return int(f) % n
}

func TestSpinWheel(t *testing.T) {
	f := newFixture(t)
	f.h = NewHandlers(inmemory.NewStorage(), f.sess, WithRand(fixedIntner(6)))

	w := do(f.h.SpinWheel, http.MethodPost, "/api/user/wheel", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SpinResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "100 Coins", resp.Label)
	assert.InDelta(t, 100, resp.Reward, 1e-9)
	assert.False(t, resp.Retry)
	assert.InDelta(t, 450, resp.Balance, 1e-9)

	f.h = NewHandlers(inmemory.NewStorage(), f.sess, WithRand(fixedIntner(3)))

	w = do(f.h.SpinWheel, http.MethodPost, "/api/user/wheel", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Retry)
	assert.InDelta(t, 450, resp.Balance, 1e-9)
}

func TestVirtualCard(t *testing.T) {
	f := newFixture(t)

	w := do(f.h.GetCard, http.MethodGet, "/api/user/card", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(f.h.TopUpCard, http.MethodPost, "/api/user/card/topup", `{"amount":10}`)
	assert.Equal(t, http.StatusNotFound, w.Code, "no card issued yet")

	w = do(f.h.CreateCard, http.MethodPost, "/api/user/card", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var card models.CardResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&card))
	assert.Len(t, card.Number, 16)
	assert.Zero(t, card.Balance)
	assert.Equal(t, "2024-05-01T12:00:00Z", card.IssuedAt)
	assert.Equal(t, "05/28", card.ExpiresAt)

	w = do(f.h.CreateCard, http.MethodPost, "/api/user/card", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		want    int
	}{
		{name: "top up empty payload", handler: f.h.TopUpCard, body: "", want: http.StatusBadRequest},
		{name: "top up zero", handler: f.h.TopUpCard, body: `{"amount":0}`, want: http.StatusUnprocessableEntity},
		{name: "top up over wallet", handler: f.h.TopUpCard, body: `{"amount":"1240.51"}`, want: http.StatusPaymentRequired},
		{name: "top up", handler: f.h.TopUpCard, body: `{"amount":"240.50"}`, want: http.StatusOK},
		{name: "withdraw negative", handler: f.h.WithdrawFromCard, body: `{"amount":-5}`, want: http.StatusUnprocessableEntity},
		{name: "withdraw over card", handler: f.h.WithdrawFromCard, body: `{"amount":"240.51"}`, want: http.StatusPaymentRequired},
		{name: "withdraw", handler: f.h.WithdrawFromCard, body: `{"amount":"40.50"}`, want: http.StatusOK},
	}

	for _, tt := range tests {
		w := do(tt.handler, http.MethodPost, "/api/user/card", tt.body)
		assert.Equal(t, tt.want, w.Code, tt.name)
	}

	w = do(f.h.GetCard, http.MethodGet, "/api/user/card", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&card))
	assert.InDelta(t, 200, card.Balance, 1e-9)
	assert.InDelta(t, 1040.50, card.USDT, 1e-9)

	usr, err := f.sess.Snapshot()
	require.NoError(t, err)
	assert.True(t, usr.Balance().USDT().Equal(decimal.RequireFromString("1040.50")))
}
