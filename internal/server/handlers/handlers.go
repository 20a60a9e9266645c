package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/andymarkow/qvasun/internal/clock"
	"github.com/andymarkow/qvasun/internal/domain/balance"
	"github.com/andymarkow/qvasun/internal/domain/investments"
	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/andymarkow/qvasun/internal/domain/plans"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/domain/withdrawals"
	"github.com/andymarkow/qvasun/internal/errmsg"
	"github.com/andymarkow/qvasun/internal/notify"
	"github.com/andymarkow/qvasun/internal/server/models"
	"github.com/andymarkow/qvasun/internal/session"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handlers struct {
	storage storage.Storage
	session *session.Session
	catalog *plans.Catalog
	feed    *notify.Feed
	clock   clock.Clock
	rng     users.Intner
	log     *zap.Logger
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(store storage.Storage, sess *session.Session, opts ...Option) *Handlers {
	handlers := &Handlers{
		storage: store,
		session: sess,
		catalog: plans.Default(),
		feed:    notify.NewFeed(notify.DefaultFeedSize),
		clock:   clock.Real{},
		rng:     globalRand{},
		log:     zap.NewNop(),
	}

	// Apply options
	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

// WithLogger is a option for Handlers that sets logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handlers) {
		h.log = logger
	}
}

func WithCatalog(catalog *plans.Catalog) Option {
	return func(h *Handlers) {
		h.catalog = catalog
	}
}

func WithFeed(feed *notify.Feed) Option {
	return func(h *Handlers) {
		h.feed = feed
	}
}

func WithClock(clk clock.Clock) Option {
	return func(h *Handlers) {
		h.clock = clk
	}
}

// WithRand sets the source of wheel spins.
func WithRand(rng users.Intner) Option {
	return func(h *Handlers) {
		h.rng = rng
	}
}

// globalRand draws from the goroutine-safe top-level math/rand/v2 source.
type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// domainError maps domain failures to HTTP errors.
func domainError(err error) errmsg.HTTPError {
	switch {
	case errors.Is(err, balance.ErrInsufficientFunds):
		return errmsg.ErrUserBalanceNotEnough
	case errors.Is(err, balance.ErrInsufficientCoins):
		return errmsg.ErrUserCoinsNotEnough
	case errors.Is(err, investments.ErrAmountNotPositive), errors.Is(err, investments.ErrAmountBelowMinimum):
		return errmsg.ErrInvestmentAmountInvalid
	case errors.Is(err, orders.ErrOrderItemsEmpty), errors.Is(err, orders.ErrOrderItemInvalid):
		return errmsg.ErrOrderItemsInvalid
	case errors.Is(err, users.ErrAlreadyClaimed):
		return errmsg.ErrDailyRewardClaimed
	case errors.Is(err, users.ErrInvalidCoinAmount), errors.Is(err, balance.ErrAmountNotPositive):
		return errmsg.ErrCoinAmountInvalid
	case errors.Is(err, withdrawals.ErrAddressEmpty):
		return errmsg.ErrWithdrawalAddressEmpty
	case errors.Is(err, balance.ErrNothingWithdrawable):
		return errmsg.ErrNothingToWithdraw
	case errors.Is(err, users.ErrCardExists):
		return errmsg.ErrCardExists
	case errors.Is(err, users.ErrNoCard):
		return errmsg.ErrCardNotFound
	case errors.Is(err, users.ErrCardFundsInsufficient):
		return errmsg.ErrCardBalanceNotEnough
	default:
		return errmsg.NewHTTPError(http.StatusInternalServerError, err)
	}
}

// decodeRequest reads a JSON body into v, writing the error response itself
// when it fails.
func (h *Handlers) decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Error("json.NewDecoder().Decode()", zap.Error(err))

		if errors.Is(err, io.EOF) {
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return false
		}

		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return false
	}

	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.log.Error("storage.Ping", zap.Error(err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) GetPlans(w http.ResponseWriter, _ *http.Request) {
	resp := make([]models.PlanResponse, 0)

	for _, p := range h.catalog.List() {
		resp = append(resp, models.PlanResponse{
			ID:              p.ID(),
			Name:            p.Name(),
			MinEntry:        p.MinEntry().InexactFloat64(),
			DailyROIPercent: p.DailyROIPercent().InexactFloat64(),
			Description:     p.Description(),
			Color:           p.Color(),
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

// snapshot returns the current user or writes an internal error.
func (h *Handlers) snapshot(w http.ResponseWriter) (*users.User, bool) {
	usr, err := h.session.Snapshot()
	if err != nil {
		h.log.Error("session.Snapshot()", zap.Error(err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return nil, false
	}

	return usr, true
}

func (h *Handlers) GetUser(w http.ResponseWriter, _ *http.Request) {
	usr, ok := h.snapshot(w)
	if !ok {
		return
	}

	lastSeen, _ := usr.LastSeenAt()

	handleJSONResponse(w, http.StatusOK, models.UserResponse{
		ID:                usr.ID(),
		Name:              usr.Name(),
		Balance:           balanceResponse(usr.Balance()),
		WithdrawalAddress: usr.WithdrawalAddress(),
		CheckInStreak:     usr.CheckIn().Streak,
		LastCheckIn:       usr.CheckIn().LastDate,
		LastSeenAt:        formatTime(lastSeen),
	})
}

func balanceResponse(b balance.Balance) models.BalanceResponse {
	return models.BalanceResponse{
		USDT:         b.USDT().InexactFloat64(),
		Coins:        b.Coins().InexactFloat64(),
		Withdrawable: b.Withdrawable().InexactFloat64(),
	}
}

func investmentResponse(inv *investments.Investment) models.InvestmentResponse {
	return models.InvestmentResponse{
		ID:            inv.ID(),
		PlanID:        inv.PlanID(),
		PlanName:      inv.PlanName(),
		Amount:        inv.Amount().InexactFloat64(),
		StartedAt:     formatTime(inv.StartedAt()),
		DailyEarnings: inv.DailyEarnings().InexactFloat64(),
		EarnedCoins:   inv.EarnedCoins().InexactFloat64(),
		Status:        inv.Status(),
	}
}

func (h *Handlers) GetUserInvestments(w http.ResponseWriter, _ *http.Request) {
	usr, ok := h.snapshot(w)
	if !ok {
		return
	}

	invs := usr.Investments()

	if len(invs) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.InvestmentResponse{})

		return
	}

	resp := make([]models.InvestmentResponse, 0, len(invs))
	for i := range invs {
		resp = append(resp, investmentResponse(&invs[i]))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) CreateUserInvestment(w http.ResponseWriter, r *http.Request) {
	var payload models.InvestmentRequest

	if !h.decodeRequest(w, r, &payload) {
		return
	}

	plan, ok := h.catalog.Get(payload.PlanID)
	if !ok {
		handleError(w, errmsg.ErrPlanNotFound)

		return
	}

	var inv *investments.Investment

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		inv, err = u.Invest(plan, payload.Amount, h.clock.Now())

		return err
	})
	if err != nil {
		h.log.Error("users.Invest()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusCreated, investmentResponse(inv))
}

func orderResponse(ord *orders.Order) models.OrderResponse {
	items := make([]models.OrderItem, 0, len(ord.Items()))
	for _, it := range ord.Items() {
		items = append(items, models.OrderItem(it))
	}

	deliveredAt, _ := ord.DeliveredAt()

	return models.OrderResponse{
		ID:             ord.ID(),
		Status:         ord.Status(),
		Items:          items,
		Total:          ord.Total().InexactFloat64(),
		TrackingNumber: ord.TrackingNumber(),
		CreatedAt:      formatTime(ord.CreatedAt()),
		DeliveredAt:    formatTime(deliveredAt),
	}
}

func (h *Handlers) GetUserOrders(w http.ResponseWriter, _ *http.Request) {
	usr, ok := h.snapshot(w)
	if !ok {
		return
	}

	ords := usr.Orders()

	if len(ords) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.OrderResponse{})

		return
	}

	resp := make([]models.OrderResponse, 0, len(ords))
	for i := range ords {
		resp = append(resp, orderResponse(&ords[i]))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) CreateUserOrder(w http.ResponseWriter, r *http.Request) {
	var payload models.CheckoutRequest

	if !h.decodeRequest(w, r, &payload) {
		return
	}

	items := make([]orders.Item, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, orders.Item(it))
	}

	var (
		ord  *orders.Order
		rcpt users.Receipt
	)

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		ord, rcpt, err = u.Checkout(items, payload.UseCoins, h.clock.Now())

		return err
	})
	if err != nil {
		h.log.Error("users.Checkout()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	h.log.Info("Order placed",
		zap.String("order_id", ord.ID()),
		zap.String("final", rcpt.Final.String()),
		zap.String("coins_used", rcpt.CoinsUsed.String()),
	)

	handleJSONResponse(w, http.StatusCreated, models.CheckoutResponse{
		Order:       orderResponse(ord),
		Total:       rcpt.Total.InexactFloat64(),
		CoinsUsed:   rcpt.CoinsUsed.InexactFloat64(),
		Discount:    rcpt.Discount.InexactFloat64(),
		Final:       rcpt.Final.InexactFloat64(),
		CoinsEarned: rcpt.CoinsEarned.InexactFloat64(),
	})
}

func (h *Handlers) ClaimCheckIn(w http.ResponseWriter, r *http.Request) {
	var (
		reward decimal.Decimal
		streak int
	)

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		reward, streak, err = u.ClaimDailyReward(h.clock.Now())

		return err
	})
	if err != nil {
		h.log.Info("users.ClaimDailyReward()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.CheckInResponse{
		Reward: reward.InexactFloat64(),
		Streak: streak,
	})
}

func (h *Handlers) ExchangeCoins(w http.ResponseWriter, r *http.Request) {
	var payload models.ExchangeRequest

	if !h.decodeRequest(w, r, &payload) {
		return
	}

	var (
		value        decimal.Decimal
		withdrawable decimal.Decimal
	)

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		value, err = u.ExchangeCoins(payload.Coins)
		withdrawable = u.Balance().Withdrawable()

		return err
	})
	if err != nil {
		h.log.Error("users.ExchangeCoins()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.ExchangeResponse{
		Coins:        payload.Coins.InexactFloat64(),
		Value:        value.InexactFloat64(),
		Withdrawable: withdrawable.InexactFloat64(),
	})
}

func (h *Handlers) SetWithdrawalAddress(w http.ResponseWriter, r *http.Request) {
	var payload models.WithdrawalAddressRequest

	if !h.decodeRequest(w, r, &payload) {
		return
	}

	err := h.session.Update(r.Context(), func(u *users.User) error {
		return u.SetWithdrawalAddress(payload.Address)
	})
	if err != nil {
		h.log.Error("users.SetWithdrawalAddress()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var wd *withdrawals.Withdrawal

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		wd, err = u.RequestWithdrawal(h.clock.Now())

		return err
	})
	if err != nil {
		h.log.Error("users.RequestWithdrawal()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	h.log.Info("Withdrawal requested",
		zap.String("address", wd.Address()),
		zap.String("amount", wd.Amount().String()),
	)

	handleJSONResponse(w, http.StatusAccepted, models.WithdrawalResponse{
		Address:     wd.Address(),
		Amount:      wd.Amount().InexactFloat64(),
		ProcessedAt: formatTime(wd.ProcessedAt()),
	})
}

func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			handleError(w, errmsg.ErrQueryParamInvalid)

			return
		}

		limit = n
	}

	evts := h.feed.Recent(limit)

	resp := make([]models.NotificationResponse, 0, len(evts))
	for _, evt := range evts {
		resp = append(resp, models.NotificationResponse{
			Message:   evt.Message,
			Severity:  string(evt.Severity),
			CreatedAt: formatTime(evt.CreatedAt),
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) SpinWheel(w http.ResponseWriter, r *http.Request) {
	var (
		seg   users.WheelSegment
		coins decimal.Decimal
	)

	err := h.session.Update(r.Context(), func(u *users.User) error {
		seg = u.SpinWheel(h.rng)
		coins = u.Balance().Coins()

		return nil
	})
	if err != nil {
		h.log.Error("users.SpinWheel()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.SpinResponse{
		Label:   seg.Label,
		Reward:  seg.Coins.InexactFloat64(),
		Retry:   seg.Retry,
		Balance: coins.InexactFloat64(),
	})
}

func cardResponse(card users.Card, usdt decimal.Decimal) models.CardResponse {
	return models.CardResponse{
		Number:    card.Number,
		Balance:   card.Balance.InexactFloat64(),
		IssuedAt:  formatTime(card.IssuedAt),
		ExpiresAt: card.ExpiresAt().UTC().Format("01/06"),
		USDT:      usdt.InexactFloat64(),
	}
}

func (h *Handlers) GetCard(w http.ResponseWriter, _ *http.Request) {
	usr, ok := h.snapshot(w)
	if !ok {
		return
	}

	if !usr.Card().Issued() {
		handleError(w, errmsg.ErrCardNotFound)

		return
	}

	handleJSONResponse(w, http.StatusOK, cardResponse(usr.Card(), usr.Balance().USDT()))
}

func (h *Handlers) CreateCard(w http.ResponseWriter, r *http.Request) {
	var (
		card users.Card
		usdt decimal.Decimal
	)

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		card, err = u.CreateCard(h.clock.Now())
		usdt = u.Balance().USDT()

		return err
	})
	if err != nil {
		h.log.Info("users.CreateCard()", zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusCreated, cardResponse(card, usdt))
}

// updateCard runs a card transfer for the amount in the request body.
func (h *Handlers) updateCard(w http.ResponseWriter, r *http.Request, name string,
	fn func(u *users.User, amount decimal.Decimal) (users.Card, error),
) {
	var payload models.CardAmountRequest

	if !h.decodeRequest(w, r, &payload) {
		return
	}

	if !payload.Amount.IsPositive() {
		handleError(w, errmsg.ErrCardAmountInvalid)

		return
	}

	var (
		card users.Card
		usdt decimal.Decimal
	)

	err := h.session.Update(r.Context(), func(u *users.User) error {
		var err error

		card, err = fn(u, payload.Amount)
		usdt = u.Balance().USDT()

		return err
	})
	if err != nil {
		h.log.Error(name, zap.Error(err))
		handleError(w, domainError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, cardResponse(card, usdt))
}

func (h *Handlers) TopUpCard(w http.ResponseWriter, r *http.Request) {
	h.updateCard(w, r, "users.TopUpCard()", (*users.User).TopUpCard)
}

func (h *Handlers) WithdrawFromCard(w http.ResponseWriter, r *http.Request) {
	h.updateCard(w, r, "users.WithdrawFromCard()", (*users.User).WithdrawFromCard)
}
