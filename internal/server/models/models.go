package models

import (
	"github.com/andymarkow/qvasun/internal/domain/investments"
	"github.com/andymarkow/qvasun/internal/domain/orders"
	"github.com/shopspring/decimal"
)

type PlanResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	MinEntry        float64 `json:"min_entry"`
	DailyROIPercent float64 `json:"daily_roi_percent"`
	Description     string  `json:"description"`
	Color           string  `json:"color"`
}

type UserResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Balance           BalanceResponse `json:"balance"`
	WithdrawalAddress string          `json:"withdrawal_address,omitempty"`
	CheckInStreak     int             `json:"checkin_streak"`
	LastCheckIn       string          `json:"last_checkin,omitempty"`
	LastSeenAt        string          `json:"last_seen_at,omitempty"`
}

type BalanceResponse struct {
	USDT         float64 `json:"usdt"`
	Coins        float64 `json:"coins"`
	Withdrawable float64 `json:"withdrawable"`
}

type InvestmentRequest struct {
	PlanID string          `json:"plan_id"`
	Amount decimal.Decimal `json:"amount"`
}

type InvestmentResponse struct {
	ID            string             `json:"id"`
	PlanID        string             `json:"plan_id"`
	PlanName      string             `json:"plan_name"`
	Amount        float64            `json:"amount"`
	StartedAt     string             `json:"started_at"`
	DailyEarnings float64            `json:"daily_earnings"`
	EarnedCoins   float64            `json:"earned_coins"`
	Status        investments.Status `json:"status"`
}

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CheckoutRequest struct {
	Items    []OrderItem `json:"items"`
	UseCoins bool        `json:"use_coins"`
}

type CheckoutResponse struct {
	Order       OrderResponse `json:"order"`
	Total       float64       `json:"total"`
	CoinsUsed   float64       `json:"coins_used"`
	Discount    float64       `json:"discount"`
	Final       float64       `json:"final"`
	CoinsEarned float64       `json:"coins_earned"`
}

type OrderResponse struct {
	ID             string             `json:"id"`
	Status         orders.OrderStatus `json:"status"`
	Items          []OrderItem        `json:"items"`
	Total          float64            `json:"total"`
	TrackingNumber string             `json:"tracking_number"`
	CreatedAt      string             `json:"created_at"`
	DeliveredAt    string             `json:"delivered_at,omitempty"`
}

type CheckInResponse struct {
	Reward float64 `json:"reward"`
	Streak int     `json:"streak"`
}

type ExchangeRequest struct {
	Coins decimal.Decimal `json:"coins"`
}

type ExchangeResponse struct {
	Coins        float64 `json:"coins"`
	Value        float64 `json:"value"`
	Withdrawable float64 `json:"withdrawable"`
}

type WithdrawalAddressRequest struct {
	Address string `json:"address"`
}

type WithdrawalResponse struct {
	Address     string  `json:"address"`
	Amount      float64 `json:"amount"`
	ProcessedAt string  `json:"processed_at"`
}

type NotificationResponse struct {
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	CreatedAt string `json:"created_at"`
}

type SpinResponse struct {
	Label   string  `json:"label"`
	Reward  float64 `json:"reward"`
	Retry   bool    `json:"retry"`
	Balance float64 `json:"coins"`
}

type CardResponse struct {
	Number    string  `json:"number"`
	Balance   float64 `json:"balance"`
	IssuedAt  string  `json:"issued_at"`
	ExpiresAt string  `json:"expires_at"`
	USDT      float64 `json:"usdt"`
}

type CardAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
