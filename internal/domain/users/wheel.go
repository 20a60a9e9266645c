package users

import (
	"github.com/shopspring/decimal"
)

// Intner picks a uniform index in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Intner interface {
	IntN(n int) int
}

// WheelSegment is one slice of the reward wheel. A segment with Retry set
// pays nothing and grants another spin.
type WheelSegment struct {
	Label string
	Coins decimal.Decimal
	Retry bool
}

// WheelSegments lists the wheel slices in display order. Each is equally likely.
var WheelSegments = []WheelSegment{
	{Label: "1 Coin", Coins: decimal.NewFromInt(1)},
	{Label: "Nada", Coins: decimal.Zero},
	{Label: "10 Coins", Coins: decimal.NewFromInt(10)},
	{Label: "Nuevo Tiro", Coins: decimal.Zero, Retry: true},
	{Label: "20 Coins", Coins: decimal.NewFromInt(20)},
	{Label: "40 Coins", Coins: decimal.NewFromInt(40)},
	{Label: "100 Coins", Coins: decimal.NewFromInt(100)},
}

// SpinWheel draws a segment with rng and credits its coins.
func (u *User) SpinWheel(rng Intner) WheelSegment {
	seg := WheelSegments[rng.IntN(len(WheelSegments))]

	u.balance.AddCoins(seg.Coins)

	return seg
}
