package users

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyClaimed    = errors.New("daily reward already claimed today")
	ErrInvalidCoinAmount = errors.New("invalid coin amount")
)

// MaxStreak is the streak length after which the daily reward starts over.
const MaxStreak = 30

const dateLayout = "2006-01-02"

// CheckIn tracks the daily reward streak.
type CheckIn struct {
	LastDate string // YYYY-MM-DD, UTC
	Streak   int
}

// ClaimDailyReward credits the daily check-in reward. Claiming on consecutive
// days grows the streak, a missed day resets it to one. The reward in coins
// equals the new streak.
func (u *User) ClaimDailyReward(now time.Time) (decimal.Decimal, int, error) {
	today := now.UTC().Format(dateLayout)
	yesterday := now.UTC().AddDate(0, 0, -1).Format(dateLayout)

	var streak int

	switch u.checkIn.LastDate {
	case today:
		return decimal.Zero, u.checkIn.Streak, ErrAlreadyClaimed
	case yesterday:
		streak = u.checkIn.Streak + 1
		if u.checkIn.Streak >= MaxStreak {
			streak = 1
		}
	default:
		streak = 1
	}

	reward := decimal.NewFromInt(int64(streak))

	u.balance.AddCoins(reward)
	u.checkIn = CheckIn{LastDate: today, Streak: streak}

	return reward, streak, nil
}
