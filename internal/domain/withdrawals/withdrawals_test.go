package withdrawals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithdrawal(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		address string
		amount  decimal.Decimal
		wantErr error
	}{
		{name: "valid", address: "TXa1b2c3", amount: decimal.RequireFromString("3.5")},
		{name: "empty address", address: "", amount: decimal.NewFromInt(1), wantErr: ErrAddressEmpty},
		{name: "zero amount", address: "TXa1b2c3", amount: decimal.Zero, wantErr: ErrAmountNotPositive},
		{name: "negative amount", address: "TXa1b2c3", amount: decimal.NewFromInt(-1), wantErr: ErrAmountNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wd, err := NewWithdrawal(tt.address, tt.amount, at)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, wd)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.address, wd.Address())
			assert.True(t, tt.amount.Equal(wd.Amount()))
			assert.Equal(t, at, wd.ProcessedAt())
		})
	}
}
