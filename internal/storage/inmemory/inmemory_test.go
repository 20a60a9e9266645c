package inmemory

import (
	"context"
	"testing"

	"github.com/andymarkow/qvasun/internal/domain/balance"
	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	ctx := context.Background()
	store := NewStorage()

	require.NoError(t, store.Ping(ctx))

	_, err := store.GetUser(ctx, "local")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	usr, err := users.NewUser("local", "Invitado", balance.NewBalance(decimal.NewFromInt(10), decimal.Zero, decimal.Zero))
	require.NoError(t, err)

	require.NoError(t, store.SaveUser(ctx, usr))

	usr.CreditCoins(decimal.NewFromInt(5))

	got, err := store.GetUser(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, "Invitado", got.Name())
	assert.True(t, got.Balance().Coins().IsZero(), "stored snapshot is isolated from the caller")

	require.NoError(t, store.SaveUser(ctx, usr))

	got, err = store.GetUser(ctx, "local")
	require.NoError(t, err)
	assert.True(t, got.Balance().Coins().Equal(decimal.NewFromInt(5)))

	require.NoError(t, store.Close())
}
