package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

func TestSQLiteStoreSaveAndList(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.SaveTrade(ctx, &domain.Trade{
			BotID:     "bot-1",
			Symbol:    "BTC/USDT",
			Side:      domain.OrderSideBuy,
			Amount:    0.01,
			Price:     60000 + float64(i),
			Fee:       0.6,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.SaveTrade(ctx, &domain.Trade{
		BotID: "other", Symbol: "ETH/USDT", Side: domain.OrderSideSell,
		Amount: 1, Price: 3000, CreatedAt: base,
	}))

	trades, err := store.ListTrades(ctx, "bot-1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	// Newest first.
	require.Equal(t, 60002.0, trades[0].Price)
	require.Equal(t, domain.OrderSideBuy, trades[0].Side)
	require.NotZero(t, trades[0].ID)

	trades, err = store.ListTrades(ctx, "bot-1", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	trades, err = store.ListTrades(ctx, "unknown", 10)
	require.NoError(t, err)
	require.Empty(t, trades)
}
