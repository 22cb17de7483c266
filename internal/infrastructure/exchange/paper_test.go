package exchange

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

func testBars(n int, price float64) []domain.Candle {
	bars := make([]domain.Candle, n)
	for i := range bars {
		bars[i] = domain.Candle{
			Time: int64(i) * 60_000, Open: price, High: price + 1,
			Low: price - 1, Close: price, Volume: 10,
		}
	}
	return bars
}

func TestPaperPlaceOrderFillsImmediately(t *testing.T) {
	feed := NewStaticFeed("BTC/USDT", testBars(5, 100))
	paper := NewPaper(feed, 0.001)
	ctx := context.Background()
	require.NoError(t, paper.Connect(ctx))

	order, err := paper.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:    "BTC/USDT",
		Side:      domain.OrderSideBuy,
		Type:      domain.OrderTypeLimit,
		Amount:    2,
		Price:     100,
		ClientRef: "lot-1",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(order.ID, "paper-"))
	require.Equal(t, domain.OrderStatusClosed, order.Status)
	require.Equal(t, 2.0, order.FilledAmount)
	require.Equal(t, 200.0, order.Cost)
	require.InDelta(t, 0.2, order.Fee, 1e-12)
	require.Equal(t, "lot-1", order.ClientRef)

	// Ids are unique per order.
	second, err := paper.PlaceOrder(ctx, domain.OrderRequest{
		Symbol: "BTC/USDT", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Amount: 1, Price: 100,
	})
	require.NoError(t, err)
	require.NotEqual(t, order.ID, second.ID)

	got, err := paper.GetOrder(ctx, "BTC/USDT", order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	open, err := paper.GetOpenOrders(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestPaperMarketOrderUsesTickerPrice(t *testing.T) {
	feed := NewStaticFeed("BTC/USDT", testBars(5, 123))
	paper := NewPaper(feed, 0)
	ctx := context.Background()
	require.NoError(t, paper.Connect(ctx))

	order, err := paper.PlaceOrder(ctx, domain.OrderRequest{
		Symbol: "BTC/USDT", Side: domain.OrderSideSell,
		Type: domain.OrderTypeMarket, Amount: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 123.0, order.Price)
}

func TestPaperConnectivity(t *testing.T) {
	feed := NewStaticFeed("BTC/USDT", testBars(5, 100))
	paper := NewPaper(feed, 0)
	ctx := context.Background()

	require.Error(t, paper.CheckConnectivity(ctx))
	require.NoError(t, paper.Connect(ctx))
	require.NoError(t, paper.CheckConnectivity(ctx))

	paper.SetOffline(true)
	require.Error(t, paper.CheckConnectivity(ctx))
	_, err := paper.GetTicker(ctx, "BTC/USDT")
	require.Error(t, err)

	paper.SetOffline(false)
	require.NoError(t, paper.CheckConnectivity(ctx))
	require.NoError(t, paper.Disconnect(ctx))
	require.Error(t, paper.CheckConnectivity(ctx))
}

func TestStaticFeedWindow(t *testing.T) {
	feed := NewStaticFeed("BTC/USDT", testBars(10, 100))
	ctx := context.Background()

	bars, err := feed.Candles(ctx, "BTC/USDT", "1m", 0, 0)
	require.NoError(t, err)
	require.Len(t, bars, 1) // cursor starts at the first bar

	for feed.Advance() {
	}
	bars, err = feed.Candles(ctx, "BTC/USDT", "1m", 0, 4)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	require.Equal(t, int64(9*60_000), bars[len(bars)-1].Time)
}
