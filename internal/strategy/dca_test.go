package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

func newDCAForTest(t *testing.T, params Params) *DCA {
	t.Helper()
	s, err := NewDCA(params, zap.NewNop())
	require.NoError(t, err)
	return s.(*DCA)
}

func dcaSnapshot(last float64, at time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{Symbol: "BTC/USDT", Last: last, Time: at.UnixMilli()}
}

func TestDCABuysImmediatelyThenWaitsInterval(t *testing.T) {
	s := newDCAForTest(t, Params{"interval_hours": 24.0, "amount_usd": 100.0})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	sig := s.Analyze(dcaSnapshot(50, start))
	require.Equal(t, domain.SignalBuy, sig.Action)
	require.Equal(t, 2.0, sig.Amount)
	require.Equal(t, 100.0, sig.Cost)

	s.OnOrderFilled(&domain.Order{
		Side: domain.OrderSideBuy, Status: domain.OrderStatusClosed,
		Price: 50, FilledAmount: 2, Cost: 100, CreatedAt: start,
	})

	sig = s.Analyze(dcaSnapshot(50, start.Add(6*time.Hour)))
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "next purchase in")

	sig = s.Analyze(dcaSnapshot(50, start.Add(25*time.Hour)))
	require.Equal(t, domain.SignalBuy, sig.Action)
}

func TestDCAPriceBand(t *testing.T) {
	s := newDCAForTest(t, Params{"max_price": 100.0, "min_price": 40.0})
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sig := s.Analyze(dcaSnapshot(150, at))
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "above max")

	sig = s.Analyze(dcaSnapshot(30, at))
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "below min")

	sig = s.Analyze(dcaSnapshot(80, at))
	require.Equal(t, domain.SignalBuy, sig.Action)
}

func TestDCAIgnoresSellFills(t *testing.T) {
	s := newDCAForTest(t, nil)
	s.OnOrderFilled(&domain.Order{Side: domain.OrderSideSell, FilledAmount: 1, Cost: 100})
	require.Zero(t, s.PurchaseCount())
}

func TestDCAStateRoundTrip(t *testing.T) {
	s := newDCAForTest(t, nil)
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.OnOrderFilled(&domain.Order{
		Side: domain.OrderSideBuy, Price: 50, FilledAmount: 2, Cost: 100, CreatedAt: at,
	})

	raw, err := s.State()
	require.NoError(t, err)

	restored := newDCAForTest(t, nil)
	require.NoError(t, restored.RestoreState(raw))
	require.Equal(t, 1, restored.PurchaseCount())
	require.Equal(t, 50.0, restored.AveragePrice())

	// The restored clock keeps gating purchases.
	sig := restored.Analyze(dcaSnapshot(50, at.Add(time.Hour)))
	require.Equal(t, domain.SignalHold, sig.Action)
}
