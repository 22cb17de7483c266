package domain

type SignalAction string

const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

// Signal is a strategy's decision for one cycle. Construct signals through
// NewBuySignal/NewSellSignal/NewHoldSignal so every action carries the fields
// its dispatch requires; a Signal is never mutated after creation.
type Signal struct {
	Action     SignalAction
	Confidence float64
	Reason     string

	// Buy and sell fields.
	Price  float64
	Amount float64
	Cost   float64

	// PurchaseID identifies the purchase a sell closes; it is forwarded to
	// the exchange as the order's client reference.
	PurchaseID string
}

func NewBuySignal(price, amount, cost float64, reason string, confidence float64) Signal {
	return Signal{
		Action:     SignalBuy,
		Confidence: confidence,
		Reason:     reason,
		Price:      price,
		Amount:     amount,
		Cost:       cost,
	}
}

func NewSellSignal(price, amount float64, purchaseID, reason string, confidence float64) Signal {
	return Signal{
		Action:     SignalSell,
		Confidence: confidence,
		Reason:     reason,
		Price:      price,
		Amount:     amount,
		Cost:       price * amount,
		PurchaseID: purchaseID,
	}
}

func NewHoldSignal(reason string) Signal {
	return Signal{Action: SignalHold, Reason: reason}
}
