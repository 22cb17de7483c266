package strategy

import "time"

type TrailingStatus string

const (
	TrailingInactive  TrailingStatus = "inactive"
	TrailingWaiting   TrailingStatus = "waiting"
	TrailingActive    TrailingStatus = "active"
	TrailingTriggered TrailingStatus = "triggered"
)

type TrailingDirection string

const (
	// TrailingUp protects a pending sell: the watermark ratchets upward and
	// the trigger fires on a retrace down.
	TrailingUp TrailingDirection = "up"
	// TrailingDown protects a pending buy: the watermark ratchets downward
	// and the trigger fires on a bounce up.
	TrailingDown TrailingDirection = "down"
)

// TrailingState tracks a price watermark and fires once price retraces from
// it by TrailingPercent. Zero value is the inactive state.
type TrailingState struct {
	Status          TrailingStatus    `json:"status"`
	Direction       TrailingDirection `json:"direction,omitempty"`
	ActivationPrice float64           `json:"activation_price,omitempty"`
	Watermark       float64           `json:"watermark,omitempty"`
	TrailingPercent float64           `json:"trailing_percent,omitempty"`
	LastUpdate      time.Time         `json:"last_update,omitzero"`
}

// Start arms the trailing order; it begins waiting for price to cross the
// activation price in the trailing direction.
func (t *TrailingState) Start(direction TrailingDirection, activationPrice, trailingPercent float64) {
	*t = TrailingState{
		Status:          TrailingWaiting,
		Direction:       direction,
		ActivationPrice: activationPrice,
		TrailingPercent: trailingPercent,
		LastUpdate:      time.Now(),
	}
}

// Update advances the state machine with the latest price and reports
// whether the trailing order triggered on this update. A triggered machine
// latches; only Reset leaves that state.
func (t *TrailingState) Update(currentPrice float64) bool {
	switch t.Status {
	case TrailingWaiting:
		crossed := (t.Direction == TrailingUp && currentPrice >= t.ActivationPrice) ||
			(t.Direction == TrailingDown && currentPrice <= t.ActivationPrice)
		if crossed {
			t.Status = TrailingActive
			t.Watermark = currentPrice
			t.LastUpdate = time.Now()
		}
		return false

	case TrailingActive:
		watermark := t.Watermark
		switch t.Direction {
		case TrailingUp:
			if currentPrice > watermark {
				t.Watermark = currentPrice
				t.LastUpdate = time.Now()
			}
			if (watermark-currentPrice)/watermark*100 >= t.TrailingPercent {
				t.Status = TrailingTriggered
				return true
			}
		case TrailingDown:
			if currentPrice < watermark {
				t.Watermark = currentPrice
				t.LastUpdate = time.Now()
			}
			if (currentPrice-watermark)/watermark*100 >= t.TrailingPercent {
				t.Status = TrailingTriggered
				return true
			}
		}
		return false

	default:
		// inactive and triggered ignore updates
		return false
	}
}

// Reset returns the machine to inactive, zeroing all fields. Idempotent;
// called after connectivity loss and after the underlying purchase closes.
func (t *TrailingState) Reset() {
	*t = TrailingState{Status: TrailingInactive}
}

// Engaged reports whether the machine is doing anything at all.
func (t *TrailingState) Engaged() bool {
	return t.Status != "" && t.Status != TrailingInactive
}
