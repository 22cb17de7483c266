// Package strategy holds the decision engines that turn a market snapshot
// into a trade signal, plus the trailing-order state machine they share.
package strategy

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

// Strategy is the contract between a decision engine and its host (the live
// run loop or the backtest engine). Analyze must be a pure function of the
// snapshot and the strategy's own state; it must not block or touch the
// network. OnOrderFilled is delivered at most once per order id by the host.
type Strategy interface {
	Name() string
	Analyze(snapshot domain.MarketSnapshot) domain.Signal
	OnOrderFilled(order *domain.Order)
	State() (json.RawMessage, error)
	RestoreState(raw json.RawMessage) error
}

// TrailingCarrier is implemented by strategies that run a trailing order.
// The host resets it after a connectivity outage, since a stale watermark
// must not be trusted.
type TrailingCarrier interface {
	Trailing() *TrailingState
}

// Factory builds a strategy from its YAML params block.
type Factory func(params Params, logger *zap.Logger) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a strategy constructor under a unique name. Called from
// init in each strategy file; duplicate names panic at startup.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("strategy: duplicate registration of %q", name))
	}
	registry[name] = factory
}

// New builds the named strategy. An unknown name is a configuration error
// and should be treated as fatal by the caller.
func New(name string, params Params, logger *zap.Logger) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q (available: %v)", name, Names())
	}
	return factory(params, logger)
}

// Names lists the registered strategy names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Params is the decoded params block of a strategy config. Getters return
// the fallback when the key is absent or has an unusable type, so strategy
// constructors stay declarative.
type Params map[string]any

func (p Params) Float(key string, fallback float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

func (p Params) Int(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func (p Params) Bool(key string, fallback bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return fallback
}

func (p Params) String(key, fallback string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return fallback
}

// Sub returns a nested params block, e.g. the price_drop section.
func (p Params) Sub(key string) (Params, bool) {
	switch v := p[key].(type) {
	case map[string]any:
		return Params(v), true
	case Params:
		return v, true
	default:
		return nil, false
	}
}
