package pricing

import (
	"context"
	"errors"
	"sync"

	"metersync/internal/reconcile/domain"
)

// StaticProvider serves zone prices from an in-memory table. The table can
// be swapped between reconciliation passes, which makes config-driven price
// changes visible without a restart.
type StaticProvider struct {
	mu     sync.RWMutex
	prices map[domain.ZoneKey]float64
}

// NewStaticProvider constructs a provider from an initial price table.
func NewStaticProvider(prices map[domain.ZoneKey]float64) (*StaticProvider, error) {
	if len(prices) == 0 {
		return nil, errors.New("pricing: empty price table")
	}
	for zone, price := range prices {
		if price <= 0 {
			return nil, errors.New("pricing: non-positive price for zone " + string(zone))
		}
	}
	p := &StaticProvider{prices: make(map[domain.ZoneKey]float64, len(prices))}
	for zone, price := range prices {
		p.prices[zone] = price
	}
	return p, nil
}

// Price returns the price for a zone.
func (p *StaticProvider) Price(ctx context.Context, zone domain.ZoneKey) (float64, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[zone]
	if !ok {
		return 0, errors.New("pricing: unknown zone " + string(zone))
	}
	return price, nil
}

// Update replaces the price table. Invalid entries are rejected wholesale so
// a partial update can never leave a zone unpriced.
func (p *StaticProvider) Update(prices map[domain.ZoneKey]float64) error {
	if len(prices) == 0 {
		return errors.New("pricing: empty price table")
	}
	next := make(map[domain.ZoneKey]float64, len(prices))
	for zone, price := range prices {
		if price <= 0 {
			return errors.New("pricing: non-positive price for zone " + string(zone))
		}
		next[zone] = price
	}
	p.mu.Lock()
	p.prices = next
	p.mu.Unlock()
	return nil
}
