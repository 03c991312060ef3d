package pricing

import (
	"context"
	"testing"

	"metersync/internal/reconcile/domain"
)

func TestStaticProviderLookup(t *testing.T) {
	provider, err := NewStaticProvider(map[domain.ZoneKey]float64{
		"peak":    1.2453,
		"offpeak": 0.5955,
	})
	if err != nil {
		t.Fatalf("NewStaticProvider: %v", err)
	}

	price, err := provider.Price(context.Background(), "peak")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if price != 1.2453 {
		t.Fatalf("price = %v, want 1.2453", price)
	}

	if _, err := provider.Price(context.Background(), "night"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestStaticProviderRejectsInvalidTable(t *testing.T) {
	if _, err := NewStaticProvider(nil); err == nil {
		t.Fatal("expected error for empty table")
	}
	if _, err := NewStaticProvider(map[domain.ZoneKey]float64{"peak": 0}); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestStaticProviderUpdateIsAtomic(t *testing.T) {
	provider, err := NewStaticProvider(map[domain.ZoneKey]float64{"peak": 1.0})
	if err != nil {
		t.Fatalf("NewStaticProvider: %v", err)
	}

	// A bad entry rejects the whole update, leaving the old table in place.
	err = provider.Update(map[domain.ZoneKey]float64{"peak": 2.0, "offpeak": -1})
	if err == nil {
		t.Fatal("expected error for negative price")
	}
	price, err := provider.Price(context.Background(), "peak")
	if err != nil || price != 1.0 {
		t.Fatalf("price = %v (%v), want untouched 1.0", price, err)
	}

	if err := provider.Update(map[domain.ZoneKey]float64{"peak": 2.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	price, _ = provider.Price(context.Background(), "peak")
	if price != 2.0 {
		t.Fatalf("price = %v after update, want 2.0", price)
	}
}
