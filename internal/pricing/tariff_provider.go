package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"metersync/internal/reconcile/domain"
)

const defaultZonePricesTable = "zone_prices"

// TariffProvider resolves zone prices from a Postgres table. Every lookup
// hits the table, so price rows edited between passes take effect on the
// next pass without a restart.
type TariffProvider struct {
	db    *sql.DB
	table string
}

// TariffOption configures the provider.
type TariffOption func(*TariffProvider)

// WithZonePricesTable overrides the price table name.
func WithZonePricesTable(table string) TariffOption {
	return func(p *TariffProvider) {
		if table != "" {
			p.table = table
		}
	}
}

// NewTariffProvider constructs a provider.
func NewTariffProvider(db *sql.DB, opts ...TariffOption) *TariffProvider {
	p := &TariffProvider{
		db:    db,
		table: defaultZonePricesTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Price returns the configured price for a zone.
func (p *TariffProvider) Price(ctx context.Context, zone domain.ZoneKey) (float64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("tariff provider: nil db")
	}
	if zone == "" {
		return 0, domain.ErrInvalidZone
	}

	query := fmt.Sprintf(`
SELECT price
FROM %s
WHERE zone_key = $1
LIMIT 1`, p.table)

	var price float64
	if err := p.db.QueryRowContext(ctx, query, string(zone)).Scan(&price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.New("tariff provider: no price for zone " + string(zone))
		}
		return 0, err
	}
	if price <= 0 {
		return 0, domain.ErrInvalidPrice
	}
	return price, nil
}
