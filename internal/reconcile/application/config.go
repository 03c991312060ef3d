package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"metersync/internal/reconcile/domain"
)

// ZoneConfig describes one tariff zone of a meter.
type ZoneConfig struct {
	Key   string  `yaml:"key"`
	Price float64 `yaml:"price"`
}

// MeterConfig describes one tracked meter and its zones.
type MeterConfig struct {
	ID    string       `yaml:"id"`
	Zones []ZoneConfig `yaml:"zones"`
}

// Config defines reconciliation tuning. The plausibility bound, staleness
// threshold and cooldown are domain-tuned defaults, overridable per
// deployment.
type Config struct {
	Meters []MeterConfig `yaml:"meters"`

	MaxHourly      float64       `yaml:"max_hourly"`
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	Cooldown       time.Duration `yaml:"cooldown"`
	Lookback       time.Duration `yaml:"lookback"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PollWindow     time.Duration `yaml:"poll_window"`
	FetchDelay     time.Duration `yaml:"fetch_delay"`
}

// LoadConfig loads config from yaml (METERSYNC_CONFIG) with env fallbacks.
func LoadConfig() (Config, error) {
	cfg := Config{
		MaxHourly:      getenvFloatDefault("MAX_HOURLY_KWH", 100),
		StaleThreshold: getenvDuration("STALE_THRESHOLD", 3*time.Hour),
		Cooldown:       getenvDuration("BACKFILL_COOLDOWN", 4*time.Hour),
		Lookback:       getenvDuration("BACKFILL_LOOKBACK", 30*24*time.Hour),
		PollInterval:   getenvDuration("POLL_INTERVAL", time.Hour),
		PollWindow:     getenvDuration("POLL_WINDOW", 48*time.Hour),
		FetchDelay:     getenvDuration("FETCH_DELAY", 500*time.Millisecond),
	}

	if path := os.Getenv("METERSYNC_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Meters) == 0 {
		if meterID := os.Getenv("METER_ID"); meterID != "" {
			cfg.Meters = []MeterConfig{{
				ID: meterID,
				Zones: []ZoneConfig{{
					Key:   string(domain.ZoneDefault),
					Price: getenvFloatDefault("PRICE_PER_KWH", 1.0),
				}},
			}}
		}
	}
	if len(cfg.Meters) == 0 {
		return cfg, errors.New("reconcile config: no meters configured")
	}
	for _, meter := range cfg.Meters {
		if meter.ID == "" {
			return cfg, errors.New("reconcile config: meter without id")
		}
		if len(meter.Zones) == 0 {
			return cfg, errors.New("reconcile config: meter " + meter.ID + " without zones")
		}
		for _, zone := range meter.Zones {
			if zone.Key == "" {
				return cfg, errors.New("reconcile config: meter " + meter.ID + " has a zone without key")
			}
			if zone.Price <= 0 {
				return cfg, domain.ErrInvalidPrice
			}
		}
	}
	if cfg.MaxHourly <= 0 {
		return cfg, errors.New("reconcile config: non-positive plausibility bound")
	}
	return cfg, nil
}

// ZonesFor returns the configured zone keys of a meter.
func (c Config) ZonesFor(meterID string) []domain.ZoneKey {
	for _, meter := range c.Meters {
		if meter.ID != meterID {
			continue
		}
		zones := make([]domain.ZoneKey, 0, len(meter.Zones))
		for _, zone := range meter.Zones {
			zones = append(zones, domain.ZoneKey(zone.Key))
		}
		return zones
	}
	return nil
}

// PriceTable flattens the configured zone prices for the static provider.
func (c Config) PriceTable() map[domain.ZoneKey]float64 {
	table := make(map[domain.ZoneKey]float64)
	for _, meter := range c.Meters {
		for _, zone := range meter.Zones {
			table[domain.ZoneKey(zone.Key)] = zone.Price
		}
	}
	return table
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
