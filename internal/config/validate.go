package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	if c.Engine.TickInterval <= 0 {
		return errors.New("engine.tick_interval must be positive")
	}
	if c.Engine.SuperviseInterval < c.Engine.TickInterval {
		return errors.New("engine.supervise_interval must not be shorter than engine.tick_interval")
	}

	if err := c.Auction.validate("auction"); err != nil {
		return err
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}
	if c.Metrics.Port != 0 && c.Metrics.Port == c.Server.Port {
		return errors.New("metrics.port must differ from server.port")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (a *AuctionConfig) validate(prefix string) error {
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("%s.timezone: %w", prefix, err)
	}
	for _, slot := range a.DailySlots {
		if _, err := time.Parse("15:04", slot); err != nil {
			return fmt.Errorf("%s.daily_slots: invalid slot %q, want HH:MM", prefix, slot)
		}
	}
	if a.RoundCount < 1 {
		return fmt.Errorf("%s.round_count must be >= 1", prefix)
	}
	if a.RoundDuration <= 0 {
		return fmt.Errorf("%s.round_duration must be positive", prefix)
	}
	if a.ClaimWindow <= 0 {
		return fmt.Errorf("%s.claim_window must be positive", prefix)
	}
	if len(a.CutoffPercentages) != a.RoundCount {
		return fmt.Errorf("%s.cutoff_percentages must have %d entries, got %d", prefix, a.RoundCount, len(a.CutoffPercentages))
	}
	if _, err := a.Cutoffs(); err != nil {
		return fmt.Errorf("%s.cutoff_percentages: %w", prefix, err)
	}
	if a.PrizeValue < 1 {
		return fmt.Errorf("%s.prize_value must be >= 1", prefix)
	}
	if a.EntryFeeMin < 2 {
		return fmt.Errorf("%s.entry_fee_min must be >= 2", prefix)
	}
	if a.EntryFeeMin > a.EntryFeeMax {
		return fmt.Errorf("%s.entry_fee_min (%d) cannot exceed entry_fee_max (%d)", prefix, a.EntryFeeMin, a.EntryFeeMax)
	}
	if a.BaseMinBid < 0 {
		return fmt.Errorf("%s.base_min_bid must be >= 0", prefix)
	}
	return nil
}

// Cutoffs parses the per-round cutoff percentages
func (a *AuctionConfig) Cutoffs() ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(a.CutoffPercentages))
	for i, s := range a.CutoffPercentages {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i+1, err)
		}
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("round %d: %s is outside 0..100", i+1, s)
		}
		out[i] = d
	}
	return out, nil
}

// Location returns the timezone daily slots are expressed in
func (a *AuctionConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
