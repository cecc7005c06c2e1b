package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort               = 8060
	DefaultDriver             = "sqlite3"
	DefaultDSN                = "dream60.db"
	DefaultTickInterval       = 250 * time.Millisecond
	DefaultSuperviseInterval  = 5 * time.Second
	DefaultClockMaxRegression = 2 * time.Second
	DefaultTimeSyncInterval   = time.Second
	DefaultTimezone           = "UTC"
	DefaultRoundCount         = 4
	DefaultRoundDuration      = 15 * time.Minute
	DefaultClaimWindow        = 15 * time.Minute
	DefaultCutoffPercentage   = "60"
	DefaultPrizeValue         = 10000
	DefaultEntryFee           = 40
	DefaultPaymentsTimeout    = 10 * time.Second
	DefaultRedisChannel       = "dream60"
	DefaultKafkaTopic         = "dream60.events"
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == DefaultDriver {
		c.Database.DSN = DefaultDSN
	}

	// Engine defaults
	if c.Engine.TickInterval == 0 {
		c.Engine.TickInterval = DefaultTickInterval
	}
	if c.Engine.SuperviseInterval == 0 {
		c.Engine.SuperviseInterval = DefaultSuperviseInterval
	}
	if c.Engine.ClockMaxRegression == 0 {
		c.Engine.ClockMaxRegression = DefaultClockMaxRegression
	}
	if c.Engine.TimeSyncInterval == 0 {
		c.Engine.TimeSyncInterval = DefaultTimeSyncInterval
	}

	// Auction defaults
	if c.Auction.Timezone == "" {
		c.Auction.Timezone = DefaultTimezone
	}
	if c.Auction.RoundCount == 0 {
		c.Auction.RoundCount = DefaultRoundCount
	}
	if c.Auction.RoundDuration == 0 {
		c.Auction.RoundDuration = DefaultRoundDuration
	}
	if c.Auction.ClaimWindow == 0 {
		c.Auction.ClaimWindow = DefaultClaimWindow
	}
	if len(c.Auction.CutoffPercentages) == 0 {
		c.Auction.CutoffPercentages = make([]string, c.Auction.RoundCount)
		for i := range c.Auction.CutoffPercentages {
			c.Auction.CutoffPercentages[i] = DefaultCutoffPercentage
		}
	}
	if c.Auction.PrizeValue == 0 {
		c.Auction.PrizeValue = DefaultPrizeValue
	}
	if c.Auction.EntryFeeMin == 0 && c.Auction.EntryFeeMax == 0 {
		c.Auction.EntryFeeMin = DefaultEntryFee
		c.Auction.EntryFeeMax = DefaultEntryFee
	}
	if c.Auction.EntryFeeMax == 0 {
		c.Auction.EntryFeeMax = c.Auction.EntryFeeMin
	}

	if c.Payments.Timeout == 0 {
		c.Payments.Timeout = DefaultPaymentsTimeout
	}

	if c.Redis.Channel == "" {
		c.Redis.Channel = DefaultRedisChannel
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
