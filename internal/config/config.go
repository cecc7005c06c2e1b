// Package config loads the dream60 YAML configuration.
package config

import "time"

// Config is the full service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Auction  AuctionConfig  `yaml:"auction"`
	Payments PaymentsConfig `yaml:"payments"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the public HTTP listener
type ServerConfig struct {
	Port        int  `yaml:"port"`
	HTTPLogging bool `yaml:"http_logging"`
}

// DatabaseConfig selects the SQL driver. Driver is "sqlite3" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// EngineConfig controls the orchestrator loops
type EngineConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval"`
	SuperviseInterval  time.Duration `yaml:"supervise_interval"`
	AutoSchedule       bool          `yaml:"auto_schedule"`
	ClockMaxRegression time.Duration `yaml:"clock_max_regression"`
	TimeSyncInterval   time.Duration `yaml:"time_sync_interval"`
}

// AuctionConfig holds the defaults applied to new auctions
type AuctionConfig struct {
	Timezone          string        `yaml:"timezone"`
	DailySlots        []string      `yaml:"daily_slots"` // "HH:MM" local to Timezone
	RoundCount        int           `yaml:"round_count"`
	RoundDuration     time.Duration `yaml:"round_duration"`
	ClaimWindow       time.Duration `yaml:"claim_window"`
	CutoffPercentages []string      `yaml:"cutoff_percentages"` // one per round, decimal strings
	PrizeValue        int64         `yaml:"prize_value"`
	EntryFeeMin       int64         `yaml:"entry_fee_min"`
	EntryFeeMax       int64         `yaml:"entry_fee_max"`
	BaseMinBid        int64         `yaml:"base_min_bid"`
}

// PaymentsConfig points at the payment provider. An empty BaseURL accepts
// every payment reference, which is only meant for local development.
type PaymentsConfig struct {
	BaseURL     string        `yaml:"base_url"`
	CheckoutURL string        `yaml:"checkout_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig enables event fan-out over pub/sub when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// KafkaConfig enables the analytics event topic when Brokers is set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MetricsConfig configures the Prometheus listener. Port 0 disables it.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// AdminConfig holds operator credentials
type AdminConfig struct {
	Password string `yaml:"password"`
}

// LogConfig sets the log level and output format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
