package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"airdash/internal/epoch"
	"airdash/internal/fetcher"
	"airdash/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Epoch       EpochConfig       `mapstructure:"epoch"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Market      MarketConfig      `mapstructure:"market"`
	Holders     HoldersConfig     `mapstructure:"holders"`
	Sentiment   SentimentConfig   `mapstructure:"sentiment"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	API         APIConfig         `mapstructure:"api"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the vote preference store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EpochConfig fixes the epoch timeline.
type EpochConfig struct {
	AnchorEpoch int           `mapstructure:"anchor_epoch"`
	AnchorStart time.Time     `mapstructure:"anchor_start"`
	Duration    time.Duration `mapstructure:"duration"`
	MinEpoch    int           `mapstructure:"min_epoch"`
	MaxEpoch    int           `mapstructure:"max_epoch"`
}

// ScheduleConfig carries the APY/reward formula inputs.
type ScheduleConfig struct {
	TotalEpochs         int    `mapstructure:"total_epochs"`
	BaseAPY             string `mapstructure:"base_apy"`
	APYStep             string `mapstructure:"apy_step"`
	BaseReward          string `mapstructure:"base_reward"`
	TotalRewardDecrease string `mapstructure:"total_reward_decrease"`
	FloorReward         string `mapstructure:"floor_reward"`
}

// SchedulerConfig governs tick and poll cadence.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// MarketConfig captures GeckoTerminal connectivity.
type MarketConfig struct {
	BaseURL        string             `mapstructure:"base_url"`
	Network        string             `mapstructure:"network"`
	PoolAddress    string             `mapstructure:"pool_address"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
	UserAgent      string             `mapstructure:"user_agent"`
	Static         StaticMarketConfig `mapstructure:"static"`
}

// StaticMarketConfig is the fixed market view served when pool_address is empty.
type StaticMarketConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Symbol          string `mapstructure:"symbol"`
	Name            string `mapstructure:"name"`
	PriceUSD        string `mapstructure:"price_usd"`
	PriceChange24h  string `mapstructure:"price_change_24h"`
	Volume24hUSD    string `mapstructure:"volume_24h_usd"`
	MarketCapUSD    string `mapstructure:"market_cap_usd"`
	Transactions24h int64  `mapstructure:"transactions_24h"`
}

// Snapshot parses the configured values.
func (s StaticMarketConfig) Snapshot() (fetcher.MarketSnapshot, error) {
	snap := fetcher.MarketSnapshot{
		Symbol:          s.Symbol,
		Name:            s.Name,
		Transactions24h: s.Transactions24h,
	}
	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"market.static.price_usd", s.PriceUSD, &snap.PriceUSD},
		{"market.static.price_change_24h", s.PriceChange24h, &snap.PriceChange24h},
		{"market.static.volume_24h_usd", s.Volume24hUSD, &snap.Volume24hUSD},
		{"market.static.market_cap_usd", s.MarketCapUSD, &snap.MarketCapUSD},
	}
	for _, f := range fields {
		if err := parseDecimalField(f.key, f.raw, f.dst); err != nil {
			return fetcher.MarketSnapshot{}, err
		}
	}
	return snap, nil
}

// HoldersConfig captures Etherscan connectivity.
type HoldersConfig struct {
	BaseURL         string              `mapstructure:"base_url"`
	APIKey          string              `mapstructure:"api_key"`
	ChainID         int64               `mapstructure:"chain_id"`
	ContractAddress string              `mapstructure:"contract_address"`
	Decimals        int32               `mapstructure:"decimals"`
	RequestTimeout  time.Duration       `mapstructure:"request_timeout"`
	Static          StaticHoldersConfig `mapstructure:"static"`
}

// StaticHoldersConfig is the fixed holder view served when api_key is empty.
type StaticHoldersConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Holders     int64  `mapstructure:"holders"`
	TotalSupply string `mapstructure:"total_supply"`
}

// Stats parses the configured values.
func (s StaticHoldersConfig) Stats() (fetcher.HolderStats, error) {
	if s.Holders < 0 {
		return fetcher.HolderStats{}, fmt.Errorf("holders.static.holders cannot be negative")
	}
	stats := fetcher.HolderStats{Holders: s.Holders}
	if err := parseDecimalField("holders.static.total_supply", s.TotalSupply, &stats.TotalSupply); err != nil {
		return fetcher.HolderStats{}, err
	}
	return stats, nil
}

// parseDecimalField reads an optional decimal; empty means zero.
func parseDecimalField(key, raw string, dst *decimal.Decimal) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = decimal.Zero
		return nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = value
	return nil
}

// SentimentConfig seeds the community poll.
type SentimentConfig struct {
	BaselineBullish int64 `mapstructure:"baseline_bullish"`
	BaselineBearish int64 `mapstructure:"baseline_bearish"`
}

// LeaderboardConfig lists the holders shown on the leaderboard.
type LeaderboardConfig struct {
	Limit   int            `mapstructure:"limit"`
	Holders []HolderConfig `mapstructure:"holders"`
}

// HolderConfig is one leaderboard entry.
type HolderConfig struct {
	Address string `mapstructure:"address"`
	Balance string `mapstructure:"balance"`
}

// AlertingConfig defines epoch-transition notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram notifier.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Listen         string   `mapstructure:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("AIRDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "airdash")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("epoch.anchor_epoch", 2)
	v.SetDefault("epoch.anchor_start", "2025-08-01T17:15:00Z")
	v.SetDefault("epoch.duration", "72h")
	v.SetDefault("epoch.min_epoch", 2)
	v.SetDefault("epoch.max_epoch", 11)

	v.SetDefault("schedule.total_epochs", 11)
	v.SetDefault("schedule.base_apy", "6.6")
	v.SetDefault("schedule.apy_step", "3")
	v.SetDefault("schedule.base_reward", "200000")
	v.SetDefault("schedule.total_reward_decrease", "107000")
	v.SetDefault("schedule.floor_reward", "25000")

	v.SetDefault("scheduler.tick_interval", "1s")
	v.SetDefault("scheduler.poll_interval", "1m")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("market.base_url", "https://api.geckoterminal.com/api/v2")
	v.SetDefault("market.network", "eth")
	v.SetDefault("market.pool_address", "0xd277b8bef27af6c2dc0a8aeddd23a57637892270")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "airdash/1.0")
	v.SetDefault("market.static.enabled", true)
	v.SetDefault("market.static.symbol", "AIR")
	v.SetDefault("market.static.name", "Ethereum OS")
	v.SetDefault("market.static.price_usd", "0.00725")
	v.SetDefault("market.static.price_change_24h", "12.8")
	v.SetDefault("market.static.volume_24h_usd", "127.35")
	v.SetDefault("market.static.market_cap_usd", "0")

	v.SetDefault("holders.base_url", "https://api.etherscan.io/v2/api")
	v.SetDefault("holders.chain_id", 1)
	v.SetDefault("holders.contract_address", "0x8164B40840418C77A68F6f9EEdB5202b36d8b288")
	v.SetDefault("holders.decimals", 18)
	v.SetDefault("holders.request_timeout", "10s")
	v.SetDefault("holders.static.enabled", false)
	v.SetDefault("holders.static.holders", 0)
	v.SetDefault("holders.static.total_supply", "0")

	v.SetDefault("sentiment.baseline_bullish", 342)
	v.SetDefault("sentiment.baseline_bearish", 158)

	v.SetDefault("leaderboard.limit", 10)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.allowed_origins", []string{"*"})

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs the fail-fast checks run once at startup.
func (c *Config) Validate() error {
	if err := c.ClockConfig().Validate(); err != nil {
		return err
	}
	params, err := c.ScheduleParams()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if c.Epoch.MaxEpoch > params.TotalEpochs {
		return fmt.Errorf("%w: epoch.max_epoch %d exceeds schedule.total_epochs %d", epoch.ErrInvalidConfig, c.Epoch.MaxEpoch, params.TotalEpochs)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be greater than zero")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be greater than zero")
	}
	if c.Sentiment.BaselineBullish < 0 || c.Sentiment.BaselineBearish < 0 {
		return fmt.Errorf("sentiment baselines cannot be negative")
	}
	if c.Holders.ContractAddress != "" && !common.IsHexAddress(c.Holders.ContractAddress) {
		return fmt.Errorf("holders.contract_address %q is not a valid address", c.Holders.ContractAddress)
	}
	if c.Market.Static.Enabled {
		if _, err := c.Market.Static.Snapshot(); err != nil {
			return err
		}
	}
	if c.Holders.Static.Enabled {
		if _, err := c.Holders.Static.Stats(); err != nil {
			return err
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

// ClockConfig converts the epoch section for the clock.
func (c *Config) ClockConfig() epoch.ClockConfig {
	return epoch.ClockConfig{
		AnchorEpoch: c.Epoch.AnchorEpoch,
		AnchorStart: c.Epoch.AnchorStart.UTC(),
		Duration:    c.Epoch.Duration,
		MinEpoch:    c.Epoch.MinEpoch,
		MaxEpoch:    c.Epoch.MaxEpoch,
	}
}

// ScheduleParams parses the schedule section into fixed-point values.
func (c *Config) ScheduleParams() (epoch.ScheduleParams, error) {
	params := epoch.ScheduleParams{TotalEpochs: c.Schedule.TotalEpochs}

	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"schedule.base_apy", c.Schedule.BaseAPY, &params.BaseAPY},
		{"schedule.apy_step", c.Schedule.APYStep, &params.APYStep},
		{"schedule.base_reward", c.Schedule.BaseReward, &params.BaseReward},
		{"schedule.total_reward_decrease", c.Schedule.TotalRewardDecrease, &params.TotalRewardDecrease},
		{"schedule.floor_reward", c.Schedule.FloorReward, &params.FloorReward},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return epoch.ScheduleParams{}, fmt.Errorf("%w: %s: %v", epoch.ErrInvalidConfig, f.key, err)
		}
		*f.dst = value
	}
	return params, nil
}
