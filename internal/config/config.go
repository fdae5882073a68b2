package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"xrpl-usdt-bot/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Offer      OfferConfig      `mapstructure:"offer"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// LedgerConfig covers the XRPL websocket endpoint and account credential.
type LedgerConfig struct {
	URL            string        `mapstructure:"url"`
	Account        string        `mapstructure:"account"`
	Secret         string        `mapstructure:"secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// OfferConfig describes the standing offer the bot maintains.
type OfferConfig struct {
	SellCurrency string  `mapstructure:"sell_currency"`
	SellIssuer   string  `mapstructure:"sell_issuer"`
	SellAmount   float64 `mapstructure:"sell_amount"`

	BuyCurrency string  `mapstructure:"buy_currency"`
	BuyIssuer   string  `mapstructure:"buy_issuer"`
	BuyAmount   float64 `mapstructure:"buy_amount"`

	TotalSupply float64 `mapstructure:"total_supply"`

	CheckInterval time.Duration `mapstructure:"check_interval"`
	PriceTracking bool          `mapstructure:"price_tracking"`

	AdminFeeEnabled bool    `mapstructure:"admin_fee_enabled"`
	AdminFeePct     float64 `mapstructure:"admin_fee_pct"`
}

// OracleConfig governs valuation aggregation.
type OracleConfig struct {
	UpdateInterval time.Duration  `mapstructure:"update_interval"`
	MinConfidence  float64        `mapstructure:"min_confidence"`
	SourceTimeout  time.Duration  `mapstructure:"source_timeout"`
	FallbackValue  float64        `mapstructure:"fallback_value"`
	EventBuffer    int            `mapstructure:"event_buffer"`
	Sources        []SourceConfig `mapstructure:"sources"`
}

// SourceConfig declares one valuation source. A static source sets
// static_value; everything else is treated as an HTTP JSON endpoint.
type SourceConfig struct {
	Name           string        `mapstructure:"name"`
	URL            string        `mapstructure:"url"`
	ValuePath      string        `mapstructure:"value_path"`
	ConfidencePath string        `mapstructure:"confidence_path"`
	Confidence     float64       `mapstructure:"confidence"`
	Weight         float64       `mapstructure:"weight"`
	Timeout        time.Duration `mapstructure:"timeout"`
	StaticValue    float64       `mapstructure:"static_value"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. DSN empty
// disables persistence.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ComplianceConfig routes periodic status snapshots.
type ComplianceConfig struct {
	Enabled    bool           `mapstructure:"enabled"`
	Interval   time.Duration  `mapstructure:"interval"`
	WebhookURL string         `mapstructure:"webhook_url"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram push channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XRPLBOT")
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
	v.SetDefault("app.name", "xrpl-usdt-bot")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("ledger.url", "wss://s1.ripple.com")
	v.SetDefault("ledger.request_timeout", "20s")
	v.SetDefault("ledger.max_retries", 5)

	v.SetDefault("offer.sell_currency", "PROP")
	v.SetDefault("offer.buy_currency", "USD")
	v.SetDefault("offer.check_interval", "60s")
	v.SetDefault("offer.price_tracking", true)
	v.SetDefault("offer.admin_fee_enabled", false)
	v.SetDefault("offer.admin_fee_pct", 2.0)

	v.SetDefault("oracle.update_interval", "1h")
	v.SetDefault("oracle.min_confidence", 0.7)
	v.SetDefault("oracle.source_timeout", "10s")
	v.SetDefault("oracle.event_buffer", 8)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("compliance.enabled", false)
	v.SetDefault("compliance.interval", "15m")
	v.SetDefault("compliance.timeout", "10s")
	v.SetDefault("compliance.telegram.enabled", false)
	v.SetDefault("compliance.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Ledger.URL == "" {
		return fmt.Errorf("ledger.url is required")
	}
	if c.Ledger.Account == "" {
		return fmt.Errorf("ledger.account is required")
	}
	if c.Ledger.MaxRetries <= 0 {
		return fmt.Errorf("ledger.max_retries must be greater than zero")
	}
	if c.Offer.SellAmount <= 0 {
		return fmt.Errorf("offer.sell_amount must be greater than zero")
	}
	if c.Offer.BuyAmount <= 0 {
		return fmt.Errorf("offer.buy_amount must be greater than zero")
	}
	if c.Offer.CheckInterval <= 0 {
		return fmt.Errorf("offer.check_interval must be greater than zero")
	}
	if c.Offer.PriceTracking && c.Offer.TotalSupply <= 0 {
		return fmt.Errorf("offer.total_supply is required when price tracking is enabled")
	}
	if c.Offer.AdminFeeEnabled && (c.Offer.AdminFeePct <= 0 || c.Offer.AdminFeePct >= 100) {
		return fmt.Errorf("offer.admin_fee_pct must be between 0 and 100")
	}
	if c.Oracle.MinConfidence < 0 || c.Oracle.MinConfidence > 1 {
		return fmt.Errorf("oracle.min_confidence must be within [0,1]")
	}
	if c.Oracle.UpdateInterval <= 0 {
		return fmt.Errorf("oracle.update_interval must be greater than zero")
	}
	for i, src := range c.Oracle.Sources {
		if src.Name == "" {
			return fmt.Errorf("oracle.sources[%d].name is required", i)
		}
		if src.URL == "" && src.StaticValue <= 0 {
			return fmt.Errorf("oracle.sources[%d] needs either url or static_value", i)
		}
		if src.URL != "" && src.ValuePath == "" {
			return fmt.Errorf("oracle.sources[%d].value_path is required for http sources", i)
		}
	}
	if c.Compliance.Telegram.Enabled {
		if c.Compliance.Telegram.BotToken == "" {
			return fmt.Errorf("compliance.telegram.bot_token is required")
		}
		if c.Compliance.Telegram.ChatID == "" {
			return fmt.Errorf("compliance.telegram.chat_id is required")
		}
	}
	return nil
}
