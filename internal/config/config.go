package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Run size bounds. Totals outside the range are clamped.
const (
	MinTotal     = 10
	MaxTotal     = 100
	DefaultTotal = 30
)

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds the full application configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	WindowWidth  int    `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight int    `yaml:"window_height" mapstructure:"window_height"`
	SearchURL    string `yaml:"search_url" mapstructure:"search_url"`
}

// ScrapeConfig configures discovery and detail visits.
type ScrapeConfig struct {
	PerQueryCap         int     `yaml:"per_query_cap" mapstructure:"per_query_cap"`
	MaxRounds           int     `yaml:"max_rounds" mapstructure:"max_rounds"`
	StallLimit          int     `yaml:"stall_limit" mapstructure:"stall_limit"`
	ScrollDelta         float64 `yaml:"scroll_delta" mapstructure:"scroll_delta"`
	SettleMs            int     `yaml:"settle_ms" mapstructure:"settle_ms"`
	SearchSettleMs      int     `yaml:"search_settle_ms" mapstructure:"search_settle_ms"`
	SearchTimeoutSecs   int     `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	NavigateTimeoutSecs int     `yaml:"navigate_timeout_secs" mapstructure:"navigate_timeout_secs"`
	DetailTimeoutSecs   int     `yaml:"detail_timeout_secs" mapstructure:"detail_timeout_secs"`
	ReadyTimeoutSecs    int     `yaml:"ready_timeout_secs" mapstructure:"ready_timeout_secs"`
	DetailSettleMs      int     `yaml:"detail_settle_ms" mapstructure:"detail_settle_ms"`
	VariantDelayMs      int     `yaml:"variant_delay_ms" mapstructure:"variant_delay_ms"`
	VisitDelayMs        int     `yaml:"visit_delay_ms" mapstructure:"visit_delay_ms"`
	NavRate             float64 `yaml:"nav_rate" mapstructure:"nav_rate"`
	NavRetries          int     `yaml:"nav_retries" mapstructure:"nav_retries"`
	SelectorsFile       string  `yaml:"selectors_file" mapstructure:"selectors_file"`
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a second setting to a duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// ExportConfig configures result files.
type ExportConfig struct {
	Format        string `yaml:"format" mapstructure:"format"`
	Path          string `yaml:"path" mapstructure:"path"`
	PruneConstant bool   `yaml:"prune_constant" mapstructure:"prune_constant"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.search_url", "https://www.google.com/maps")
	v.SetDefault("scrape.per_query_cap", 30)
	v.SetDefault("scrape.max_rounds", 20)
	v.SetDefault("scrape.stall_limit", 5)
	v.SetDefault("scrape.scroll_delta", 3000)
	v.SetDefault("scrape.settle_ms", 1500)
	v.SetDefault("scrape.search_settle_ms", 2000)
	v.SetDefault("scrape.search_timeout_secs", 10)
	v.SetDefault("scrape.navigate_timeout_secs", 60)
	v.SetDefault("scrape.detail_timeout_secs", 15)
	v.SetDefault("scrape.ready_timeout_secs", 10)
	v.SetDefault("scrape.detail_settle_ms", 1500)
	v.SetDefault("scrape.variant_delay_ms", 2000)
	v.SetDefault("scrape.visit_delay_ms", 1000)
	v.SetDefault("scrape.nav_rate", 1.0)
	v.SetDefault("scrape.nav_retries", 1)
	v.SetDefault("scrape.selectors_file", "")
	v.SetDefault("export.format", "xlsx")
	v.SetDefault("export.path", "results.xlsx")
	v.SetDefault("export.prune_constant", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "maps.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "scrape", "serve", and "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "scrape":
		errs = append(errs, c.validateScrape()...)
	case "serve":
		errs = append(errs, c.validateScrape()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScrape() []string {
	var errs []string
	if c.Browser.SearchURL == "" {
		errs = append(errs, "browser.search_url is required")
	}
	if c.Scrape.PerQueryCap <= 0 {
		errs = append(errs, "scrape.per_query_cap must be > 0")
	}
	if c.Scrape.MaxRounds <= 0 {
		errs = append(errs, "scrape.max_rounds must be > 0")
	}
	if c.Scrape.StallLimit <= 0 {
		errs = append(errs, "scrape.stall_limit must be > 0")
	}
	if c.Scrape.NavRetries < 0 {
		errs = append(errs, "scrape.nav_retries must be >= 0")
	}
	if c.Scrape.NavRate < 0 {
		errs = append(errs, "scrape.nav_rate must be >= 0")
	}
	if c.Scrape.VisitDelayMs < 0 || c.Scrape.VariantDelayMs < 0 {
		errs = append(errs, "scrape.visit_delay_ms and scrape.variant_delay_ms must be >= 0")
	}
	switch strings.ToLower(c.Export.Format) {
	case "xlsx", "csv", "json":
	default:
		errs = append(errs, fmt.Sprintf("export.format %q must be xlsx, csv, or json", c.Export.Format))
	}
	return errs
}

// ClampTotal bounds a requested result count. Zero selects the default.
func ClampTotal(total int) int {
	switch {
	case total == 0:
		return DefaultTotal
	case total < MinTotal:
		return MinTotal
	case total > MaxTotal:
		return MaxTotal
	default:
		return total
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
