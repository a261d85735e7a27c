package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Market   Market   `mapstructure:"market"`
	Analysis Analysis `mapstructure:"analysis"`
	Trading  Trading  `mapstructure:"trading"`
	Reserve  Reserve  `mapstructure:"reserve"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Market holds the configuration for the market data feed.
type Market struct {
	Source         string        `mapstructure:"source"` // "binance" or "simulated"
	BaseURL        string        `mapstructure:"base_url"`
	Testnet        bool          `mapstructure:"testnet"`
	Pairs          []string      `mapstructure:"pairs"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Analysis holds the configuration for the market analysis provider.
type Analysis struct {
	Provider       string        `mapstructure:"provider"` // "groq" or "simulated"
	BaseURL        string        `mapstructure:"base_url"`
	ApiKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// Trading holds the configuration for the trading cycle and its strategies.
type Trading struct {
	CycleInterval   time.Duration `mapstructure:"cycle_interval"`
	ErrorBackoff    time.Duration `mapstructure:"error_backoff"`
	ResumeOnStart   bool          `mapstructure:"resume_on_start"`
	RandomSeed      int64         `mapstructure:"random_seed"`
	InitialBalance  float64       `mapstructure:"initial_balance"`
	DefaultStrategy string        `mapstructure:"default_strategy"`

	TrendThreshold      float64 `mapstructure:"trend_threshold"`
	VolatilityThreshold float64 `mapstructure:"volatility_threshold"`
	DeviationThreshold  float64 `mapstructure:"deviation_threshold"`

	// Admission gates: probability that a stochastic strategy trades a given pair in one cycle.
	GridGate     float64 `mapstructure:"grid_gate"`
	DCAGate      float64 `mapstructure:"dca_gate"`
	ScalpingGate float64 `mapstructure:"scalping_gate"`
	GridSpacing  float64 `mapstructure:"grid_spacing"`

	// Simulated fill magnitudes.
	MinFillAmount float64 `mapstructure:"min_fill_amount"`
	MaxFillAmount float64 `mapstructure:"max_fill_amount"`
	MinProfit     float64 `mapstructure:"min_profit"`
	MaxProfit     float64 `mapstructure:"max_profit"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	MaxConfidence float64 `mapstructure:"max_confidence"`
}

// Reserve holds the configuration for the profit reserve.
type Reserve struct {
	Percentage       int           `mapstructure:"percentage"`
	AllocationWindow time.Duration `mapstructure:"allocation_window"`
	TransferInterval time.Duration `mapstructure:"transfer_interval"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.source", "simulated")
	v.SetDefault("market.base_url", "") // empty selects production or testnet by market.testnet
	v.SetDefault("market.testnet", false)
	v.SetDefault("market.pairs", []string{"BTC/USDT", "ETH/USDT", "ADA/USDT", "SOL/USDT", "DOT/USDT"})
	v.SetDefault("market.rate_limit", 20)      // requests per second
	v.SetDefault("market.rate_limit_burst", 5) // burst size
	v.SetDefault("market.timeout", "10s")

	v.SetDefault("analysis.provider", "simulated")
	v.SetDefault("analysis.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", "llama-3.1-8b-instant")
	v.SetDefault("analysis.timeout", "15s")
	v.SetDefault("analysis.rate_limit", 1)
	v.SetDefault("analysis.rate_limit_burst", 1)

	v.SetDefault("trading.cycle_interval", "30s")
	v.SetDefault("trading.error_backoff", "60s")
	v.SetDefault("trading.resume_on_start", false)
	v.SetDefault("trading.random_seed", 0)
	v.SetDefault("trading.initial_balance", 10000)
	v.SetDefault("trading.default_strategy", "Trend Following")
	v.SetDefault("trading.trend_threshold", 0.7)
	v.SetDefault("trading.volatility_threshold", 0.5)
	v.SetDefault("trading.deviation_threshold", 0.8)
	v.SetDefault("trading.grid_gate", 0.3)
	v.SetDefault("trading.dca_gate", 0.2)
	v.SetDefault("trading.scalping_gate", 0.4)
	v.SetDefault("trading.grid_spacing", 0.02)
	v.SetDefault("trading.min_fill_amount", 0.01)
	v.SetDefault("trading.max_fill_amount", 0.1)
	v.SetDefault("trading.min_profit", 5)
	v.SetDefault("trading.max_profit", 50)
	v.SetDefault("trading.min_confidence", 0.7)
	v.SetDefault("trading.max_confidence", 0.95)

	v.SetDefault("reserve.percentage", 10)
	v.SetDefault("reserve.allocation_window", "1h")
	v.SetDefault("reserve.transfer_interval", "24h")

	v.SetDefault("server.port", 8000)
	v.SetDefault("database.dsn", "trading_bot.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}
