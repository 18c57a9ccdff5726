package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the trading bot
type Config struct {
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	ServerConfig   ServerConfig   `json:"server"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	BridgeConfig   BridgeConfig   `json:"bridge"`
	TradingConfig  TradingConfig  `json:"trading"`
	ExecutorConfig ExecutorConfig `json:"executor"`
	RiskConfig     RiskConfig     `json:"risk"`
	TrailingConfig TrailingConfig `json:"trailing"`
	BiasConfig     BiasConfig     `json:"bias"`
	TelegramConfig TelegramConfig `json:"telegram"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for the daily-baseline cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// ServerConfig holds the HTTP control API settings
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`
	JSONFormat bool   `json:"json_format"`
}

// BridgeConfig holds settings for the MT5 bridge HTTP API
type BridgeConfig struct {
	BaseURL  string `json:"base_url"`
	Timeout  int    `json:"timeout"`
	MockMode bool   `json:"mock_mode"`
}

// TradingConfig holds the instrument and pipeline cadence settings
type TradingConfig struct {
	Symbol           string `json:"symbol"`
	Timeframe        string `json:"timeframe"`
	StrategyInterval int    `json:"strategy_interval"`
	MetricsInterval  int    `json:"metrics_interval"`
}

// ExecutorConfig holds order orchestration settings
type ExecutorConfig struct {
	MaxConcurrent int `json:"max_concurrent"`
	MaxRetries    int `json:"max_retries"`
	RetryDelay    int `json:"retry_delay"`
	PollInterval  int `json:"poll_interval"`
}

// RiskConfig holds drawdown and position sizing settings
type RiskConfig struct {
	StartingCapital    float64 `json:"starting_capital"`
	RiskPercent        float64 `json:"risk_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
}

// TrailingConfig holds trailing-stop settings
type TrailingConfig struct {
	TrailStep       float64 `json:"trail_step"`
	TrailStart      float64 `json:"trail_start"`
	BreathingBuffer float64 `json:"breathing_buffer"`
	Interval        int     `json:"interval"`
	DryRun          bool    `json:"dry_run"`
}

// BiasConfig holds session-bias estimation settings
type BiasConfig struct {
	ZWindowDays     int `json:"z_window_days"`
	MinSampleSize   int `json:"min_sample_size"`
	BayesWindowDays int `json:"bayes_window_days"`
}

// TelegramConfig holds signal-source settings
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "gold_trading"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true" || cfg.RedisConfig.Enabled
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultString(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Bridge config
	cfg.BridgeConfig.BaseURL = getEnvOrDefault("BRIDGE_BASE_URL", defaultString(cfg.BridgeConfig.BaseURL, "http://localhost:5001"))
	cfg.BridgeConfig.Timeout = getEnvIntOrDefault("BRIDGE_TIMEOUT", defaultInt(cfg.BridgeConfig.Timeout, 15))
	cfg.BridgeConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"

	// Trading config
	cfg.TradingConfig.Symbol = getEnvOrDefault("TRADING_SYMBOL", defaultString(cfg.TradingConfig.Symbol, "XAUUSDc"))
	cfg.TradingConfig.Timeframe = getEnvOrDefault("TRADING_TIMEFRAME", defaultString(cfg.TradingConfig.Timeframe, "M15"))
	cfg.TradingConfig.StrategyInterval = getEnvIntOrDefault("STRATEGY_INTERVAL", defaultInt(cfg.TradingConfig.StrategyInterval, 60))
	cfg.TradingConfig.MetricsInterval = getEnvIntOrDefault("METRICS_INTERVAL", defaultInt(cfg.TradingConfig.MetricsInterval, 300))

	// Executor config
	cfg.ExecutorConfig.MaxConcurrent = getEnvIntOrDefault("EXECUTOR_MAX_CONCURRENT", defaultInt(cfg.ExecutorConfig.MaxConcurrent, 3))
	cfg.ExecutorConfig.MaxRetries = getEnvIntOrDefault("EXECUTOR_MAX_RETRIES", defaultInt(cfg.ExecutorConfig.MaxRetries, 3))
	cfg.ExecutorConfig.RetryDelay = getEnvIntOrDefault("EXECUTOR_RETRY_DELAY", defaultInt(cfg.ExecutorConfig.RetryDelay, 30))
	cfg.ExecutorConfig.PollInterval = getEnvIntOrDefault("EXECUTOR_POLL_INTERVAL", defaultInt(cfg.ExecutorConfig.PollInterval, 5))

	// Risk config
	cfg.RiskConfig.StartingCapital = getEnvFloatOrDefault("STARTING_CAPITAL", defaultFloat(cfg.RiskConfig.StartingCapital, 596.8))
	cfg.RiskConfig.RiskPercent = getEnvFloatOrDefault("RISK_PERCENT", defaultFloat(cfg.RiskConfig.RiskPercent, 0.01))
	cfg.RiskConfig.MaxDrawdownPercent = getEnvFloatOrDefault("MAX_DRAWDOWN_PERCENT", defaultFloat(cfg.RiskConfig.MaxDrawdownPercent, 10.0))

	// Trailing config
	cfg.TrailingConfig.TrailStep = getEnvFloatOrDefault("TRAIL_STEP", defaultFloat(cfg.TrailingConfig.TrailStep, 2.0))
	cfg.TrailingConfig.TrailStart = getEnvFloatOrDefault("TRAIL_START", defaultFloat(cfg.TrailingConfig.TrailStart, 7.0))
	cfg.TrailingConfig.BreathingBuffer = getEnvFloatOrDefault("TRAIL_BREATHING_BUFFER", defaultFloat(cfg.TrailingConfig.BreathingBuffer, 0.5))
	cfg.TrailingConfig.Interval = getEnvIntOrDefault("TRAIL_INTERVAL", defaultInt(cfg.TrailingConfig.Interval, 15))
	cfg.TrailingConfig.DryRun = getEnvOrDefault("TRAIL_DRY_RUN", "false") == "true"

	// Bias config
	cfg.BiasConfig.ZWindowDays = getEnvIntOrDefault("BIAS_Z_WINDOW_DAYS", defaultInt(cfg.BiasConfig.ZWindowDays, 90))
	cfg.BiasConfig.MinSampleSize = getEnvIntOrDefault("BIAS_MIN_SAMPLE_SIZE", defaultInt(cfg.BiasConfig.MinSampleSize, 30))
	cfg.BiasConfig.BayesWindowDays = getEnvIntOrDefault("BIAS_BAYES_WINDOW_DAYS", defaultInt(cfg.BiasConfig.BayesWindowDays, 10))

	// Telegram config
	cfg.TelegramConfig.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true" || cfg.TelegramConfig.Enabled
	cfg.TelegramConfig.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.TelegramConfig.BotToken)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// GenerateSampleConfig writes a config.json with default values
func GenerateSampleConfig(filename string) error {
	cfg := &Config{}
	applyEnvOverrides(cfg)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
