package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"dongpa/internal/domain"
)

// DefaultPath is used when DONGPA_CONFIG is unset.
const DefaultPath = "config/dongpa.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the dongpa service.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Strategy Strategy `yaml:"strategy"`
	Fetch    Fetch    `yaml:"fetch"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the gRPC listen address.
func (s Server) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Strategy holds the default run parameters used when a request omits them.
type Strategy struct {
	Symbol           string      `yaml:"symbol"`
	InitialCapital   float64     `yaml:"initial_capital"`
	Divisions        int         `yaml:"divisions"`
	Mode             domain.Mode `yaml:"mode"`
	BacktestDays     int         `yaml:"backtest_days"`
	SignalDays       int         `yaml:"signal_days"`
	CompareDivisions []int       `yaml:"compare_divisions"`
}

// ToStrategyConfig returns the configured default run as a validated
// StrategyConfig.
func (s Strategy) ToStrategyConfig() (domain.StrategyConfig, error) {
	cfg := domain.StrategyConfig{
		InitialCapital: s.InitialCapital,
		Divisions:      s.Divisions,
		Mode:           s.Mode,
	}
	if err := cfg.Validate(); err != nil {
		return domain.StrategyConfig{}, fmt.Errorf("strategy config: %w", err)
	}
	return cfg, nil
}

// Fetch controls the market data download job.
type Fetch struct {
	StartDate       string `yaml:"start_date"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

// Backtest window bounds in bars.
const (
	MinBacktestDays = 30
	MaxBacktestDays = 365
)

// Default returns the configuration used for any field the YAML file leaves
// empty.
func Default() *Config {
	return &Config{
		Storage: Storage{DataDir: "data", SQLitePath: "data/dongpa.db"},
		Server:  Server{Host: "0.0.0.0", Port: 8080, GRPCPort: 9090},
		Alpaca:  Alpaca{Feed: "iex"},
		Logging: Logging{Level: "info", Format: "json"},
		Strategy: Strategy{
			Symbol:           "SOXL",
			InitialCapital:   10000,
			Divisions:        7,
			Mode:             domain.ModeSafe,
			BacktestDays:     90,
			SignalDays:       10,
			CompareDivisions: []int{5, 7, 10},
		},
		Fetch: Fetch{StartDate: "2020-01-01", RateLimitPerMin: 200, MaxAttempts: 3},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the configuration file path from DONGPA_CONFIG, or
// DefaultPath.
func Path() string {
	if v := os.Getenv("DONGPA_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at path over the defaults, applies
// environment variable overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that the services depend on.
func (c *Config) Validate() error {
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if d := c.Strategy.BacktestDays; d < MinBacktestDays || d > MaxBacktestDays {
		return fmt.Errorf("strategy.backtest_days must be in [%d, %d], got %d", MinBacktestDays, MaxBacktestDays, d)
	}
	if c.Strategy.SignalDays < 1 {
		return fmt.Errorf("strategy.signal_days must be positive, got %d", c.Strategy.SignalDays)
	}
	seen := make(map[int]bool, len(c.Strategy.CompareDivisions))
	for _, d := range c.Strategy.CompareDivisions {
		if d < domain.MinDivisions || d > domain.MaxDivisions {
			return fmt.Errorf("strategy.compare_divisions: %d outside [%d, %d]", d, domain.MinDivisions, domain.MaxDivisions)
		}
		if seen[d] {
			return fmt.Errorf("strategy.compare_divisions: duplicate %d", d)
		}
		seen[d] = true
	}
	if _, err := c.Strategy.ToStrategyConfig(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("DONGPA_SYMBOL"); v != "" {
		cfg.Strategy.Symbol = v
	}

	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Standard Alpaca env vars take precedence; the SDK reads the same names.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
