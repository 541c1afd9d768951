package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gdtan02/swift-trader/internal/backtest"
)

// DefaultPath is the configuration file read when SWIFT_CONFIG is unset.
const DefaultPath = "config/swift-trader.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for swift-trader.
type Config struct {
	Storage   Storage        `yaml:"storage"`
	Server    Server         `yaml:"server"`
	Alpaca    Alpaca         `yaml:"alpaca"`
	Logging   Logging        `yaml:"logging"`
	Backtest  BacktestConfig `yaml:"backtest"`
	Sweep     SweepConfig    `yaml:"sweep"`
	Sync      SyncConfig     `yaml:"sync"`
	Profiling Profiling      `yaml:"profiling"`
}

// Storage holds paths for data persistence. RunStore selects the run
// history backend, "sqlite" or "bolt".
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	RunStore   string `yaml:"run_store"`
	BoltPath   string `yaml:"bolt_path"`
}

// RunStorePath returns the database path of the selected run store.
func (s Storage) RunStorePath() string {
	if s.RunStore == "bolt" {
		return s.BoltPath
	}
	return s.SQLitePath
}

// Server holds network listener configuration.
type Server struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	GRPCPort           int    `yaml:"grpc_port"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// HTTPAddr returns host:port of the HTTP listener.
func (s Server) HTTPAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCAddr returns host:port of the gRPC listener.
func (s Server) GRPCAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort) }

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Profiling configures continuous profiling of swift-server. An empty
// PyroscopeURL disables it.
type Profiling struct {
	PyroscopeURL    string `yaml:"pyroscope_url"`
	ApplicationName string `yaml:"application_name"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BacktestConfig holds the defaults applied to backtest requests.
type BacktestConfig struct {
	Timeframe       string  `yaml:"timeframe"`
	InitialCapital  float64 `yaml:"initial_capital"`
	CommissionRate  float64 `yaml:"commission_rate"`
	MinCommission   float64 `yaml:"min_commission"`
	EntryExitMode   string  `yaml:"entry_exit_mode"`
	PositionSizing  string  `yaml:"position_sizing"`
	MaxPositionSize float64 `yaml:"max_position_size"`
	LookbackPeriod  int     `yaml:"lookback_period"`
	RegimeColumn    string  `yaml:"regime_column"`
	BarsPerYear     int     `yaml:"bars_per_year"`
	MinWindowDays   int     `yaml:"min_window_days"`
}

// Defaults converts c into request defaults.
func (c BacktestConfig) Defaults() backtest.Defaults {
	return backtest.Defaults{
		Timeframe:       c.Timeframe,
		InitialCapital:  c.InitialCapital,
		CommissionRate:  c.CommissionRate,
		MinCommission:   c.MinCommission,
		EntryExitMode:   c.EntryExitMode,
		SizingMode:      c.PositionSizing,
		MaxPositionSize: c.MaxPositionSize,
		LookbackPeriod:  c.LookbackPeriod,
		RegimeColumn:    c.RegimeColumn,
		BarsPerYear:     c.BarsPerYear,
		MinWindowDays:   c.MinWindowDays,
	}
}

// SweepConfig bounds parameter sweeps.
type SweepConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// SyncConfig controls bar downloads by swift-data.
type SyncConfig struct {
	Symbols         []string `yaml:"symbols"`
	Timeframe       string   `yaml:"timeframe"`
	StartDate       string   `yaml:"start_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxRetries      int      `yaml:"max_retries"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration.
func Default() *Config {
	d := backtest.DefaultDefaults()
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/swift-trader.db",
			RunStore:   "sqlite",
			BoltPath:   "data/swift-trader.bolt",
		},
		Server: Server{
			Host:               "0.0.0.0",
			Port:               8080,
			GRPCPort:           9090,
			ShutdownTimeoutSec: 10,
		},
		Alpaca: Alpaca{
			DataURL: "https://data.alpaca.markets",
			Feed:    "iex",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Backtest: BacktestConfig{
			Timeframe:       d.Timeframe,
			InitialCapital:  d.InitialCapital,
			CommissionRate:  d.CommissionRate,
			MinCommission:   d.MinCommission,
			EntryExitMode:   d.EntryExitMode,
			PositionSizing:  d.SizingMode,
			MaxPositionSize: d.MaxPositionSize,
			LookbackPeriod:  d.LookbackPeriod,
			RegimeColumn:    d.RegimeColumn,
			BarsPerYear:     8760,
		},
		Sweep:     SweepConfig{MaxWorkers: 4},
		Profiling: Profiling{ApplicationName: "swift-server"},
		Sync: SyncConfig{
			Timeframe:       "1Hour",
			StartDate:       "2020-01-01",
			RateLimitPerMin: 200,
			MaxRetries:      3,
		},
	}
}

// Path returns the configuration path: $SWIFT_CONFIG or DefaultPath.
func Path() string {
	if p := os.Getenv("SWIFT_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over the
// built-in defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the built-in
// defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("RUN_STORE"); v != "" {
		cfg.Storage.RunStore = v
	}
	if v := os.Getenv("PYROSCOPE_URL"); v != "" {
		cfg.Profiling.PyroscopeURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	// Standard Alpaca env vars, the names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRPC_PORT: %w", err)
		}
		cfg.Server.GRPCPort = port
	}
	return nil
}
