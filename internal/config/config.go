package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Sim holds all configuration for the effects simulation host.
type Sim struct {
	LogLevel string `yaml:"log_level" env:"FXSIM_LOG_LEVEL"`

	// Tick loop
	TickInterval time.Duration `yaml:"tick_interval" env:"FXSIM_TICK_INTERVAL"`
	RunFor       time.Duration `yaml:"run_for" env:"FXSIM_RUN_FOR"`   // 0 = until the scenario is done
	Realtime     bool          `yaml:"realtime" env:"FXSIM_REALTIME"` // pace ticks by wall clock
	Seed         uint64        `yaml:"seed" env:"FXSIM_SEED"`

	// Replication between authority and predicting replicas, in ticks.
	LatencyTicks int `yaml:"latency_ticks" env:"FXSIM_LATENCY_TICKS"`

	// Data files; empty paths use the built-in data.
	CatalogPath    string `yaml:"catalog_path" env:"FXSIM_CATALOG"`
	AttributesPath string `yaml:"attributes_path" env:"FXSIM_ATTRIBUTES"`
	ScenarioPath   string `yaml:"scenario_path" env:"FXSIM_SCENARIO"`

	// Persistence of actor state at the end of a run.
	Persist  bool           `yaml:"persist" env:"FXSIM_PERSIST"`
	Database DatabaseConfig `yaml:"database" envPrefix:"FXSIM_DB_"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultSim returns Sim config with sensible defaults.
func DefaultSim() Sim {
	return Sim{
		LogLevel:     "info",
		TickInterval: 100 * time.Millisecond,
		Seed:         1,
		LatencyTicks: 2,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "gameplayfx",
			Password: "gameplayfx",
			DBName:   "gameplayfx",
			SSLMode:  "disable",
		},
	}
}

// LoadSim loads sim config from a YAML file, then applies FXSIM_*
// environment overrides. If the file doesn't exist, defaults are used.
func LoadSim(path string) (Sim, error) {
	cfg := DefaultSim()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values the tick loop cannot run with.
func (c Sim) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.LatencyTicks < 0 {
		return fmt.Errorf("latency_ticks must not be negative, got %d", c.LatencyTicks)
	}
	if c.RunFor < 0 {
		return fmt.Errorf("run_for must not be negative, got %s", c.RunFor)
	}
	return nil
}
