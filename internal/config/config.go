// Package config loads the YAML bot configuration with an optional .env
// overlay for secrets and mode flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/strategy"
)

// Config is the full process configuration.
type Config struct {
	Bot struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Symbol string `yaml:"symbol"`

		Timeframe                 string        `yaml:"timeframe"`
		CheckInterval             time.Duration `yaml:"check_interval"`
		ConnectivityCheckInterval time.Duration `yaml:"connectivity_check_interval"`
		MaxConnectivityFailures   int           `yaml:"max_connectivity_failures"`
		SaveInterval              time.Duration `yaml:"save_interval"`
		HistoryLimit              int           `yaml:"history_limit"`
	} `yaml:"bot"`

	Exchange struct {
		Name      string  `yaml:"name"`
		FeeRate   float64 `yaml:"fee_rate"`
		APIKey    string  `yaml:"api_key"`
		APISecret string  `yaml:"api_secret"`
	} `yaml:"exchange"`

	Strategy struct {
		Name   string          `yaml:"name"`
		Params strategy.Params `yaml:"params"`
	} `yaml:"strategy"`

	Persistence struct {
		StateDir string `yaml:"state_dir"`
		TradesDB string `yaml:"trades_db"`
	} `yaml:"persistence"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Load reads an optional .env file, then the YAML config at path,
// applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	// Missing .env is fine; the file is an overlay, not a requirement.
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets credentials come from the environment so they never have
// to live in the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Bot.ID == "" {
		c.Bot.ID = "bot-1"
	}
	if c.Bot.Name == "" {
		c.Bot.Name = c.Bot.ID
	}
	if c.Bot.Timeframe == "" {
		c.Bot.Timeframe = "1m"
	}
	if c.Exchange.Name == "" {
		c.Exchange.Name = "paper"
	}
	if c.Persistence.StateDir == "" {
		c.Persistence.StateDir = "data/state"
	}
	if c.Persistence.TradesDB == "" {
		c.Persistence.TradesDB = "data/trades.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate rejects configurations that cannot start. An unknown strategy
// name is fatal here, before any loop begins.
func (c *Config) Validate() error {
	if c.Bot.Symbol == "" {
		return fmt.Errorf("config: bot.symbol is required")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("config: strategy.name is required")
	}
	known := strategy.Names()
	for _, name := range known {
		if name == c.Strategy.Name {
			return nil
		}
	}
	return fmt.Errorf("config: unknown strategy %q (available: %s)",
		c.Strategy.Name, strings.Join(known, ", "))
}
