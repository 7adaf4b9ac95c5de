package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"go-align/internal/goal"
)

type EngineConfig struct {
	Aggregation         string `json:"aggregation"`   // "uniform" or "weighted"
	ParallelDepth       int    `json:"parallelDepth"` // fork sibling subtrees above this depth
	RecentWindowDays    int    `json:"recentWindowDays"`
	RecentLimit         int    `json:"recentLimit"`
	SummaryCacheSeconds int    `json:"summaryCacheSeconds"`
	StagnationDays      int    `json:"stagnationDays"`
}

type WorkerConfig struct {
	Enabled     bool   `json:"enabled"`
	Schedule    string `json:"schedule"`    // standard 5-field cron expression
	Concurrency int    `json:"concurrency"` // organisations recomputed at once
}

type Config struct {
	Server struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Subpath   string `json:"subpath"`
		JWTSecret string `json:"jwtSecret"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Engine EngineConfig `json:"engine"`
	Worker WorkerConfig `json:"worker"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		// Minimal validation
		if c.Server.JWTSecret == "" {
			cfgErr = errors.New("jwtSecret must be set in config")
			return
		}
		c.applyDefaults()
		if err := c.Validate(); err != nil {
			cfgErr = err
			return
		}
		cfg = &c
	})
	return cfg, cfgErr
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}

func (c *Config) applyDefaults() {
	if c.Engine.Aggregation == "" {
		c.Engine.Aggregation = string(goal.AggregateUniform)
	}
	if c.Engine.RecentWindowDays <= 0 {
		c.Engine.RecentWindowDays = 7
	}
	if c.Engine.RecentLimit <= 0 {
		c.Engine.RecentLimit = 10
	}
	if c.Engine.SummaryCacheSeconds <= 0 {
		c.Engine.SummaryCacheSeconds = 300
	}
	if c.Engine.StagnationDays <= 0 {
		c.Engine.StagnationDays = 14
	}
	if c.Worker.Schedule == "" {
		c.Worker.Schedule = "0 2 * * *" // nightly at 02:00
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
}

// Validate checks the engine and worker sections.
func (c *Config) Validate() error {
	if _, err := goal.ParseAggregationMode(c.Engine.Aggregation); err != nil {
		return fmt.Errorf("engine.aggregation: %w", err)
	}
	if c.Engine.ParallelDepth < 0 {
		return errors.New("engine.parallelDepth must not be negative")
	}
	if c.Worker.Enabled {
		if _, err := cron.ParseStandard(c.Worker.Schedule); err != nil {
			return fmt.Errorf("worker.schedule: %w", err)
		}
	}
	return nil
}

// AggregationMode returns the configured roll-up mode.
func (c *Config) AggregationMode() goal.AggregationMode {
	mode, err := goal.ParseAggregationMode(c.Engine.Aggregation)
	if err != nil {
		return goal.AggregateUniform
	}
	return mode
}

// PropagateOptions builds traversal options from the engine section.
func (c *Config) PropagateOptions() goal.PropagateOptions {
	return goal.PropagateOptions{
		Mode:          c.AggregationMode(),
		ParallelDepth: c.Engine.ParallelDepth,
	}
}

// SummaryOptions builds summary options from the engine section.
func (c *Config) SummaryOptions() goal.SummaryOptions {
	return goal.SummaryOptions{
		RecentWindow: time.Duration(c.Engine.RecentWindowDays) * 24 * time.Hour,
		RecentLimit:  c.Engine.RecentLimit,
	}
}

// SummaryTTL is how long cached summaries stay valid.
func (c *Config) SummaryTTL() time.Duration {
	return time.Duration(c.Engine.SummaryCacheSeconds) * time.Second
}

// StagnationWindow is how long an active goal may go without an update.
func (c *Config) StagnationWindow() time.Duration {
	return time.Duration(c.Engine.StagnationDays) * 24 * time.Hour
}
