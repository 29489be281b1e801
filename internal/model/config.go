// Package model defines the data structures for vaultd's configuration
// and the shared vocabulary of priorities and item statuses.
package model

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Vault        VaultConfig        `yaml:"vault"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Watchers     WatchersConfig     `yaml:"watchers"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Approval     ApprovalConfig     `yaml:"approval"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type VaultConfig struct {
	Path string `yaml:"path" envconfig:"VAULT_PATH"`
}

type OrchestratorConfig struct {
	CycleIntervalSec int  `yaml:"cycle_interval_sec" envconfig:"CYCLE_INTERVAL_SEC"`
	DevMode          bool `yaml:"dev_mode" envconfig:"DEV_MODE"`
}

type WatchersConfig struct {
	DropFolder DropFolderConfig `yaml:"drop_folder"`
	Maildir    MaildirConfig    `yaml:"maildir"`
	Feed       FeedConfig       `yaml:"feed"`
}

type DropFolderConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"WATCH_DROP_FOLDER"`
	Folder          string `yaml:"folder" envconfig:"WATCH_FOLDER"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
}

type MaildirConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"WATCH_MAILDIR"`
	SpoolDir        string `yaml:"spool_dir" envconfig:"MAIL_SPOOL_DIR"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
}

type FeedConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"WATCH_FEED"`
	FeedPath        string `yaml:"feed_path" envconfig:"FEED_PATH"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
}

type SchedulerConfig struct {
	PlanIntervalSec     int `yaml:"plan_interval_sec"`
	DecisionIntervalSec int `yaml:"decision_interval_sec"`
	ExpiryIntervalSec   int `yaml:"expiry_interval_sec"`
	BriefingHour        int `yaml:"briefing_hour"`
	BriefingMinute      int `yaml:"briefing_minute"`
}

type ApprovalConfig struct {
	ExpiresHours int `yaml:"expires_hours" envconfig:"APPROVAL_EXPIRES_HOURS"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	cfg := Config{}
	cfg.Normalize()
	return cfg
}

// Load reads cfgPath (if it exists), applies VAULTD_-prefixed environment
// overrides, and normalizes the result. A missing file is not an error.
func Load(cfgPath string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(cfgPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
	}

	if err := envconfig.Process("vaultd", &cfg); err != nil {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps intervals and fills defaults in place.
func (c *Config) Normalize() {
	if c.Vault.Path == "" {
		c.Vault.Path = "./vault"
	}
	if c.Orchestrator.CycleIntervalSec < 1 {
		c.Orchestrator.CycleIntervalSec = 10
	}
	if c.Watchers.DropFolder.PollIntervalSec < 1 {
		c.Watchers.DropFolder.PollIntervalSec = 10
	}
	if c.Watchers.Maildir.PollIntervalSec < 1 {
		c.Watchers.Maildir.PollIntervalSec = 120
	}
	if c.Watchers.Feed.PollIntervalSec < 1 {
		c.Watchers.Feed.PollIntervalSec = 300
	}
	if c.Scheduler.PlanIntervalSec < 1 {
		c.Scheduler.PlanIntervalSec = 300
	}
	if c.Scheduler.DecisionIntervalSec < 1 {
		c.Scheduler.DecisionIntervalSec = 60
	}
	if c.Scheduler.ExpiryIntervalSec < 1 {
		c.Scheduler.ExpiryIntervalSec = 3600
	}
	if c.Scheduler.BriefingHour < 0 || c.Scheduler.BriefingHour > 23 {
		c.Scheduler.BriefingHour = 8
	}
	if c.Scheduler.BriefingMinute < 0 || c.Scheduler.BriefingMinute > 59 {
		c.Scheduler.BriefingMinute = 0
	}
	if c.Approval.ExpiresHours < 1 {
		c.Approval.ExpiresHours = 24
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
