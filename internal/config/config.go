// Package config provides YAML-based configuration loading for benchdesk.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAPIEndpoint  = "BENCHDESK_API_ENDPOINT"
	EnvAccessToken  = "BENCHDESK_ACCESS_TOKEN"
	EnvTechnicianID = "BENCHDESK_TECHNICIAN_ID"
	EnvLogLevel     = "BENCHDESK_LOG_LEVEL"
)

// Config is the top-level benchdesk configuration, loaded from benchdesk.yaml.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Submission SubmissionConfig `yaml:"submission"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Announce   AnnounceConfig   `yaml:"announce"`
	Roster     RosterConfig     `yaml:"roster"`
	Receipts   ReceiptsConfig   `yaml:"receipts"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig holds settings for the repair-shop backend.
type APIConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	AccessToken     string        `yaml:"access_token"`
	Timeout         time.Duration `yaml:"timeout"`
	LookupRateLimit float64       `yaml:"lookup_rate_limit"` // lookups per second, 0 = unlimited
}

// SessionConfig carries identity established by a previous login.
type SessionConfig struct {
	TechnicianID string `yaml:"technician_id"`
}

// SubmissionConfig tunes the job-card submission sequence.
type SubmissionConfig struct {
	CompensateOrphans bool   `yaml:"compensate_orphans"`
	EmailSubject      string `yaml:"email_subject"`
	EmailBody         string `yaml:"email_body"`
}

// LedgerConfig selects the submission journal storage.
type LedgerConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AnnounceConfig holds chat platform credentials for outcome announcements.
type AnnounceConfig struct {
	Platform  string `yaml:"platform"` // "", slack or discord
	ChannelID string `yaml:"channel_id"`
	// FailuresOnly skips attempts that created a job card and sent the email.
	FailuresOnly bool `yaml:"failures_only"`
	Slack        struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"slack"`
	Discord struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"discord"`
}

// RosterConfig controls technician roster refreshes.
type RosterConfig struct {
	Refresh string `yaml:"refresh"` // 5-field cron expression
}

// ReceiptsConfig configures the S3 receipt archive. Empty bucket disables it.
type ReceiptsConfig struct {
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"` // S3-compatible store, e.g. MinIO
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// ServerConfig holds intake API server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file is not an error when the environment supplies the endpoint.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && os.Getenv(EnvAPIEndpoint) != "" {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on file values.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIEndpoint); v != "" {
		c.API.Endpoint = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.API.AccessToken = v
	}
	if v := os.Getenv(EnvTechnicianID); v != "" {
		c.Session.TechnicianID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	c.API.Endpoint = strings.TrimRight(c.API.Endpoint, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.Submission.EmailSubject == "" {
		c.Submission.EmailSubject = "Device Service Update"
	}
	if c.Submission.EmailBody == "" {
		c.Submission.EmailBody = "Your device service is in progress."
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "sqlite"
	}
	if c.Ledger.Driver == "sqlite" && c.Ledger.Path == "" {
		c.Ledger.Path = "benchdesk.db"
	}
	if c.Ledger.Driver == "mysql" {
		if c.Ledger.Host == "" {
			c.Ledger.Host = "127.0.0.1"
		}
		if c.Ledger.Port == 0 {
			c.Ledger.Port = 3306
		}
		if c.Ledger.Database == "" {
			c.Ledger.Database = "benchdesk"
		}
		if c.Ledger.User == "" {
			c.Ledger.User = "root"
		}
	}
	if c.Roster.Refresh == "" {
		c.Roster.Refresh = "*/15 * * * *"
	}
	if c.Receipts.Bucket != "" && c.Receipts.Prefix == "" {
		c.Receipts.Prefix = "receipts"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.Endpoint == "" {
		errs = append(errs, "api.endpoint is required")
	} else if u, err := url.Parse(c.API.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.endpoint %q is not an absolute URL", c.API.Endpoint))
	}
	if c.API.LookupRateLimit < 0 {
		errs = append(errs, "api.lookup_rate_limit must not be negative")
	}
	switch c.Ledger.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("ledger.driver %q must be sqlite or mysql", c.Ledger.Driver))
	}
	switch c.Announce.Platform {
	case "":
	case "slack":
		if c.Announce.Slack.BotToken == "" {
			errs = append(errs, "announce.slack.bot_token is required for slack")
		}
	case "discord":
		if c.Announce.Discord.BotToken == "" {
			errs = append(errs, "announce.discord.bot_token is required for discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("announce.platform %q must be slack or discord", c.Announce.Platform))
	}
	if c.Announce.Platform != "" && c.Announce.ChannelID == "" {
		errs = append(errs, "announce.channel_id is required when a platform is set")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
