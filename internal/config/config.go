// Package config provides YAML-based configuration loading for Stopyard.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. They are never read from YAML.
const (
	EnvDBPassword    = "STOPYARD_DB_PASSWORD"
	EnvSAPSecret     = "SAP_CLIENT_SECRET"
	EnvSlackToken    = "SLACK_BOT_TOKEN"
	EnvDiscordToken  = "DISCORD_BOT_TOKEN"
	DefaultMaxRows   = 50
	DefaultSAPClient = "100"
)

// Config is the top-level Stopyard configuration, loaded from stopyard.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Timeline  TimelineConfig  `yaml:"timeline"`
	Centers   []CenterConfig  `yaml:"centers"`
	SAP       SAPConfig       `yaml:"sap"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig selects the backend and how to reach it.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
	Path     string `yaml:"path"` // sqlite only
}

// DashboardConfig holds the HTTP listener settings.
type DashboardConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ScheduleConfig holds the cron specs of the background jobs. An empty spec
// disables the job.
type ScheduleConfig struct {
	Generate     string        `yaml:"generate"`
	Repair       string        `yaml:"repair"`
	Prune        string        `yaml:"prune"`
	PruneAfter   time.Duration `yaml:"prune_after"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// TimelineConfig tunes the Gantt view.
type TimelineConfig struct {
	MaxRows  int    `yaml:"max_rows"`
	Ruler    string `yaml:"ruler"` // weeks or months
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone. validate guarantees it loads.
func (t TimelineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CenterConfig seeds a location center.
type CenterConfig struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

// SAPConfig points at the SAP BTP / S/4HANA endpoints. Leaving both
// endpoints empty disables the integration.
type SAPConfig struct {
	S4HanaEndpoint string        `yaml:"s4hana_endpoint"`
	CFAPIEndpoint  string        `yaml:"cf_api_endpoint"`
	TokenURL       string        `yaml:"token_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"-"`
	Client         string        `yaml:"client"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// Enabled reports whether an SAP endpoint is configured.
func (s SAPConfig) Enabled() bool {
	return s.S4HanaEndpoint != "" || s.CFAPIEndpoint != ""
}

// NotifyConfig holds the optional chat notifiers.
type NotifyConfig struct {
	Slack   *SlackConfig   `yaml:"slack"`
	Discord *DiscordConfig `yaml:"discord"`
}

// SlackConfig posts change notifications to a Slack channel.
type SlackConfig struct {
	ChannelID string `yaml:"channel_id"`
	BotToken  string `yaml:"-"`
}

// DiscordConfig posts change notifications to a Discord channel.
type DiscordConfig struct {
	ChannelID string `yaml:"channel_id"`
	BotToken  string `yaml:"-"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or logfmt
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the config is loaded into the environment first;
// variables already set win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := LoadEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadEnv loads a dotenv file. A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load env %s: %w", path, err)
	}
	return nil
}

// Parse unmarshals YAML bytes into a validated Config. Secrets are taken
// from the environment.
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

func (c *Config) applyEnv() {
	c.Database.Password = os.Getenv(EnvDBPassword)
	c.SAP.ClientSecret = os.Getenv(EnvSAPSecret)
	if c.Notify.Slack != nil {
		c.Notify.Slack.BotToken = os.Getenv(EnvSlackToken)
	}
	if c.Notify.Discord != nil {
		c.Notify.Discord.BotToken = os.Getenv(EnvDiscordToken)
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	db := &c.Database
	if db.Driver == "" {
		db.Driver = "mysql"
	}
	if db.Host == "" {
		db.Host = "127.0.0.1"
	}
	switch db.Driver {
	case "mysql":
		if db.Port == 0 {
			db.Port = 3306
		}
		if db.User == "" {
			db.User = "root"
		}
	case "postgres":
		if db.Port == 0 {
			db.Port = 5432
		}
		if db.User == "" {
			db.User = "postgres"
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
	case "sqlite":
		if db.Path == "" {
			db.Path = "stopyard.db"
		}
	}
	if db.Database == "" {
		db.Database = "stopyard"
	}
	if db.TimeZone == "" {
		db.TimeZone = "UTC"
	}

	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}

	if c.Schedule.PruneAfter == 0 {
		c.Schedule.PruneAfter = 30 * 24 * time.Hour
	}
	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = 2 * time.Second
	}

	if c.Timeline.MaxRows == 0 {
		c.Timeline.MaxRows = DefaultMaxRows
	}
	if c.Timeline.Ruler == "" {
		c.Timeline.Ruler = "months"
	}
	if c.Timeline.Timezone == "" {
		c.Timeline.Timezone = "UTC"
	}

	if c.SAP.Client == "" {
		c.SAP.Client = DefaultSAPClient
	}
	if c.SAP.CacheTTL == 0 {
		c.SAP.CacheTTL = 5 * time.Minute
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql, postgres or sqlite", c.Database.Driver))
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port %d out of range", c.Database.Port))
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d out of range", c.Dashboard.Port))
	}
	if c.Schedule.PruneAfter < 0 {
		errs = append(errs, "schedule.prune_after must be positive")
	}
	if c.Schedule.PollInterval < 0 {
		errs = append(errs, "schedule.poll_interval must be positive")
	}

	if c.Timeline.MaxRows < 1 {
		errs = append(errs, "timeline.max_rows must be >= 1")
	}
	if c.Timeline.Ruler != "weeks" && c.Timeline.Ruler != "months" {
		errs = append(errs, fmt.Sprintf("timeline.ruler %q must be weeks or months", c.Timeline.Ruler))
	}
	if _, err := time.LoadLocation(c.Timeline.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timeline.timezone %q is unknown", c.Timeline.Timezone))
	}

	seen := make(map[string]bool)
	for i, ct := range c.Centers {
		if ct.Code == "" {
			errs = append(errs, fmt.Sprintf("centers[%d].code is required", i))
		} else if seen[ct.Code] {
			errs = append(errs, fmt.Sprintf("centers[%d].code %q is duplicated", i, ct.Code))
		}
		seen[ct.Code] = true
		if ct.Name == "" {
			errs = append(errs, fmt.Sprintf("centers[%d].name is required", i))
		}
	}

	if c.SAP.Enabled() {
		if c.SAP.TokenURL == "" {
			errs = append(errs, "sap.token_url is required when an SAP endpoint is set")
		}
		if c.SAP.ClientID == "" {
			errs = append(errs, "sap.client_id is required when an SAP endpoint is set")
		}
	}

	if c.Notify.Slack != nil && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required")
	}
	if c.Notify.Discord != nil && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required")
	}

	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be text, json or logfmt", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
