// Package config provides YAML-based configuration loading for cpg.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/cpg/internal/climate"
	"gopkg.in/yaml.v3"
)

// CronParser accepts standard five-field expressions and @descriptors.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config is the top-level cpg configuration, loaded from cpg.yaml.
type Config struct {
	Site      string            `yaml:"site"`
	Database  DatabaseConfig    `yaml:"database"`
	Climate   ClimateConfig     `yaml:"climate"`
	Schedule  map[string]string `yaml:"schedule"`
	Purge     PurgeConfig       `yaml:"purge"`
	Archive   DirConfig         `yaml:"archive"`
	NWR       DirConfig         `yaml:"nwr"`
	OUP       DirConfig         `yaml:"oup"`
	QC        QCConfig          `yaml:"qc"`
	Stages    StagesConfig      `yaml:"stages"`
	Alerts    AlertsConfig      `yaml:"alerts"`
	Dashboard DashboardConfig   `yaml:"dashboard"`
	Log       LogConfig         `yaml:"log"`
}

// DatabaseConfig selects and addresses the session store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
}

// ClimateConfig holds the global product generation settings. Pointer
// fields distinguish an explicit zero or false from an unset value.
type ClimateConfig struct {
	DisplayWait      *int       `yaml:"display_wait"`
	ReviewWait       *int       `yaml:"review_wait"`
	AllowAutoSend    *bool      `yaml:"allow_auto_send"`
	AllowDisseminate bool       `yaml:"allow_disseminate"`
	CopyNWRTo        string     `yaml:"copy_nwr_to"`
	OfficeName       string     `yaml:"office_name"`
	Timezone         string     `yaml:"timezone"`
	Auto             AutoConfig `yaml:"auto"`
}

// AutoConfig enables unattended runs per product type.
type AutoConfig struct {
	AM  *bool `yaml:"am"`
	IM  *bool `yaml:"im"`
	PM  *bool `yaml:"pm"`
	CLM *bool `yaml:"clm"`
	CLS *bool `yaml:"cls"`
	CLA *bool `yaml:"cla"`
	F6  *bool `yaml:"f6"`
}

// PurgeConfig controls the housekeeping sweeps.
type PurgeConfig struct {
	Schedule                 string `yaml:"schedule"`
	SessionRetentionHours    int    `yaml:"session_retention_hours"`
	SentRecordRetentionHours int    `yaml:"sent_record_retention_hours"`
}

// DirConfig points at a spool directory.
type DirConfig struct {
	Dir string `yaml:"dir"`
}

// QCConfig holds quality check rules keyed by product short name, then by
// parameter (daily.<param> or period.<param>), with comma separated checks.
type QCConfig struct {
	Rules map[string]map[string]string `yaml:"rules"`
}

// StagesConfig configures the built-in create, display and format stages.
// Report source files are read from ReportDir, committed reports written to
// CommitDir, and Products lists the text products formatted per type.
type StagesConfig struct {
	ReportDir string       `yaml:"report_dir"`
	CommitDir string       `yaml:"commit_dir"`
	Products  []ProductDef `yaml:"products"`
}

// ProductDef defines one formatted product.
type ProductDef struct {
	Key         string `yaml:"key"`
	Type        string `yaml:"type"`
	Channel     string `yaml:"channel"`
	FileName    string `yaml:"file_name"`
	ExpireHours int    `yaml:"expire_hours"`
	Template    string `yaml:"template"`
}

// AlertsConfig configures the chat sinks alerts fan out to.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DashboardConfig configures the HTTP API.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
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
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	c.Site = strings.ToUpper(c.Site)
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "cpg.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "cpg"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Climate.CopyNWRTo == "" {
		c.Climate.CopyNWRTo = climate.DefaultCopyNWRTo
	}
	if c.Climate.OfficeName == "" {
		c.Climate.OfficeName = climate.DefaultOfficeName
	}
	if c.Climate.Timezone == "" {
		c.Climate.Timezone = climate.DefaultTimezone
	}
	if c.Purge.Schedule == "" {
		c.Purge.Schedule = "0 * * * *"
	}
	if c.Purge.SessionRetentionHours == 0 {
		c.Purge.SessionRetentionHours = 72
	}
	if c.Purge.SentRecordRetentionHours == 0 {
		c.Purge.SentRecordRetentionHours = 168
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "data/textdb"
	}
	if c.NWR.Dir == "" {
		c.NWR.Dir = "data/nwr"
	}
	if c.OUP.Dir == "" {
		c.OUP.Dir = "data/oup"
	}
	if c.Stages.ReportDir == "" {
		c.Stages.ReportDir = "data/reports"
	}
	if c.Stages.CommitDir == "" {
		c.Stages.CommitDir = "data/committed"
	}
	for i := range c.Stages.Products {
		d := &c.Stages.Products[i]
		d.Type = strings.ToLower(d.Type)
		d.Channel = strings.ToUpper(d.Channel)
		if d.ExpireHours == 0 {
			d.ExpireHours = 12
		}
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if len(c.Site) != 4 {
		errs = append(errs, "site must be a four letter station id")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Climate.DisplayWait != nil && *c.Climate.DisplayWait > 24*60 {
		errs = append(errs, "climate.display_wait must be at most 1440 minutes")
	}
	if c.Climate.ReviewWait != nil && *c.Climate.ReviewWait > 24*60 {
		errs = append(errs, "climate.review_wait must be at most 1440 minutes")
	}
	if _, err := time.LoadLocation(c.Climate.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("climate.timezone %q: %v", c.Climate.Timezone, err))
	}
	for _, key := range sortedKeys(c.Schedule) {
		if _, ok := climate.PeriodTypeFromShort(key); !ok {
			errs = append(errs, fmt.Sprintf("schedule.%s is not a product type", key))
			continue
		}
		if _, err := CronParser.Parse(c.Schedule[key]); err != nil {
			errs = append(errs, fmt.Sprintf("schedule.%s: invalid cron expression %q", key, c.Schedule[key]))
		}
	}
	if _, err := CronParser.Parse(c.Purge.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("purge.schedule: invalid cron expression %q", c.Purge.Schedule))
	}
	if c.Purge.SessionRetentionHours < 0 {
		errs = append(errs, "purge.session_retention_hours must be positive")
	}
	if c.Purge.SentRecordRetentionHours < 0 {
		errs = append(errs, "purge.sent_record_retention_hours must be positive")
	}
	for _, key := range sortedKeys(c.QC.Rules) {
		if _, ok := climate.PeriodTypeFromShort(key); !ok {
			errs = append(errs, fmt.Sprintf("qc.rules.%s is not a product type", key))
		}
	}
	seen := make(map[string]bool)
	for i, d := range c.Stages.Products {
		switch {
		case d.Key == "":
			errs = append(errs, fmt.Sprintf("stages.products[%d].key is required", i))
		case seen[d.Type+"/"+d.Key]:
			errs = append(errs, fmt.Sprintf("stages.products[%d]: duplicate key %s for %s", i, d.Key, d.Type))
		}
		seen[d.Type+"/"+d.Key] = true
		if _, ok := climate.PeriodTypeFromShort(d.Type); !ok {
			errs = append(errs, fmt.Sprintf("stages.products[%d].type %q is not a product type", i, d.Type))
		}
		if d.Channel != string(climate.SourceNWWS) && d.Channel != string(climate.SourceNWR) {
			errs = append(errs, fmt.Sprintf("stages.products[%d].channel %q must be NWWS or NWR", i, d.Channel))
		}
		if d.Template == "" {
			errs = append(errs, fmt.Sprintf("stages.products[%d].template is required", i))
		}
	}
	if (c.Alerts.Slack.BotToken == "") != (c.Alerts.Slack.Channel == "") {
		errs = append(errs, "alerts.slack needs both bot_token and channel")
	}
	if (c.Alerts.Discord.BotToken == "") != (c.Alerts.Discord.ChannelID == "") {
		errs = append(errs, "alerts.discord needs both bot_token and channel_id")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Global returns the explicit settings snapshot handed to the session
// factory.
func (c *Config) Global() climate.GlobalConfig {
	g := climate.DefaultGlobalConfig()
	if c.Climate.DisplayWait != nil {
		g.DisplayWait = *c.Climate.DisplayWait
	}
	if c.Climate.ReviewWait != nil {
		g.ReviewWait = *c.Climate.ReviewWait
	}
	if c.Climate.AllowAutoSend != nil {
		g.AllowAutoSend = *c.Climate.AllowAutoSend
	}
	g.AllowDisseminate = c.Climate.AllowDisseminate
	g.CopyNWRTo = c.Climate.CopyNWRTo
	g.OfficeName = c.Climate.OfficeName
	g.Timezone = c.Climate.Timezone
	setBool(&g.AutoAM, c.Climate.Auto.AM)
	setBool(&g.AutoIM, c.Climate.Auto.IM)
	setBool(&g.AutoPM, c.Climate.Auto.PM)
	setBool(&g.AutoCLM, c.Climate.Auto.CLM)
	setBool(&g.AutoCLS, c.Climate.Auto.CLS)
	setBool(&g.AutoCLA, c.Climate.Auto.CLA)
	setBool(&g.AutoF6, c.Climate.Auto.F6)
	return g
}

// SessionRetention returns the purge window for terminated sessions.
func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.Purge.SessionRetentionHours) * time.Hour
}

// SentRecordRetention returns the purge window for sent product records.
func (c *Config) SentRecordRetention() time.Duration {
	return time.Duration(c.Purge.SentRecordRetentionHours) * time.Hour
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
