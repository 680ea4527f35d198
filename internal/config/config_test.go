package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
site: koax

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: cpg_prod
  user: climate

climate:
  display_wait: 0
  review_wait: 5
  allow_auto_send: false
  allow_disseminate: true
  copy_nwr_to: outgoing
  office_name: NWS Omaha
  timezone: America/Chicago
  auto:
    clm: false
    am: true

schedule:
  am: "30 6 * * *"
  mon: "0 8 1 * *"

purge:
  schedule: "@every 30m"
  session_retention_hours: 24
  sent_record_retention_hours: 48

archive:
  dir: /var/cpg/textdb

qc:
  rules:
    am:
      daily.maxTemp: "M,GT:130"

stages:
  report_dir: /var/cpg/reports
  products:
    - key: OAXCLMOAX
      type: MON
      channel: nwws
      template: "{{.Office}}"

alerts:
  slack:
    bot_token: xoxb-test
    channel: C123

dashboard:
  port: 9090

log:
  level: debug
  pretty: true
`

const minimalYAML = `
site: KOAX
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Site != "KOAX" {
		t.Errorf("Site = %q, want %q", cfg.Site, "KOAX")
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "cpg_prod" || cfg.Database.User != "climate" {
		t.Errorf("Database name/user = %q/%q", cfg.Database.Name, cfg.Database.User)
	}
	if cfg.Schedule["mon"] != "0 8 1 * *" {
		t.Errorf("Schedule[mon] = %q", cfg.Schedule["mon"])
	}
	if cfg.Purge.Schedule != "@every 30m" {
		t.Errorf("Purge.Schedule = %q", cfg.Purge.Schedule)
	}
	if cfg.SessionRetention() != 24*time.Hour {
		t.Errorf("SessionRetention() = %v, want 24h", cfg.SessionRetention())
	}
	if cfg.SentRecordRetention() != 48*time.Hour {
		t.Errorf("SentRecordRetention() = %v, want 48h", cfg.SentRecordRetention())
	}
	if cfg.Archive.Dir != "/var/cpg/textdb" {
		t.Errorf("Archive.Dir = %q", cfg.Archive.Dir)
	}
	if cfg.QC.Rules["am"]["daily.maxTemp"] != "M,GT:130" {
		t.Errorf("QC.Rules[am] = %v", cfg.QC.Rules["am"])
	}
	if len(cfg.Stages.Products) != 1 {
		t.Fatalf("Stages.Products = %d, want 1", len(cfg.Stages.Products))
	}
	if d := cfg.Stages.Products[0]; d.Type != "mon" || d.Channel != "NWWS" || d.ExpireHours != 12 {
		t.Errorf("Stages.Products[0] = %+v", d)
	}
	if cfg.Stages.CommitDir != "data/committed" {
		t.Errorf("Stages.CommitDir = %q", cfg.Stages.CommitDir)
	}
	if cfg.Alerts.Slack.Channel != "C123" {
		t.Errorf("Alerts.Slack.Channel = %q", cfg.Alerts.Slack.Channel)
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("Dashboard.Port = %d, want 9090", cfg.Dashboard.Port)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestGlobal_FromFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := cfg.Global()

	if g.DisplayWait != 0 {
		t.Errorf("DisplayWait = %d, want explicit 0", g.DisplayWait)
	}
	if g.ReviewWait != 5 {
		t.Errorf("ReviewWait = %d, want 5", g.ReviewWait)
	}
	if g.AllowAutoSend {
		t.Error("AllowAutoSend should be false")
	}
	if !g.AllowDisseminate {
		t.Error("AllowDisseminate should be true")
	}
	if g.CopyNWRTo != "outgoing" {
		t.Errorf("CopyNWRTo = %q", g.CopyNWRTo)
	}
	if g.AutoCLM {
		t.Error("AutoCLM should be false")
	}
	if !g.AutoAM || !g.AutoPM {
		t.Error("AutoAM and AutoPM should be true")
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "cpg.db" {
		t.Errorf("Database.Path = %q, want cpg.db (default)", cfg.Database.Path)
	}
	if cfg.Purge.SessionRetentionHours != 72 {
		t.Errorf("SessionRetentionHours = %d, want 72 (default)", cfg.Purge.SessionRetentionHours)
	}
	if cfg.Purge.SentRecordRetentionHours != 168 {
		t.Errorf("SentRecordRetentionHours = %d, want 168 (default)", cfg.Purge.SentRecordRetentionHours)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Dashboard.Port = %d, want 8080 (default)", cfg.Dashboard.Port)
	}

	g := cfg.Global()
	if g.DisplayWait != 20 || g.ReviewWait != 10 {
		t.Errorf("waits = %d/%d, want 20/10 (default)", g.DisplayWait, g.ReviewWait)
	}
	if !g.AllowAutoSend {
		t.Error("AllowAutoSend should default to true")
	}
	if g.AllowDisseminate {
		t.Error("AllowDisseminate should default to false")
	}
	if g.Timezone != "GMT" {
		t.Errorf("Timezone = %q, want GMT", g.Timezone)
	}
	if g.OfficeName != "National Weather Service" {
		t.Errorf("OfficeName = %q", g.OfficeName)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing site", `database: {driver: sqlite}`, "site must be a four letter station id"},
		{"bad driver", "site: KOAX\ndatabase: {driver: postgres}", `database.driver "postgres"`},
		{"bad schedule key", "site: KOAX\nschedule: {weekly: \"0 0 * * *\"}", "schedule.weekly is not a product type"},
		{"bad cron", "site: KOAX\nschedule: {am: \"not cron\"}", "schedule.am: invalid cron expression"},
		{"bad purge cron", "site: KOAX\npurge: {schedule: \"* *\"}", "purge.schedule: invalid cron expression"},
		{"bad timezone", "site: KOAX\nclimate: {timezone: Mars/Olympus}", "climate.timezone"},
		{"half slack", "site: KOAX\nalerts: {slack: {bot_token: x}}", "alerts.slack needs both"},
		{"half discord", "site: KOAX\nalerts: {discord: {channel_id: x}}", "alerts.discord needs both"},
		{"bad qc key", "site: KOAX\nqc: {rules: {xx: {daily.maxTemp: M}}}", "qc.rules.xx is not a product type"},
		{"product no key", "site: KOAX\nstages: {products: [{type: am, channel: NWR, template: x}]}", "stages.products[0].key is required"},
		{"product bad channel", "site: KOAX\nstages: {products: [{key: A, type: am, channel: fax, template: x}]}", `stages.products[0].channel "FAX"`},
		{"product bad type", "site: KOAX\nstages: {products: [{key: A, type: wk, channel: NWR, template: x}]}", `stages.products[0].type "wk"`},
		{"product no template", "site: KOAX\nstages: {products: [{key: A, type: am, channel: NWR}]}", "stages.products[0].template is required"},
		{"product duplicate", "site: KOAX\nstages: {products: [{key: A, type: am, channel: NWR, template: x}, {key: A, type: am, channel: NWWS, template: y}]}", "stages.products[1]: duplicate key A for am"},
		{"huge wait", "site: KOAX\nclimate: {display_wait: 5000}", "climate.display_wait must be at most"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), "config: validation failed:") {
				t.Errorf("error = %q, want validation prefix", err.Error())
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("site: [unclosed"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want parse prefix", err.Error())
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpg.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site != "KOAX" {
		t.Errorf("Site = %q", cfg.Site)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want read prefix", err.Error())
	}
}
