package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/config"
	"github.com/zulandar/cpg/internal/db"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/product"
	"github.com/zulandar/cpg/internal/purge"
	"github.com/zulandar/cpg/internal/session"
)

type stubStages struct {
	sent int
}

func (s *stubStages) Create(context.Context, climate.PeriodType, climate.ProductSetting) (climate.ReportData, error) {
	return &climate.DailyReport{Date: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}, nil
}

func (s *stubStages) Commit(context.Context, climate.PeriodType, climate.ReportData, bool) error {
	return nil
}

func (s *stubStages) Format(_ context.Context, pt climate.PeriodType, _ climate.ReportData, _ climate.GlobalConfig) (map[string]*product.Product, error) {
	return map[string]*product.Product{
		"OAXCLIOAX": product.New("OAXCLIOAX", pt, "DAILY CLIMATE", time.Now().UTC().Add(time.Hour)),
	}, nil
}

func (s *stubStages) Send(_ context.Context, _ string, p *product.Product, _ bool, _ string) error {
	s.sent++
	p.SetStatus(product.StatusSent, "")
	return nil
}

func newDriver(t *testing.T, global climate.GlobalConfig) (*Driver, *notify.Recorder, *stubStages) {
	t.Helper()
	gdb, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	stub := &stubStages{}
	rec := notify.NewRecorder()
	f := session.NewFactory(session.FactoryOpts{
		Store: session.NewGormStore(gdb),
		Stages: session.Stages{
			Creator:   stub,
			Finalizer: stub,
			Formatter: stub,
			Senders:   map[climate.Source]session.Sender{climate.SourceNWR: stub},
		},
		Publisher:    rec,
		Global:       global,
		Logger:       zerolog.Nop(),
		PollInterval: time.Millisecond,
	})
	return &Driver{Factory: f, Publisher: rec, Logger: zerolog.Nop()}, rec, stub
}

func TestDriver_DisabledProductType(t *testing.T) {
	g := climate.DefaultGlobalConfig()
	g.AutoAM = false
	d, rec, _ := newDriver(t, g)

	s, err := d.Run(context.Background(), climate.PeriodMornRad)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s != nil {
		t.Errorf("session = %v, want none", s.ID())
	}
	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Priority != notify.Info || events[0].Message != "Auto generation of MORN_RAD is disabled" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestDriver_RunsAutoSession(t *testing.T) {
	g := climate.DefaultGlobalConfig()
	g.DisplayWait, g.ReviewWait = 0, 0
	g.AllowDisseminate = true
	d, _, stub := newDriver(t, g)

	s, err := d.Run(context.Background(), climate.PeriodMornRad)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s == nil {
		t.Fatal("expected a session")
	}
	if s.RunType() != climate.RunTypeAuto {
		t.Errorf("RunType = %v, want AUTO", s.RunType())
	}
	if s.CurrentState() != climate.StateSent {
		t.Errorf("state = %v, want SENT", s.CurrentState())
	}
	if stub.sent != 1 {
		t.Errorf("sent = %d, want 1", stub.sent)
	}
}

func TestNew_RegistersEntries(t *testing.T) {
	cfg, err := config.Parse([]byte("site: KOAX\nschedule:\n  am: \"30 6 * * *\"\n  mon: \"0 8 1 * *\"\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	d, _, _ := newDriver(t, cfg.Global())
	s, err := New(cfg, d, &purge.Purger{Logger: zerolog.Nop()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	want := []Entry{
		{Name: "MONTHLY_RAD", Spec: "0 8 1 * *"},
		{Name: "MORN_RAD", Spec: "30 6 * * *"},
		{Name: "purge", Spec: "0 * * * *"},
	}
	for i, w := range want {
		if entries[i].Name != w.Name || entries[i].Spec != w.Spec {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := &config.Config{
		Schedule: map[string]string{"am": "bogus"},
	}
	cfg.Climate.Timezone = "GMT"
	d, _, _ := newDriver(t, climate.DefaultGlobalConfig())
	if _, err := New(cfg, d, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg, err := config.Parse([]byte("site: KOAX\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	d, _, _ := newDriver(t, cfg.Global())
	s, err := New(cfg, d, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
