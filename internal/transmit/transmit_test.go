package transmit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/db"
	"github.com/zulandar/cpg/internal/product"
	"github.com/zulandar/cpg/internal/session"
	"gorm.io/gorm"
)

var (
	_ session.Sender = (*NWWSSender)(nil)
	_ session.Sender = (*NWRSender)(nil)
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line string
		want Header
	}{
		{"OMACLMOAX 000 CDUS43 KOAX 011200", Header{"OMACLMOAX", "000", "CDUS43", "KOAX", "011200"}},
		{"OMACLMOAX CDUS43 KOAX 011200", Header{"OMACLMOAX", "DEF", "CDUS43", "KOAX", "011200"}},
		{"OMACLMOAXLOC CDUS43 KOAX 011200", Header{"OMACLMOAX", "LOC", "CDUS43", "KOAX", "011200"}},
		{"OMACLMOAX000CDUS43 KOAX 011200", Header{"OMACLMOAX", "000", "CDUS43", "KOAX", "011200"}},
		{"omaclmoax all cdus43 koax 011200", Header{"OMACLMOAX", "ALL", "CDUS43", "KOAX", "011200"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseHeader(tt.line)
			if err != nil {
				t.Fatalf("ParseHeader: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseHeader = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseHeader_Errors(t *testing.T) {
	for _, line := range []string{"", "OMACLMOAX", "OMA 000"} {
		if _, err := ParseHeader(line); !errors.Is(err, ErrBadHeader) {
			t.Errorf("ParseHeader(%q) error = %v, want ErrBadHeader", line, err)
		}
	}
}

func TestHeader_IsLocal(t *testing.T) {
	for node, want := range map[string]bool{"000": true, "LOC": true, "DEF": false, "ALL": false} {
		if got := (Header{Node: node}).IsLocal(); got != want {
			t.Errorf("IsLocal(%s) = %v, want %v", node, got, want)
		}
	}
}

func TestParseProduct_SplitsBody(t *testing.T) {
	h, body, err := ParseProduct("OMACLMOAX 000 CDUS43 KOAX 011200\r\nLINE ONE\r\nLINE TWO")
	if err != nil {
		t.Fatalf("ParseProduct: %v", err)
	}
	if h.AFOSID != "OMACLMOAX" {
		t.Errorf("AFOSID = %q", h.AFOSID)
	}
	if body != "LINE ONE\nLINE TWO" {
		t.Errorf("body = %q", body)
	}
}

func TestLocalText(t *testing.T) {
	h := Header{AFOSID: "OMACLMOAX", Node: "000"}
	got := LocalText(h, "KOAX", "BODY", fixedNow)
	want := "OMACLMOAX 000\nTTAA00 KOAX 161200\nBODY"
	if got != want {
		t.Errorf("LocalText = %q, want %q", got, want)
	}
}

func TestFileArchive_WriteAndLatest(t *testing.T) {
	a := &FileArchive{Dir: t.TempDir(), Logger: zerolog.Nop(), Now: func() time.Time { return fixedNow }}

	at := a.Write(context.Background(), "clmoax", "TEXT", true)
	if at != fixedNow.UnixMilli() {
		t.Errorf("Write = %d, want %d", at, fixedNow.UnixMilli())
	}
	got, err := a.Latest("CLMOAX", true)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != "TEXT" {
		t.Errorf("Latest = %q, want TEXT", got)
	}
	if _, err := a.Latest("CLMOAX", false); err == nil {
		t.Error("practice archive should be separate")
	}
}

func TestFileArchive_Failures(t *testing.T) {
	a := &FileArchive{Dir: t.TempDir(), Logger: zerolog.Nop()}
	if got := a.Write(context.Background(), "../etc", "x", true); got != ArchiveFailure {
		t.Errorf("Write(bad pil) = %d, want ArchiveFailure", got)
	}

	file := filepath.Join(t.TempDir(), "plain")
	os.WriteFile(file, nil, 0o644)
	a.Dir = file
	if got := a.Write(context.Background(), "CLMOAX", "x", true); got != ArchiveFailure {
		t.Errorf("Write(unwritable dir) = %d, want ArchiveFailure", got)
	}
}

func TestSpoolForwarder(t *testing.T) {
	dir := t.TempDir()
	f := &SpoolForwarder{Dir: dir, Now: func() time.Time { return fixedNow }}
	h := Header{AFOSID: "OMACLMOAX", Node: "ALL"}

	if err := f.Forward(context.Background(), h, "TEXT", true); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "OMACLMOAX.20261016120000.txt"))
	if err != nil {
		t.Fatalf("spool file: %v", err)
	}
	if string(b) != "TEXT" {
		t.Errorf("spool text = %q", b)
	}
	if err := f.Forward(context.Background(), h, "TEXT", false); err == nil {
		t.Error("practice product should not be forwarded")
	}
}

type fakeArchive struct {
	result int64
	pil    string
	text   string
}

func (f *fakeArchive) Write(_ context.Context, pil, text string, _ bool) int64 {
	f.pil, f.text = pil, text
	return f.result
}

type fakeForwarder struct {
	err  error
	sent []string
}

func (f *fakeForwarder) Forward(_ context.Context, h Header, _ string, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, h.AFOSID)
	return nil
}

func nwwsProduct(node string) *product.Product {
	text := "OMACLMOAX " + node + " CDUS43 KOAX 161200\nCLIMATE REPORT\nNATIONAL WEATHER SERVICE OMAHA"
	return product.New("CLMOAX", climate.PeriodMonthlyNWWS, text, fixedNow.Add(time.Hour))
}

func TestNWWSSender_LocalProductIsStoredAndRecorded(t *testing.T) {
	gdb := testDB(t)
	archive := &fakeArchive{result: 1}
	s := &NWWSSender{
		Site:     "KOAX",
		Archive:  archive,
		OUP:      &fakeForwarder{},
		Recorder: &DBRecorder{DB: gdb},
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return fixedNow },
	}
	p := nwwsProduct("000")

	if err := s.Send(context.Background(), "sess-1", p, true, "forecaster"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if p.Status != product.StatusSent {
		t.Errorf("Status = %v, want SENT", p.Status)
	}
	wantText := "OMACLMOAX 000\nTTAA00 KOAX 161200\nCLIMATE REPORT\nNATIONAL WEATHER SERVICE OMAHA"
	if archive.text != wantText {
		t.Errorf("archived text = %q, want %q", archive.text, wantText)
	}
	var kinds []product.ActionKind
	for _, a := range p.Actions {
		kinds = append(kinds, a.Kind)
	}
	if len(kinds) != 3 || kinds[1] != product.ActionStore || kinds[2] != product.ActionSend {
		t.Errorf("actions = %v, want NEW STORE SEND", kinds)
	}

	rows, err := Sent(context.Background(), gdb, "sess-1")
	if err != nil {
		t.Fatalf("Sent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("records = %d, want 1", len(rows))
	}
	if rows[0].ProdType != "NWWS" || rows[0].UserID != "forecaster" || rows[0].ProdText != wantText {
		t.Errorf("record = %+v", rows[0])
	}
	if rows[0].PeriodType != int(climate.PeriodMonthlyNWWS) {
		t.Errorf("record period type = %d", rows[0].PeriodType)
	}
}

func TestNWWSSender_ArchiveFailure(t *testing.T) {
	s := &NWWSSender{
		Site:    "KOAX",
		Archive: &fakeArchive{result: ArchiveFailure},
		OUP:     &fakeForwarder{},
		Logger:  zerolog.Nop(),
	}
	p := nwwsProduct("LOC")

	err := s.Send(context.Background(), "sess-1", p, true, "auto")
	if err == nil || !strings.Contains(err.Error(), "to TextDB failed") {
		t.Fatalf("Send error = %v, want TextDB failure", err)
	}
	if p.Status != product.StatusPending {
		t.Errorf("Status = %v, want PENDING left for the caller", p.Status)
	}
}

func TestNWWSSender_ForwardsNonLocal(t *testing.T) {
	fwd := &fakeForwarder{}
	s := &NWWSSender{Site: "KOAX", Archive: &fakeArchive{}, OUP: fwd, Logger: zerolog.Nop()}
	p := nwwsProduct("ALL")

	if err := s.Send(context.Background(), "sess-1", p, true, "auto"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fwd.sent) != 1 || fwd.sent[0] != "OMACLMOAX" {
		t.Errorf("forwarded = %v", fwd.sent)
	}
	if !p.IsSent() {
		t.Error("product should be SENT")
	}

	fwd.err = errors.New("spool full")
	q := nwwsProduct("ALL")
	if err := s.Send(context.Background(), "sess-1", q, true, "auto"); err == nil {
		t.Error("expected forward error")
	}
}

func TestNWWSSender_SentIsNoop(t *testing.T) {
	archive := &fakeArchive{result: ArchiveFailure}
	s := &NWWSSender{Archive: archive, OUP: &fakeForwarder{}, Logger: zerolog.Nop()}
	p := nwwsProduct("000")
	p.SetStatus(product.StatusSent, "")

	if err := s.Send(context.Background(), "sess-1", p, true, "auto"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if archive.pil != "" {
		t.Error("archive should not be called for a SENT product")
	}
}

func TestNWWSSender_BadHeader(t *testing.T) {
	s := &NWWSSender{Archive: &fakeArchive{}, OUP: &fakeForwarder{}, Logger: zerolog.Nop()}
	p := product.New("CLMOAX", climate.PeriodMonthlyNWWS, "NO HEADER", fixedNow)
	if err := s.Send(context.Background(), "sess-1", p, true, "auto"); !errors.Is(err, ErrBadHeader) {
		t.Errorf("Send error = %v, want ErrBadHeader", err)
	}
}

func TestNWRSender(t *testing.T) {
	gdb := testDB(t)
	dir := t.TempDir()
	s := &NWRSender{Dir: dir, CopyTo: "pending", Recorder: &DBRecorder{DB: gdb}, Logger: zerolog.Nop()}
	p := product.New("OAXCLMOAX", climate.PeriodMonthlyRad, "OMAHA CLIMATE SUMMARY", fixedNow)

	if err := s.Send(context.Background(), "sess-2", p, true, "auto"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "pending", "OAXCLMOAX.txt"))
	if err != nil {
		t.Fatalf("read copied product: %v", err)
	}
	if string(b) != "OMAHA CLIMATE SUMMARY" {
		t.Errorf("copied text = %q", b)
	}
	if !p.IsSent() || p.FileName != "OAXCLMOAX.txt" {
		t.Errorf("product = %+v", p)
	}
	rows, _ := Sent(context.Background(), gdb, "sess-2")
	if len(rows) != 1 || rows[0].ProdType != "NWR" {
		t.Errorf("records = %+v", rows)
	}
}

func TestNWRSender_PracticeDir(t *testing.T) {
	dir := t.TempDir()
	s := &NWRSender{Dir: dir, CopyTo: "pending", Logger: zerolog.Nop()}
	p := product.New("OAXCLMOAX", climate.PeriodMonthlyRad, "TEXT", fixedNow)
	p.FileName = "custom/name.txt"

	if err := s.Send(context.Background(), "sess-2", p, false, "auto"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "practice", "pending", "name.txt")); err != nil {
		t.Errorf("practice copy missing: %v", err)
	}
}
