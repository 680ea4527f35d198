package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/config"
	"github.com/zulandar/cpg/internal/session"
	"gopkg.in/yaml.v3"
)

var (
	_ session.Creator          = (*FileCreator)(nil)
	_ session.DisplayFinalizer = (*Committer)(nil)
	_ session.Formatter        = (*TemplateFormatter)(nil)
)

const sourceYAML = `
stations:
  - id: KOMA
    name: Omaha Eppley
    values: {maxTemp: 71, minTemp: 45}
  - id: KLNK
    name: Lincoln
    values: {maxTemp: 74}
`

func fixedNow() time.Time { return time.Date(2026, 10, 16, 11, 30, 0, 0, time.UTC) }

func writeSource(t *testing.T, short string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, short+".yaml"), []byte(sourceYAML), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return dir
}

func TestFileCreator_Daily(t *testing.T) {
	c := &FileCreator{Dir: writeSource(t, "am"), Now: fixedNow}
	r, err := c.Create(context.Background(), climate.PeriodMornRad, climate.ProductSetting{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	daily, ok := r.(*climate.DailyReport)
	if !ok {
		t.Fatalf("report = %T, want *DailyReport", r)
	}
	if want := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC); !daily.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", daily.Date, want)
	}
	if len(daily.Stations) != 2 {
		t.Errorf("stations = %d, want 2", len(daily.Stations))
	}
}

func TestFileCreator_StationFilter(t *testing.T) {
	c := &FileCreator{Dir: writeSource(t, "pm"), Now: fixedNow}
	r, err := c.Create(context.Background(), climate.PeriodEvenRad, climate.ProductSetting{Stations: []string{"klnk"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	st := r.StationReports()
	if len(st) != 1 || st[0].StationID != "KLNK" {
		t.Errorf("stations = %+v, want only KLNK", st)
	}
	if v := st[0].Value("minTemp"); v != climate.Missing {
		t.Errorf("minTemp = %v, want missing", v)
	}

	if _, err := c.Create(context.Background(), climate.PeriodEvenRad, climate.ProductSetting{Stations: []string{"KDSM"}}); err == nil {
		t.Error("expected error when no station matches")
	}
}

func TestFileCreator_MissingSource(t *testing.T) {
	c := &FileCreator{Dir: t.TempDir(), Now: fixedNow}
	_, err := c.Create(context.Background(), climate.PeriodMonthlyRad, climate.ProductSetting{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not exist", err)
	}
}

func TestFileCreator_PeriodFromSetting(t *testing.T) {
	c := &FileCreator{Dir: writeSource(t, "mon"), Now: fixedNow}
	begin := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	r, err := c.Create(context.Background(), climate.PeriodMonthlyRad, climate.ProductSetting{Begin: begin, End: end})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p := r.(*climate.PeriodReport)
	if !p.Begin.Equal(begin) || !p.End.Equal(end) {
		t.Errorf("period = %v..%v", p.Begin, p.End)
	}

	_, err = c.Create(context.Background(), climate.PeriodMonthlyRad, climate.ProductSetting{Begin: end, End: begin})
	if err == nil || !strings.Contains(err.Error(), "is before begin") {
		t.Errorf("error = %v, want reversed period error", err)
	}
}

func TestReportPeriod(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name      string
		pt        climate.PeriodType
		now       time.Time
		wantBegin time.Time
		wantEnd   time.Time
	}{
		{"monthly", climate.PeriodMonthlyRad, fixedNow(), day(2026, 9, 1), day(2026, 9, 30)},
		{"monthly january", climate.PeriodMonthlyRad, day(2026, 1, 2), day(2025, 12, 1), day(2025, 12, 31)},
		{"seasonal", climate.PeriodSeasonalRad, fixedNow(), day(2026, 6, 1), day(2026, 8, 31)},
		{"seasonal winter", climate.PeriodSeasonalRad, day(2026, 3, 1), day(2025, 12, 1), day(2026, 2, 28)},
		{"annual", climate.PeriodAnnualRad, fixedNow(), day(2025, 1, 1), day(2025, 12, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			begin, end := reportPeriod(tt.pt, tt.now)
			if !begin.Equal(tt.wantBegin) || !end.Equal(tt.wantEnd) {
				t.Errorf("reportPeriod = %s..%s, want %s..%s", begin.Format(time.DateOnly), end.Format(time.DateOnly),
					tt.wantBegin.Format(time.DateOnly), tt.wantEnd.Format(time.DateOnly))
			}
		})
	}
}

func TestCommitter(t *testing.T) {
	dir := t.TempDir()
	c := &Committer{Dir: dir, Now: fixedNow}
	report := &climate.DailyReport{
		Date:     time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		Stations: []climate.StationReport{{StationID: "KOMA", Values: map[string]float64{"maxTemp": 71}}},
	}
	if err := c.Commit(context.Background(), climate.PeriodMornRad, report, false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "am", "20261016113000.000.yaml"))
	if err != nil {
		t.Fatalf("read committed report: %v", err)
	}
	var got committedReport
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("parse committed report: %v", err)
	}
	if got.Type != "MORN_RAD" || got.Date != "2026-10-15" || len(got.Stations) != 1 {
		t.Errorf("committed = %+v", got)
	}
}

func TestCommitter_EmptyReport(t *testing.T) {
	c := &Committer{Dir: t.TempDir(), Now: fixedNow}
	empty := &climate.PeriodReport{}
	err := c.Commit(context.Background(), climate.PeriodMonthlyRad, empty, false)
	if !errors.Is(err, session.ErrInvalidParameter) {
		t.Errorf("error = %v, want ErrInvalidParameter", err)
	}
	if err := c.Commit(context.Background(), climate.PeriodMonthlyRad, empty, true); err != nil {
		t.Errorf("Commit with override: %v", err)
	}
}

func TestTemplateFormatter(t *testing.T) {
	defs := []config.ProductDef{
		{
			Key: "OAXCLIOAX", Type: "am", Channel: "NWWS", ExpireHours: 6,
			Template: "OAXCLIOAX LOC\n{{.Office}} {{.Type}} {{.Date.Format \"Jan 2\"}}\n" +
				"{{range .Stations}}{{pad 6 .StationID}}{{value . \"maxTemp\"}}/{{value . \"minTemp\"}}\n{{end}}",
		},
		{Key: "OMACLIOAX", Type: "am", Channel: "NWR", FileName: "oma_am.txt", ExpireHours: 6, Template: "{{upper .Site}} RADIO"},
		{Key: "OAXCLMOAX", Type: "mon", Channel: "NWWS", ExpireHours: 24, Template: "{{.Begin.Month}}"},
	}
	f, err := NewTemplateFormatter("koax", defs, time.UTC, fixedNow)
	if err != nil {
		t.Fatalf("NewTemplateFormatter: %v", err)
	}
	if types := f.Types(); len(types) != 2 || types[0] != climate.PeriodMornRad || types[1] != climate.PeriodMonthlyRad {
		t.Errorf("Types = %v", types)
	}

	report := &climate.DailyReport{
		Date: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		Stations: []climate.StationReport{
			{StationID: "KOMA", Values: map[string]float64{"maxTemp": 71, "minTemp": 45}},
			{StationID: "KLNK", Values: map[string]float64{"maxTemp": 74.5}},
		},
	}
	global := climate.DefaultGlobalConfig()
	global.OfficeName = "NWS Omaha"
	products, err := f.Format(context.Background(), climate.PeriodMornRad, report, global)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2", len(products))
	}

	nwws := products["OAXCLIOAX"]
	want := "OAXCLIOAX LOC\nNWS Omaha MORN_RAD Oct 15\nKOMA  71/45\nKLNK  74.5/MM\n"
	if nwws.Text != want {
		t.Errorf("text = %q, want %q", nwws.Text, want)
	}
	if nwws.PeriodType != climate.PeriodMornNWWS {
		t.Errorf("PeriodType = %v, want MORN_NWWS", nwws.PeriodType)
	}
	if want := fixedNow().Add(6 * time.Hour); !nwws.ExpirationTime.Equal(want) {
		t.Errorf("expiration = %v, want %v", nwws.ExpirationTime, want)
	}

	nwr := products["OMACLIOAX"]
	if nwr.Text != "KOAX RADIO" || nwr.FileName != "oma_am.txt" || nwr.PeriodType != climate.PeriodMornRad {
		t.Errorf("nwr product = %+v", nwr)
	}

	none, err := f.Format(context.Background(), climate.PeriodEvenRad, report, global)
	if err != nil || len(none) != 0 {
		t.Errorf("Format(PM) = %v, %v; want no products", none, err)
	}
}

func TestTemplateFormatter_BadTemplate(t *testing.T) {
	_, err := NewTemplateFormatter("KOAX", []config.ProductDef{{Key: "X", Type: "am", Channel: "NWR", Template: "{{.Nope"}}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "parse template") {
		t.Errorf("error = %v, want parse error", err)
	}
}
