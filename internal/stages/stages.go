// Package stages provides the file and template backed create, display and
// format stages the cpg daemon runs sessions with.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/config"
	"github.com/zulandar/cpg/internal/product"
	"github.com/zulandar/cpg/internal/session"
	"gopkg.in/yaml.v3"
)

// sourceFile is the YAML layout of a report source file.
type sourceFile struct {
	Stations []sourceStation `yaml:"stations"`
}

type sourceStation struct {
	ID     string             `yaml:"id"`
	Name   string             `yaml:"name"`
	Values map[string]float64 `yaml:"values"`
}

// FileCreator builds report data from <Dir>/<short>.yaml, one file per
// product type, written by the upstream climate aggregation job.
type FileCreator struct {
	Dir      string
	Location *time.Location
	Now      func() time.Time
}

// Create implements session.Creator.
func (c *FileCreator) Create(ctx context.Context, pt climate.PeriodType, setting climate.ProductSetting) (climate.ReportData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(c.Dir, pt.Short()+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stages: read report source %s: %w", path, err)
	}
	var src sourceFile
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("stages: parse report source %s: %w", path, err)
	}

	stations := selectStations(src.Stations, setting.Stations)
	if len(stations) == 0 {
		return nil, fmt.Errorf("stages: no station data for %s in %s", pt, path)
	}

	now := c.now()
	if pt.IsDaily() {
		date := setting.Date
		if date.IsZero() {
			date = reportDate(pt, now)
		}
		return &climate.DailyReport{Date: date, Stations: stations}, nil
	}
	begin, end := setting.Begin, setting.End
	if begin.IsZero() || end.IsZero() {
		begin, end = reportPeriod(pt, now)
	}
	if end.Before(begin) {
		return nil, fmt.Errorf("stages: period end %s is before begin %s", end.Format(time.DateOnly), begin.Format(time.DateOnly))
	}
	return &climate.PeriodReport{Begin: begin, End: end, Stations: stations}, nil
}

func (c *FileCreator) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

func selectStations(all []sourceStation, want []string) []climate.StationReport {
	keep := make(map[string]bool, len(want))
	for _, id := range want {
		keep[strings.ToUpper(id)] = true
	}
	var out []climate.StationReport
	for _, s := range all {
		if len(keep) > 0 && !keep[strings.ToUpper(s.ID)] {
			continue
		}
		out = append(out, climate.StationReport{StationID: s.ID, Name: s.Name, Values: s.Values})
	}
	return out
}

// reportDate is the day a daily product reports on. Morning products cover
// the previous day.
func reportDate(pt climate.PeriodType, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if pt == climate.PeriodMornRad || pt == climate.PeriodMornNWWS {
		return day.AddDate(0, 0, -1)
	}
	return day
}

// reportPeriod is the last complete month, meteorological season or year
// before now.
func reportPeriod(pt climate.PeriodType, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	switch pt {
	case climate.PeriodSeasonalRad, climate.PeriodSeasonalNWWS:
		// Seasons start in Mar, Jun, Sep and Dec.
		offset := int(now.Month()) % 3
		current := month.AddDate(0, -offset, 0)
		begin := current.AddDate(0, -3, 0)
		return begin, current.AddDate(0, 0, -1)
	case climate.PeriodAnnualRad, climate.PeriodAnnualNWWS:
		year := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return year.AddDate(-1, 0, 0), year.AddDate(0, 0, -1)
	default:
		return month.AddDate(0, -1, 0), month.AddDate(0, 0, -1)
	}
}

// Committer records reviewed report data under <Dir>/<short>/.
type Committer struct {
	Dir string
	Now func() time.Time
}

type committedReport struct {
	Type      string          `yaml:"type"`
	Kind      string          `yaml:"kind"`
	Date      string          `yaml:"date,omitempty"`
	Begin     string          `yaml:"begin,omitempty"`
	End       string          `yaml:"end,omitempty"`
	Overrides bool            `yaml:"override_approvals"`
	Stations  []sourceStation `yaml:"stations"`
}

// Commit implements session.DisplayFinalizer. A report without stations is
// rejected unless approvals are overridden.
func (c *Committer) Commit(ctx context.Context, pt climate.PeriodType, report climate.ReportData, overrideApprovals bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: no report data to commit", session.ErrInvalidParameter)
	}
	stations := report.StationReports()
	if len(stations) == 0 && !overrideApprovals {
		return fmt.Errorf("%w: the %s report has no station data", session.ErrInvalidParameter, pt)
	}

	out := committedReport{Type: pt.String(), Kind: string(report.Kind()), Overrides: overrideApprovals}
	switch r := report.(type) {
	case *climate.DailyReport:
		out.Date = r.Date.Format(time.DateOnly)
	case *climate.PeriodReport:
		out.Begin = r.Begin.Format(time.DateOnly)
		out.End = r.End.Format(time.DateOnly)
	}
	for _, s := range stations {
		out.Stations = append(out.Stations, sourceStation{ID: s.StationID, Name: s.Name, Values: s.Values})
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("stages: encode committed report: %w", err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	dir := filepath.Join(c.Dir, pt.Short())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("stages: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".commit-*")
	if err != nil {
		return fmt.Errorf("stages: commit %s: %w", pt, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("stages: commit %s: %w", pt, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stages: commit %s: %w", pt, err)
	}
	name := filepath.Join(dir, now().UTC().Format("20060102150405.000")+".yaml")
	if err := os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("stages: commit %s: %w", pt, err)
	}
	return nil
}

// TemplateFormatter renders the configured products of a type with
// text/template.
type TemplateFormatter struct {
	site  string
	defs  map[climate.PeriodType][]formatDef
	now   func() time.Time
	loc   *time.Location
	funcs template.FuncMap
}

type formatDef struct {
	config.ProductDef
	tmpl *template.Template
}

// FormatData is what product templates execute against.
type FormatData struct {
	Site     string
	Office   string
	Type     string
	Key      string
	Issued   time.Time
	Date     time.Time
	Begin    time.Time
	End      time.Time
	Stations []climate.StationReport
}

// NewTemplateFormatter parses every product template up front so a bad
// template fails at startup rather than during a run.
func NewTemplateFormatter(site string, defs []config.ProductDef, loc *time.Location, now func() time.Time) (*TemplateFormatter, error) {
	f := &TemplateFormatter{
		site: site,
		defs: make(map[climate.PeriodType][]formatDef),
		now:  now,
		loc:  loc,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.loc == nil {
		f.loc = time.UTC
	}
	f.funcs = template.FuncMap{
		"value": formatValue,
		"upper": strings.ToUpper,
		"pad": func(n int, s string) string {
			if len(s) >= n {
				return s
			}
			return s + strings.Repeat(" ", n-len(s))
		},
		"ddhhmm": func(t time.Time) string { return t.UTC().Format("021504") },
	}
	for _, d := range defs {
		pt, ok := climate.PeriodTypeFromShort(d.Type)
		if !ok {
			return nil, fmt.Errorf("stages: product %s: unknown type %q", d.Key, d.Type)
		}
		tmpl, err := template.New(d.Key).Funcs(f.funcs).Option("missingkey=error").Parse(d.Template)
		if err != nil {
			return nil, fmt.Errorf("stages: product %s: parse template: %w", d.Key, err)
		}
		f.defs[pt] = append(f.defs[pt], formatDef{ProductDef: d, tmpl: tmpl})
	}
	return f, nil
}

// Types lists the product types that have at least one product defined.
func (f *TemplateFormatter) Types() []climate.PeriodType {
	out := make([]climate.PeriodType, 0, len(f.defs))
	for pt := range f.defs {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Format implements session.Formatter. A type with no products defined
// yields an empty map.
func (f *TemplateFormatter) Format(ctx context.Context, pt climate.PeriodType, report climate.ReportData, global climate.GlobalConfig) (map[string]*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := f.now().In(f.loc)
	data := FormatData{
		Site:     f.site,
		Office:   global.OfficeName,
		Type:     pt.String(),
		Issued:   now,
		Stations: report.StationReports(),
	}
	switch r := report.(type) {
	case *climate.DailyReport:
		data.Date = r.Date
	case *climate.PeriodReport:
		data.Begin, data.End = r.Begin, r.End
	}

	out := make(map[string]*product.Product)
	for _, d := range f.defs[pt] {
		data.Key = d.Key
		var buf bytes.Buffer
		if err := d.tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("stages: format %s: %w", d.Key, err)
		}
		ptype := pt.On(climate.Source(d.Channel))
		p := product.New(d.Key, ptype, buf.String(), now.UTC().Add(time.Duration(d.ExpireHours)*time.Hour))
		p.FileName = d.FileName
		out[d.Key] = p
	}
	return out, nil
}

// formatValue renders a station parameter, MM when missing.
func formatValue(s climate.StationReport, param string) string {
	v := s.Value(param)
	if v == climate.Missing {
		return "MM"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
