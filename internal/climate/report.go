package climate

import (
	"errors"
	"fmt"
	"time"
)

// Missing marks a value that could not be computed for a station.
const Missing = 9999.0

// ReportKind tags which variant a ReportData holds.
type ReportKind string

const (
	KindDaily  ReportKind = "daily"
	KindPeriod ReportKind = "period"
)

// ReportData is the output of the create stage. It is either a
// *DailyReport or a *PeriodReport; no other implementations exist.
type ReportData interface {
	Kind() ReportKind
	StationReports() []StationReport
}

// StationReport holds the computed parameters for one station.
type StationReport struct {
	StationID string             `json:"station_id" cbor:"1,keyasint"`
	Name      string             `json:"name" cbor:"2,keyasint"`
	Values    map[string]float64 `json:"values" cbor:"3,keyasint"`
}

// Value returns a parameter, reporting Missing for absent keys.
func (s StationReport) Value(param string) float64 {
	v, ok := s.Values[param]
	if !ok {
		return Missing
	}
	return v
}

// DailyReport covers a single day.
type DailyReport struct {
	Date     time.Time       `json:"date" cbor:"1,keyasint"`
	Stations []StationReport `json:"stations" cbor:"2,keyasint"`
}

// Kind implements ReportData.
func (*DailyReport) Kind() ReportKind { return KindDaily }

// StationReports implements ReportData.
func (d *DailyReport) StationReports() []StationReport { return d.Stations }

// PeriodReport covers a month, season or year.
type PeriodReport struct {
	Begin    time.Time       `json:"begin" cbor:"1,keyasint"`
	End      time.Time       `json:"end" cbor:"2,keyasint"`
	Stations []StationReport `json:"stations" cbor:"3,keyasint"`
}

// Kind implements ReportData.
func (*PeriodReport) Kind() ReportKind { return KindPeriod }

// StationReports implements ReportData.
func (p *PeriodReport) StationReports() []StationReport { return p.Stations }

// ErrUnknownReport is returned when an envelope carries no usable variant.
var ErrUnknownReport = errors.New("climate: unknown report kind")

// ReportEnvelope is the serializable form of ReportData.
type ReportEnvelope struct {
	Kind   ReportKind    `json:"kind" cbor:"1,keyasint"`
	Daily  *DailyReport  `json:"daily,omitempty" cbor:"2,keyasint,omitempty"`
	Period *PeriodReport `json:"period,omitempty" cbor:"3,keyasint,omitempty"`
}

// Wrap puts a report into its envelope.
func Wrap(r ReportData) (ReportEnvelope, error) {
	switch v := r.(type) {
	case *DailyReport:
		return ReportEnvelope{Kind: KindDaily, Daily: v}, nil
	case *PeriodReport:
		return ReportEnvelope{Kind: KindPeriod, Period: v}, nil
	case nil:
		return ReportEnvelope{}, fmt.Errorf("%w: nil", ErrUnknownReport)
	default:
		return ReportEnvelope{}, fmt.Errorf("%w: %T", ErrUnknownReport, r)
	}
}

// Report returns the variant held by the envelope.
func (e ReportEnvelope) Report() (ReportData, error) {
	switch e.Kind {
	case KindDaily:
		if e.Daily != nil {
			return e.Daily, nil
		}
	case KindPeriod:
		if e.Period != nil {
			return e.Period, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReport, e.Kind)
}

// ProductSetting carries the create stage inputs of a session.
type ProductSetting struct {
	Date      time.Time `json:"date,omitempty"`
	Begin     time.Time `json:"begin,omitempty"`
	End       time.Time `json:"end,omitempty"`
	NonRecent bool      `json:"non_recent"`
	Stations  []string  `json:"stations,omitempty"`
}
