// Package climate defines the enumerations and report payloads shared by the
// product generation pipeline.
package climate

import "fmt"

// RunType selects how a session was started.
type RunType int

const (
	RunTypeUnknown RunType = 0
	RunTypeManual  RunType = 1
	RunTypeAuto    RunType = 2
)

// String returns the upper-case name of the run type.
func (r RunType) String() string {
	switch r {
	case RunTypeManual:
		return "MANUAL"
	case RunTypeAuto:
		return "AUTO"
	default:
		return "UNKNOWN"
	}
}

// RunTypeFromValue converts a stored or user supplied code. ok is false for
// codes outside the enumeration, in which case RunTypeUnknown is returned.
func RunTypeFromValue(v int) (RunType, bool) {
	switch RunType(v) {
	case RunTypeManual, RunTypeAuto:
		return RunType(v), true
	}
	return RunTypeUnknown, false
}

// Source is a dissemination channel.
type Source string

const (
	SourceNWWS Source = "NWWS"
	SourceNWR  Source = "NWR"
)

// Channels lists the dissemination channels in send order.
var Channels = []Source{SourceNWWS, SourceNWR}

// PeriodType is the product type code of a run.
type PeriodType int

const (
	PeriodOther        PeriodType = 0
	PeriodMornRad      PeriodType = 1
	PeriodEvenRad      PeriodType = 2
	PeriodMornNWWS     PeriodType = 3
	PeriodEvenNWWS     PeriodType = 4
	PeriodMonthlyRad   PeriodType = 5
	PeriodMonthlyNWWS  PeriodType = 6
	PeriodSeasonalRad  PeriodType = 7
	PeriodSeasonalNWWS PeriodType = 8
	PeriodAnnualRad    PeriodType = 9
	PeriodInterRad     PeriodType = 10
	PeriodInterNWWS    PeriodType = 11
	PeriodAnnualNWWS   PeriodType = 12
)

type periodInfo struct {
	name   string
	short  string
	source Source
}

var periods = map[PeriodType]periodInfo{
	PeriodOther:        {"OTHER", "", ""},
	PeriodMornRad:      {"MORN_RAD", "am", SourceNWR},
	PeriodEvenRad:      {"EVEN_RAD", "pm", SourceNWR},
	PeriodMornNWWS:     {"MORN_NWWS", "am", SourceNWWS},
	PeriodEvenNWWS:     {"EVEN_NWWS", "pm", SourceNWWS},
	PeriodMonthlyRad:   {"MONTHLY_RAD", "mon", SourceNWR},
	PeriodMonthlyNWWS:  {"MONTHLY_NWWS", "mon", SourceNWWS},
	PeriodSeasonalRad:  {"SEASONAL_RAD", "sea", SourceNWR},
	PeriodSeasonalNWWS: {"SEASONAL_NWWS", "sea", SourceNWWS},
	PeriodAnnualRad:    {"ANNUAL_RAD", "ann", SourceNWR},
	PeriodInterRad:     {"INTER_RAD", "im", SourceNWR},
	PeriodInterNWWS:    {"INTER_NWWS", "im", SourceNWWS},
	PeriodAnnualNWWS:   {"ANNUAL_NWWS", "ann", SourceNWWS},
}

// SessionPeriodTypes are the codes a session may be created with, one per
// run period.
var SessionPeriodTypes = []PeriodType{
	PeriodMornRad, PeriodEvenRad, PeriodMonthlyRad,
	PeriodSeasonalRad, PeriodAnnualRad, PeriodInterRad,
}

// PeriodTypeFromValue validates a session product type code. Invalid codes
// map to PeriodOther with ok false.
func PeriodTypeFromValue(v int) (PeriodType, bool) {
	for _, p := range SessionPeriodTypes {
		if int(p) == v {
			return p, true
		}
	}
	return PeriodOther, false
}

// PeriodTypeFromShort finds the session product type for a short name such
// as "am" or "mon".
func PeriodTypeFromShort(short string) (PeriodType, bool) {
	for _, p := range SessionPeriodTypes {
		if periods[p].short == short {
			return p, true
		}
	}
	return PeriodOther, false
}

// String returns the enumeration name, e.g. MONTHLY_RAD.
func (p PeriodType) String() string {
	if info, ok := periods[p]; ok {
		return info.name
	}
	return fmt.Sprintf("PeriodType(%d)", int(p))
}

// Short returns the short period name used in file names and config keys.
func (p PeriodType) Short() string { return periods[p].short }

// Source returns the channel products of this type are sent on.
func (p PeriodType) Source() Source { return periods[p].source }

// IsDaily reports whether this is a morning, intermediate or evening type.
func (p PeriodType) IsDaily() bool {
	switch p {
	case PeriodMornRad, PeriodMornNWWS, PeriodInterRad, PeriodInterNWWS,
		PeriodEvenRad, PeriodEvenNWWS:
		return true
	}
	return false
}

// IsPeriod reports whether this is a monthly, seasonal or annual type.
func (p PeriodType) IsPeriod() bool {
	switch p {
	case PeriodMonthlyRad, PeriodMonthlyNWWS, PeriodSeasonalRad,
		PeriodSeasonalNWWS, PeriodAnnualRad, PeriodAnnualNWWS:
		return true
	}
	return false
}

// On returns the product type with the same period sent on src, e.g.
// MONTHLY_RAD on NWWS is MONTHLY_NWWS. PeriodOther is returned when no such
// type exists.
func (p PeriodType) On(src Source) PeriodType {
	short := periods[p].short
	if short == "" {
		return PeriodOther
	}
	for q, info := range periods {
		if info.short == short && info.source == src {
			return q
		}
	}
	return PeriodOther
}
