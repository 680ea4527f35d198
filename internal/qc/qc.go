// Package qc runs operator defined data quality checks on created climate
// reports before they are displayed or formatted.
package qc

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
)

// Result is the outcome of a check. Details lists every finding, including
// notes that did not fail the check.
type Result struct {
	Passed  bool     `json:"passed"`
	Details []string `json:"details,omitempty"`
}

// Detail joins the findings into one line.
func (r Result) Detail() string { return strings.Join(r.Details, " ") }

// Op is a check operator.
type Op string

const (
	OpMissing     Op = "M"
	OpGreaterThan Op = "GT"
	OpLessThan    Op = "LT"
)

// Rule checks one parameter. Param has its daily. or period. prefix removed.
type Rule struct {
	Param string
	Op    Op
	Value float64
}

// Checker applies rules per product type.
type Checker struct {
	daily  map[climate.PeriodType][]Rule
	period map[climate.PeriodType][]Rule
	logger zerolog.Logger
}

// New builds a Checker from rules keyed by product short name (am, mon, ...)
// then by parameter key (daily.<param> or period.<param>), each value a comma
// separated list such as "M,GT:130". Daily keys only apply to daily types
// and period keys to period types.
func New(rules map[string]map[string]string, logger zerolog.Logger) (*Checker, error) {
	c := &Checker{
		daily:  make(map[climate.PeriodType][]Rule),
		period: make(map[climate.PeriodType][]Rule),
		logger: logger,
	}
	for short, params := range rules {
		pt, ok := climate.PeriodTypeFromShort(short)
		if !ok {
			return nil, fmt.Errorf("qc: unknown product type %q", short)
		}
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			parsed, err := ParseRules(key, params[key])
			if err != nil {
				return nil, err
			}
			switch {
			case strings.HasPrefix(key, "daily.") && pt.IsDaily():
				c.daily[pt] = append(c.daily[pt], parsed...)
			case strings.HasPrefix(key, "period.") && pt.IsPeriod():
				c.period[pt] = append(c.period[pt], parsed...)
			default:
				logger.Debug().Str("key", key).Str("prod_type", pt.String()).
					Msg("qc: rule does not apply to product type")
			}
		}
	}
	return c, nil
}

// ParseRules parses one key and its comma separated checks.
func ParseRules(key, spec string) ([]Rule, error) {
	_, param, ok := strings.Cut(key, ".")
	if !ok || param == "" {
		return nil, fmt.Errorf("qc: parameter key %q must be daily.<param> or period.<param>", key)
	}
	var out []Rule
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		opText, valText, hasValue := strings.Cut(part, ":")
		r := Rule{Param: param, Op: Op(strings.ToUpper(opText))}
		switch r.Op {
		case OpMissing:
		case OpGreaterThan, OpLessThan:
			if !hasValue {
				return nil, fmt.Errorf("qc: %s: %s needs a value", key, r.Op)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(valText), 64)
			if err != nil {
				return nil, fmt.Errorf("qc: %s: bad value %q: %w", key, valText, err)
			}
			r.Value = v
		default:
			return nil, fmt.Errorf("qc: %s: unknown operator %q", key, opText)
		}
		out = append(out, r)
	}
	return out, nil
}

// Rules returns the rules that apply to a product type.
func (c *Checker) Rules(pt climate.PeriodType) []Rule {
	if pt.IsDaily() {
		return c.daily[pt]
	}
	return c.period[pt]
}

// Check runs the product type's rules against every station in the report.
// A type with no rules always passes.
func (c *Checker) Check(_ context.Context, pt climate.PeriodType, report climate.ReportData) (Result, error) {
	res := Result{Passed: true}
	rules := c.Rules(pt)
	if len(rules) == 0 {
		c.logger.Info().Str("prod_type", pt.String()).Msg("qc: no parameters defined, no check performed")
		return res, nil
	}
	if report == nil {
		return Result{}, fmt.Errorf("qc: no report data to check")
	}
	for _, st := range report.StationReports() {
		name := st.Name
		if name == "" {
			name = st.StationID
		}
		for _, r := range rules {
			v := st.Value(r.Param)
			missing := v == climate.Missing
			switch r.Op {
			case OpMissing:
				if missing {
					res.fail(fmt.Sprintf("Parameter [%s] for station [%s] is missing.", r.Param, name))
				}
			case OpGreaterThan:
				if missing {
					res.note(fmt.Sprintf("Parameter [%s] for station [%s] will not be checked for [>%g] as the parameter is missing.", r.Param, name, r.Value))
				} else if v > r.Value {
					res.fail(fmt.Sprintf("Parameter [%s] for station [%s] value %g is greater than %g.", r.Param, name, v, r.Value))
				}
			case OpLessThan:
				if missing {
					res.note(fmt.Sprintf("Parameter [%s] for station [%s] will not be checked for [<%g] as the parameter is missing.", r.Param, name, r.Value))
				} else if v < r.Value {
					res.fail(fmt.Sprintf("Parameter [%s] for station [%s] value %g is less than %g.", r.Param, name, v, r.Value))
				}
			}
		}
	}
	return res, nil
}

func (r *Result) fail(msg string) {
	r.Passed = false
	r.Details = append(r.Details, msg)
}

func (r *Result) note(msg string) {
	r.Details = append(r.Details, msg)
}
