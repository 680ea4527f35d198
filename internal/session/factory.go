package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/notify"
)

// DefaultPollInterval is the wait window tick.
const DefaultPollInterval = time.Second

// Factory creates new sessions and rehydrates stored ones. It carries the
// explicit global configuration every session is constructed with.
type Factory struct {
	store        Store
	stages       Stages
	pub          notify.Publisher
	global       climate.GlobalConfig
	logger       zerolog.Logger
	clock        func() time.Time
	pollInterval time.Duration
}

// FactoryOpts holds the collaborators a Factory wires into sessions.
type FactoryOpts struct {
	Store     Store
	Stages    Stages
	Publisher notify.Publisher
	Global    climate.GlobalConfig
	Logger    zerolog.Logger
	// Optional: defaults to time.Now and DefaultPollInterval.
	Clock        func() time.Time
	PollInterval time.Duration
}

// NewFactory returns a Factory.
func NewFactory(opts FactoryOpts) *Factory {
	f := &Factory{
		store:        opts.Store,
		stages:       opts.Stages,
		pub:          opts.Publisher,
		global:       opts.Global,
		logger:       opts.Logger,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
	}
	if f.pub == nil {
		f.pub = notify.LogPublisher{Logger: opts.Logger}
	}
	if f.clock == nil {
		f.clock = time.Now
	}
	if f.pollInterval <= 0 {
		f.pollInterval = DefaultPollInterval
	}
	return f
}

// Global returns the configuration new sessions are created with.
func (f *Factory) Global() climate.GlobalConfig { return f.global }

// NewID formats a session ID from its run type, product type and start time.
func NewID(rt climate.RunType, pt climate.PeriodType, at time.Time) string {
	return fmt.Sprintf("%d-%s-%s", int(rt), strings.ToUpper(pt.String()), at.UTC().Format("20060102150405.000"))
}

func (f *Factory) newSession(id string) *Session {
	return &Session{
		id:           id,
		store:        f.store,
		stages:       f.stages,
		pub:          f.pub,
		logger:       f.logger.With().Str("session_id", id).Logger(),
		clock:        f.clock,
		pollInterval: f.pollInterval,
	}
}

// New starts a session. Invalid run or product type codes do not return an
// error: the session is recorded and immediately failed so every request
// leaves an inspectable record.
func (f *Factory) New(ctx context.Context, runType, prodType int) *Session {
	rt, rtOK := climate.RunTypeFromValue(runType)
	pt, ptOK := climate.PeriodTypeFromValue(prodType)
	now := f.clock().UTC()

	s := f.newSession(NewID(rt, pt, now))
	s.runType = rt
	s.prodType = pt
	s.global = f.global
	s.state = climate.StateStarted
	s.status = climate.Status{Code: climate.StatusWorking, Description: climate.StateStarted.Describe()}
	s.startedAt = now
	s.lastUpdated = now

	row, err := s.row()
	if err == nil {
		err = f.store.Create(ctx, row)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("session: persist new session failed")
	}
	s.logger.Info().Str("run_type", rt.String()).Str("prod_type", pt.String()).Msg("session: started")
	s.pub.Publish(ctx, notify.Event{
		SessionID: s.id,
		Kind:      notify.KindAlert,
		Priority:  notify.Info,
		Message:   "A new CPG Session is started",
		At:        now,
	})
	s.notify(ctx, ActionNew)

	var problems []string
	if !rtOK {
		problems = append(problems, fmt.Sprintf("Invalid RunType %d, it must either be 1 or 2", runType))
	}
	if !ptOK {
		problems = append(problems, fmt.Sprintf("Invalid PeriodType number %d, it must be 1, 2, 5, 7, 9 or 10", prodType))
	}
	if len(problems) > 0 {
		s.fail(ctx, fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(problems, "; ")))
	}
	return s
}

// BySessionID rehydrates a stored session. A missing record returns
// ErrNotFound; a record whose payloads cannot be decoded is returned as a
// FAILED session rather than an error.
func (f *Factory) BySessionID(ctx context.Context, id string) (*Session, error) {
	row, err := f.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s := f.newSession(row.ID)
	rt, _ := climate.RunTypeFromValue(row.RunType)
	s.runType = rt
	s.prodType = climate.PeriodType(row.ProdType)
	s.state = climate.StateFromValue(row.State)
	s.status = climate.Status{Code: climate.StatusFromValue(row.Status), Description: row.StatusDesc}
	s.startedAt = row.StartAt
	s.lastUpdated = row.LastUpdated
	if row.PendingExpire != nil {
		s.pendingExpiration = *row.PendingExpire
	}

	var errs []error
	s.global = f.global
	if len(row.GlobalConfig) > 0 {
		var g climate.GlobalConfig
		if err := decodeJSON(row.GlobalConfig, &g); err != nil {
			errs = append(errs, err)
		} else {
			s.global = g
		}
	}
	if err := decodeJSON(row.ProdSetting, &s.setting); err != nil {
		errs = append(errs, err)
	}
	if s.report, err = DecodeReport(row.ReportData); err != nil {
		errs = append(errs, err)
	}
	if s.prodData, err = DecodeProdData(row.ProdData); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 && !s.IsTerminated() {
		s.fail(ctx, fmt.Errorf("failed to restore session data: %w", errors.Join(errs...)))
	}
	return s, nil
}
