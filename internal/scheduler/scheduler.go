// Package scheduler starts unattended product generation runs and the purge
// sweeps on their cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/config"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/purge"
	"github.com/zulandar/cpg/internal/session"
)

// Driver runs one unattended session for a product type.
type Driver struct {
	Factory   *session.Factory
	Publisher notify.Publisher
	Logger    zerolog.Logger
}

// Run starts an auto session unless auto generation is disabled for the
// product type, in which case an INFO alert is published and nil returned
// without creating a session. Stage failures end up on the session; only
// context errors are returned.
func (d *Driver) Run(ctx context.Context, prodType climate.PeriodType) (*session.Session, error) {
	if !d.Factory.Global().AutoEnabled(prodType) {
		msg := fmt.Sprintf("Auto generation of %s is disabled", prodType)
		d.Logger.Info().Str("prod_type", prodType.String()).Msg("scheduler: " + msg)
		if d.Publisher != nil {
			d.Publisher.Publish(ctx, notify.Event{
				Kind:     notify.KindAlert,
				Priority: notify.Info,
				Message:  msg,
				At:       time.Now().UTC(),
			})
		}
		return nil, nil
	}
	s := d.Factory.New(ctx, int(climate.RunTypeAuto), int(prodType))
	if s.IsTerminated() {
		return s, nil
	}
	return s, s.AutoRun(ctx)
}

// Entry describes one registered schedule.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	driver *Driver
	purger *purge.Purger
	logger zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[cron.EntryID]Entry
}

// New registers one entry per configured product schedule plus the purge
// sweep. A nil purger skips the sweep.
func New(cfg *config.Config, driver *Driver, purger *purge.Purger, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Climate.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: timezone %q: %w", cfg.Climate.Timezone, err)
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(config.CronParser), cron.WithLocation(loc)),
		driver:  driver,
		purger:  purger,
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[cron.EntryID]Entry),
	}

	keys := make([]string, 0, len(cfg.Schedule))
	for k := range cfg.Schedule {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, short := range keys {
		pt, ok := climate.PeriodTypeFromShort(short)
		if !ok {
			return nil, fmt.Errorf("scheduler: unknown product type %q", short)
		}
		spec := cfg.Schedule[short]
		if err := s.add(pt.String(), spec, func(ctx context.Context) { s.runAuto(ctx, pt) }); err != nil {
			return nil, err
		}
	}
	if purger != nil {
		if err := s.add("purge", cfg.Purge.Schedule, func(ctx context.Context) { purger.Run(ctx) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, job func(context.Context)) error {
	id, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: %s: invalid cron expression %q: %w", name, spec, err)
	}
	s.entries[id] = Entry{Name: name, Spec: spec}
	return nil
}

func (s *Scheduler) runAuto(ctx context.Context, pt climate.PeriodType) {
	log := s.logger.With().Str("prod_type", pt.String()).Logger()
	log.Info().Msg("scheduler: auto run starting")
	sess, err := s.driver.Run(ctx, pt)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("scheduler: auto run interrupted")
	case sess != nil:
		log.Info().Str("session_id", sess.ID()).Str("state", sess.CurrentState().String()).
			Msg("scheduler: auto run finished")
	}
}

// Entries lists the registered schedules with their next fire time.
func (s *Scheduler) Entries() []Entry {
	var out []Entry
	for _, e := range s.cron.Entries() {
		entry := s.entries[e.ID]
		entry.Next = e.Next
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run starts the cron runner and blocks until ctx is done, then waits for
// running jobs. Jobs see ctx and abort their wait windows when it ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("entries", len(s.entries)).Msg("scheduler: started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler: stopped")
	return nil
}
