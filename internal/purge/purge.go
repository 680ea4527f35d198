// Package purge deletes terminated sessions and old sent product records.
package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/models"
	"github.com/zulandar/cpg/internal/notify"
	"gorm.io/gorm"
)

// Purger runs the housekeeping sweeps. Failures are logged, never returned
// to the scheduler.
type Purger struct {
	DB                  *gorm.DB
	SessionRetention    time.Duration
	SentRecordRetention time.Duration
	// NotificationRetention defaults to SessionRetention.
	NotificationRetention time.Duration
	Publisher             notify.Publisher
	Logger                zerolog.Logger
	Now                   func() time.Time
}

// Result counts the rows a sweep removed.
type Result struct {
	Sessions      int64
	SentRecords   int64
	Notifications int64
}

func (p *Purger) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Run performs every sweep once.
func (p *Purger) Run(ctx context.Context) Result {
	var r Result
	r.Sessions = p.Sessions(ctx)
	r.SentRecords = p.SentRecords(ctx)
	r.Notifications = p.Notifications(ctx)
	return r
}

// Sessions deletes sessions last updated at or before now - SessionRetention
// that are SENT or whose status is anything but SUCCESS. A stale WORKING or
// UNKNOWN status means the driving process died mid-stage.
func (p *Purger) Sessions(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.SessionRetention)
	res := p.DB.WithContext(ctx).
		Where("last_updated <= ?", cutoff).
		Where("(state = ? OR status <> ?)", int(climate.StateSent), int(climate.StatusSuccess)).
		Delete(&models.CPGSession{})
	if res.Error != nil {
		p.Logger.Error().Err(res.Error).Time("cutoff", cutoff).Msg("purge: sessions failed")
		return 0
	}
	if res.RowsAffected > 0 {
		p.summary(ctx, fmt.Sprintf("Purged %d expired CPG sessions last updated before %s",
			res.RowsAffected, cutoff.Format(time.RFC3339)))
	}
	return res.RowsAffected
}

// SentRecords deletes sent product records sent at or before
// now - SentRecordRetention.
func (p *Purger) SentRecords(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.SentRecordRetention)
	res := p.DB.WithContext(ctx).Where("send_time <= ?", cutoff).Delete(&models.SentProductRecord{})
	if res.Error != nil {
		p.Logger.Error().Err(res.Error).Time("cutoff", cutoff).Msg("purge: sent records failed")
		return 0
	}
	if res.RowsAffected > 0 {
		p.summary(ctx, fmt.Sprintf("Purged %d sent climate product records sent before %s",
			res.RowsAffected, cutoff.Format(time.RFC3339)))
	}
	return res.RowsAffected
}

// Notifications deletes stored notification rows past retention.
func (p *Purger) Notifications(ctx context.Context) int64 {
	retention := p.NotificationRetention
	if retention <= 0 {
		retention = p.SessionRetention
	}
	n, err := notify.PurgeBefore(ctx, p.DB, p.now().Add(-retention))
	if err != nil {
		p.Logger.Error().Err(err).Msg("purge: notifications failed")
		return 0
	}
	return n
}

func (p *Purger) summary(ctx context.Context, msg string) {
	p.Logger.Info().Msg("purge: " + msg)
	if p.Publisher == nil {
		return
	}
	p.Publisher.Publish(ctx, notify.Event{
		Kind:     notify.KindAlert,
		Priority: notify.Info,
		Message:  msg,
		At:       p.now(),
	})
}
