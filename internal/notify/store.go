package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/models"
	"gorm.io/gorm"
)

// DBPublisher persists events as cpg_notification rows so the dashboard
// and later queries can replay them.
type DBPublisher struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewDBPublisher returns a publisher writing to db.
func NewDBPublisher(db *gorm.DB, logger zerolog.Logger) *DBPublisher {
	return &DBPublisher{db: db, logger: logger}
}

// Publish implements Publisher. Countdown ticks are not stored.
func (p *DBPublisher) Publish(ctx context.Context, e Event) {
	if e.Kind == KindNotify && e.Action == ActionCountdown {
		return
	}
	row, err := toRow(e)
	if err == nil {
		err = p.db.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		p.logger.Error().Err(err).Str("session_id", e.SessionID).Str("action", e.Action).
			Msg("notify: persist event failed")
	}
}

func toRow(e Event) (models.Notification, error) {
	fields := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		fields[f.Key] = f.Value
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return models.Notification{}, fmt.Errorf("notify: marshal fields: %w", err)
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return models.Notification{
		SessionID: e.SessionID,
		Kind:      string(e.Kind),
		Priority:  string(e.Priority),
		Action:    e.Action,
		Message:   e.Render(),
		Fields:    raw,
		CreatedAt: at,
	}, nil
}

// Since returns up to limit notification rows with an ID greater than
// afterID, oldest first. An empty sessionID matches every session.
func Since(ctx context.Context, db *gorm.DB, sessionID string, afterID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	q := db.WithContext(ctx).Where("id > ?", afterID)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var rows []models.Notification
	if err := q.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notify: list since %d: %w", afterID, err)
	}
	return rows, nil
}

// PurgeBefore deletes notification rows created at or before cutoff.
func PurgeBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("created_at <= ?", cutoff).Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notify: purge before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}
