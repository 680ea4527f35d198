package transmit

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/cpg/internal/models"
	"gorm.io/gorm"
)

// SentRecord describes one disseminated product.
type SentRecord struct {
	SessionID string
	ProdID    string
	Channel   string
	FileName  string
	Text      string
	User      string
	// PeriodType is the numeric product type code.
	PeriodType int
}

// Recorder persists sent product records.
type Recorder interface {
	Record(ctx context.Context, r SentRecord) error
}

// DBRecorder writes sent_prod_record rows.
type DBRecorder struct {
	DB  *gorm.DB
	Now func() time.Time
}

// Record implements Recorder.
func (d *DBRecorder) Record(ctx context.Context, r SentRecord) error {
	if r.ProdID == "" {
		return fmt.Errorf("transmit: record: product id is required")
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	row := models.SentProductRecord{
		ProdID:     r.ProdID,
		SessionID:  r.SessionID,
		PeriodType: r.PeriodType,
		ProdType:   r.Channel,
		FileName:   r.FileName,
		ProdText:   r.Text,
		SendTime:   now().UTC(),
		UserID:     r.User,
	}
	if err := d.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("transmit: record %s: %w", r.ProdID, err)
	}
	return nil
}

// Sent returns the records for a session, oldest first.
func Sent(ctx context.Context, db *gorm.DB, sessionID string) ([]models.SentProductRecord, error) {
	var rows []models.SentProductRecord
	if err := db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("send_time ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("transmit: sent %s: %w", sessionID, err)
	}
	return rows, nil
}
