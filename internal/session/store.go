package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/models"
	"gorm.io/gorm"
)

// Store persists session records. It must give read-after-write
// consistency for a single record.
type Store interface {
	Create(ctx context.Context, row *models.CPGSession) error
	Get(ctx context.Context, id string) (*models.CPGSession, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	List(ctx context.Context, f ListFilter) ([]models.CPGSession, error)
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	ProdType   climate.PeriodType
	ActiveOnly bool
	Limit      int
}

// GormStore is the GORM backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store over db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Create inserts a new session record.
func (s *GormStore) Create(ctx context.Context, row *models.CPGSession) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("session: create %s: %w", row.ID, err)
	}
	return nil
}

// Get loads a session record by ID.
func (s *GormStore) Get(ctx context.Context, id string) (*models.CPGSession, error) {
	var row models.CPGSession
	err := s.db.WithContext(ctx).Where("cpg_session_id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	return &row, nil
}

// Update writes the given columns of one record.
func (s *GormStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.CPGSession{}).
		Where("cpg_session_id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("session: update %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns session records, most recently updated first.
func (s *GormStore) List(ctx context.Context, f ListFilter) ([]models.CPGSession, error) {
	q := s.db.WithContext(ctx).
		Select("cpg_session_id", "run_type", "prod_type", "state", "status", "status_desc",
			"start_at", "last_updated", "pending_expire")
	if f.ProdType != climate.PeriodOther {
		q = q.Where("prod_type = ?", int(f.ProdType))
	}
	if f.ActiveOnly {
		q = q.Where("state NOT IN ? AND status NOT IN ?",
			[]int{int(climate.StateSent), int(climate.StateCancelled), int(climate.StateFailed)},
			[]int{int(climate.StatusCancelled), int(climate.StatusFailed)})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []models.CPGSession
	if err := q.Order("last_updated DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return rows, nil
}
