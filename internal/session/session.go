// Package session runs the climate product generation workflow: the
// session state machine, its persistence, and the unattended auto-run
// driver with its human-override wait windows.
//
// A Session is driven by one goroutine at a time. Other goroutines and
// processes coordinate only through the persisted state and status; getters
// are safe to call concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/models"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/product"
)

// Notification actions.
const (
	ActionNew           = "NEW"
	ActionDisplay       = "DISPLAY"
	ActionReview        = "REVIEW"
	ActionCancel        = "CANCEL"
	ActionChangeState   = "Change State"
	ActionUpdateStatus  = "Update Status"
	ActionNewReportData = "New Report Data"
	ActionNewProducts   = "New Products"
	ActionCountdown     = notify.ActionCountdown
	ActionError         = "ERROR"
)

// Session is one product generation run.
//
// Several processes may hold a Session for the same record: the auto-run,
// the dashboard and the CLI. Each mutation writes only the columns it
// changed and the last write wins. Nothing arbitrates two operators acting
// at once.
type Session struct {
	mu                sync.Mutex
	id                string
	runType           climate.RunType
	prodType          climate.PeriodType
	state             climate.SessionState
	status            climate.Status
	global            climate.GlobalConfig
	setting           climate.ProductSetting
	report            climate.ReportData
	prodData          *product.ProdData
	startedAt         time.Time
	lastUpdated       time.Time
	pendingExpiration time.Time

	store        Store
	stages       Stages
	pub          notify.Publisher
	logger       zerolog.Logger
	clock        func() time.Time
	pollInterval time.Duration
}

// ID returns the immutable session ID.
func (s *Session) ID() string { return s.id }

// RunType returns the run type.
func (s *Session) RunType() climate.RunType { return s.runType }

// ProdType returns the product type.
func (s *Session) ProdType() climate.PeriodType { return s.prodType }

// GlobalConfig returns the settings snapshot the session runs with.
func (s *Session) GlobalConfig() climate.GlobalConfig { return s.global }

// Setting returns the create stage inputs.
func (s *Session) Setting() climate.ProductSetting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setting
}

// CurrentState returns the last known state.
func (s *Session) CurrentState() climate.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentStatus returns the last known status.
func (s *Session) CurrentStatus() climate.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ReportData returns the created report, nil before CREATED.
func (s *Session) ReportData() climate.ReportData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// ProdData returns the formatted products, nil before FORMATTED.
func (s *Session) ProdData() *product.ProdData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prodData
}

// StartedAt returns the creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// LastUpdated returns the time of the last state or status change.
func (s *Session) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// PendingExpiration returns the soft deadline derived from unsent products.
func (s *Session) PendingExpiration() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingExpiration
}

// IsTerminated reports whether the session can no longer progress.
func (s *Session) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return climate.IsTerminated(s.state, s.status.Code)
}

// Refresh re-reads state and status from the store, which is authoritative
// over the in-memory copy. Read failures are logged and the cached values
// kept.
func (s *Session) Refresh(ctx context.Context) {
	row, err := s.store.Get(ctx, s.id)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session: refresh from store failed")
		return
	}
	s.mu.Lock()
	s.state = climate.StateFromValue(row.State)
	s.status = climate.Status{Code: climate.StatusFromValue(row.Status), Description: row.StatusDesc}
	s.lastUpdated = row.LastUpdated
	s.mu.Unlock()
}

func (s *Session) now() time.Time { return s.clock().UTC() }

// persist writes columns for this session. A failed write is logged and the
// in-memory change stands; the durable record may lag until the next write.
func (s *Session) persist(ctx context.Context, what string, fields map[string]interface{}) {
	if err := s.store.Update(ctx, s.id, fields); err != nil {
		s.logger.Error().Err(err).Str("field", what).Msg("session: persist failed")
	}
}

// setState moves to a new state with a SUCCESS status describing progress.
func (s *Session) setState(ctx context.Context, st climate.SessionState) {
	now := s.now()
	s.mu.Lock()
	s.state = st
	s.status = climate.Status{Code: climate.StatusSuccess, Description: st.Describe()}
	s.lastUpdated = now
	status := s.status
	s.mu.Unlock()

	s.persist(ctx, "state", map[string]interface{}{
		"state":        int(st),
		"status":       int(status.Code),
		"status_desc":  status.Description,
		"last_updated": now,
	})
	s.logger.Info().Str("state", st.String()).Msg("session: state changed")
	s.notify(ctx, ActionChangeState)
}

// updateStatus changes the status of the current state.
func (s *Session) updateStatus(ctx context.Context, code climate.StatusCode, desc string) {
	now := s.now()
	s.mu.Lock()
	s.status = climate.Status{Code: code, Description: desc}
	s.lastUpdated = now
	s.mu.Unlock()

	s.persist(ctx, "status", map[string]interface{}{
		"status":       int(code),
		"status_desc":  desc,
		"last_updated": now,
	})
	s.notify(ctx, ActionUpdateStatus)
}

// terminate moves to CANCELLED or FAILED in one write.
func (s *Session) terminate(ctx context.Context, st climate.SessionState, code climate.StatusCode, desc string) {
	now := s.now()
	s.mu.Lock()
	s.state = st
	s.status = climate.Status{Code: code, Description: desc}
	s.lastUpdated = now
	s.mu.Unlock()

	s.persist(ctx, "state", map[string]interface{}{
		"state":        int(st),
		"status":       int(code),
		"status_desc":  desc,
		"last_updated": now,
	})
}

// fail marks the session FAILED with the error text as the reason and
// alerts operators.
func (s *Session) fail(ctx context.Context, err error) {
	desc := err.Error()
	var se *Error
	if errors.As(err, &se) {
		desc = se.Err.Error()
	}
	s.terminate(ctx, climate.StateFailed, climate.StatusFailed, desc)
	s.logger.Error().Err(err).Msg("session: failed")
	s.alert(ctx, notify.Problem, fmt.Sprintf("CPG session %s failed: %s", s.id, desc))
	s.notify(ctx, ActionUpdateStatus)
}

// stageError wraps a stage failure, records it on the session and returns
// it for callers that report synchronously.
func (s *Session) stageError(ctx context.Context, op string, err error) error {
	wrapped := &Error{SessionID: s.id, Op: op, Err: err}
	s.fail(ctx, wrapped)
	return wrapped
}

// envelope returns the fields every status notification starts with.
func (s *Session) envelope() []notify.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []notify.Field{
		{Key: "ID", Value: s.id},
		{Key: "STATE", Value: s.state.String()},
		{Key: "STATUS_CODE", Value: s.status.Code.String()},
		{Key: "STATUS_DESC", Value: s.status.Description},
		{Key: "LAST_UPDATED", Value: s.lastUpdated.Format(time.RFC3339)},
	}
}

// notify publishes a status notification with ACTION and extra fields.
func (s *Session) notify(ctx context.Context, action string, extra ...notify.Field) {
	fields := append(s.envelope(), notify.Field{Key: "ACTION", Value: action})
	fields = append(fields, extra...)
	s.pub.Publish(ctx, notify.Event{
		SessionID: s.id,
		Kind:      notify.KindNotify,
		Action:    action,
		Fields:    fields,
		At:        s.now(),
	})
}

func notifyUser(who string) notify.Field { return notify.Field{Key: "USER", Value: who} }

func field(k, v string) notify.Field { return notify.Field{Key: k, Value: v} }

// alert publishes an operator alert.
func (s *Session) alert(ctx context.Context, p notify.Priority, msg string) {
	s.pub.Publish(ctx, notify.Event{
		SessionID: s.id,
		Kind:      notify.KindAlert,
		Priority:  p,
		Message:   msg,
		At:        s.now(),
	})
}

// row renders the full persisted record.
func (s *Session) row() (*models.CPGSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	global, err := encodeJSON(s.global)
	if err != nil {
		return nil, err
	}
	setting, err := encodeJSON(s.setting)
	if err != nil {
		return nil, err
	}
	report, err := EncodeReport(s.report)
	if err != nil {
		return nil, err
	}
	pd, err := EncodeProdData(s.prodData)
	if err != nil {
		return nil, err
	}
	row := &models.CPGSession{
		ID:           s.id,
		RunType:      int(s.runType),
		ProdType:     int(s.prodType),
		State:        int(s.state),
		Status:       int(s.status.Code),
		StatusDesc:   s.status.Description,
		GlobalConfig: global,
		ProdSetting:  setting,
		ReportData:   report,
		ProdData:     pd,
		StartAt:      s.startedAt,
		LastUpdated:  s.lastUpdated,
	}
	if !s.pendingExpiration.IsZero() {
		pe := s.pendingExpiration
		row.PendingExpire = &pe
	}
	return row, nil
}

// saveReport persists the report blob.
func (s *Session) saveReport(ctx context.Context) {
	b, err := EncodeReport(s.ReportData())
	if err != nil {
		s.logger.Error().Err(err).Msg("session: encode report failed")
		return
	}
	s.persist(ctx, "report_data", map[string]interface{}{"report_data": b})
}

// saveProdData persists the product blob and pending expiration. It returns
// the write error so senders can surface it on the product set.
func (s *Session) saveProdData(ctx context.Context) error {
	s.mu.Lock()
	pd := s.prodData
	s.pendingExpiration = pd.MaxExpiration(s.now())
	pe := s.pendingExpiration
	s.mu.Unlock()

	b, err := EncodeProdData(pd)
	if err == nil {
		err = s.store.Update(ctx, s.id, map[string]interface{}{
			"prod_data":      b,
			"pending_expire": pe,
		})
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("session: persist product data failed")
	}
	return err
}
