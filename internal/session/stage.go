package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/product"
)

// DisplayData is what a display client needs to show created report data.
type DisplayData struct {
	SessionID    string               `json:"session_id"`
	GlobalConfig climate.GlobalConfig `json:"global_config"`
	ReportData   climate.ReportData   `json:"report_data"`
}

// ExecuteCreate runs the create stage. It must be called on a STARTED
// session. On failure the session is FAILED and the error returned.
func (s *Session) ExecuteCreate(ctx context.Context) error {
	if s.IsTerminated() {
		return fmt.Errorf("%w: %s", ErrTerminated, s.id)
	}
	if st := s.CurrentState(); st != climate.StateStarted {
		return fmt.Errorf("%w: create needs %s, session is %s", ErrWrongState, climate.StateStarted, st)
	}
	if s.stages.Creator == nil {
		return s.stageError(ctx, "create", fmt.Errorf("%w: creator", ErrNotConfigured))
	}
	s.updateStatus(ctx, climate.StatusWorking, "Creating the climate report data")

	report, err := s.stages.Creator.Create(ctx, s.prodType, s.Setting())
	if err != nil {
		return s.stageError(ctx, "create", fmt.Errorf("failed to create the climate report data: %w", err))
	}
	if report == nil {
		return s.stageError(ctx, "create", fmt.Errorf("%w: the climate report data was not created", ErrNoReportData))
	}

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
	s.saveReport(ctx)
	s.setState(ctx, climate.StateCreated)
	s.notify(ctx, ActionNewReportData)
	return nil
}

// ManualCreate records the create inputs and runs the create stage for an
// operator, returning any stage error.
func (s *Session) ManualCreate(ctx context.Context, setting climate.ProductSetting) error {
	s.mu.Lock()
	s.setting = setting
	s.mu.Unlock()
	b, err := encodeJSON(setting)
	if err != nil {
		return err
	}
	s.persist(ctx, "prod_setting", map[string]interface{}{"prod_setting": b})
	return s.ExecuteCreate(ctx)
}

// checkQuality runs the configured quality checker. It returns false and
// fails the session when the data does not pass.
func (s *Session) checkQuality(ctx context.Context) bool {
	if s.stages.QualityChecker == nil {
		return true
	}
	res, err := s.stages.QualityChecker.Check(ctx, s.prodType, s.ReportData())
	if err != nil {
		s.stageError(ctx, "quality check", fmt.Errorf("quality checker failed: %w", err))
		return false
	}
	if !res.Passed {
		s.stageError(ctx, "quality check", fmt.Errorf("%w: %s", ErrQualityCheck, res.Detail()))
		return false
	}
	return true
}

// StartDisplay hands the created report to a display client. A CREATED
// session moves to DISPLAY, which tells a waiting auto-run that a person has
// taken over.
func (s *Session) StartDisplay(ctx context.Context, who string) (DisplayData, error) {
	if s.IsTerminated() {
		return DisplayData{}, fmt.Errorf("%w: %s", ErrTerminated, s.id)
	}
	report := s.ReportData()
	if report == nil {
		return DisplayData{}, fmt.Errorf("%w: %s", ErrNoReportData, s.id)
	}
	if s.CurrentState() == climate.StateCreated {
		s.setState(ctx, climate.StateDisplay)
	}
	s.notify(ctx, ActionDisplay, notifyUser(who))
	return DisplayData{SessionID: s.id, GlobalConfig: s.global, ReportData: report}, nil
}

// FinalizeDisplay commits report data reviewed by an operator. A nil report
// commits the created data unchanged. The error is returned to the caller
// in addition to failing the session.
func (s *Session) FinalizeDisplay(ctx context.Context, report climate.ReportData, overrideApprovals bool) error {
	if report != nil {
		s.mu.Lock()
		s.report = report
		s.mu.Unlock()
		s.saveReport(ctx)
	}
	return s.executeDisplay(ctx, overrideApprovals)
}

// ExecuteHeadlessDisplay commits the created report without a person.
func (s *Session) ExecuteHeadlessDisplay(ctx context.Context) error {
	return s.executeDisplay(ctx, false)
}

func (s *Session) executeDisplay(ctx context.Context, overrideApprovals bool) error {
	if s.IsTerminated() {
		return fmt.Errorf("%w: %s", ErrTerminated, s.id)
	}
	st := s.CurrentState()
	if st != climate.StateCreated && st != climate.StateDisplay {
		return fmt.Errorf("%w: display needs %s or %s, session is %s", ErrWrongState, climate.StateCreated, climate.StateDisplay, st)
	}
	report := s.ReportData()
	if report == nil {
		return s.stageError(ctx, "display", fmt.Errorf("%w: nothing to commit", ErrNoReportData))
	}
	if s.stages.Finalizer == nil {
		return s.stageError(ctx, "display", fmt.Errorf("%w: display finalizer", ErrNotConfigured))
	}
	switch report.(type) {
	case *climate.DailyReport, *climate.PeriodReport:
	default:
		return s.stageError(ctx, "display", fmt.Errorf("%w: unsupported report %T", ErrInvalidParameter, report))
	}
	if err := s.stages.Finalizer.Commit(ctx, s.prodType, report, overrideApprovals); err != nil {
		return s.stageError(ctx, "display", fmt.Errorf("failed to finalize the climate report data: %w", err))
	}
	s.setState(ctx, climate.StateDisplayed)
	return nil
}

// ExecuteFormat runs the format stage on the created report. An empty
// formatter result is a failure, not an empty success.
func (s *Session) ExecuteFormat(ctx context.Context) error {
	if s.IsTerminated() {
		return fmt.Errorf("%w: %s", ErrTerminated, s.id)
	}
	if st := s.CurrentState(); st < climate.StateCreated || st > climate.StateDisplayed {
		return fmt.Errorf("%w: format needs report data not yet formatted, session is %s", ErrWrongState, st)
	}
	report := s.ReportData()
	if report == nil {
		return s.stageError(ctx, "format", fmt.Errorf("%w: nothing to format", ErrNoReportData))
	}
	if s.stages.Formatter == nil {
		return s.stageError(ctx, "format", fmt.Errorf("%w: formatter", ErrNotConfigured))
	}
	s.updateStatus(ctx, climate.StatusWorking, "Formatting the climate products")

	products, err := s.stages.Formatter.Format(ctx, s.prodType, report, s.global)
	if err != nil {
		return s.stageError(ctx, "format", fmt.Errorf("failed to format the climate products: %w", err))
	}
	if len(products) == 0 {
		return s.stageError(ctx, "format", fmt.Errorf("%w: the climate product data was not generated, no products were defined for %s",
			ErrEmptyProdData, s.prodType))
	}
	pd, err := product.NewProdData(products)
	if err != nil {
		return s.stageError(ctx, "format", err)
	}

	s.mu.Lock()
	s.prodData = pd
	s.mu.Unlock()
	_ = s.saveProdData(ctx)
	s.setState(ctx, climate.StateFormatted)
	s.notify(ctx, ActionNewProducts)
	return nil
}

// ManualFormat formats on behalf of an operator. The session must be
// DISPLAYED; otherwise an ERROR notification is published and
// ErrWrongState returned.
func (s *Session) ManualFormat(ctx context.Context, who string) (*product.ProdData, error) {
	if st := s.CurrentState(); st != climate.StateDisplayed {
		s.notify(ctx, ActionError, notifyUser(who), field("REASON", "Wrong State"))
		return nil, fmt.Errorf("%w: format needs %s, session is %s", ErrWrongState, climate.StateDisplayed, st)
	}
	if err := s.ExecuteFormat(ctx); err != nil {
		return nil, err
	}
	return s.ProdData(), nil
}

// StartReview hands one channel's products to a reviewer. A FORMATTED
// session moves to REVIEW.
func (s *Session) StartReview(ctx context.Context, ch climate.Source, who string) (*product.Set, error) {
	pd := s.ProdData()
	if pd.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyProdData, s.id)
	}
	if s.CurrentState() == climate.StateFormatted {
		s.setState(ctx, climate.StateReview)
	}
	s.notify(ctx, ActionReview, notifyUser(who), field("CHANNEL", string(ch)))
	set := pd.Set(ch)
	if set == nil {
		set = product.NewSet(ch)
	}
	return set, nil
}

// Cancel stops the session. A session that is already terminated keeps
// its outcome and the current status code is returned.
func (s *Session) Cancel(ctx context.Context, who, reason string) climate.StatusCode {
	if s.IsTerminated() {
		return s.CurrentStatus().Code
	}
	if reason == "" {
		reason = "Cancelled by " + who
	}
	s.terminate(ctx, climate.StateCancelled, climate.StatusCancelled, reason)
	s.logger.Warn().Str("user", who).Str("reason", reason).Msg("session: cancelled")
	s.alert(ctx, notify.Warn, fmt.Sprintf("Warning: the user %s cancelled the session: %s", who, s.id))
	s.notify(ctx, ActionCancel, notifyUser(who))
	return climate.StatusCancelled
}

// SaveModifiedProduct replaces an edited product.
func (s *Session) SaveModifiedProduct(ctx context.Context, ch climate.Source, key string, p *product.Product, who string) error {
	if err := s.checkProduct(ch, key); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: nil product for %s", ErrInvalidParameter, key)
	}
	p.Key = key
	p.Record(product.ActionEdit, "product text modified", who, s.now())
	s.mu.Lock()
	s.prodData.Set(ch).Add(p)
	s.mu.Unlock()
	return s.saveProdData(ctx)
}

// DeleteProduct removes a product from a channel. The last product of a
// session cannot be deleted; cancel the session instead. When every product
// left has been sent the session moves to SENT.
func (s *Session) DeleteProduct(ctx context.Context, ch climate.Source, key string) error {
	if err := s.checkProduct(ch, key); err != nil {
		return err
	}
	s.mu.Lock()
	total := 0
	for _, set := range s.prodData.Sets {
		total += set.Len()
	}
	if total <= 1 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is the last product in the session: %s", ErrEmptyProdData, key, s.id)
	}
	s.prodData.Delete(ch, key)
	if set := s.prodData.Set(ch); set.Len() > 0 {
		set.Rollup("deleting")
	}
	allSent := s.prodData.AllSent()
	s.mu.Unlock()
	if err := s.saveProdData(ctx); err != nil {
		return err
	}
	if allSent {
		s.setState(ctx, climate.StateSent)
	}
	return nil
}

func (s *Session) checkProduct(ch climate.Source, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if s.IsTerminated() {
		return fmt.Errorf("%w: %s", ErrTerminated, s.id)
	}
	if _, ok := s.ProdData().Get(ch, key); !ok {
		return fmt.Errorf("%w: %s in the session: %s", ErrNoSuchProduct, key, s.id)
	}
	return nil
}

// IsStageError reports whether err came from a failed stage.
func IsStageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
