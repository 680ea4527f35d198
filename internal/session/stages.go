package session

import (
	"context"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/product"
	"github.com/zulandar/cpg/internal/qc"
)

// Creator builds report data from source records.
type Creator interface {
	Create(ctx context.Context, prodType climate.PeriodType, setting climate.ProductSetting) (climate.ReportData, error)
}

// QualityChecker inspects created report data. It returns an error only when
// the checker itself malfunctions; bad data is reported in the result.
type QualityChecker interface {
	Check(ctx context.Context, prodType climate.PeriodType, report climate.ReportData) (qc.Result, error)
}

// DisplayFinalizer commits report data once it has been reviewed, by a
// person or automatically. Errors wrapping ErrInvalidParameter mean the
// report itself was unusable.
type DisplayFinalizer interface {
	Commit(ctx context.Context, prodType climate.PeriodType, report climate.ReportData, overrideApprovals bool) error
}

// Formatter turns report data into text products keyed by product key.
type Formatter interface {
	Format(ctx context.Context, prodType climate.PeriodType, report climate.ReportData, global climate.GlobalConfig) (map[string]*product.Product, error)
}

// Sender disseminates one product on one channel, updating its status in
// place. Sending a SENT product is a no-op.
type Sender interface {
	Send(ctx context.Context, sessionID string, p *product.Product, operational bool, user string) error
}

// Stages bundles the stage executors a session calls.
type Stages struct {
	Creator        Creator
	QualityChecker QualityChecker
	Finalizer      DisplayFinalizer
	Formatter      Formatter
	Senders        map[climate.Source]Sender
}
