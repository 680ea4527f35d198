package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("session: not found")
	ErrWrongState       = errors.New("session: wrong state")
	ErrTerminated       = errors.New("session: terminated")
	ErrNoReportData     = errors.New("session: no report data")
	ErrEmptyProdData    = errors.New("session: no product data")
	ErrEmptyKey         = errors.New("session: product key is empty")
	ErrNoSuchProduct    = errors.New("session: there is no such product")
	ErrQualityCheck     = errors.New("session: quality check failed")
	ErrInvalidParameter = errors.New("session: invalid parameter")
	ErrNotConfigured    = errors.New("session: stage not configured")
)

// Error is a stage failure tied to one session.
type Error struct {
	SessionID string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
