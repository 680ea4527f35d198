// Package product tracks generated climate text products and their send
// status per dissemination channel.
package product

import (
	"time"

	"github.com/zulandar/cpg/internal/climate"
)

// Status is the send status of a single product.
type Status int

const (
	StatusPending Status = 1
	StatusStored  Status = 2
	StatusError   Status = 3
	StatusSent    Status = 4
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusStored:
		return "STORED"
	case StatusError:
		return "ERROR"
	case StatusSent:
		return "SENT"
	default:
		return "UNKNOWN"
	}
}

// ActionKind is a kind of audit entry on a product.
type ActionKind string

const (
	ActionNew   ActionKind = "NEW"
	ActionStore ActionKind = "STORE"
	ActionSend  ActionKind = "SEND"
	ActionEdit  ActionKind = "EDIT"
)

// Action is one audit log entry.
type Action struct {
	Kind ActionKind `json:"kind"`
	Desc string     `json:"desc"`
	By   string     `json:"by"`
	At   time.Time  `json:"at"`
}

// Product is one generated text artifact.
type Product struct {
	Key            string             `json:"key"`
	PeriodType     climate.PeriodType `json:"period_type"`
	Text           string             `json:"text"`
	FileName       string             `json:"file_name,omitempty"`
	Status         Status             `json:"status"`
	StatusDesc     string             `json:"status_desc,omitempty"`
	ExpirationTime time.Time          `json:"expiration_time"`
	Actions        []Action           `json:"actions"`
}

// New returns a pending product with a NEW entry in its log.
func New(key string, pt climate.PeriodType, text string, expires time.Time) *Product {
	p := &Product{
		Key:            key,
		PeriodType:     pt,
		Text:           text,
		Status:         StatusPending,
		ExpirationTime: expires,
	}
	p.Record(ActionNew, "product generated", "system", time.Now().UTC())
	return p
}

// Record appends an entry to the action log.
func (p *Product) Record(kind ActionKind, desc, by string, at time.Time) {
	p.Actions = append(p.Actions, Action{Kind: kind, Desc: desc, By: by, At: at})
}

// LastAction returns the most recent log entry, or false when the log is empty.
func (p *Product) LastAction() (Action, bool) {
	if len(p.Actions) == 0 {
		return Action{}, false
	}
	return p.Actions[len(p.Actions)-1], true
}

// IsSent reports whether the product has reached SENT.
func (p *Product) IsSent() bool { return p.Status >= StatusSent }

// SetStatus moves the product to a new status. A SENT product never moves
// again; the call is ignored and false returned.
func (p *Product) SetStatus(s Status, desc string) bool {
	if p.IsSent() {
		return false
	}
	p.Status = s
	p.StatusDesc = desc
	return true
}

// Source returns the channel this product is disseminated on.
func (p *Product) Source() climate.Source { return p.PeriodType.Source() }

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	c := *p
	c.Actions = append([]Action(nil), p.Actions...)
	return &c
}
