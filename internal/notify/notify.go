// Package notify publishes session status events and operator alerts.
// Publishing is fire-and-forget: failures are logged, never returned.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind separates status notifications from operator alerts.
type Kind string

const (
	KindNotify Kind = "notify"
	KindAlert  Kind = "alert"
)

// ActionCountdown marks the per-tick progress events of a wait window.
const ActionCountdown = "COUNTDOWN"

// Priority is the operator alert priority.
type Priority string

const (
	Critical    Priority = "CRITICAL"
	Significant Priority = "SIGNIFICANT"
	Problem     Priority = "PROBLEM"
	EventA      Priority = "EVENTA"
	EventB      Priority = "EVENTB"
	Verbose     Priority = "VERBOSE"
	Info        Priority = "INFO"
	Warn        Priority = "WARN"
)

// Escalates reports whether alerts of this priority go to chat sinks.
func (p Priority) Escalates() bool {
	switch p {
	case Critical, Significant, Problem, Warn:
		return true
	}
	return false
}

// Field is one KEY=value pair of an event.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a single status notification or alert.
type Event struct {
	SessionID string
	Kind      Kind
	Priority  Priority
	Action    string
	Message   string
	Fields    []Field
	At        time.Time
}

// Render returns the KEY=value list form used on the wire, followed by the
// free text message when present.
func (e Event) Render() string {
	parts := make([]string, 0, len(e.Fields)+1)
	for _, f := range e.Fields {
		parts = append(parts, f.Key+"="+f.Value)
	}
	out := strings.Join(parts, ",")
	if e.Message != "" {
		if out != "" {
			out += ","
		}
		out += e.Message
	}
	return out
}

// Get returns the value of the first field with key.
func (e Event) Get(key string) (string, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Publisher accepts events. Implementations must not block for long and
// must not fail the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Fanout publishes each event to every publisher in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, e Event) {
	for _, p := range f {
		p.Publish(ctx, e)
	}
}

// LogPublisher writes events to a zerolog logger.
type LogPublisher struct {
	Logger zerolog.Logger
}

// Publish implements Publisher.
func (l LogPublisher) Publish(_ context.Context, e Event) {
	ev := l.Logger.Info()
	if e.Kind == KindAlert && e.Priority.Escalates() {
		ev = l.Logger.Warn()
	}
	ev.Str("session_id", e.SessionID).
		Str("kind", string(e.Kind)).
		Str("priority", string(e.Priority)).
		Str("action", e.Action).
		Msg(e.Render())
}

// Recorder keeps published events in memory. It is safe for concurrent use
// and is meant for tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Find returns the events with a given action.
func (r *Recorder) Find(action string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
