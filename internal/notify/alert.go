package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink delivers alert text to an operator chat channel.
type Sink interface {
	Name() string
	PostAlert(ctx context.Context, text string) error
}

// AlertPublisher forwards escalating alerts to chat sinks on background
// goroutines so a slow or unreachable sink never holds up a session.
type AlertPublisher struct {
	sinks   []Sink
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewAlertPublisher returns a publisher for the given sinks.
func NewAlertPublisher(logger zerolog.Logger, sinks ...Sink) *AlertPublisher {
	return &AlertPublisher{sinks: sinks, timeout: 15 * time.Second, logger: logger}
}

// Publish implements Publisher.
func (a *AlertPublisher) Publish(ctx context.Context, e Event) {
	if e.Kind != KindAlert || !e.Priority.Escalates() {
		return
	}
	text := FormatAlert(e)
	for _, s := range a.sinks {
		a.wg.Add(1)
		go func(s Sink) {
			defer a.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
			defer cancel()
			if err := s.PostAlert(sendCtx, text); err != nil {
				a.logger.Warn().Err(err).Str("sink", s.Name()).Str("session_id", e.SessionID).
					Msg("notify: alert delivery failed")
			}
		}(s)
	}
}

// Wait blocks until in-flight deliveries finish.
func (a *AlertPublisher) Wait() { a.wg.Wait() }

// FormatAlert renders an alert for chat.
func FormatAlert(e Event) string {
	if e.SessionID == "" {
		return fmt.Sprintf("[%s] %s", e.Priority, e.Message)
	}
	return fmt.Sprintf("[%s] %s (session %s)", e.Priority, e.Message, e.SessionID)
}
