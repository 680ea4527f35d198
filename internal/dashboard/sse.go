package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/cpg/internal/models"
	"github.com/zulandar/cpg/internal/notify"
)

// notificationEvent is one stored notification as sent to clients.
type notificationEvent struct {
	ID        uint              `json:"id"`
	SessionID string            `json:"session_id,omitempty"`
	Kind      string            `json:"kind"`
	Priority  string            `json:"priority,omitempty"`
	Action    string            `json:"action,omitempty"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func toEvent(r models.Notification) notificationEvent {
	e := notificationEvent{
		ID:        r.ID,
		SessionID: r.SessionID,
		Kind:      r.Kind,
		Priority:  r.Priority,
		Action:    r.Action,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Fields) > 0 {
		json.Unmarshal(r.Fields, &e.Fields)
	}
	return e
}

// handleSSE streams notification rows as they are stored. Clients resume
// with ?after=<id>; without it only notifications newer than the connect
// time are sent. ?session=<id> narrows the stream to one session.
func (a *api) handleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	ctx := c.Request.Context()
	sessionID := c.Query("session")

	var lastSeen uint
	if after := c.Query("after"); after != "" {
		n, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			writeSSE(c.Writer, "error", map[string]string{"error": "invalid after " + after})
			return
		}
		lastSeen = uint(n)
	} else {
		var latest models.Notification
		if err := a.db.WithContext(ctx).Order("id DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeen = latest.ID
		}
	}

	ticker := time.NewTicker(a.poll)
	heartbeat := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			rows, err := notify.Since(ctx, a.db, sessionID, lastSeen, 100)
			if err != nil {
				a.logger.Warn().Err(err).Msg("dashboard: event stream query failed")
				continue
			}
			if len(rows) == 0 {
				continue
			}
			for _, r := range rows {
				writeSSE(c.Writer, r.Kind, toEvent(r))
			}
			lastSeen = rows[len(rows)-1].ID
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
