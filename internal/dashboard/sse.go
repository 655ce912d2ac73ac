package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/changefeed"
)

// changeEvent is the SSE form of a change-feed event.
type changeEvent struct {
	ID       uint   `json:"id"`
	Table    string `json:"table"`
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
}

// handleEvents streams change-feed events as they are recorded, with a
// heartbeat so idle proxies keep the connection open.
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	feed, err := changefeed.Watch(ctx, s.db, changefeed.WatchOpts{Interval: s.poll, Logger: s.logger})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
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
		case ev, ok := <-feed:
			if !ok {
				return
			}
			writeSSE(c.Writer, "change", changeEvent{
				ID:       ev.ID,
				Table:    ev.Table,
				Kind:     ev.Kind,
				RecordID: ev.RecordID,
			})
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
