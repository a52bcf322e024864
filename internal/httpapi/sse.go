package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleSubscribe implements subscribe(run_id) (spec §6.2): a long-lived SSE
// stream that only attaches when the run has streaming enabled at creation,
// with headers that disable intermediary buffering.
func (srv *Server) handleSubscribe(c *gin.Context) {
	runID := c.Param("id")

	run, err := srv.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !run.StreamEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run does not have streaming enabled"})
		return
	}

	events, unsubscribe := srv.bus.Subscribe(runID, map[string]any{"status": string(run.Status)})
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache, no-transform")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				srv.logger.WithError(err).Error("httpapi: failed to encode sse event")
				continue
			}
			if _, err := c.Writer.Write([]byte("event: " + string(ev.Kind) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
