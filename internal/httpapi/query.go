package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modelforge/modelforge/internal/domain"
	"github.com/modelforge/modelforge/internal/eventbus"
	"github.com/modelforge/modelforge/internal/store"
)

func buildRunFilterFromQuery(c *gin.Context) store.RunFilter {
	f := store.RunFilter{
		Status:       domain.RunStatus(c.Query("status")),
		ProblemSetID: c.Query("problem_set_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}
	return f
}

func statusEvent(runID string, status domain.RunStatus) eventbus.Event {
	return eventbus.Event{RunID: runID, Kind: eventbus.KindRunStatus, Payload: map[string]any{"status": string(status)}}
}
