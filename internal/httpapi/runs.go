package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modelforge/modelforge/internal/domain"
	"github.com/modelforge/modelforge/internal/eventbus"
	"github.com/modelforge/modelforge/internal/scheduler"
)

type createRunRequest struct {
	Name         string   `json:"name"`
	ProblemSetID string   `json:"problem_set_id"`
	ModelIDs     []string `json:"model_ids"`
	JudgeModelID string   `json:"judge_model_id"`
	Stream       bool     `json:"stream"`
}

// handleCreateRun implements create_run (spec §6.1): rejects a missing
// problem set, empty model_ids, or a missing judge model.
func (srv *Server) handleCreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ProblemSetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "problem_set_id is required"})
		return
	}
	if len(req.ModelIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model_ids must not be empty"})
		return
	}
	if req.JudgeModelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "judge_model_id is required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := srv.store.GetProblemSet(ctx, req.ProblemSetID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "problem set not found: " + req.ProblemSetID})
		return
	}
	if _, err := srv.store.GetModel(ctx, req.JudgeModelID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "judge model not found: " + req.JudgeModelID})
		return
	}

	run := &domain.Run{
		Name:          req.Name,
		ProblemSetID:  req.ProblemSetID,
		ModelIDs:      req.ModelIDs,
		JudgeModelID:  req.JudgeModelID,
		StreamEnabled: req.Stream,
	}
	if err := srv.store.CreateRun(ctx, run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": run.ID})
}

// handleExecuteRun implements execute(run_id) (spec §6.1/§4.7): acknowledges
// with 202 immediately; the Scheduler continues in the background.
func (srv *Server) handleExecuteRun(c *gin.Context) {
	runID := c.Param("id")
	if err := srv.scheduler.Execute(c.Request.Context(), runID); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": runID, "status": string(domain.RunRunning)})
}

// handleCancelRun implements cancel_run (spec §6.1): 400 if the run is not
// running or queued.
func (srv *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")
	ctx := c.Request.Context()

	run, err := srv.store.GetRun(ctx, runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if run.Status != domain.RunRunning && run.Status != domain.RunQueued {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run is not running or queued"})
		return
	}

	const actor = "user"

	if run.Status == domain.RunQueued {
		if err := srv.store.TransitionRunStatus(ctx, runID, []domain.RunStatus{domain.RunQueued}, domain.RunCancelled, actor); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		srv.bus.Publish(eventbus.Event{RunID: runID, Kind: eventbus.KindRunCancelled, Payload: map[string]any{"cancelled_by": actor}})
		srv.bus.Publish(statusEvent(runID, domain.RunCancelled))
		c.JSON(http.StatusOK, gin.H{"id": runID, "status": string(domain.RunCancelled), "cancelled": true})
		return
	}

	srv.scheduler.CancelRun(runID, actor)
	c.JSON(http.StatusOK, gin.H{"id": runID, "status": string(domain.RunCancelled), "cancelled": true})
}

// handleCancelModel implements cancel_model (spec §6.1): 400 if the run
// isn't running or the model isn't a candidate on it.
func (srv *Server) handleCancelModel(c *gin.Context) {
	runID := c.Param("id")
	modelID := c.Param("model_id")
	ctx := c.Request.Context()

	run, err := srv.store.GetRun(ctx, runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if run.Status != domain.RunRunning {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run is not running"})
		return
	}
	if !containsString(run.ModelIDs, modelID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is not a candidate on this run"})
		return
	}

	srv.registry.CancelModel(runID, modelID)
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "model_id": modelID, "cancelled": true})
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}

// handleListRuns implements list_runs (spec §6.1): optional status and
// problem_set_id filters, limit clamped to [1,200] default 50, newest first.
func (srv *Server) handleListRuns(c *gin.Context) {
	f := buildRunFilterFromQuery(c)
	runs, err := srv.store.ListRuns(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleGetRunResults implements get_run_results (spec §6.1): every
// RunResult for the run, joined with its problem's kind and prompt.
func (srv *Server) handleGetRunResults(c *gin.Context) {
	runID := c.Param("id")
	ctx := c.Request.Context()

	results, err := srv.store.ListRunResultsByRun(ctx, runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	joined := make([]gin.H, 0, len(results))
	for _, r := range results {
		entry := gin.H{
			"id":              r.ID,
			"run_id":          r.RunID,
			"problem_id":      r.ProblemID,
			"model_id":        r.ModelID,
			"output":          r.Output,
			"score":           r.Score,
			"status":          r.Status,
			"judged_by":       r.JudgedBy,
			"judge_reasoning": r.JudgeReasoning,
			"created_at":      r.CreatedAt,
			"cancelled_at":    r.CancelledAt,
		}
		if problem, err := srv.store.GetProblem(ctx, r.ProblemID); err == nil {
			entry["problem_kind"] = problem.Kind
			entry["problem_prompt"] = problem.Prompt
		}
		joined = append(joined, entry)
	}
	c.JSON(http.StatusOK, gin.H{"results": joined})
}

type reviewResultRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

// handleReviewResult implements review_result (spec §6.1): allowed only when
// the RunResult is in manual status on an html problem.
func (srv *Server) handleReviewResult(c *gin.Context) {
	resultID := c.Param("id")
	var req reviewResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Decision != "pass" && req.Decision != "fail" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be pass or fail"})
		return
	}

	ctx := c.Request.Context()
	result, err := srv.store.GetRunResult(ctx, resultID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if result.Status != domain.ResultManual {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result is not awaiting manual review"})
		return
	}
	problem, err := srv.store.GetProblem(ctx, result.ProblemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if problem.Kind != domain.ProblemHTML {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result's problem is not an html task"})
		return
	}

	score := 0
	if req.Decision == "pass" {
		score = 100
	}
	status := domain.ResultCompleted
	judgedBy := domain.JudgeHuman
	notes := req.Notes

	patch := domain.ResultPatch{Score: &score, Status: &status, JudgedBy: &judgedBy}
	if notes != "" {
		patch.JudgeReasoning = &notes
	}
	if err := srv.store.MarkResult(ctx, resultID, patch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": resultID, "status": string(status), "score": score, "judged_by": judgedBy})
}

// handleTestProvider implements test_provider(id) (spec §6.4).
func (srv *Server) handleTestProvider(c *gin.Context) {
	providerID := c.Param("id")
	ctx := c.Request.Context()

	provider, err := srv.store.GetProvider(ctx, providerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	result := srv.adapter.TestProvider(ctx, provider)
	if result.Success {
		if err := srv.store.UpdateProviderProbe(ctx, providerID, time.Now().UTC()); err != nil {
			srv.logger.WithError(err).Warn("httpapi: failed to persist provider probe timestamp")
		}
	}
	c.JSON(http.StatusOK, result)
}
