package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/modelforge/modelforge/internal/adapter"
	"github.com/modelforge/modelforge/internal/cancel"
	"github.com/modelforge/modelforge/internal/domain"
	"github.com/modelforge/modelforge/internal/eventbus"
	"github.com/modelforge/modelforge/internal/scheduler"
	"github.com/modelforge/modelforge/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	s, err := store.Open(t.TempDir()+"/httpapi-test.sqlite", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	bus := eventbus.New()
	registry := cancel.New()
	a := adapter.New(nil, logrus.NewEntry(logger))
	sch := scheduler.New(s, a, bus, registry, logger)
	srv := New(s, sch, bus, registry, a, logger)
	return srv.Router(), s
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateRunRejectsMissingFields(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/runs", createRunRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRunAndExecute(t *testing.T) {
	r, s := newTestServer(t)
	ctx := t.Context()

	provider := &domain.Provider{Name: "p", AdapterKind: domain.AdapterOpenAICompat, BaseURL: "http://127.0.0.1:0"}
	require.NoError(t, s.CreateProvider(ctx, provider))
	model := &domain.Model{ProviderID: provider.ID, Label: "m", VendorID: "m"}
	require.NoError(t, s.CreateModel(ctx, model))
	ps := &domain.ProblemSet{Name: "set"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))

	rec := doJSON(t, r, http.MethodPost, "/api/v1/runs", createRunRequest{
		ProblemSetID: ps.ID, ModelIDs: []string{model.ID}, JudgeModelID: model.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	execRec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/runs/%s/execute", created.ID), nil)
	require.Equal(t, http.StatusAccepted, execRec.Code)

	conflictRec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/runs/%s/execute", created.ID), nil)
	require.Equal(t, http.StatusConflict, conflictRec.Code)
}

func TestCancelRunRejectsWhenNotRunning(t *testing.T) {
	r, s := newTestServer(t)
	ctx := t.Context()

	ps := &domain.ProblemSet{Name: "set"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	provider := &domain.Provider{Name: "p", AdapterKind: domain.AdapterOpenAICompat, BaseURL: "http://127.0.0.1:0"}
	require.NoError(t, s.CreateProvider(ctx, provider))
	model := &domain.Model{ProviderID: provider.ID, Label: "m", VendorID: "m"}
	require.NoError(t, s.CreateModel(ctx, model))

	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{model.ID}, JudgeModelID: model.ID, Status: domain.RunCompleted}
	require.NoError(t, s.CreateRun(ctx, run))

	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/runs/%s/cancel", run.ID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewResultOnlyAllowedForManualHTML(t *testing.T) {
	r, s := newTestServer(t)
	ctx := t.Context()

	ps := &domain.ProblemSet{Name: "set"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	htmlProblem := &domain.Problem{ProblemSetID: ps.ID, Kind: domain.ProblemHTML, Prompt: "button"}
	require.NoError(t, s.CreateProblem(ctx, htmlProblem))

	provider := &domain.Provider{Name: "p", AdapterKind: domain.AdapterOpenAICompat, BaseURL: "http://127.0.0.1:0"}
	require.NoError(t, s.CreateProvider(ctx, provider))
	model := &domain.Model{ProviderID: provider.ID, Label: "m", VendorID: "m"}
	require.NoError(t, s.CreateModel(ctx, model))
	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{model.ID}, JudgeModelID: model.ID}
	require.NoError(t, s.CreateRun(ctx, run))

	result := &domain.RunResult{RunID: run.ID, ProblemID: htmlProblem.ID, ModelID: model.ID, Status: domain.ResultManual}
	require.NoError(t, s.CreateRunResult(ctx, result))

	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/results/%s/review", result.ID), reviewResultRequest{Decision: "pass"})
	require.Equal(t, http.StatusOK, rec.Code)

	fresh, err := s.GetRunResult(ctx, result.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ResultCompleted, fresh.Status)
	require.NotNil(t, fresh.Score)
	require.Equal(t, 100, *fresh.Score)
	require.Equal(t, domain.JudgeHuman, fresh.JudgedBy)

	secondRec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/results/%s/review", result.ID), reviewResultRequest{Decision: "fail"})
	require.Equal(t, http.StatusBadRequest, secondRec.Code)
}

func TestListRunsRespectsFilters(t *testing.T) {
	r, s := newTestServer(t)
	ctx := t.Context()

	ps := &domain.ProblemSet{Name: "set"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	provider := &domain.Provider{Name: "p", AdapterKind: domain.AdapterOpenAICompat, BaseURL: "http://127.0.0.1:0"}
	require.NoError(t, s.CreateProvider(ctx, provider))
	model := &domain.Model{ProviderID: provider.ID, Label: "m", VendorID: "m"}
	require.NoError(t, s.CreateModel(ctx, model))

	queued := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{model.ID}, JudgeModelID: model.ID}
	require.NoError(t, s.CreateRun(ctx, queued))
	completed := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{model.ID}, JudgeModelID: model.ID, Status: domain.RunCompleted}
	require.NoError(t, s.CreateRun(ctx, completed))

	rec := doJSON(t, r, http.MethodGet, "/api/v1/runs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []domain.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, completed.ID, body.Runs[0].ID)
}
