package store

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelforge/modelforge/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	path := t.TempDir() + "/modelforge-test.sqlite"
	s, err := Open(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProviderAndModel(t *testing.T, s *Store) (*domain.Provider, *domain.Model) {
	t.Helper()
	ctx := context.Background()

	p := &domain.Provider{Name: "openai-test", AdapterKind: "OpenAI", BaseURL: "https://api.test/v1/"}
	require.NoError(t, s.CreateProvider(ctx, p))

	m := &domain.Model{
		ProviderID: p.ID,
		Label:      "gpt-test",
		VendorID:   "gpt-test-1",
		Params: map[string]domain.ParamValue{
			"temperature": {Enabled: true, Value: 0.7},
		},
	}
	require.NoError(t, s.CreateModel(ctx, m))
	return p, m
}

func TestNormalizeAdapterKind(t *testing.T) {
	cases := map[string]domain.AdapterKind{
		"OpenAI":          domain.AdapterOpenAICompat,
		"openai-compat":   domain.AdapterOpenAICompat,
		"Anthropic":       domain.AdapterAnthropic,
		"Claude":          domain.AdapterAnthropic,
		"Gemini":          domain.AdapterGemini,
		"Google AI":       domain.AdapterGemini,
		"something-else":  domain.AdapterKind("somethingelse"),
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeAdapterKind(raw))
	}
}

func TestCreateAndGetProvider(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &domain.Provider{Name: "anthropic-test", AdapterKind: "Claude", BaseURL: "https://api.test/v1/"}
	require.NoError(t, s.CreateProvider(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.AdapterAnthropic, p.AdapterKind)

	got, err := s.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, domain.AdapterAnthropic, got.AdapterKind)
	assert.Nil(t, got.LastProbeAt)
}

func TestCreateModelAndResolveProvider(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, m := seedProviderAndModel(t, s)

	gotModel, gotProvider, err := s.ResolveModelProvider(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Label, gotModel.Label)
	assert.Equal(t, p.ID, gotProvider.ID)
	assert.InDelta(t, 0.7, gotModel.Params["temperature"].Value, 0.0001)
}

func TestProblemsOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-a"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))

	first := &domain.Problem{ProblemSetID: ps.ID, Prompt: "first"}
	require.NoError(t, s.CreateProblem(ctx, first))
	second := &domain.Problem{ProblemSetID: ps.ID, Prompt: "second"}
	require.NoError(t, s.CreateProblem(ctx, second))

	problems, err := s.ListProblemsBySet(ctx, ps.ID)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, "first", problems[0].Prompt)
	assert.Equal(t, "second", problems[1].Prompt)
}

func TestTransitionRunStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-b"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	_, m := seedProviderAndModel(t, s)

	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.Equal(t, domain.RunQueued, run.Status)

	err := s.TransitionRunStatus(ctx, run.ID, []domain.RunStatus{domain.RunQueued}, domain.RunRunning, "")
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, got.Status)

	err = s.TransitionRunStatus(ctx, run.ID, []domain.RunStatus{domain.RunQueued}, domain.RunRunning, "")
	assert.Error(t, err)

	err = s.TransitionRunStatus(ctx, run.ID, []domain.RunStatus{domain.RunRunning}, domain.RunCancelled, "operator")
	require.NoError(t, err)

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, got.Status)
	assert.Equal(t, "operator", got.CancelledBy)
	require.NotNil(t, got.CancelledAt)
}

func TestMarkResultPartialUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-c"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	problem := &domain.Problem{ProblemSetID: ps.ID, Prompt: "2+2?"}
	require.NoError(t, s.CreateProblem(ctx, problem))
	_, m := seedProviderAndModel(t, s)
	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, run))

	result := &domain.RunResult{RunID: run.ID, ProblemID: problem.ID, ModelID: m.ID}
	require.NoError(t, s.CreateRunResult(ctx, result))
	assert.Equal(t, domain.ResultPending, result.Status)

	output := "4"
	score := 100
	status := domain.ResultCompleted
	judgedBy := m.ID
	err := s.MarkResult(ctx, result.ID, domain.ResultPatch{
		Output:   &output,
		Score:    &score,
		Status:   &status,
		JudgedBy: &judgedBy,
	})
	require.NoError(t, err)

	got, err := s.GetRunResult(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, "4", got.Output)
	require.NotNil(t, got.Score)
	assert.Equal(t, 100, *got.Score)
	assert.Equal(t, domain.ResultCompleted, got.Status)
}

func TestCascadeDeleteProblemSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-d"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	problem := &domain.Problem{ProblemSetID: ps.ID, Prompt: "q"}
	require.NoError(t, s.CreateProblem(ctx, problem))
	_, m := seedProviderAndModel(t, s)
	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, run))
	result := &domain.RunResult{RunID: run.ID, ProblemID: problem.ID, ModelID: m.ID}
	require.NoError(t, s.CreateRunResult(ctx, result))

	require.NoError(t, s.CascadeDeleteProblemSet(ctx, ps.ID))

	_, err := s.GetProblemSet(ctx, ps.ID)
	assert.Error(t, err)
	_, err = s.GetRun(ctx, run.ID)
	assert.Error(t, err)
	_, err = s.GetRunResult(ctx, result.ID)
	assert.Error(t, err)
}

func TestDeleteModelRefusesWhenReferenced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-f"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	_, m := seedProviderAndModel(t, s)
	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, run))

	err := s.DeleteModel(ctx, m.ID)
	assert.Error(t, err)

	_, err = s.GetModel(ctx, m.ID)
	assert.NoError(t, err)
}

func TestCascadeDeleteModelRemovesReferencingRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-g"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	problem := &domain.Problem{ProblemSetID: ps.ID, Prompt: "q"}
	require.NoError(t, s.CreateProblem(ctx, problem))
	_, m := seedProviderAndModel(t, s)
	run := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, run))
	result := &domain.RunResult{RunID: run.ID, ProblemID: problem.ID, ModelID: m.ID}
	require.NoError(t, s.CreateRunResult(ctx, result))

	require.NoError(t, s.CascadeDeleteModel(ctx, m.ID))

	_, err := s.GetModel(ctx, m.ID)
	assert.Error(t, err)
	_, err = s.GetRun(ctx, run.ID)
	assert.Error(t, err)
	_, err = s.GetRunResult(ctx, result.ID)
	assert.Error(t, err)
}

func TestDeleteModelSucceedsWhenUnreferenced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, m := seedProviderAndModel(t, s)
	require.NoError(t, s.DeleteModel(ctx, m.ID))

	_, err := s.GetModel(ctx, m.ID)
	assert.Error(t, err)
}

func TestRunSummaryAndCompareRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ps := &domain.ProblemSet{Name: "set-e"}
	require.NoError(t, s.CreateProblemSet(ctx, ps))
	problem := &domain.Problem{ProblemSetID: ps.ID, Prompt: "q"}
	require.NoError(t, s.CreateProblem(ctx, problem))
	_, m := seedProviderAndModel(t, s)

	runA := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, runA))
	passScore := 90
	resA := &domain.RunResult{RunID: runA.ID, ProblemID: problem.ID, ModelID: m.ID, Status: domain.ResultCompleted, Score: &passScore}
	require.NoError(t, s.CreateRunResult(ctx, resA))

	runB := &domain.Run{ProblemSetID: ps.ID, ModelIDs: []string{m.ID}, JudgeModelID: m.ID}
	require.NoError(t, s.CreateRun(ctx, runB))
	failScore := 10
	resB := &domain.RunResult{RunID: runB.ID, ProblemID: problem.ID, ModelID: m.ID, Status: domain.ResultCompleted, Score: &failScore}
	require.NoError(t, s.CreateRunResult(ctx, resB))

	summaryA, err := s.RunSummary(ctx, runA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summaryA.Passed)
	assert.Equal(t, float64(1), summaryA.PassRate)

	cmp, err := s.CompareRuns(ctx, runA.ID, runB.ID)
	require.NoError(t, err)
	assert.Less(t, cmp.PassRateDelta, 0.0)
	assert.Less(t, cmp.AverageScoreDelta, 0.0)
}
