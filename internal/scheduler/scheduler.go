// Package scheduler orchestrates a Run's execution across candidate models
// and problems (C7): per-model workers, strict per-model FIFO over
// problems, cross-model concurrency, and terminal status transition.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/modelforge/modelforge/internal/adapter"
	"github.com/modelforge/modelforge/internal/cancel"
	"github.com/modelforge/modelforge/internal/domain"
	"github.com/modelforge/modelforge/internal/eventbus"
	"github.com/modelforge/modelforge/internal/judge"
	"github.com/modelforge/modelforge/internal/store"
)

const (
	systemPromptText = "You are a helpful assistant."
	systemPromptHTML = "You are a helpful assistant that returns HTML/CSS/JS when asked. Keep responses concise."
)

// ErrAlreadyRunning is returned by Execute when the run is already in
// progress, so httpapi can map it to 409 (spec §6.1).
var ErrAlreadyRunning = errors.New("run is already running")

// Scheduler wires the Store, Adapter, Event Bus and Cancellation Registry
// together to run Execute(run_id) (spec §4.7).
type Scheduler struct {
	store    *store.Store
	adapter  *adapter.Client
	bus      *eventbus.Bus
	registry *cancel.Registry
	logger   *logrus.Logger
}

// New builds a Scheduler over its collaborators.
func New(s *store.Store, a *adapter.Client, bus *eventbus.Bus, registry *cancel.Registry, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{store: s, adapter: a, bus: bus, registry: registry, logger: logger}
}

// Execute validates preconditions, transitions the run to running, and
// returns once that transition lands — the run's model workers continue in
// the background (spec §4.7 step 3, "acknowledge the caller immediately").
func (sch *Scheduler) Execute(ctx context.Context, runID string) error {
	run, err := sch.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if run.Status == domain.RunRunning {
		return fmt.Errorf("execute: run %s: %w", runID, ErrAlreadyRunning)
	}
	if _, err := sch.store.GetModel(ctx, run.JudgeModelID); err != nil {
		return fmt.Errorf("execute: judge model %s does not resolve: %w", run.JudgeModelID, err)
	}

	if err := sch.store.TransitionRunStatus(ctx, runID, []domain.RunStatus{domain.RunQueued, domain.RunError}, domain.RunRunning, ""); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	sch.publishStatus(runID, domain.RunRunning)

	runCtx := sch.registry.RegisterRun(context.Background(), runID)
	go sch.runWorkers(runCtx, run)

	return nil
}

// CancelRun triggers the run's cancellation token; in-flight workers observe
// it cooperatively and finish writing cancelled state for their current
// problem. actor is persisted as the run's cancelled_by once finalizeRun
// commits the terminal transition (spec §3, S3).
func (sch *Scheduler) CancelRun(runID, actor string) {
	sch.registry.CancelRun(runID, actor)
}

func (sch *Scheduler) runWorkers(ctx context.Context, run *domain.Run) {
	defer sch.registry.Cleanup(run.ID)

	problems, err := sch.store.ListProblemsBySet(context.Background(), run.ProblemSetID)
	if err != nil {
		sch.failRun(run.ID, fmt.Errorf("failed to load problems: %w", err))
		return
	}

	judgeModel, judgeProvider, err := sch.store.ResolveModelProvider(context.Background(), run.JudgeModelID)
	if err != nil {
		sch.failRun(run.ID, fmt.Errorf("failed to resolve judge model: %w", err))
		return
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, modelID := range run.ModelIDs {
		modelID := modelID
		model, provider, err := sch.store.ResolveModelProvider(context.Background(), modelID)
		if err != nil {
			sch.logger.WithFields(logrus.Fields{"run_id": run.ID, "model_id": modelID}).
				WithError(err).Warn("scheduler: skipping candidate model that no longer exists")
			continue
		}

		g.Go(func() error {
			sch.runModelWorker(gCtx, run, model, provider, judgeModel, judgeProvider, problems)
			return nil
		})
	}

	_ = g.Wait()

	sch.finalizeRun(ctx, run.ID)
}

func (sch *Scheduler) runModelWorker(ctx context.Context, run *domain.Run, model *domain.Model, provider *domain.Provider,
	judgeModel *domain.Model, judgeProvider *domain.Provider, problems []*domain.Problem) {

	modelCtx := sch.registry.RegisterModel(ctx, run.ID, model.ID)

	for _, problem := range problems {
		if cancel.IsCancelled(modelCtx) {
			return
		}
		sch.runOneProblem(modelCtx, run, model, provider, judgeModel, judgeProvider, problem)
	}
}

func (sch *Scheduler) runOneProblem(ctx context.Context, run *domain.Run, model *domain.Model, provider *domain.Provider,
	judgeModel *domain.Model, judgeProvider *domain.Provider, problem *domain.Problem) {

	initialStatus := domain.ResultPending
	if problem.Kind == domain.ProblemHTML {
		initialStatus = domain.ResultManual
	}

	result := &domain.RunResult{RunID: run.ID, ProblemID: problem.ID, ModelID: model.ID, Status: initialStatus}
	if err := sch.store.CreateRunResult(context.Background(), result); err != nil {
		sch.logger.WithError(err).Error("scheduler: failed to create run result")
		return
	}

	sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: eventbus.KindModelStarted, Payload: map[string]any{
		"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label,
		"attempt": 1, "streaming": run.StreamEnabled,
	}})

	systemPrompt := systemPromptText
	if problem.Kind == domain.ProblemHTML {
		systemPrompt = systemPromptHTML
	}
	messages := []adapter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: problem.Prompt},
	}

	var output string
	var callErr error

	if run.StreamEnabled {
		sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: eventbus.KindModelStreamingStart, Payload: map[string]any{
			"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label,
		}})
		tokenKind := "text"
		if problem.Kind == domain.ProblemHTML {
			tokenKind = "html"
		}
		output, callErr = sch.adapter.Stream(ctx, provider, model, messages, func(delta string) {
			sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: eventbus.KindCandidateToken, Payload: map[string]any{
				"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label,
				"delta": delta, "kind": tokenKind,
			}})
		})
	} else {
		output, callErr = sch.adapter.Complete(ctx, provider, model, messages)
	}

	if callErr != nil {
		sch.handleWorkerFailure(ctx, run, model, problem, result, callErr)
		return
	}

	doneKind := eventbus.KindCandidateDone
	donePayload := map[string]any{"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label, "text": output}
	if problem.Kind == domain.ProblemHTML {
		doneKind = eventbus.KindHTMLCandidateDone
		donePayload = map[string]any{"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label, "html": output}
	}
	sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: doneKind, Payload: donePayload})

	outputCopy := output
	if err := sch.store.MarkResult(context.Background(), result.ID, domain.ResultPatch{Output: &outputCopy}); err != nil {
		sch.logger.WithError(err).Error("scheduler: failed to record candidate output")
	}

	if problem.Kind != domain.ProblemText {
		return
	}
	sch.judgeResult(ctx, run, model, judgeModel, judgeProvider, problem, result, output)
}

func (sch *Scheduler) judgeResult(ctx context.Context, run *domain.Run, model, judgeModel *domain.Model,
	judgeProvider *domain.Provider, problem *domain.Problem, result *domain.RunResult, candidateOutput string) {

	system, user := judge.BuildPrompt(problem.Prompt, problem.Expected, candidateOutput)
	response, err := sch.adapter.Complete(ctx, judgeProvider, judgeModel, []adapter.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		sch.handleWorkerFailure(ctx, run, model, problem, result, err)
		return
	}

	verdict := judge.Parse(response)
	score := verdict.Score
	status := domain.ResultCompleted
	judgedBy := judgeModel.ID
	reasoning := verdict.Reasoning

	if err := sch.store.MarkResult(context.Background(), result.ID, domain.ResultPatch{
		Score: &score, Status: &status, JudgedBy: &judgedBy, JudgeReasoning: &reasoning,
	}); err != nil {
		sch.logger.WithError(err).Error("scheduler: failed to record judge verdict")
	}

	verdictWord := "FAIL"
	if verdict.Pass {
		verdictWord = "PASS"
	}
	sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: eventbus.KindJudgeDone, Payload: map[string]any{
		"problem_id": problem.ID, "model_id": model.ID, "verdict": verdictWord,
		"reasoning": reasoning, "score": score,
	}})
}

func (sch *Scheduler) handleWorkerFailure(ctx context.Context, run *domain.Run, model *domain.Model, problem *domain.Problem, result *domain.RunResult, callErr error) {
	now := time.Now().UTC()
	if cancel.IsCancelled(ctx) || isCancellationError(callErr) {
		status := domain.ResultCancelled
		if err := sch.store.MarkResult(context.Background(), result.ID, domain.ResultPatch{Status: &status, CancelledAt: &now}); err != nil {
			sch.logger.WithError(err).Error("scheduler: failed to record cancelled result")
		}
		sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: eventbus.KindModelCancelled, Payload: map[string]any{
			"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label,
		}})
		return
	}

	status := domain.ResultError
	if err := sch.store.MarkResult(context.Background(), result.ID, domain.ResultPatch{Status: &status}); err != nil {
		sch.logger.WithError(err).Error("scheduler: failed to record errored result")
	}
	sch.bus.Publish(eventbus.Event{RunID: run.ID, Kind: eventbus.KindModelError, Payload: map[string]any{
		"problem_id": problem.ID, "model_id": model.ID, "model_name": model.Label,
		"error": callErr.Error(), "streaming": run.StreamEnabled,
	}})
}

func isCancellationError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (sch *Scheduler) finalizeRun(runCtx context.Context, runID string) {
	ctx := context.Background()

	if cancel.IsCancelled(runCtx) {
		actor := sch.registry.Actor(runID)
		if err := sch.store.TransitionRunStatus(ctx, runID, []domain.RunStatus{domain.RunRunning}, domain.RunCancelled, actor); err != nil {
			sch.logger.WithError(err).Error("scheduler: failed to transition run to cancelled")
			return
		}
		sch.bus.Publish(eventbus.Event{RunID: runID, Kind: eventbus.KindRunCancelled, Payload: map[string]any{"cancelled_by": actor}})
		sch.publishStatus(runID, domain.RunCancelled)
		return
	}

	if err := sch.store.TransitionRunStatus(ctx, runID, []domain.RunStatus{domain.RunRunning}, domain.RunCompleted, ""); err != nil {
		sch.logger.WithError(err).Error("scheduler: failed to transition run to completed")
		return
	}
	sch.publishStatus(runID, domain.RunCompleted)
}

func (sch *Scheduler) failRun(runID string, cause error) {
	sch.logger.WithFields(logrus.Fields{"run_id": runID}).WithError(cause).Error("scheduler: run failed fatally")
	ctx := context.Background()
	if err := sch.store.TransitionRunStatus(ctx, runID, []domain.RunStatus{domain.RunQueued, domain.RunRunning}, domain.RunError, ""); err != nil {
		sch.logger.WithError(err).Error("scheduler: failed to transition run to error")
	}
	sch.registry.Cleanup(runID)
	sch.publishStatus(runID, domain.RunError)
}

func (sch *Scheduler) publishStatus(runID string, status domain.RunStatus) {
	sch.bus.Publish(eventbus.Event{RunID: runID, Kind: eventbus.KindRunStatus, Payload: map[string]any{"status": string(status)}})
}
