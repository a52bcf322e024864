package store

import (
	"context"
	"fmt"

	"github.com/modelforge/modelforge/internal/domain"
)

// RunSummary is a read model over a Run's results: counts by status, and
// pass rate and average score across completed results that carry a score.
type RunSummary struct {
	RunID       string
	Total       int
	Passed      int
	Failed      int
	Errored     int
	Cancelled   int
	Pending     int
	Manual      int
	PassRate    float64
	AverageScore float64
}

// RunSummary aggregates a Run's RunResults, grounded on the teacher's
// calculateSummary (spec §12 — a supplemented, non-leaderboard statistic).
func (s *Store) RunSummary(ctx context.Context, runID string) (*RunSummary, error) {
	results, err := s.ListRunResultsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to build run summary: %w", err)
	}

	summary := &RunSummary{RunID: runID}
	var scoreSum, scoreCount int

	for _, r := range results {
		summary.Total++
		switch r.Status {
		case domain.ResultCompleted, domain.ResultManual:
			if r.Status == domain.ResultManual {
				summary.Manual++
			}
			if r.Score != nil {
				scoreSum += *r.Score
				scoreCount++
				if *r.Score >= domain.PassThreshold {
					summary.Passed++
				} else {
					summary.Failed++
				}
			}
		case domain.ResultError:
			summary.Errored++
		case domain.ResultCancelled:
			summary.Cancelled++
		case domain.ResultPending:
			summary.Pending++
		}
	}

	judged := summary.Passed + summary.Failed
	if judged > 0 {
		summary.PassRate = float64(summary.Passed) / float64(judged)
	}
	if scoreCount > 0 {
		summary.AverageScore = float64(scoreSum) / float64(scoreCount)
	}
	return summary, nil
}

// RunComparison is the pairwise delta between two Runs' summaries.
type RunComparison struct {
	RunAID          string
	RunBID          string
	SummaryA        *RunSummary
	SummaryB        *RunSummary
	PassRateDelta   float64
	AverageScoreDelta float64
}

// CompareRuns reports the pass-rate and average-score delta between two
// Runs (runB relative to runA), grounded on the teacher's CompareRuns.
func (s *Store) CompareRuns(ctx context.Context, runAID, runBID string) (*RunComparison, error) {
	summaryA, err := s.RunSummary(ctx, runAID)
	if err != nil {
		return nil, err
	}
	summaryB, err := s.RunSummary(ctx, runBID)
	if err != nil {
		return nil, err
	}

	return &RunComparison{
		RunAID:            runAID,
		RunBID:            runBID,
		SummaryA:          summaryA,
		SummaryB:          summaryB,
		PassRateDelta:     summaryB.PassRate - summaryA.PassRate,
		AverageScoreDelta: summaryB.AverageScore - summaryA.AverageScore,
	}, nil
}
