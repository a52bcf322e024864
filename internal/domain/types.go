// Package domain holds the entity types shared by the store, scheduler,
// adapter and judge packages.
package domain

import "time"

// AdapterKind identifies the wire protocol a Provider speaks.
type AdapterKind string

const (
	AdapterOpenAICompat AdapterKind = "openai-compat"
	AdapterAnthropic    AdapterKind = "anthropic"
	AdapterGemini       AdapterKind = "gemini"
	AdapterCustom       AdapterKind = "custom"
)

// ProblemKind distinguishes text problems (judged) from html problems
// (manually reviewed).
type ProblemKind string

const (
	ProblemText ProblemKind = "text"
	ProblemHTML ProblemKind = "html"
)

// RunStatus is the lifecycle status of a Run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunError     RunStatus = "error"
)

// ResultStatus is the lifecycle status of a RunResult.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultManual    ResultStatus = "manual"
	ResultCompleted ResultStatus = "completed"
	ResultCancelled ResultStatus = "cancelled"
	ResultError     ResultStatus = "error"
)

// PassThreshold is the minimum score, inclusive, that counts as a pass.
const PassThreshold = 50

// JudgeHuman is the literal judged_by value used for manual review.
const JudgeHuman = "human"

// Provider is a registered external model vendor.
type Provider struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	AdapterKind    AdapterKind `json:"adapter_kind"`
	BaseURL        string      `json:"base_url"`
	Credential     string      `json:"credential,omitempty"`
	DefaultModelID string      `json:"default_model_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	LastProbeAt    *time.Time  `json:"last_probe_at,omitempty"`
}

// ParamValue is one entry in a Model's parameter configuration.
type ParamValue struct {
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value,omitempty"`
	// StopSequences holds the value when Name == "stop_sequences"; params
	// are otherwise numeric, so this is the one string-slice exception.
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// Model is a vendor model exposed through a Provider.
type Model struct {
	ID         string                `json:"id"`
	ProviderID string                `json:"provider_id"`
	Label      string                `json:"label"`
	VendorID   string                `json:"vendor_id"`
	Params     map[string]ParamValue `json:"params,omitempty"`
}

// ProblemSet groups Problems under a name.
type ProblemSet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Problem is one task within a ProblemSet.
type Problem struct {
	ID           string      `json:"id"`
	ProblemSetID string      `json:"problem_set_id"`
	Kind         ProblemKind `json:"kind"`
	Prompt       string      `json:"prompt"`
	Expected     string      `json:"expected,omitempty"`
	HTMLAssets   string      `json:"html_assets,omitempty"`
	ScoringHints string      `json:"scoring_hints,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Run is one execution instance of a ProblemSet against candidate models.
type Run struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	ProblemSetID  string     `json:"problem_set_id"`
	ModelIDs      []string   `json:"model_ids"`
	JudgeModelID  string     `json:"judge_model_id"`
	Status        RunStatus  `json:"status"`
	StreamEnabled bool       `json:"stream_enabled"`
	CreatedAt     time.Time  `json:"created_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy   string     `json:"cancelled_by,omitempty"`
}

// RunResult is the persisted outcome of one (run, problem, model) triple.
type RunResult struct {
	ID             string       `json:"id"`
	RunID          string       `json:"run_id"`
	ProblemID      string       `json:"problem_id"`
	ModelID        string       `json:"model_id"`
	Output         string       `json:"output,omitempty"`
	Score          *int         `json:"score,omitempty"`
	Status         ResultStatus `json:"status"`
	JudgedBy       string       `json:"judged_by,omitempty"`
	JudgeReasoning string       `json:"judge_reasoning,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`
}

// ResultPatch is a partial update applied by Store.MarkResult.
type ResultPatch struct {
	Output         *string
	Score          *int
	Status         *ResultStatus
	JudgedBy       *string
	JudgeReasoning *string
	CancelledAt    *time.Time
}
