package runmodel

import (
	"context"
	"time"

	"github.com/finsightai/finsight/internal/domain/docmodel"
)

type RunStatus string

// running is the only initial state. completed and failed are terminal -
// stores must refuse any transition out of them.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ModelClass is an open enumeration - unknown keys map to baseline at the
// orchestrator boundary rather than failing.
type ModelClass string

const (
	ModelBaseline  ModelClass = "baseline"
	ModelFineTuned ModelClass = "ft"
	ModelDistilled ModelClass = "distilled"
)

// SectionType is the closed set of checklist headings.
type SectionType string

const (
	SectionRevenueDrivers   SectionType = "revenue_drivers"
	SectionKeyRisks         SectionType = "key_risks"
	SectionUnitEconomics    SectionType = "unit_economics"
	SectionInvestmentThesis SectionType = "investment_thesis"
	SectionFinancialTrends  SectionType = "financial_trends"
)

// Run is one execution of the checklist against one document with one model.
// Re-running the same model against the same document creates a new Run -
// history is used for model comparison, never overwritten.
type Run struct {
	Id          string            `json:"id"`
	DocumentId  string            `json:"document_id"`
	ModelName   string            `json:"model_name"`
	ModelClass  ModelClass        `json:"model_class"`
	Status      RunStatus         `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Section is the append-only result of one checklist question. Only the
// reference-example flag may change after insert.
type Section struct {
	Id                 string              `json:"id"`
	RunId              string              `json:"run_id"`
	SectionType        SectionType         `json:"section_type"`
	QuestionText       string              `json:"question_text"`
	Answer             string              `json:"answer"`
	Citations          []docmodel.Citation `json:"citations"`
	ResponseTimeMillis int64               `json:"response_time_ms"`
	IsReferenceExample bool                `json:"is_reference_example"`
	CreatedAt          time.Time           `json:"created_at"`
}

// RunSummary is the listing projection: aggregates come from one bulk query.
type RunSummary struct {
	Run
	SectionCount          int   `json:"section_count"`
	AvgResponseTimeMillis int64 `json:"avg_response_time_ms"`
}

type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// FinalizeRun commits the single terminal transition. It must be a no-op
	// returning false when the run already left the running state.
	FinalizeRun(ctx context.Context, id string, status RunStatus, completedAt time.Time) (bool, error)
	AppendSection(ctx context.Context, section Section) error
	ListSections(ctx context.Context, runId string) ([]Section, error)
	ListRunsByDocument(ctx context.Context, documentId string) ([]RunSummary, error)
	SetReferenceExample(ctx context.Context, sectionId string, isReference bool) error
	// ListReferenceSections returns every curated section across all runs,
	// oldest first. It backs the fine-tune dataset export.
	ListReferenceSections(ctx context.Context) ([]Section, error)
}
