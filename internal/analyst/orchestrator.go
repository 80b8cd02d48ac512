package analyst

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsightai/finsight/internal/adapter/utils"
	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/runmodel"
	"github.com/finsightai/finsight/internal/metrics"
	"github.com/finsightai/finsight/internal/rag"
	"github.com/finsightai/finsight/pkg/logger_i"
)

// Orchestrator executes the analyst checklist against a document. Each
// question's section is persisted the moment it succeeds, so a run that
// fails midway still leaves its completed sections readable.
type Orchestrator struct {
	runStore runmodel.RunStore
	rag      rag.Service
	logger   *logger_i.Logger
}

func NewOrchestrator(runStore runmodel.RunStore, ragService rag.Service) *Orchestrator {
	return &Orchestrator{
		runStore: runStore,
		rag:      ragService,
		logger:   logger_i.NewLogger("analyst_orchestrator"),
	}
}

// StartRun persists a new running Run and returns it, so callers can hand
// out the run id before the checklist executes. Every call creates an
// independent run, re-running a model never touches earlier runs.
func (o *Orchestrator) StartRun(ctx context.Context, documentId string, modelKey string) (runmodel.Run, error) {
	modelClass, modelName := ResolveModel(modelKey)

	run := runmodel.Run{
		Id:         utils.GetNewUUID(),
		DocumentId: documentId,
		ModelName:  modelName,
		ModelClass: modelClass,
		Status:     runmodel.RunStatusRunning,
		CreatedAt:  time.Now(),
	}
	if err := o.runStore.CreateRun(ctx, run); err != nil {
		return runmodel.Run{}, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

// Execute loads a previously started run and walks the checklist for it.
func (o *Orchestrator) Execute(ctx context.Context, runId string) ([]runmodel.Section, error) {
	run, found, err := o.runStore.GetRun(ctx, runId)
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("run %s not found", runId)
	}
	return o.ExecuteChecklist(ctx, run)
}

// ExecuteChecklist walks the fixed question list sequentially and finalizes
// the run. A question failure does not stop the remaining questions, but any
// failure makes the run terminate failed. The work runs on a detached
// context: callers that stop waiting don't abort in-flight provider calls
// whose sections are already paid for.
func (o *Orchestrator) ExecuteChecklist(ctx context.Context, run runmodel.Run) ([]runmodel.Section, error) {
	runCtx := context.WithValue(context.Background(), config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))
	log := o.logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "runId", run.Id, "model", run.ModelName)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("analyst_run", time.Since(start)) }()

	var sections []runmodel.Section
	var failures []error

	for _, q := range Checklist {
		section, err := o.answerOne(runCtx, run, q)
		if err != nil {
			log.Error("Checklist question failed", "sectionType", q.SectionType, "error", err.Error())
			failures = append(failures, fmt.Errorf("%s: %w", q.SectionType, err))
			continue
		}

		if err := o.runStore.AppendSection(runCtx, section); err != nil {
			log.Error("Persisting section failed", "sectionType", q.SectionType, "error", err.Error())
			failures = append(failures, fmt.Errorf("%s: %w", q.SectionType, err))
			continue
		}
		metrics.CountAnalystSection(string(q.SectionType))
		sections = append(sections, section)
	}

	status := runmodel.RunStatusCompleted
	if len(failures) > 0 {
		status = runmodel.RunStatusFailed
	}

	committed, err := o.runStore.FinalizeRun(runCtx, run.Id, status, time.Now())
	if err != nil {
		log.Error("Finalizing run failed", "error", err.Error())
		return sections, err
	}
	if !committed {
		log.Warn("Run was already finalized", "status", status)
	}

	log.Info("Checklist finished", "status", status, "sections", len(sections))
	if len(failures) > 0 {
		return sections, errors.Join(failures...)
	}
	return sections, nil
}

func (o *Orchestrator) answerOne(ctx context.Context, run runmodel.Run, q ChecklistQuestion) (runmodel.Section, error) {
	questionCtx, cancel := context.WithTimeout(ctx, config.RunQuestionTimeout)
	defer cancel()

	start := time.Now()
	result, err := o.rag.AnswerQuestion(questionCtx, run.DocumentId, q.Question, run.ModelName)
	elapsed := time.Since(start)
	metrics.CaptureExecutionMetrics("analyst_question", elapsed)
	if err != nil {
		return runmodel.Section{}, err
	}

	return runmodel.Section{
		Id:                 utils.GetNewUUID(),
		RunId:              run.Id,
		SectionType:        q.SectionType,
		QuestionText:       q.Question,
		Answer:             result.Answer,
		Citations:          result.Citations,
		ResponseTimeMillis: elapsed.Milliseconds(),
		CreatedAt:          time.Now(),
	}, nil
}
