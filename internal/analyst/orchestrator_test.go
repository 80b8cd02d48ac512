package analyst

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
	"github.com/finsightai/finsight/internal/rag/synthesizer"
)

type mockRunStore struct {
	runmodel.RunStore

	runs      []runmodel.Run
	sections  []runmodel.Section
	finalized map[string]runmodel.RunStatus

	onAppendSection func(section runmodel.Section) error
	onFinalizeRun   func(id string, status runmodel.RunStatus) (bool, error)
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{finalized: make(map[string]runmodel.RunStatus)}
}

func (m *mockRunStore) CreateRun(ctx context.Context, run runmodel.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockRunStore) AppendSection(ctx context.Context, section runmodel.Section) error {
	if m.onAppendSection != nil {
		if err := m.onAppendSection(section); err != nil {
			return err
		}
	}
	m.sections = append(m.sections, section)
	return nil
}

func (m *mockRunStore) FinalizeRun(ctx context.Context, id string, status runmodel.RunStatus, completedAt time.Time) (bool, error) {
	if m.onFinalizeRun != nil {
		return m.onFinalizeRun(id, status)
	}
	if _, done := m.finalized[id]; done {
		return false, nil
	}
	m.finalized[id] = status
	return true, nil
}

type mockRagService struct {
	onAnswer func(documentId string, question string, model string) (synthesizer.Result, error)
}

func (m *mockRagService) ProcessRequest(ctx context.Context, job jobmodel.Job, history []string) jobmodel.Job {
	return job
}

func (m *mockRagService) IngestDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	return job
}

func (m *mockRagService) AnswerQuestion(ctx context.Context, documentId string, question string, model string) (synthesizer.Result, error) {
	if m.onAnswer != nil {
		return m.onAnswer(documentId, question, model)
	}
	return synthesizer.Result{Answer: "answer for " + question}, nil
}

func testCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func TestExecuteChecklist_AllQuestionsSucceed(t *testing.T) {
	store := newMockRunStore()
	o := NewOrchestrator(store, &mockRagService{})

	run, err := o.StartRun(testCtx(), "doc-1", "baseline")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.Status != runmodel.RunStatusRunning {
		t.Errorf("new run should be running, got %s", run.Status)
	}

	sections, err := o.ExecuteChecklist(testCtx(), run)
	if err != nil {
		t.Fatalf("ExecuteChecklist: %v", err)
	}
	if len(sections) != len(Checklist) {
		t.Fatalf("expected %d sections, got %d", len(Checklist), len(sections))
	}

	seen := make(map[runmodel.SectionType]bool)
	for i, s := range sections {
		if s.RunId != run.Id {
			t.Errorf("section %d belongs to wrong run: %s", i, s.RunId)
		}
		if s.SectionType != Checklist[i].SectionType {
			t.Errorf("section %d out of checklist order: %s", i, s.SectionType)
		}
		if s.QuestionText != Checklist[i].Question {
			t.Errorf("section %d question text altered", i)
		}
		if s.ResponseTimeMillis < 0 {
			t.Errorf("section %d has negative latency", i)
		}
		seen[s.SectionType] = true
	}
	if len(seen) != len(Checklist) {
		t.Errorf("section types not distinct: %v", seen)
	}

	if store.finalized[run.Id] != runmodel.RunStatusCompleted {
		t.Errorf("run should be completed, got %s", store.finalized[run.Id])
	}
}

func TestExecuteChecklist_PartialFailure(t *testing.T) {
	store := newMockRunStore()
	svc := &mockRagService{
		onAnswer: func(documentId string, question string, model string) (synthesizer.Result, error) {
			if question == Checklist[2].Question {
				return synthesizer.Result{}, errors.New("provider timeout")
			}
			return synthesizer.Result{Answer: "ok"}, nil
		},
	}
	o := NewOrchestrator(store, svc)

	run, _ := o.StartRun(testCtx(), "doc-1", "baseline")
	sections, err := o.ExecuteChecklist(testCtx(), run)
	if err == nil {
		t.Fatal("a failed question must fail the run")
	}

	if len(sections) != len(Checklist)-1 {
		t.Errorf("remaining questions should still execute: got %d sections", len(sections))
	}
	if len(store.sections) != len(Checklist)-1 {
		t.Errorf("successful sections must stay durable: %d persisted", len(store.sections))
	}
	for _, s := range store.sections {
		if s.SectionType == Checklist[2].SectionType {
			t.Error("failed question must not produce a section")
		}
	}
	if store.finalized[run.Id] != runmodel.RunStatusFailed {
		t.Errorf("run should be failed, got %s", store.finalized[run.Id])
	}
}

func TestExecuteChecklist_AlreadyFinalized(t *testing.T) {
	store := newMockRunStore()
	store.onFinalizeRun = func(id string, status runmodel.RunStatus) (bool, error) {
		return false, nil
	}
	o := NewOrchestrator(store, &mockRagService{})

	run, _ := o.StartRun(testCtx(), "doc-1", "baseline")
	if _, err := o.ExecuteChecklist(testCtx(), run); err != nil {
		t.Fatalf("a lost finalize race is not an error: %v", err)
	}
}

func TestStartRun_IndependentRuns(t *testing.T) {
	store := newMockRunStore()
	o := NewOrchestrator(store, &mockRagService{})

	first, err := o.StartRun(testCtx(), "doc-1", "baseline")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	second, err := o.StartRun(testCtx(), "doc-1", "ft")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if first.Id == second.Id {
		t.Error("re-running must create an independent run")
	}
	if second.ModelClass != runmodel.ModelFineTuned {
		t.Errorf("model key not mapped: %s", second.ModelClass)
	}
	if len(store.runs) != 2 {
		t.Errorf("expected 2 persisted runs, got %d", len(store.runs))
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		key       string
		wantClass runmodel.ModelClass
	}{
		{"baseline", runmodel.ModelBaseline},
		{"ft", runmodel.ModelFineTuned},
		{"distilled", runmodel.ModelDistilled},
		{"", runmodel.ModelBaseline},
		{"something-else", runmodel.ModelBaseline},
	}
	for _, tt := range tests {
		class, model := ResolveModel(tt.key)
		if class != tt.wantClass {
			t.Errorf("ResolveModel(%q) class = %s, want %s", tt.key, class, tt.wantClass)
		}
		if model == "" {
			t.Errorf("ResolveModel(%q) returned empty model name", tt.key)
		}
	}
}

func TestResolveModel_EnvOverride(t *testing.T) {
	t.Setenv("FINSIGHT_FT_MODEL", "ft:custom-suffix")
	t.Setenv("FINSIGHT_BASELINE_MODEL", "gpt-custom")

	if _, model := ResolveModel("ft"); model != "ft:custom-suffix" {
		t.Errorf("ft override not honored: %s", model)
	}
	if _, model := ResolveModel("baseline"); model != "gpt-custom" {
		t.Errorf("baseline override not honored: %s", model)
	}
}
