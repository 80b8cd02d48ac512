package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finsightai/finsight/internal/analyst"
	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
	"github.com/finsightai/finsight/internal/job"
	"github.com/finsightai/finsight/internal/rag/synthesizer"
	"github.com/finsightai/finsight/pkg/logger_i"
)

// MockRagService to track if jobs are executed
type MockRagService struct {
	ProcessedCount int32
}

func (m *MockRagService) ProcessRequest(ctx context.Context, j jobmodel.Job, hist []string) jobmodel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	return j
}

func (m *MockRagService) IngestDocument(ctx context.Context, j jobmodel.Job) jobmodel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	return j
}

func (m *MockRagService) AnswerQuestion(ctx context.Context, documentId string, question string, model string) (synthesizer.Result, error) {
	atomic.AddInt32(&m.ProcessedCount, 1)
	return synthesizer.Result{Answer: "answer"}, nil
}

type MockJobStore struct {
	OnSaveJob func(ctx context.Context, job jobmodel.Job) error
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobmodel.Job, bool) {
	return jobmodel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobmodel.Job) error {
	if m.OnSaveJob != nil {
		return m.OnSaveJob(ctx, j)
	}
	return nil
}

// MockMessageStore handles chat history
type MockMessageStore struct {
	OnGetHistory func(ctx context.Context, chatId string) (error, []string)
	OnSaveChat   func(ctx context.Context, chatId string, payload jobmodel.JobPayload) error
}

func (m *MockMessageStore) ValidateChatId(ctx context.Context, id string) bool {
	return true
}

func (m *MockMessageStore) InitNewChat(ctx context.Context, id string) error {
	return nil
}

func (m *MockMessageStore) GetMessageHistory(ctx context.Context, id string) (error, []string) {
	if m.OnGetHistory != nil {
		return m.OnGetHistory(ctx, id)
	}
	return nil, []string{}
}
func (m *MockMessageStore) TrySaveChat(ctx context.Context, id string, p jobmodel.JobPayload) error {
	if m.OnSaveChat != nil {
		return m.OnSaveChat(ctx, id, p)
	}
	return nil
}

// MockRunStore backs the orchestrator for analysis jobs
type MockRunStore struct {
	mu        sync.Mutex
	runs      map[string]runmodel.Run
	sections  []runmodel.Section
	finalized map[string]runmodel.RunStatus
}

func NewMockRunStore() *MockRunStore {
	return &MockRunStore{
		runs:      make(map[string]runmodel.Run),
		finalized: make(map[string]runmodel.RunStatus),
	}
}

func (m *MockRunStore) CreateRun(ctx context.Context, run runmodel.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.Id] = run
	return nil
}

func (m *MockRunStore) GetRun(ctx context.Context, id string) (runmodel.Run, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	return run, ok, nil
}

func (m *MockRunStore) FinalizeRun(ctx context.Context, id string, status runmodel.RunStatus, completedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.finalized[id]; done {
		return false, nil
	}
	m.finalized[id] = status
	return true, nil
}

func (m *MockRunStore) AppendSection(ctx context.Context, section runmodel.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = append(m.sections, section)
	return nil
}

func (m *MockRunStore) ListSections(ctx context.Context, runId string) ([]runmodel.Section, error) {
	return nil, nil
}

func (m *MockRunStore) ListRunsByDocument(ctx context.Context, documentId string) ([]runmodel.RunSummary, error) {
	return nil, nil
}

func (m *MockRunStore) SetReferenceExample(ctx context.Context, sectionId string, isReference bool) error {
	return nil
}

func (m *MockRunStore) ListReferenceSections(ctx context.Context) ([]runmodel.Section, error) {
	return nil, nil
}

func (m *MockRunStore) FinalizedStatus(id string) runmodel.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized[id]
}

func (m *MockRunStore) SectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sections)
}

func TestWorkerPool_Flow(t *testing.T) {
	// 1. Setup
	jobSvc := &job.Service{
		JobChannel:        make(chan jobmodel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          &MockJobStore{},
		MessageStore:      &MockMessageStore{},
	}
	mockRag := &MockRagService{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag, analyst.NewOrchestrator(NewMockRunStore(), mockRag))
	InitWorkerPool(stopChan, wg)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		// Signal dispatcher to create a worker
		jobSvc.DispatcherChannel <- true

		// Give it a millisecond to spawn
		time.Sleep(50 * time.Millisecond)

		count := atomic.LoadInt64(&currentWorkerCount)
		if count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes a job", func(t *testing.T) {
		testJob := jobmodel.Job{Id: "test-1", JobType: jobmodel.JobTypeQuery}
		jobSvc.JobChannel <- testJob

		// Wait for worker to pick up and process
		time.Sleep(50 * time.Millisecond)

		processed := atomic.LoadInt32(&mockRag.ProcessedCount)
		if processed != 1 {
			t.Errorf("Expected 1 job processed, got %d", processed)
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		// Send stop signal
		close(stopChan)

		// Wait for workers to exit
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_AnalysisJob(t *testing.T) {
	runStore := NewMockRunStore()
	mockRag := &MockRagService{}
	orchestrator := analyst.NewOrchestrator(runStore, mockRag)

	var finalSaveCtx context.Context
	jobStore := &MockJobStore{
		OnSaveJob: func(ctx context.Context, j jobmodel.Job) error {
			if j.Status == jobmodel.JobStatusComplete || j.Status == jobmodel.JobStatusError {
				finalSaveCtx = ctx
			}
			return nil
		},
	}
	jobSvc := &job.Service{
		JobChannel:        make(chan jobmodel.Job, 1),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          jobStore,
		MessageStore:      &MockMessageStore{},
	}
	logger = logger_i.NewLogger("TestWorkerPool")
	InitServices(jobSvc, mockRag, orchestrator)

	run, err := orchestrator.StartRun(context.Background(), "doc-1", "baseline")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	executeJob(jobmodel.Job{
		Id:      "analysis-1",
		TraceId: "trace-1",
		JobType: jobmodel.JobTypeAnalysis,
		JobPayload: jobmodel.JobPayload{
			DocumentId: "doc-1",
			ModelKey:   "baseline",
			RunId:      run.Id,
		},
	})

	if got := runStore.FinalizedStatus(run.Id); got != runmodel.RunStatusCompleted {
		t.Errorf("run should finalize completed, got %q", got)
	}
	if runStore.SectionCount() != len(analyst.Checklist) {
		t.Errorf("expected %d sections, got %d", len(analyst.Checklist), runStore.SectionCount())
	}
	if finalSaveCtx == nil {
		t.Fatal("terminal job state was never saved")
	}
	if _, bounded := finalSaveCtx.Deadline(); bounded {
		t.Error("terminal job state saved on a deadlined context, long runs would never land their final status")
	}
}

func TestWorker_IdleTimeout(t *testing.T) {
	// Temporarily override config/globals for test
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 2) // Must be > 1 based on your logic
	logger = logger_i.NewLogger("TestWorkerPool")
	jobSvc := &job.Service{
		JobChannel: make(chan jobmodel.Job),
	}
	mockRag := &MockRagService{}
	InitServices(jobSvc, mockRag, analyst.NewOrchestrator(NewMockRunStore(), mockRag))

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan

	// Spawn 1 worker manually
	createWorker()
	time.Sleep(config.IdleWorkerTimeout)

	time.Sleep(100 * time.Millisecond)
	count := atomic.LoadInt64(&currentWorkerCount)
	if count != 0 {
		t.Errorf("Assertion Failed: Worker should have timed out and retired, but count is %d", count)
	}
}
