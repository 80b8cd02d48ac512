package relational

import (
	"context"
	"testing"
	"time"

	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveDoc(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.SaveDocument(context.Background(), docmodel.Document{
		Id:         id,
		Name:       "10-K 2023.pdf",
		UploadedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
}

func newRun(id string, documentId string) runmodel.Run {
	return runmodel.Run{
		Id:         id,
		DocumentId: documentId,
		ModelName:  "gpt-4o-mini",
		ModelClass: runmodel.ModelBaseline,
		Status:     runmodel.RunStatusRunning,
		CreatedAt:  time.Now(),
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "doc-1")

	doc, found, err := s.GetDocument(ctx, "doc-1")
	if err != nil || !found {
		t.Fatalf("GetDocument: found=%v err=%v", found, err)
	}
	if doc.Searchable {
		t.Error("new document must not be searchable before indexing")
	}

	if err := s.MarkSearchable(ctx, "doc-1", 40); err != nil {
		t.Fatalf("MarkSearchable: %v", err)
	}
	doc, _, _ = s.GetDocument(ctx, "doc-1")
	if !doc.Searchable || doc.ChunkCount != 40 {
		t.Errorf("searchable flag not persisted: %+v", doc)
	}

	// re-upload hides the document again until re-indexed
	saveDoc(t, s, "doc-1")
	doc, _, _ = s.GetDocument(ctx, "doc-1")
	if doc.Searchable || doc.ChunkCount != 0 {
		t.Errorf("re-saved document should reset searchable: %+v", doc)
	}

	if _, found, err := s.GetDocument(ctx, "missing"); err != nil || found {
		t.Errorf("missing document: found=%v err=%v", found, err)
	}
}

func TestMarkSearchable_MissingDocument(t *testing.T) {
	s := newTestStore(t)
	if err := s.MarkSearchable(context.Background(), "missing", 1); err == nil {
		t.Error("marking a missing document should fail")
	}
}

func TestFinalizeRun_Monotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "doc-1")

	run := newRun("run-1", "doc-1")
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	committed, err := s.FinalizeRun(ctx, "run-1", runmodel.RunStatusCompleted, time.Now())
	if err != nil || !committed {
		t.Fatalf("first finalize should commit: committed=%v err=%v", committed, err)
	}

	committed, err = s.FinalizeRun(ctx, "run-1", runmodel.RunStatusFailed, time.Now())
	if err != nil {
		t.Fatalf("FinalizeRun: %v", err)
	}
	if committed {
		t.Error("a terminal run must refuse a second transition")
	}

	got, found, err := s.GetRun(ctx, "run-1")
	if err != nil || !found {
		t.Fatalf("GetRun: found=%v err=%v", found, err)
	}
	if got.Status != runmodel.RunStatusCompleted {
		t.Errorf("status reversed to %s", got.Status)
	}
	if got.CompletedAt.IsZero() {
		t.Error("completed run should carry a completion timestamp")
	}
}

func TestSections_CitationsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "doc-1")
	if err := s.CreateRun(ctx, newRun("run-1", "doc-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	section := runmodel.Section{
		Id:           "sec-1",
		RunId:        "run-1",
		SectionType:  runmodel.SectionRevenueDrivers,
		QuestionText: "What are the main revenue drivers?",
		Answer:       "Subscriptions [1].",
		Citations: []docmodel.Citation{
			{ChunkIndex: 12, Page: 34, Excerpt: "Total revenue was $4.2B", Label: "[1] p. 34"},
		},
		ResponseTimeMillis: 850,
		CreatedAt:          time.Now(),
	}
	if err := s.AppendSection(ctx, section); err != nil {
		t.Fatalf("AppendSection: %v", err)
	}

	sections, err := s.ListSections(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	got := sections[0]
	if len(got.Citations) != 1 || got.Citations[0].Page != 34 || got.Citations[0].Label != "[1] p. 34" {
		t.Errorf("citations mangled: %+v", got.Citations)
	}
	if got.ResponseTimeMillis != 850 {
		t.Errorf("latency not persisted: %d", got.ResponseTimeMillis)
	}

	if err := s.SetReferenceExample(ctx, "sec-1", true); err != nil {
		t.Fatalf("SetReferenceExample: %v", err)
	}
	sections, _ = s.ListSections(ctx, "run-1")
	if !sections[0].IsReferenceExample {
		t.Error("reference flag not persisted")
	}
}

func TestListReferenceSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "doc-1")
	if err := s.CreateRun(ctx, newRun("run-1", "doc-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.CreateRun(ctx, newRun("run-2", "doc-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	base := time.Now()
	for i, runId := range []string{"run-1", "run-1", "run-2"} {
		err := s.AppendSection(ctx, runmodel.Section{
			Id:           "sec-" + string(rune('a'+i)),
			RunId:        runId,
			SectionType:  runmodel.SectionKeyRisks,
			QuestionText: "q",
			Answer:       "a",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendSection: %v", err)
		}
	}

	sections, err := s.ListReferenceSections(ctx)
	if err != nil {
		t.Fatalf("ListReferenceSections: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("unflagged sections must not export: got %d", len(sections))
	}

	if err := s.SetReferenceExample(ctx, "sec-c", true); err != nil {
		t.Fatalf("SetReferenceExample: %v", err)
	}
	if err := s.SetReferenceExample(ctx, "sec-a", true); err != nil {
		t.Fatalf("SetReferenceExample: %v", err)
	}

	sections, err = s.ListReferenceSections(ctx)
	if err != nil {
		t.Fatalf("ListReferenceSections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 flagged sections across runs, got %d", len(sections))
	}
	if sections[0].Id != "sec-a" || sections[1].Id != "sec-c" {
		t.Errorf("flagged sections not oldest-first: %s, %s", sections[0].Id, sections[1].Id)
	}

	if err := s.SetReferenceExample(ctx, "sec-a", false); err != nil {
		t.Fatalf("SetReferenceExample: %v", err)
	}
	sections, _ = s.ListReferenceSections(ctx)
	if len(sections) != 1 || sections[0].Id != "sec-c" {
		t.Errorf("unflagging should remove the section from the export: %+v", sections)
	}
}

func TestListRunsByDocument_Aggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveDoc(t, s, "doc-1")

	older := newRun("run-old", "doc-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	if err := s.CreateRun(ctx, older); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	newer := newRun("run-new", "doc-1")
	newer.ModelClass = runmodel.ModelFineTuned
	if err := s.CreateRun(ctx, newer); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	for i, ms := range []int64{100, 300} {
		err := s.AppendSection(ctx, runmodel.Section{
			Id:                 "sec-" + string(rune('a'+i)),
			RunId:              "run-old",
			SectionType:        runmodel.SectionKeyRisks,
			QuestionText:       "q",
			Answer:             "a",
			ResponseTimeMillis: ms,
			CreatedAt:          time.Now(),
		})
		if err != nil {
			t.Fatalf("AppendSection: %v", err)
		}
	}

	summaries, err := s.ListRunsByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListRunsByDocument: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(summaries))
	}
	if summaries[0].Id != "run-new" {
		t.Errorf("runs not newest-first: %s", summaries[0].Id)
	}
	if summaries[0].SectionCount != 0 || summaries[0].AvgResponseTimeMillis != 0 {
		t.Errorf("empty run aggregates wrong: %+v", summaries[0])
	}
	if summaries[1].SectionCount != 2 || summaries[1].AvgResponseTimeMillis != 200 {
		t.Errorf("aggregates wrong: count=%d avg=%d", summaries[1].SectionCount, summaries[1].AvgResponseTimeMillis)
	}

	if got, _ := s.ListRunsByDocument(ctx, "doc-other"); len(got) != 0 {
		t.Errorf("runs leaked across documents: %d", len(got))
	}
}
