package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/llm"
)

type fakeProvider struct {
	answer      string
	err         error
	called      bool
	gotSystem   string
	gotMessages []llm.Message
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, model string, systemPrompt string, messages []llm.Message) (string, error) {
	f.called = true
	f.gotSystem = systemPrompt
	f.gotMessages = messages
	return f.answer, f.err
}

func match(index int, page int, content string) docmodel.RetrievedChunk {
	return docmodel.RetrievedChunk{
		Chunk: docmodel.Chunk{
			DocumentId: "doc-1",
			ChunkIndex: index,
			Content:    content,
			Page:       page,
			TokenCount: len(content) / config.CharsPerToken,
		},
		Similarity: 0.9,
	}
}

func TestSynthesize_CitationsTraceToRetrievedChunks(t *testing.T) {
	provider := &fakeProvider{answer: "Revenue grew 12% [1][2]."}
	s := New(provider)
	matches := []docmodel.RetrievedChunk{
		match(12, 34, "Total revenue was $4.2B, up 12% year over year."),
		match(27, 61, "Subscription revenue drove most of the growth."),
	}

	got, err := s.Synthesize(context.Background(), "gpt-4o-mini", "What was revenue?", matches, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got.Answer != provider.answer {
		t.Errorf("answer not passed through: %q", got.Answer)
	}
	if len(got.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(got.Citations))
	}
	byIndex := map[int]bool{}
	for _, m := range matches {
		byIndex[m.ChunkIndex] = true
	}
	for _, c := range got.Citations {
		if !byIndex[c.ChunkIndex] {
			t.Errorf("citation references chunk %d that was never retrieved", c.ChunkIndex)
		}
	}
	if got.Citations[0].Page != 34 || got.Citations[1].Page != 61 {
		t.Errorf("citation pages wrong: %+v", got.Citations)
	}
	if got.Citations[0].Label != "[1] p. 34" {
		t.Errorf("unexpected label: %q", got.Citations[0].Label)
	}
}

func TestSynthesize_NoGrounding(t *testing.T) {
	provider := &fakeProvider{answer: "should not be used"}
	s := New(provider)

	got, err := s.Synthesize(context.Background(), "m", "q", nil, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if provider.called {
		t.Error("provider should not be called without grounding")
	}
	if len(got.Citations) != 0 {
		t.Errorf("no-grounding answer must not carry citations: %+v", got.Citations)
	}
	if !strings.Contains(got.Answer, "grounded answer") {
		t.Errorf("answer should state the absence of evidence: %q", got.Answer)
	}
}

func TestSynthesize_ProviderFailureSurfaces(t *testing.T) {
	s := New(&fakeProvider{err: errors.New("timeout")})

	_, err := s.Synthesize(context.Background(), "m", "q", []docmodel.RetrievedChunk{match(0, 1, "text")}, nil)
	if err == nil {
		t.Fatal("provider failure must surface, not become an empty answer")
	}
}

func TestSynthesize_HistoryPrecedesQuestion(t *testing.T) {
	provider := &fakeProvider{answer: "ok"}
	s := New(provider)
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}

	_, err := s.Synthesize(context.Background(), "m", "new question", []docmodel.RetrievedChunk{match(0, 1, "text")}, history)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(provider.gotMessages) != 3 {
		t.Fatalf("expected history plus question, got %d messages", len(provider.gotMessages))
	}
	if provider.gotMessages[0].Content != "earlier question" {
		t.Error("history not threaded first")
	}
	last := provider.gotMessages[2]
	if last.Role != llm.RoleUser || !strings.Contains(last.Content, "new question") {
		t.Errorf("final message should carry the new question: %+v", last)
	}
}

func TestSynthesize_ExcerptTruncated(t *testing.T) {
	provider := &fakeProvider{answer: "ok"}
	s := New(provider)
	long := strings.Repeat("a", config.CitationExcerptChars*2)

	got, err := s.Synthesize(context.Background(), "m", "q", []docmodel.RetrievedChunk{match(0, 1, long)}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got.Citations[0].Excerpt) != config.CitationExcerptChars {
		t.Errorf("excerpt not truncated: %d chars", len(got.Citations[0].Excerpt))
	}
}

func TestSynthesize_ExcerptTruncatedOnRuneBoundary(t *testing.T) {
	provider := &fakeProvider{answer: "ok"}
	s := New(provider)
	long := strings.Repeat("é", config.CitationExcerptChars*2)

	got, err := s.Synthesize(context.Background(), "m", "q", []docmodel.RetrievedChunk{match(0, 1, long)}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	excerpt := got.Citations[0].Excerpt
	if !utf8.ValidString(excerpt) {
		t.Error("truncation split a multi-byte rune")
	}
	if n := utf8.RuneCountInString(excerpt); n != config.CitationExcerptChars {
		t.Errorf("excerpt has %d runes, want %d", n, config.CitationExcerptChars)
	}
}

func TestSynthesize_ContextBudget(t *testing.T) {
	provider := &fakeProvider{answer: "ok"}
	s := New(provider)

	big := strings.Repeat("b", config.ContextTokenBudget*config.CharsPerToken)
	matches := []docmodel.RetrievedChunk{
		match(0, 1, big),
		match(1, 2, "small chunk that no longer fits in the budget"),
	}

	got, err := s.Synthesize(context.Background(), "m", "q", matches, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got.Citations) != 1 {
		t.Errorf("over-budget chunks should be excluded from citations, got %d", len(got.Citations))
	}
}
