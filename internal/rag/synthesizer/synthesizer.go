package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/chunker"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/pkg/logger_i"
)

const systemPrompt = `You are an equity research analyst answering questions about a single financial filing.
Answer ONLY from the numbered excerpts provided in the context. Cite the excerpts you used by their bracketed number, e.g. [2].
If the excerpts do not contain the information needed, say so plainly instead of guessing.`

const noGroundingAnswer = "No supporting excerpts were found in this document for that question, so I can't give a grounded answer. The document may not cover this topic, or it may not be fully indexed yet."

// SystemPrompt is the grounding instruction sent with every synthesis call.
// The fine-tune dataset export emits the same prompt so training examples
// match what the model sees at inference time.
func SystemPrompt() string {
	return systemPrompt
}

// Result is a synthesized answer with the citations that ground it.
type Result struct {
	Answer    string
	Citations []docmodel.Citation
}

// Synthesizer turns retrieved chunks into a grounded answer. Every citation
// it returns maps back to a chunk that was actually in the prompt.
type Synthesizer struct {
	provider llm.Provider
	logger   *logger_i.Logger
}

func New(provider llm.Provider) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		logger:   logger_i.NewLogger("synthesizer"),
	}
}

// Synthesize answers question from matches, threading history ahead of the
// new question for chat callers. Zero matches short-circuits to an explicit
// no-grounding answer without calling the provider.
func (s *Synthesizer) Synthesize(ctx context.Context, model string, question string, matches []docmodel.RetrievedChunk, history []llm.Message) (Result, error) {
	log := s.logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))

	if len(matches) == 0 {
		log.Info("No grounding found, skipping provider call")
		return Result{Answer: noGroundingAnswer}, nil
	}

	included, contextBlock := buildContext(matches)
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context excerpts:\n%s\nQuestion: %s", contextBlock, question),
	})

	answer, err := s.provider.Generate(ctx, model, systemPrompt, messages)
	if err != nil {
		log.Error("Generation failed", "error", err.Error())
		return Result{}, fmt.Errorf("generation failed: %w", err)
	}

	return Result{
		Answer:    answer,
		Citations: buildCitations(included),
	}, nil
}

// buildContext formats chunks with their citation labels, stopping once the
// context token budget is spent. Returns the chunks that actually made it in.
func buildContext(matches []docmodel.RetrievedChunk) ([]docmodel.RetrievedChunk, string) {
	var b strings.Builder
	var included []docmodel.RetrievedChunk

	budget := config.ContextTokenBudget
	for _, m := range matches {
		tokens := m.TokenCount
		if tokens == 0 {
			tokens = chunker.TokenCount(m.Content)
		}
		if tokens > budget && len(included) > 0 {
			break
		}
		budget -= tokens

		label := len(included) + 1
		if m.Page > 0 {
			fmt.Fprintf(&b, "[%d] (page %d) %s\n\n", label, m.Page, m.Content)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n\n", label, m.Content)
		}
		included = append(included, m)
	}
	return included, b.String()
}

func buildCitations(included []docmodel.RetrievedChunk) []docmodel.Citation {
	citations := make([]docmodel.Citation, 0, len(included))
	for i, m := range included {
		excerpt := m.Content
		if len(excerpt) > config.CitationExcerptChars {
			// cut on a rune boundary so multi-byte text is never mangled
			runes := []rune(excerpt)
			if len(runes) > config.CitationExcerptChars {
				runes = runes[:config.CitationExcerptChars]
			}
			excerpt = string(runes)
		}
		label := fmt.Sprintf("[%d]", i+1)
		if m.Page > 0 {
			label = fmt.Sprintf("[%d] p. %d", i+1, m.Page)
		}
		citations = append(citations, docmodel.Citation{
			ChunkIndex: m.ChunkIndex,
			Page:       m.Page,
			Excerpt:    excerpt,
			Label:      label,
		})
	}
	return citations
}
