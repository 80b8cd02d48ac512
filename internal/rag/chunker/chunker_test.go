package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func smallParams() Params {
	// tiny budgets so tests don't need megabytes of text
	return Params{TokenBudget: 25, Overlap: 5, MinChars: 10}
}

func TestSplitPages_Empty(t *testing.T) {
	if got := SplitPages("doc-1", nil, DefaultParams()); len(got) != 0 {
		t.Errorf("expected no chunks for nil pages, got %d", len(got))
	}

	pages := []Page{{Number: 1, Content: "   \n  "}, {Number: 2, Content: ""}}
	if got := SplitPages("doc-1", pages, DefaultParams()); len(got) != 0 {
		t.Errorf("expected no chunks for blank pages, got %d", len(got))
	}
}

func TestSplitPages_PageAttribution(t *testing.T) {
	pages := []Page{
		{Number: 1, Content: "Revenue grew twelve percent year over year on strong subscription demand."},
		{Number: 3, Content: "Operating expenses were flat against the prior year despite headcount growth."},
	}

	chunks := SplitPages("doc-1", pages, DefaultParams())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[1].Page != 3 {
		t.Errorf("page attribution lost: %d, %d", chunks[0].Page, chunks[1].Page)
	}
	if chunks[0].ChunkIndex != 0 || chunks[1].ChunkIndex != 1 {
		t.Errorf("chunk indices not sequential: %d, %d", chunks[0].ChunkIndex, chunks[1].ChunkIndex)
	}
	if chunks[0].DocumentId != "doc-1" {
		t.Errorf("document id not carried: %s", chunks[0].DocumentId)
	}
}

func TestSplitPages_OversizedPage(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The company reported strong segment results this quarter. ")
	}
	pages := []Page{{Number: 7, Content: b.String()}}
	p := smallParams()

	chunks := SplitPages("doc-1", pages, p)
	if len(chunks) < 2 {
		t.Fatalf("oversized page should split into multiple chunks, got %d", len(chunks))
	}
	limit := p.TokenBudget * 4
	for _, c := range chunks {
		if len(c.Content) > limit {
			t.Errorf("chunk %d exceeds budget: %d chars, limit %d", c.ChunkIndex, len(c.Content), limit)
		}
		if c.Page != 7 {
			t.Errorf("chunk %d lost page attribution: %d", c.ChunkIndex, c.Page)
		}
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("ordinal %d out of order: %d", i, c.ChunkIndex)
		}
	}
}

func TestSplitPages_Deterministic(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("Gross margin expanded on lower input costs.\n")
	}
	pages := []Page{{Number: 1, Content: b.String()}, {Number: 2, Content: "Net income rose to a record level this year."}}

	first := SplitPages("doc-9", pages, smallParams())
	second := SplitPages("doc-9", pages, smallParams())
	if !reflect.DeepEqual(first, second) {
		t.Error("re-chunking identical input produced different chunks")
	}
}

func TestSplitPages_MinChars(t *testing.T) {
	pages := []Page{{Number: 1, Content: "Too short."}}
	p := DefaultParams()
	if got := SplitPages("doc-1", pages, p); len(got) != 0 {
		t.Errorf("sub-minimum chunk should be dropped, got %d chunks", len(got))
	}
}

func TestSplitPages_TokenBudget(t *testing.T) {
	// paragraphs well past the limit must be re-split, never emitted whole
	paragraph := strings.TrimSpace(strings.Repeat("Net revenue increased across all segments. ", 120))
	pages := []Page{{Number: 1, Content: paragraph + "\n\n" + paragraph}}
	p := DefaultParams()

	chunks := SplitPages("doc-1", pages, p)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks from oversized paragraphs, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.TokenCount > p.TokenBudget {
			t.Errorf("chunk %d has %d tokens, budget is %d", c.ChunkIndex, c.TokenCount, p.TokenBudget)
		}
	}
}

func TestSplitText_Overlap(t *testing.T) {
	text := "Revenue grew fast. Margins expanded well. Costs stayed flat. Cash flow improved."
	chunks := splitText(text, 40, 10)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], tail) {
		t.Errorf("second chunk does not carry the overlap tail %q: %q", tail, chunks[1])
	}
}

func TestSplitText_NoSeparator(t *testing.T) {
	text := strings.Repeat("x", 100)
	chunks := splitText(text, 40, 10)
	if len(chunks) < 3 {
		t.Fatalf("expected hard cuts over 100 chars with limit 40, got %d", len(chunks))
	}
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		rebuilt.WriteString(c[10:])
	}
	if rebuilt.String() != text {
		t.Error("hard-cut chunks with overlap removed do not rebuild the input")
	}
}
