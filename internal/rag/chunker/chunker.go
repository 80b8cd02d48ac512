package chunker

import (
	"strings"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
)

// Params control chunk boundaries. Budgets are in approximate tokens
// (config.CharsPerToken chars each) so the splitter itself works in chars.
type Params struct {
	TokenBudget int
	Overlap     int
	MinChars    int
}

func DefaultParams() Params {
	return Params{
		TokenBudget: config.ChunkTokenBudget,
		Overlap:     config.ChunkOverlap,
		MinChars:    config.MinChunkChars,
	}
}

// Page is extracted text with its source page number. Number 0 means the
// source had no page structure.
type Page struct {
	Number  int
	Content string
}

// SplitPages chunks page-ordered text into overlapping, page-attributed
// segments. Chunk indices are zero-based and global across the document, so
// identical input always yields identical boundaries and ordinals. Blank
// pages yield no chunks; empty input yields an empty slice, callers treat
// such a document as not yet searchable.
func SplitPages(documentId string, pages []Page, p Params) []docmodel.Chunk {
	limit := p.TokenBudget * config.CharsPerToken
	overlap := p.Overlap * config.CharsPerToken

	var chunks []docmodel.Chunk
	index := 0
	for _, page := range pages {
		content := strings.TrimSpace(page.Content)
		if content == "" {
			continue
		}
		for _, text := range splitText(content, limit, overlap) {
			if len(text) < p.MinChars {
				continue
			}
			chunks = append(chunks, docmodel.Chunk{
				DocumentId: documentId,
				ChunkIndex: index,
				Content:    text,
				Page:       page.Number,
				TokenCount: TokenCount(text),
			})
			index++
		}
	}
	return chunks
}

// TokenCount approximates the token length of text.
func TokenCount(text string) int {
	return len(text) / config.CharsPerToken
}

// splitText cuts text into pieces of at most limit chars, carrying the last
// overlap chars of each piece into the next one so meaning is not lost at
// the boundary. Separators are tried from most to least semantic; a part that
// is itself over the limit is re-split with the finer separators, so no
// emitted piece ever exceeds the limit.
func splitText(text string, limit int, overlap int) []string {
	return splitWith(text, limit, overlap, []string{"\n\n", "\n", ". ", " "})
}

func splitWith(text string, limit int, overlap int, separators []string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	sepIndex := -1
	for i, s := range separators {
		if strings.Contains(text, s) {
			sepIndex = i
			break
		}
	}
	if sepIndex < 0 {
		return hardCut(text, limit, overlap)
	}
	splitChar := separators[sepIndex]
	finer := separators[sepIndex+1:]

	parts := strings.Split(text, splitChar)
	var chunks []string
	var currentChunk strings.Builder

	flush := func() {
		if currentChunk.Len() > 0 {
			chunks = append(chunks, currentChunk.String())
			currentChunk.Reset()
		}
	}

	for _, part := range parts {
		if len(part) > limit {
			flush()
			chunks = append(chunks, splitWith(part, limit, overlap, finer)...)
			continue
		}

		if currentChunk.Len()+len(splitChar)+len(part) > limit {
			// Start the next chunk with the tail of the previous one,
			// unless the carry itself would push the part over the limit
			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}
			flush()
			if len(overlapContent)+len(splitChar)+len(part) <= limit {
				currentChunk.WriteString(overlapContent)
			}
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}
	flush()

	return chunks
}

// hardCut slices separator-free text at the raw char limit.
func hardCut(text string, limit int, overlap int) []string {
	var chunks []string
	for len(text) > limit {
		chunks = append(chunks, text[:limit])
		text = text[limit-overlap:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
