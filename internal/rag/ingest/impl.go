package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/chunker"
	"github.com/finsightai/finsight/internal/rag/embedding"
)

type docType int

const (
	typeUnsupported docType = iota
	typePDF
	typeDocx
)

// inline embedding handles anything smaller, the batch-job path only pays
// off for enormous corpora
const hugeDataSetThreshold = 1000000

func getDocType(docPath string) docType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return typePDF
	case ".docx", ".txt", ".rtf", ".odt":
		return typeDocx
	default:
		return typeUnsupported
	}
}

func extractText(path string, contentType docType) ([]chunker.Page, error) {
	switch contentType {
	case typePDF:
		return extractPDF(path)
	case typeDocx:
		return extractDocxTxtRtf(path)
	default:
		return nil, fmt.Errorf("unsupported content type: %d", contentType)
	}
}

// embedChunks embeds the full chunk set or nothing. A partial vector set
// would let the retriever see a half-indexed document.
func embedChunks(ctx context.Context, chunks []docmodel.Chunk, embedder embedding.Embedder) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	isHugeDataSet := len(chunks) > hugeDataSetThreshold

	vectors, err := embedder.BatchEmbedding(ctx, texts, isHugeDataSet)
	if err != nil {
		return nil, fmt.Errorf("embedding batch failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}
