package vectorDB

import (
	"context"
	"math"

	"github.com/finsightai/finsight/internal/domain/docmodel"
)

// ScoredPoint is a stored chunk with its similarity to a query vector.
type ScoredPoint struct {
	Chunk docmodel.Chunk
	Score float32
}

// CachedAnswer is a previously synthesized answer kept in the semantic cache.
type CachedAnswer struct {
	Answer    string
	Citations []docmodel.Citation
}

// DataProcessor is the vector index. All lookups are scoped to a single
// document, chunks from other filings must never leak into a search result.
type DataProcessor interface {
	EnsureCollection(ctx context.Context) error

	// ReplaceDocument atomically swaps a document's chunks: the old points are
	// removed and the new ones written in one call, re-ingesting never leaves
	// stale chunks behind.
	ReplaceDocument(ctx context.Context, documentId string, chunks []docmodel.Chunk, vectors [][]float32) error

	SearchByDocument(ctx context.Context, documentId string, queryVector []float32, topK int) ([]ScoredPoint, error)
	FetchByDocument(ctx context.Context, documentId string) ([]docmodel.Chunk, [][]float32, error)
	CountByDocument(ctx context.Context, documentId string) (uint64, error)

	GetCachedAnswer(ctx context.Context, documentId string, queryVector []float32) (CachedAnswer, bool, error)
	SaveToCache(ctx context.Context, documentId string, id string, vector []float32, answer CachedAnswer) error
}

// Cosine computes cosine similarity. Zero vectors or mismatched lengths score
// zero rather than NaN.
func Cosine(a []float32, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
