package embedding

import "context"

// Embedder converts text into fixed-dimension vectors. The same provider and
// model must serve both ingestion and query embedding, or the vectors are
// incomparable.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error)
}
