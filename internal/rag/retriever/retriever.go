package retriever

import (
	"context"
	"sort"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/embedding"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/pkg/logger_i"
)

// Retriever finds the chunks of one document most similar to a query. The
// index's native search is tried first, a brute-force cosine scan over the
// document's stored vectors covers index-side query failures.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorDB.DataProcessor
	logger   *logger_i.Logger
}

func New(embedder embedding.Embedder, index vectorDB.DataProcessor) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger_i.NewLogger("retriever"),
	}
}

// Retrieve embeds the query and returns the topK most similar chunks plus
// the query vector, so callers can reuse it for cache writes.
func (r *Retriever) Retrieve(ctx context.Context, documentId string, query string, topK int) ([]docmodel.RetrievedChunk, []float32, error) {
	queryVector, err := r.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	matches, err := r.RetrieveVector(ctx, documentId, queryVector, topK)
	return matches, queryVector, err
}

// RetrieveVector searches with an already-computed query vector.
func (r *Retriever) RetrieveVector(ctx context.Context, documentId string, queryVector []float32, topK int) ([]docmodel.RetrievedChunk, error) {
	log := r.logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)

	points, err := r.index.SearchByDocument(ctx, documentId, queryVector, topK)
	if err != nil {
		log.Warn("Native search failed, scanning stored vectors", "error", err.Error())
		points, err = r.bruteForce(ctx, documentId, queryVector, topK)
		if err != nil {
			log.Error("Brute-force scan failed", "error", err.Error())
			return nil, err
		}
	}

	matches := make([]docmodel.RetrievedChunk, 0, len(points))
	for _, p := range points {
		matches = append(matches, docmodel.RetrievedChunk{
			Chunk:      p.Chunk,
			Similarity: p.Score,
		})
	}

	// identical queries must rank identically, ties break on chunk order
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})

	log.Debug("Retrieved chunks", "count", len(matches))
	return matches, nil
}

func (r *Retriever) bruteForce(ctx context.Context, documentId string, queryVector []float32, topK int) ([]vectorDB.ScoredPoint, error) {
	chunks, vectors, err := r.index.FetchByDocument(ctx, documentId)
	if err != nil {
		return nil, err
	}

	scored := make([]vectorDB.ScoredPoint, 0, len(chunks))
	for i, c := range chunks {
		scored = append(scored, vectorDB.ScoredPoint{
			Chunk: c,
			Score: vectorDB.Cosine(queryVector, vectors[i]),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ChunkIndex < scored[j].Chunk.ChunkIndex
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
