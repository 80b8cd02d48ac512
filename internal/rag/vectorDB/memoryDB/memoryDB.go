package memoryDB

import (
	"context"
	"sort"
	"sync"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/pkg/logger_i"
)

type entry struct {
	chunk  docmodel.Chunk
	vector []float32
}

type cacheEntry struct {
	documentId string
	vector     []float32
	answer     vectorDB.CachedAnswer
}

// Store is an in-process vector index used when Qdrant is unreachable. Same
// contract, brute-force cosine scans, nothing survives a restart.
type Store struct {
	mu     sync.RWMutex
	docs   map[string][]entry
	cache  map[string]cacheEntry
	logger *logger_i.Logger
}

func New() *Store {
	return &Store{
		docs:   make(map[string][]entry),
		cache:  make(map[string]cacheEntry),
		logger: logger_i.NewLogger("memory_vector_db"),
	}
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	return nil
}

func (s *Store) ReplaceDocument(ctx context.Context, documentId string, chunks []docmodel.Chunk, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]entry, len(chunks))
	for i, c := range chunks {
		entries[i] = entry{chunk: c, vector: vectors[i]}
	}
	s.docs[documentId] = entries

	// cached answers were grounded in the old chunk set, drop them too
	for id, e := range s.cache {
		if e.documentId == documentId {
			delete(s.cache, id)
		}
	}
	s.logger.Debug("Document replaced", "documentId", documentId, "points", len(entries))
	return nil
}

func (s *Store) SearchByDocument(ctx context.Context, documentId string, queryVector []float32, topK int) ([]vectorDB.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.docs[documentId]
	scored := make([]vectorDB.ScoredPoint, 0, len(entries))
	for _, e := range entries {
		scored = append(scored, vectorDB.ScoredPoint{
			Chunk: e.chunk,
			Score: vectorDB.Cosine(queryVector, e.vector),
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

func (s *Store) FetchByDocument(ctx context.Context, documentId string) ([]docmodel.Chunk, [][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.docs[documentId]
	chunks := make([]docmodel.Chunk, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		chunks[i] = e.chunk
		vectors[i] = e.vector
	}
	return chunks, vectors, nil
}

func (s *Store) CountByDocument(ctx context.Context, documentId string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.docs[documentId])), nil
}

func (s *Store) GetCachedAnswer(ctx context.Context, documentId string, queryVector []float32) (vectorDB.CachedAnswer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best vectorDB.CachedAnswer
	var bestScore float32
	found := false
	for _, e := range s.cache {
		if e.documentId != documentId {
			continue
		}
		if score := vectorDB.Cosine(queryVector, e.vector); score > bestScore {
			bestScore = score
			best = e.answer
			found = true
		}
	}
	if !found || bestScore < config.CacheSimilarityCutoff {
		return vectorDB.CachedAnswer{}, false, nil
	}
	return best, true, nil
}

func (s *Store) SaveToCache(ctx context.Context, documentId string, id string, vector []float32, answer vectorDB.CachedAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[id] = cacheEntry{documentId: documentId, vector: vector, answer: answer}
	return nil
}
