package rag_test

import (
	"context"

	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
)

// MockVectorDB implements vectorDB.DataProcessor
type MockVectorDB struct {
	OnSearchByDocument  func(ctx context.Context, documentId string, queryVector []float32, topK int) ([]vectorDB.ScoredPoint, error)
	OnFetchByDocument   func(ctx context.Context, documentId string) ([]docmodel.Chunk, [][]float32, error)
	OnGetCachedAnswer   func(ctx context.Context, documentId string, queryVector []float32) (vectorDB.CachedAnswer, bool, error)
	OnSaveToCache       func(ctx context.Context, documentId string, id string, vector []float32, answer vectorDB.CachedAnswer) error
	OnEnsureCollection  func(ctx context.Context) error
	OnReplaceDocument   func(ctx context.Context, documentId string, chunks []docmodel.Chunk, vectors [][]float32) error
	OnCountByDocument   func(ctx context.Context, documentId string) (uint64, error)
}

func (m *MockVectorDB) SearchByDocument(ctx context.Context, documentId string, queryVector []float32, topK int) ([]vectorDB.ScoredPoint, error) {
	if m.OnSearchByDocument != nil {
		return m.OnSearchByDocument(ctx, documentId, queryVector, topK)
	}
	return []vectorDB.ScoredPoint{
		{Chunk: docmodel.Chunk{DocumentId: documentId, ChunkIndex: 0, Content: "default context", Page: 1}, Score: 0.9},
	}, nil
}

func (m *MockVectorDB) FetchByDocument(ctx context.Context, documentId string) ([]docmodel.Chunk, [][]float32, error) {
	if m.OnFetchByDocument != nil {
		return m.OnFetchByDocument(ctx, documentId)
	}
	return nil, nil, nil
}

func (m *MockVectorDB) GetCachedAnswer(ctx context.Context, documentId string, v []float32) (vectorDB.CachedAnswer, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, documentId, v)
	}
	return vectorDB.CachedAnswer{}, false, nil
}

func (m *MockVectorDB) SaveToCache(ctx context.Context, documentId string, id string, v []float32, a vectorDB.CachedAnswer) error {
	if m.OnSaveToCache != nil {
		return m.OnSaveToCache(ctx, documentId, id, v, a)
	}
	return nil
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context) error {
	if m.OnEnsureCollection != nil {
		return m.OnEnsureCollection(ctx)
	}
	return nil
}

func (m *MockVectorDB) ReplaceDocument(ctx context.Context, documentId string, chunks []docmodel.Chunk, vectors [][]float32) error {
	if m.OnReplaceDocument != nil {
		return m.OnReplaceDocument(ctx, documentId, chunks, vectors)
	}
	return nil
}

func (m *MockVectorDB) CountByDocument(ctx context.Context, documentId string) (uint64, error) {
	if m.OnCountByDocument != nil {
		return m.OnCountByDocument(ctx, documentId)
	}
	return 0, nil
}

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks, isHuge)
	}
	vectors := make([][]float32, len(chunks))
	for i := range vectors {
		vectors[i] = []float32{0.1}
	}
	return vectors, nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1}, nil
}

// MockProvider implements llm.Provider
type MockProvider struct {
	OnGenerate func(ctx context.Context, model string, systemPrompt string, messages []llm.Message) (string, error)
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, model string, systemPrompt string, messages []llm.Message) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, model, systemPrompt, messages)
	}
	return "mocked llm response", nil
}

// MockDocStore implements docmodel.DocumentStore
type MockDocStore struct {
	OnGetDocument    func(ctx context.Context, id string) (docmodel.Document, bool, error)
	OnSaveDocument   func(ctx context.Context, doc docmodel.Document) error
	OnMarkSearchable func(ctx context.Context, id string, chunkCount int) error
}

func (m *MockDocStore) SaveDocument(ctx context.Context, doc docmodel.Document) error {
	if m.OnSaveDocument != nil {
		return m.OnSaveDocument(ctx, doc)
	}
	return nil
}

func (m *MockDocStore) GetDocument(ctx context.Context, id string) (docmodel.Document, bool, error) {
	if m.OnGetDocument != nil {
		return m.OnGetDocument(ctx, id)
	}
	return docmodel.Document{Id: id, Searchable: true, ChunkCount: 1}, true, nil
}

func (m *MockDocStore) ListDocuments(ctx context.Context) ([]docmodel.Document, error) {
	return nil, nil
}

func (m *MockDocStore) MarkSearchable(ctx context.Context, id string, chunkCount int) error {
	if m.OnMarkSearchable != nil {
		return m.OnMarkSearchable(ctx, id, chunkCount)
	}
	return nil
}
