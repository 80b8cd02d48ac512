package docmodel

import (
	"context"
	"time"
)

// Document is created by the upload boundary. TextContent stays empty until
// extraction succeeds; a document only becomes searchable once its chunk set
// has been fully replaced in the vector store.
type Document struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	UploadedAt  time.Time `json:"uploaded_at"`
	TextContent string    `json:"text_content,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	Searchable  bool      `json:"searchable"`
}

// Chunk is the unit of retrieval. (DocumentId, ChunkIndex) is unique per
// document; chunks are never mutated, re-ingestion replaces the full set.
type Chunk struct {
	DocumentId string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	Page       int    `json:"page"` // 0 when the source has no page structure
	TokenCount int    `json:"token_count"`
}

// RetrievedChunk is a chunk scored against a query embedding.
type RetrievedChunk struct {
	Chunk
	Similarity float32 `json:"similarity"`
}

// Citation is a read-only projection of a retrieved chunk, produced at answer
// time. It is only persisted inside a section's citation list.
type Citation struct {
	ChunkIndex int    `json:"chunk_index"`
	Page       int    `json:"page,omitempty"`
	Excerpt    string `json:"excerpt"`
	Label      string `json:"label"`
}

type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (Document, bool, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	// MarkSearchable flips the ready flag once the full chunk set is visible.
	MarkSearchable(ctx context.Context, id string, chunkCount int) error
}
