package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

var logger *logger_i.Logger
var quadrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingOutputDimensionality)
var collectionName = config.EmbeddingCollectionName

const scrollPageSize = 512

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQuadrantClient(ctx context.Context) *ClientHolder {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			quadrantInstance = res
			initCacheCollection(ctx, quadrantInstance)
			go closeQdrant(ctx, quadrantInstance)
		}
	})

	if quadrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: quadrantInstance,
	}
}

func newClient() *qdrant.Client {
	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	err = createCollection(context.Background(), client, collectionName)
	if err != nil {
		logger.Error("could not create collection: ", "collectionName", collectionName, "error:", err)
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) EnsureCollection(ctx context.Context) error {
	return createCollection(ctx, db.QObj, collectionName)
}

// pointId derives a stable UUID from the document and chunk ordinal so a
// re-ingest overwrites the same points instead of accumulating duplicates.
func pointId(documentId string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", documentId, chunkIndex))).String()
}

func documentFilter(documentId string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("document_id", documentId),
		},
	}
}

func (db *ClientHolder) ReplaceDocument(ctx context.Context, documentId string, chunks []docmodel.Chunk, vectors [][]float32) error {
	loggr := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentId)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete of stale points failed: %w", err)
	}

	// cached answers were grounded in the old chunk set, drop them too
	_, err = db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: semanticCacheDBName,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentId)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete of stale cache entries failed: %w", err)
	}

	if len(chunks) == 0 {
		loggr.Debug("Document cleared, nothing to upsert")
		return nil
	}

	ingestedAt := time.Now().Unix()
	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointId(documentId, chunk.ChunkIndex)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":     chunk.Content,
				"page":        int64(chunk.Page),
				"document_id": chunk.DocumentId,
				"chunk_index": int64(chunk.ChunkIndex),
				"token_count": int64(chunk.TokenCount),
				"ingested_at": ingestedAt,
			}),
		}
	}

	_, err = db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}

	loggr.Debug("Document replaced", "points", len(qdrantPoints))
	return nil
}

func (db *ClientHolder) SearchByDocument(ctx context.Context, documentId string, queryVector []float32, topK int) ([]vectorDB.ScoredPoint, error) {
	loggr := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         documentFilter(documentId),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	points := make([]vectorDB.ScoredPoint, 0, len(result))
	for _, hit := range result {
		points = append(points, vectorDB.ScoredPoint{
			Chunk: chunkFromPayload(hit.Payload),
			Score: hit.Score,
		})
	}

	loggr.Debug("Found matches", "count", len(points))
	return points, nil
}

// FetchByDocument scrolls every point of one document, used by the
// brute-force retrieval fallback and by consistency checks.
func (db *ClientHolder) FetchByDocument(ctx context.Context, documentId string) ([]docmodel.Chunk, [][]float32, error) {
	var chunks []docmodel.Chunk
	var vectors [][]float32

	var offset *qdrant.PointId
	for {
		page, err := db.QObj.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collectionName,
			Filter:         documentFilter(documentId),
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, nil, err
		}

		for _, p := range page {
			chunks = append(chunks, chunkFromPayload(p.Payload))
			vectors = append(vectors, p.Vectors.GetVector().GetData())
		}

		if len(page) < scrollPageSize {
			return chunks, vectors, nil
		}
		offset = page[len(page)-1].Id
	}
}

func (db *ClientHolder) CountByDocument(ctx context.Context, documentId string) (uint64, error) {
	return db.QObj.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName,
		Filter:         documentFilter(documentId),
		Exact:          qdrant.PtrOf(true),
	})
}

func chunkFromPayload(payload map[string]*qdrant.Value) docmodel.Chunk {
	return docmodel.Chunk{
		DocumentId: payload["document_id"].GetStringValue(),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		Content:    payload["content"].GetStringValue(),
		Page:       int(payload["page"].GetIntegerValue()),
		TokenCount: int(payload["token_count"].GetIntegerValue()),
	}
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	return err
}
