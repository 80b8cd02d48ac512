package qdrantDB

import (
	"context"
	"encoding/json"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/qdrant/go-client/qdrant"
)

var semanticCacheDBName string = "semantic-cache"

func initCacheCollection(ctx context.Context, client *qdrant.Client) {
	loggr := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))
	err := createCollection(ctx, client, semanticCacheDBName)
	if err != nil {
		loggr.Error("Semantic cache collection creation failed", "error", err)
	}
}

// GetCachedAnswer looks for a near-identical earlier question against the
// same document. Cache entries are document scoped, the same question about
// a different filing must not hit.
func (db *ClientHolder) GetCachedAnswer(ctx context.Context, documentId string, queryVector []float32) (vectorDB.CachedAnswer, bool, error) {
	loggr := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)

	loggr.Info("Searching for cached answer")
	searchResult, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: semanticCacheDBName,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         documentFilter(documentId),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return vectorDB.CachedAnswer{}, false, err
	}
	if len(searchResult) == 0 {
		return vectorDB.CachedAnswer{}, false, nil
	}

	loggr.Debug("Found cached answer", "semantic similarity score", searchResult[0].Score)
	if searchResult[0].Score < config.CacheSimilarityCutoff {
		return vectorDB.CachedAnswer{}, false, nil
	}

	loggr.Info("---------------cache hit---------------------")
	answer := vectorDB.CachedAnswer{
		Answer: searchResult[0].Payload["answer"].GetStringValue(),
	}
	if raw := searchResult[0].Payload["citations"].GetStringValue(); raw != "" {
		var citations []docmodel.Citation
		if err := json.Unmarshal([]byte(raw), &citations); err == nil {
			answer.Citations = citations
		}
	}
	return answer, true, nil
}

func (db *ClientHolder) SaveToCache(ctx context.Context, documentId string, id string, vector []float32, answer vectorDB.CachedAnswer) error {
	loggr := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)

	citations, err := json.Marshal(answer.Citations)
	if err != nil {
		loggr.Error("Marshalling citations for cache failed", "error", err)
		return err
	}

	loggr.Debug("Saving answer to cache")
	_, err = db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: semanticCacheDBName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"answer":      answer.Answer,
					"citations":   string(citations),
					"document_id": documentId,
					"timestamp":   time.Now().Unix(),
				}),
			},
		},
	})
	if err != nil {
		loggr.Error("Saving answer to cache failed", "error", err)
	}
	return err
}
