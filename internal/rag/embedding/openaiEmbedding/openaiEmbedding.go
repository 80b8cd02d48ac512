package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/customHttpClient"
	"github.com/finsightai/finsight/internal/rag/embedding"
	"github.com/finsightai/finsight/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client

type client struct {
	openAi *openai.Client
	model  string
}

func newOpenAIEmbedder(modelName string, apikey string) {
	c := openai.NewClient(
		option.WithAPIKey(apikey),
		option.WithHTTPClient(customHttpClient.New()),
	)
	embeddingClient = &client{
		openAi: &c,
		model:  modelName,
	}
	logger.Debug("OpenAI Embedding model name: " + modelName)
	logger.Info("OpenAI Embedding client created")
}

func GetOpenAIEmbeddingClient(modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		newOpenAIEmbedder(modelName, apikey)
	})

	if embeddingClient == nil {
		return nil
	}
	return &client{openAi: embeddingClient.openAi, model: embeddingClient.model}
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))

	vectors, err := c.doCall(ctx, []string{query}, log)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// BatchEmbedding embeds every chunk or none. A failed batch aborts the whole
// call so a document is never left half indexed. isHugeDataSet is accepted
// for interface parity, the OpenAI path always embeds inline.
func (c *client) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	log := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))

	results := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += config.EmbeddingBatchSize {
		end := start + config.EmbeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		vectors, err := c.doCall(ctx, chunks[start:end], log)
		if err != nil {
			log.Error("Batch embedding aborted", "failedAt", start, "total", len(chunks), "error", err.Error())
			return nil, err
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (c *client) doCall(ctx context.Context, texts []string, log *logger_i.Logger) ([][]float32, error) {
	resp, err := c.openAi.Embeddings.New(ctx, c.params(texts))
	if err != nil && doRetry(err, log) {
		time.Sleep(5 * time.Second)
		log.Debug("Retrying after rate limit")
		resp, err = c.openAi.Embeddings.New(ctx, c.params(texts))
	}
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err.Error())
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	// responses carry an Index, order by it rather than trusting slice order
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

func (c *client) params(texts []string) openai.EmbeddingNewParams {
	return openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(c.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(config.EmbeddingOutputDimensionality)),
	}
}

func doRetry(err error, log *logger_i.Logger) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		log.Error("Rate limit hit!", "error", err)
		return true
	}
	return false
}
