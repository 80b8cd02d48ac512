package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/metrics"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/internal/rag/synthesizer"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/pkg/logger_i"
)

func returnOutput(job jobmodel.Job, answer string, citations []docmodel.Citation) jobmodel.Job {
	job.JobPayload.Answer = answer
	job.JobPayload.Citations = citations
	job.CurrentStep = jobmodel.Complete
	return job
}

func logOutput(job jobmodel.Job, status jobmodel.InternalStatus, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobmodel.Job, err error, message string, canRetry bool) jobmodel.Job {
	s.logger.Error(message, "error", err)

	code := http.StatusInternalServerError
	publicMessage := "Internal Server Error"
	if message == "DOCUMENT_NOT_SEARCHABLE" {
		code = http.StatusConflict
		publicMessage = "Document is not searchable yet"
	}

	job.Error = jobmodel.JobError{
		Code:    code,
		Message: publicMessage,
		Retry:   canRetry,
	}
	job.Status = jobmodel.JobStatusError
	return job
}

func (s *service) executeEmbeddingStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job) ([]float32, error) {
	*job = logOutput(*job, jobmodel.EmbeddingAPICall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return s.embedder.GetEmbedding(ctx, job.JobPayload.Question)
}

func (s *service) executeCacheCheckStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job, documentId string, emb []float32) (vectorDB.CachedAnswer, bool) {
	*job = logOutput(*job, jobmodel.CacheCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	cached, found, _ := s.vectorDB.GetCachedAnswer(ctx, documentId, emb)
	return cached, found
}

func (s *service) executeVectorSearchStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job, documentId string, emb []float32) ([]docmodel.RetrievedChunk, error) {
	*job = logOutput(*job, jobmodel.VectorDBCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return s.retriever.RetrieveVector(ctx, documentId, emb, config.ChatTopK)
}

func (s *service) executeSynthesisStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job, matches []docmodel.RetrievedChunk, history []string) (synthesizer.Result, error) {
	*job = logOutput(*job, jobmodel.LLMCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	return s.synthesizer.Synthesize(ctx, config.ResolvedBaselineModel(), job.JobPayload.Question, matches, historyToMessages(history))
}

// historyToMessages rebuilds prior turns from the message store's payload
// JSON, oldest first. Unparseable entries are skipped.
func historyToMessages(history []string) []llm.Message {
	var messages []llm.Message
	for _, raw := range history {
		var payload jobmodel.JobPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		if payload.Question == "" && payload.Answer == "" {
			continue
		}
		if payload.Question != "" {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: payload.Question})
		}
		if payload.Answer != "" {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: payload.Answer})
		}
	}
	return messages
}
