package rag

import (
	"context"
	"errors"
	"time"

	"github.com/finsightai/finsight/internal/adapter/utils"
	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/metrics"
	"github.com/finsightai/finsight/internal/rag/embedding"
	"github.com/finsightai/finsight/internal/rag/ingest"
	"github.com/finsightai/finsight/internal/rag/retriever"
	"github.com/finsightai/finsight/internal/rag/synthesizer"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/pkg/logger_i"
)

// ErrDocumentNotSearchable distinguishes "not yet ingested" from a genuinely
// sparse document with no matching chunks.
var ErrDocumentNotSearchable = errors.New("document is not searchable")

// Service is what the worker calls, it doesn't need to know about the
// retriever, synthesizer or vector store behind it.
type Service interface {
	ProcessRequest(ctx context.Context, job jobmodel.Job, messageHistory []string) jobmodel.Job
	IngestDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job
	AnswerQuestion(ctx context.Context, documentId string, question string, model string) (synthesizer.Result, error)
}

type service struct {
	vectorDB    vectorDB.DataProcessor
	retriever   *retriever.Retriever
	synthesizer *synthesizer.Synthesizer
	embedder    embedding.Embedder
	docStore    docmodel.DocumentStore
	logger      *logger_i.Logger
}

func NewService(vector vectorDB.DataProcessor, ret *retriever.Retriever, syn *synthesizer.Synthesizer, em embedding.Embedder, docs docmodel.DocumentStore) Service {
	return &service{
		vectorDB:    vector,
		retriever:   ret,
		synthesizer: syn,
		embedder:    em,
		docStore:    docs,
		logger:      logger_i.NewLogger("RAG Service"),
	}
}

// ProcessRequest answers one chat turn: embed the question, check the
// semantic cache, retrieve, synthesize, then save the answer back to the
// cache off the request path.
func (s *service) ProcessRequest(ctx context.Context, jobt jobmodel.Job, messageHistory []string) jobmodel.Job {
	inMethodLogger := s.logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY), "JobId", jobt.Id)

	processContext, cancel := context.WithTimeout(ctx, config.ProviderCallTimeout)
	defer cancel()

	jobt.CurrentStep = jobmodel.RAGCall
	documentId := jobt.JobPayload.DocumentId

	if err := s.checkSearchable(processContext, documentId); err != nil {
		return s.jobError(jobt, err, "DOCUMENT_NOT_SEARCHABLE", false)
	}

	// Embedding
	queryVector, err := s.executeEmbeddingStep(processContext, inMethodLogger, &jobt)
	if err != nil {
		return s.jobError(jobt, err, "EMBEDDING_FAILURE", true)
	}

	// Cache Check
	cached, found := s.executeCacheCheckStep(ctx, inMethodLogger, &jobt, documentId, queryVector)
	if found {
		return returnOutput(jobt, cached.Answer, cached.Citations)
	}

	// Vector Search
	matches, err := s.executeVectorSearchStep(processContext, inMethodLogger, &jobt, documentId, queryVector)
	if err != nil {
		return s.jobError(jobt, err, "VECTOR_DB_FAILURE", true)
	}

	// Generation
	result, err := s.executeSynthesisStep(processContext, inMethodLogger, &jobt, matches, messageHistory)
	if err != nil {
		return s.jobError(jobt, err, "LLM_GENERATION_FAILURE", true)
	}

	// Background Cache Save
	if len(result.Citations) > 0 {
		go func() {
			saveErr := s.vectorDB.SaveToCache(context.Background(), documentId, utils.GetNewUUID(), queryVector,
				vectorDB.CachedAnswer{Answer: result.Answer, Citations: result.Citations})
			if saveErr != nil {
				s.logger.Error("Failed to save to cache", "error", saveErr)
			}
		}()
	}

	return returnOutput(jobt, result.Answer, result.Citations)
}

func (s *service) IngestDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()
	j := ingest.ProcessDocumentIngestion(ctx, job, s.embedder, s.vectorDB, s.docStore)
	if j.Status != jobmodel.JobStatusComplete {
		return s.jobError(j, errors.New("ingest document failed"), "INGESTION_FAILURE", true)
	}
	return j
}

// AnswerQuestion serves the analyst checklist: retrieve and synthesize with
// an explicit model, no conversation history and no cache involvement.
func (s *service) AnswerQuestion(ctx context.Context, documentId string, question string, model string) (synthesizer.Result, error) {
	if err := s.checkSearchable(ctx, documentId); err != nil {
		return synthesizer.Result{}, err
	}

	matches, _, err := s.retriever.Retrieve(ctx, documentId, question, config.ChatTopK)
	if err != nil {
		return synthesizer.Result{}, err
	}
	return s.synthesizer.Synthesize(ctx, model, question, matches, nil)
}

func (s *service) checkSearchable(ctx context.Context, documentId string) error {
	doc, found, err := s.docStore.GetDocument(ctx, documentId)
	if err != nil {
		return err
	}
	if !found || !doc.Searchable {
		return ErrDocumentNotSearchable
	}
	return nil
}
