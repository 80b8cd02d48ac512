package ingest

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/rag/chunker"
	"github.com/finsightai/finsight/internal/rag/embedding"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/pkg/logger_i"
)

var logger *logger_i.Logger

// ProcessDocumentIngestion extracts, chunks, embeds and indexes one uploaded
// file. The document only becomes searchable after its full chunk set is
// visible in the vector store, a failed ingestion leaves it unsearchable
// rather than half indexed.
func ProcessDocumentIngestion(ctx context.Context, job jobmodel.Job, e embedding.Embedder, vectorDatabase vectorDB.DataProcessor, docStore docmodel.DocumentStore) jobmodel.Job {
	logger = logger_i.NewLogger("Document Ingestion")
	log := logger.With(config.TRACE_ID_KEY, ctx.Value(config.TRACE_ID_KEY))

	docName := job.JobPayload.IngestFileName
	docPath := job.JobPayload.IngestURL
	documentId := job.JobPayload.DocumentId
	log.Debug("Processing document", "filename", docName, "path", docPath, "documentId", documentId)

	job.CurrentStep = jobmodel.IngestProcessing
	err := vectorDatabase.EnsureCollection(ctx)
	if err != nil {
		return failJob(job, log, "Vector collection unavailable", err)
	}

	docType := getDocType(docPath)
	if docType == typeUnsupported {
		return failJob(job, log, "Unsupported document type", nil)
	}

	pages, err := extractText(docPath, docType)
	if err != nil {
		return failJob(job, log, "Error extracting document content", err)
	}
	log.Debug("Extracted document", "pages", len(pages))

	doc := docmodel.Document{
		Id:          documentId,
		Name:        docName,
		TextContent: joinPages(pages),
		UploadedAt:  time.Now(),
	}
	if err := docStore.SaveDocument(ctx, doc); err != nil {
		return failJob(job, log, "Error saving document record", err)
	}

	chunks := chunker.SplitPages(documentId, pages, chunker.DefaultParams())
	log.Debug("Chunked document", "chunks", len(chunks))
	if len(chunks) == 0 {
		// valid but empty input, the document stays unsearchable
		log.Warn("Document produced no chunks", "documentId", documentId)
		job.Status = jobmodel.JobStatusComplete
		removeUpload(docPath, log)
		return job
	}

	vectors, err := embedChunks(ctx, chunks, e)
	if err != nil {
		return failJob(job, log, "Error embedding document content", err)
	}

	if err := vectorDatabase.ReplaceDocument(ctx, documentId, chunks, vectors); err != nil {
		return failJob(job, log, "Error indexing document", err)
	}

	if err := docStore.MarkSearchable(ctx, documentId, len(chunks)); err != nil {
		return failJob(job, log, "Error marking document searchable", err)
	}

	removeUpload(docPath, log)
	job.Status = jobmodel.JobStatusComplete
	return job
}

func joinPages(pages []chunker.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Content != "" {
			parts = append(parts, p.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func failJob(job jobmodel.Job, log *logger_i.Logger, message string, err error) jobmodel.Job {
	if err != nil {
		log.Error(message, "error", err)
	} else {
		log.Error(message)
	}
	job.Status = jobmodel.JobStatusError
	job.Error.Message = message
	return job
}

func removeUpload(path string, log *logger_i.Logger) {
	if err := os.Remove(path); err != nil {
		log.Error("Error removing uploaded file", "error", err)
	}
}
