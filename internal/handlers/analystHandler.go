package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/finsightai/finsight/internal/adapter"
	"github.com/finsightai/finsight/internal/adapter/utils"
	"github.com/finsightai/finsight/internal/analyst"
	"github.com/finsightai/finsight/internal/api"
	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/internal/rag/synthesizer"
	"github.com/finsightai/finsight/pkg/logger_i"
)

var (
	logAH         *logger_i.Logger
	_orchestrator *analyst.Orchestrator
	_runStore     runmodel.RunStore
	_docStore     docmodel.DocumentStore
)

func InitAnalystHandlers(orchestrator *analyst.Orchestrator, runStore runmodel.RunStore, docStore docmodel.DocumentStore) {
	_orchestrator = orchestrator
	_runStore = runStore
	_docStore = docStore
}

// PostAnalystRunHandler godoc
// @Summary      Start an analyst checklist run
// @Description  Creates a run for the document with the requested model, enqueues a background analysis job, and returns the run ID to poll while sections are produced.
// @Tags         Analyst
// @Accept       json
// @Produce      json
// @Param        request  body      api.AnalystRunRequest            true  "Document ID and optional model key"
// @Success      202      {object}  api.AnalystRunAcceptedResponse   "Run created and queued"
// @Failure      400      {object}  api.JobResponse                  "Invalid request data"
// @Failure      404      {object}  api.JobResponse                  "Document not found"
// @Failure      409      {object}  api.JobResponse                  "Document not searchable yet"
// @Router       /analyst/run [post]
func PostAnalystRunHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logAH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.AnalystRunRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logAH.Error("Couldn't close the analyst run reader :", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.DocumentId == "" {
		logAH.Warn("Bad analyst run request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_id is required")
		return
	}

	doc, found, err := _docStore.GetDocument(r.Context(), requestData.DocumentId)
	if err != nil {
		logAH.Error("Document lookup failed", "documentId", requestData.DocumentId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, requestData.DocumentId, "Document lookup failed")
		return
	}
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, requestData.DocumentId, "Document not found")
		return
	}
	if !doc.Searchable {
		WriteErrorResponse(w, http.StatusConflict, requestData.DocumentId, "Document is not searchable yet")
		return
	}

	run, err := _orchestrator.StartRun(r.Context(), requestData.DocumentId, requestData.ModelKey)
	if err != nil {
		logAH.Error("Could not create run", "documentId", requestData.DocumentId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, requestData.DocumentId, "Could not create run")
		return
	}

	newJob := newJobData{
		id:         utils.GetNewUUID(),
		jobType:    jobmodel.JobTypeAnalysis,
		documentId: requestData.DocumentId,
		modelKey:   requestData.ModelKey,
		runId:      run.Id,
		traceId:    r.Context().Value(config.TRACE_ID_KEY).(string),
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToAnalystRunAcceptedResponse(newJob.id, run.Id))
}

// GetAnalystRunHandler godoc
// @Summary      Get a run with its sections
// @Description  Returns the run record and every section produced so far. Sections of a still-running checklist appear as they complete.
// @Tags         Analyst
// @Produce      json
// @Param        id   path      string  true  "Run ID"
// @Success      200  {object}  api.RunDetailResponse  "Run and its sections"
// @Failure      404  {object}  api.JobResponse        "Run not found"
// @Router       /analyst/runs/{id} [get]
func GetAnalystRunHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	runId := utils.GetChiURLParam(r, "id")
	run, found, err := _runStore.GetRun(r.Context(), runId)
	if err != nil {
		logAH.Error("Run lookup failed", "runId", runId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, runId, "Run lookup failed")
		return
	}
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, runId, "Run not found")
		return
	}

	sections, err := _runStore.ListSections(r.Context(), runId)
	if err != nil {
		logAH.Error("Listing sections failed", "runId", runId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, runId, "Listing sections failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToRunDetailResponse(run, sections))
}

// GetDocumentRunsHandler godoc
// @Summary      List runs for a document
// @Description  Returns run summaries for the document, newest first, with section counts and average response times for model comparison.
// @Tags         Analyst
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  api.RunListResponse  "Run summaries"
// @Failure      404  {object}  api.JobResponse      "Document not found"
// @Router       /documents/{id}/runs [get]
func GetDocumentRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	documentId := utils.GetChiURLParam(r, "id")
	_, found, err := _docStore.GetDocument(r.Context(), documentId)
	if err != nil {
		logAH.Error("Document lookup failed", "documentId", documentId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, documentId, "Document lookup failed")
		return
	}
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, documentId, "Document not found")
		return
	}

	runs, err := _runStore.ListRunsByDocument(r.Context(), documentId)
	if err != nil {
		logAH.Error("Listing runs failed", "documentId", documentId, "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, documentId, "Listing runs failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToRunListResponse(documentId, runs))
}

// GetDocumentsHandler godoc
// @Summary      List uploaded documents
// @Description  Returns all documents newest first with their searchable state.
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  api.DocumentListResponse  "Documents"
// @Router       /documents [get]
func GetDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	docs, err := _docStore.ListDocuments(r.Context())
	if err != nil {
		logAH.Error("Listing documents failed", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Listing documents failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentListResponse(docs))
}

type fineTuneMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fineTuneExample struct {
	Messages []fineTuneMessage `json:"messages"`
}

// GetFineTuneDatasetHandler godoc
// @Summary      Export the fine-tune dataset
// @Description  Streams curated reference sections as JSONL in the chat fine-tuning format, one example per line with the production system prompt.
// @Tags         Analyst
// @Produce      plain
// @Success      200  {string}  string           "JSONL dataset"
// @Failure      404  {object}  api.JobResponse  "No reference examples flagged"
// @Router       /finetune/dataset [get]
func GetFineTuneDatasetHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	sections, err := _runStore.ListReferenceSections(r.Context())
	if err != nil {
		logAH.Error("Listing reference sections failed", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Listing reference sections failed")
		return
	}
	if len(sections) == 0 {
		WriteErrorResponse(w, http.StatusNotFound, "", "No reference examples flagged")
		return
	}

	w.Header().Set("Content-Type", "application/jsonl")
	w.Header().Set("Content-Disposition", `attachment; filename="finetune-dataset.jsonl"`)
	encoder := json.NewEncoder(w)
	for _, section := range sections {
		example := fineTuneExample{
			Messages: []fineTuneMessage{
				{Role: llm.RoleSystem, Content: synthesizer.SystemPrompt()},
				{Role: llm.RoleUser, Content: section.QuestionText},
				{Role: llm.RoleAssistant, Content: section.Answer},
			},
		}
		if err := encoder.Encode(example); err != nil {
			logAH.Error("Encoding dataset example failed", "sectionId", section.Id, "err", err)
			return
		}
	}
}

// SetReferenceExampleHandler godoc
// @Summary      Flag a section as a reference example
// @Description  Marks or unmarks a section as a curated reference example for fine-tuning datasets.
// @Tags         Analyst
// @Accept       json
// @Produce      json
// @Param        id       path  string                       true  "Section ID"
// @Param        request  body  api.ReferenceExampleRequest  true  "Reference flag"
// @Success      204  "Updated"
// @Failure      404  {object}  api.JobResponse  "Section not found"
// @Router       /analyst/sections/{id}/reference [post]
func SetReferenceExampleHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	sectionId := utils.GetChiURLParam(r, "id")
	var requestData api.ReferenceExampleRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, sectionId, "Bad Request")
		return
	}

	if err := _runStore.SetReferenceExample(r.Context(), sectionId, requestData.IsReference); err != nil {
		logAH.Warn("Reference flag update failed", "sectionId", sectionId, "err", err)
		WriteErrorResponse(w, http.StatusNotFound, sectionId, "Section not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
