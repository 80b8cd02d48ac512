package api

import (
	"time"

	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id,omitempty" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

// AnswerPayload carries a grounded answer with the excerpts it cites.
type AnswerPayload struct {
	DocumentId string              `json:"document_id,omitempty"`
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Citations  []docmodel.Citation `json:"citations,omitempty"`
}

type Result struct {
	Status string         `json:"status"`
	Answer *AnswerPayload `json:"answer,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type IngestAcceptedResponse struct {
	JobId      string `json:"job_id"`
	DocumentId string `json:"document_id"`
	StatusURL  string `json:"status_url"`
}

type AnalystRunAcceptedResponse struct {
	JobId     string `json:"job_id"`
	RunId     string `json:"run_id"`
	StatusURL string `json:"status_url"`
	RunURL    string `json:"run_url"`
}

// RunDetailResponse is the pollable run view: sections appear as soon as
// each checklist question is answered, even while the run is still running.
type RunDetailResponse struct {
	Run      runmodel.Run       `json:"run"`
	Sections []runmodel.Section `json:"sections"`
}

type RunListResponse struct {
	DocumentId string                `json:"document_id"`
	Runs       []runmodel.RunSummary `json:"runs"`
}

// DocumentSummary omits the extracted text, listings only need metadata.
type DocumentSummary struct {
	Id         string    `json:"id"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
	ChunkCount int       `json:"chunk_count"`
	Searchable bool      `json:"searchable"`
}

type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

// requests---------------------

type ChatRequest struct {
	DocumentId string `json:"document_id" validate:"required"`
	Message    string `json:"message" validate:"required"`
	ChatID     string `json:"chatID,omitempty"`
}

type AnalystRunRequest struct {
	DocumentId string `json:"document_id" validate:"required"`
	ModelKey   string `json:"model_key,omitempty" example:"baseline"`
}

type ReferenceExampleRequest struct {
	IsReference bool `json:"is_reference"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
}
