package adapter

import (
	"fmt"
	"time"

	"github.com/finsightai/finsight/internal/api"
	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToIngestAcceptedResponse(jobId string, documentId string) api.IngestAcceptedResponse {
	return api.IngestAcceptedResponse{
		JobId:      jobId,
		DocumentId: documentId,
		StatusURL:  fmt.Sprintf("status/%s", jobId),
	}
}

func ToAnalystRunAcceptedResponse(jobId string, runId string) api.AnalystRunAcceptedResponse {
	return api.AnalystRunAcceptedResponse{
		JobId:     jobId,
		RunId:     runId,
		StatusURL: fmt.Sprintf("status/%s", jobId),
		RunURL:    fmt.Sprintf("analyst/runs/%s", runId),
	}
}

func ToAPIResponse(job jobmodel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status: string(job.Status),
		Answer: ToAnswerPayload(job.JobPayload),
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToAnswerPayload(payload jobmodel.JobPayload) *api.AnswerPayload {
	if payload.Answer == "" && len(payload.Citations) == 0 {
		return nil
	}

	return &api.AnswerPayload{
		DocumentId: payload.DocumentId,
		Question:   payload.Question,
		Answer:     payload.Answer,
		Citations:  payload.Citations,
	}
}

func ToRunDetailResponse(run runmodel.Run, sections []runmodel.Section) api.RunDetailResponse {
	if sections == nil {
		sections = []runmodel.Section{}
	}
	return api.RunDetailResponse{Run: run, Sections: sections}
}

func ToRunListResponse(documentId string, runs []runmodel.RunSummary) api.RunListResponse {
	if runs == nil {
		runs = []runmodel.RunSummary{}
	}
	return api.RunListResponse{DocumentId: documentId, Runs: runs}
}

func ToDocumentListResponse(docs []docmodel.Document) api.DocumentListResponse {
	summaries := make([]api.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, api.DocumentSummary{
			Id:         d.Id,
			Name:       d.Name,
			UploadedAt: d.UploadedAt,
			ChunkCount: d.ChunkCount,
			Searchable: d.Searchable,
		})
	}
	return api.DocumentListResponse{Documents: summaries}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		ChatId:    "",
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
