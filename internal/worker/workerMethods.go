package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/metrics"
	"github.com/finsightai/finsight/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, 60*time.Second)
	defer cancel()
	log := logger.With(config.TRACE_ID_KEY, job.TraceId)
	log.Debug("Processing job:", "job Id:", job.Id, "type", job.JobType)

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job.CurrentStep = jobmodel.IngestProcessing
		job = _ragService.IngestDocument(ctx, job)

	case jobmodel.JobTypeAnalysis:
		job.CurrentStep = jobmodel.AnalysisProcessing
		// the checklist runs on a detached context, ctxTrace only carries the trace id
		job = runAnalysis(job, ctxTrace, log)

	default:
		job.CurrentStep = jobmodel.RedisCall
		job = processQuery(job, ctx, log)
		if job.Status != jobmodel.JobStatusError {
			if err := _jobService.MessageStore.TrySaveChat(ctx, job.ChatId, job.JobPayload); err != nil {
				log.Error("Failed to save chat history", "err", err)
			}
		}
	}

	job.EndTime = time.Now()
	finalStatus := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		finalStatus = jobmodel.JobStatusError
	}
	// terminal state is written on the undeadlined context so a run that
	// outlives the job timeout still lands its final status
	saveJobState(ctxTrace, job, finalStatus)
}

func removeWorker(reason string) {

	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()

}

func processQuery(job jobmodel.Job, ctx context.Context, log *logger_i.Logger) jobmodel.Job {
	err, messageHistory := _jobService.MessageStore.GetMessageHistory(ctx, job.ChatId)
	if err != nil {
		log.Error("Failed to get message history", "err", err)
	}
	job = _ragService.ProcessRequest(ctx, job, messageHistory)
	return job
}

func runAnalysis(job jobmodel.Job, ctx context.Context, log *logger_i.Logger) jobmodel.Job {
	_, err := _orchestrator.Execute(ctx, job.JobPayload.RunId)
	if err != nil {
		log.Error("Analyst run did not finish cleanly", "runId", job.JobPayload.RunId, "err", err)
		job.Status = jobmodel.JobStatusError
		job.Error = jobmodel.JobError{
			Code:    http.StatusInternalServerError,
			Message: "Analyst run failed",
			Retry:   false,
		}
		return job
	}
	job.CurrentStep = jobmodel.Complete
	return job
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update status in Redis", "err", err)
	}
}
