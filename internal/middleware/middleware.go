package middleware

import (
	"net/http"
	"strconv"

	"github.com/finsightai/finsight/internal/handlers"
	"github.com/finsightai/finsight/internal/metrics"
	"github.com/finsightai/finsight/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var GetHandler = Wrap(handlers.GetHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)
var GetDocumentsHandler = Wrap(handlers.GetDocumentsHandler)
var PostAnalystRunHandler = Wrap(handlers.PostAnalystRunHandler)
var GetAnalystRunHandler = Wrap(handlers.GetAnalystRunHandler)
var GetDocumentRunsHandler = Wrap(handlers.GetDocumentRunsHandler)
var SetReferenceExampleHandler = Wrap(handlers.SetReferenceExampleHandler)
var GetFineTuneDatasetHandler = Wrap(handlers.GetFineTuneDatasetHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Info("New request received")
	re = injectTrace(re)
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
		return re //stop if auth fails
	}
	re = rateLimiter(re)
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
		return re //stop here if rate limit fails
	}

	return re
}
