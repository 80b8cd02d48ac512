package customHttpClient

import (
	"net/http"

	"github.com/finsightai/finsight/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// New returns a client sharing the pooled transport so the OpenAI embedding
// and completion clients reuse connections instead of redialing per call.
func New() *http.Client {
	return &http.Client{Transport: customTransport}
}
