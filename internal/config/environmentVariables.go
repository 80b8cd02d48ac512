package config

import (
	"log/slog"
	"os"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5
	CacheSimilarityCutoff           = 0.97

	//auth - real deployments override via FINSIGHT_AUTH_TOKEN
	NoAuthBypass = true
	AuthToken    = ""

	//chunking - tokens approximated at 4 chars each
	CharsPerToken    = 4
	ChunkTokenBudget = 1000
	ChunkOverlap     = 200
	MinChunkChars    = 50

	//retrieval
	DefaultTopK = 5
	ChatTopK    = 8

	//chat history window passed to the synthesizer
	ChatHistoryTurns int64 = 5

	//synthesis
	ContextTokenBudget           = 6000
	CitationExcerptChars         = 300
	ModelTemperature     float64 = 0.2

	//embeddings - dimension and model must match between ingest and query or vectors are incomparable
	EmbeddingOutputDimensionality int32 = 1536
	EmbeddingCollectionName             = "finsight-chunks"
	OpenAIEmbeddingModel                = "text-embedding-3-small"
	GoogleEmbeddingModel                = "gemini-embedding-001"
	EmbeddingBatchSize                  = 100

	//models - the request's modelKey maps to these at the orchestrator boundary
	BaselineModel   = "gpt-4o-mini"
	FineTunedModel  = "gpt-4o-mini"
	DistilledModel  = "gpt-4o-mini"
	GeminiModelName = "gemini-2.5-flash-lite-preview-09-2025"

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//provider call timeouts
	ProviderCallTimeout = 30 * time.Second
	RunQuestionTimeout  = 60 * time.Second

	//batch embedding job polling
	BatchPollInterval          = 30 * time.Second
	BatchPollMaxAttempts       = 60

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//vectorDB
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "127.0.0.1"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost     = "127.0.0.1"
	redisPort     = "6379"
	RedisAddr     = redisHost + ":" + redisPort
	RedisPassword = ""

	//redis has 16 DB we can use
	RedisJobStore     = 0
	RedisMessageStore = 1

	//redis timeouts
	RedisJobStoreTTL     = 24 * time.Hour
	RedisMessageStoreTTL = 24 * time.Hour

	//relational store
	SqliteDataDir = "data"
)

// provider credentials come from the environment only
var (
	OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	GoogleAPIKey = os.Getenv("GEMINI_API_KEY")
)

// FromEnv reads an environment override, falling back to the compiled default.
func FromEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Resolved model identifiers honor the environment overrides. Every caller
// that talks to a provider goes through these, not the raw constants.
func ResolvedBaselineModel() string {
	return FromEnv("FINSIGHT_BASELINE_MODEL", BaselineModel)
}

func ResolvedFineTunedModel() string {
	return FromEnv("FINSIGHT_FT_MODEL", FineTunedModel)
}

func ResolvedDistilledModel() string {
	return FromEnv("FINSIGHT_DISTILLED_MODEL", DistilledModel)
}
