// @title           FinSight Analyst API
// @version         1.0
// @description     Grounded question answering and analyst checklist runs over uploaded financial documents.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/finsightai/finsight/internal/analyst"
	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/data/relational"
	"github.com/finsightai/finsight/internal/data/store"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
	"github.com/finsightai/finsight/internal/handlers"
	"github.com/finsightai/finsight/internal/job"
	"github.com/finsightai/finsight/internal/rag"
	"github.com/finsightai/finsight/internal/rag/embedding"
	"github.com/finsightai/finsight/internal/rag/embedding/googleEmbedding"
	"github.com/finsightai/finsight/internal/rag/embedding/openaiEmbedding"
	"github.com/finsightai/finsight/internal/rag/llm"
	"github.com/finsightai/finsight/internal/rag/llm/gemini"
	"github.com/finsightai/finsight/internal/rag/llm/openaiLLM"
	"github.com/finsightai/finsight/internal/rag/retriever"
	"github.com/finsightai/finsight/internal/rag/synthesizer"
	"github.com/finsightai/finsight/internal/rag/vectorDB"
	"github.com/finsightai/finsight/internal/rag/vectorDB/memoryDB"
	"github.com/finsightai/finsight/internal/rag/vectorDB/qdrantDB"
	"github.com/finsightai/finsight/internal/server"
	"github.com/finsightai/finsight/internal/worker"
	"github.com/finsightai/finsight/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          store.GetRedisJobStore(serviceContext),
		MessageStore:      store.GetRedisMessageStore(serviceContext),
	}
	logger.Info("Starting job service")

	if serviceConfig.JobStore == nil || serviceConfig.MessageStore == nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			logger.Error("Redis stores are offline. Shutting down.")
			return
		}
		logger.Error("Redis stores are offline, using in-memory stores")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
		serviceConfig.MessageStore = store.InitMessageStore()
	}
	service := job.InitJobService(serviceConfig)

	//documents, runs and sections live in sqlite
	relationalStore, err := relational.NewStore(config.SqliteDataDir)
	if err != nil {
		logger.Error("Could not open the relational store. Shutting down.", "error", err.Error())
		return
	}
	defer relationalStore.Close()

	var vectorIndex vectorDB.DataProcessor
	if qdrantClient := qdrantDB.GetQuadrantClient(serviceContext); qdrantClient != nil {
		vectorIndex = qdrantClient
	} else {
		logger.Error("Qdrant is offline, falling back to the in-memory vector index")
		vectorIndex = memoryDB.New()
	}

	//embedding: OpenAI when its key is present, Google otherwise
	var embedder embedding.Embedder
	if config.OpenAIAPIKey != "" {
		embedder = openaiEmbedding.GetOpenAIEmbeddingClient(config.OpenAIEmbeddingModel, config.OpenAIAPIKey)
	} else {
		embedder = googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GoogleAPIKey)
	}
	if embedder == nil {
		logger.Error("No embedding provider available. Shutting down.")
		return
	}

	//generation falls through the chain in order
	var providers []llm.Provider
	if config.OpenAIAPIKey != "" {
		providers = append(providers, openaiLLM.GetOpenAIClient(config.OpenAIAPIKey))
	}
	if config.GoogleAPIKey != "" {
		providers = append(providers, gemini.GetGeminiClient(serviceContext, config.GeminiModelName, config.GoogleAPIKey))
	}
	providerChain := llm.NewChain(providers...)
	if providerChain.Len() == 0 {
		logger.Error("No LLM provider available. Shutting down.")
		return
	}

	ragService := rag.NewService(
		vectorIndex,
		retriever.New(embedder, vectorIndex),
		synthesizer.New(providerChain),
		embedder,
		relationalStore,
	)
	orchestrator := analyst.NewOrchestrator(relationalStore, ragService)

	handlers.InitJobHandler(service)
	handlers.InitAnalystHandlers(orchestrator, relationalStore, relationalStore)

	//init worker pool
	worker.InitServices(service, ragService, orchestrator)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
