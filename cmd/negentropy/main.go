// Negentropy engine server - persists agent state, consolidates memory, and
// serves hybrid retrieval over the knowledge corpus.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/negentropy-ai/engine/pkg/api"
	"github.com/negentropy-ai/engine/pkg/config"
	"github.com/negentropy-ai/engine/pkg/knowledge"
	"github.com/negentropy-ai/engine/pkg/logging"
	"github.com/negentropy-ai/engine/pkg/provider"
	"github.com/negentropy-ai/engine/pkg/provider/llmgrpc"
	"github.com/negentropy-ai/engine/pkg/services"
	"github.com/negentropy-ai/engine/pkg/storage"
	"github.com/negentropy-ai/engine/pkg/tracing"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("NE_CONFIG_DIR", "."), "Directory holding the .env* files")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Build(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	httpPort := getEnv("NE_HTTP_PORT", "8080")
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("starting negentropy engine", "env", cfg.Env, "http_port", httpPort)

	ctx := context.Background()

	if err := storage.Migrate(cfg.Database.URL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("database schema up to date")

	pool, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres", "pool_size", cfg.Database.PoolSize)

	// Provider collaborators. The gRPC sidecar serves both chat and
	// embeddings; a deployment without one runs with degraded features
	// (substring memory search, no titles).
	var llm provider.LLMProvider
	var embedder provider.EmbeddingProvider
	if cfg.LLM.Provider == "grpc" && cfg.LLM.GRPCAddr != "" {
		client, err := llmgrpc.NewClient(cfg.LLM.GRPCAddr)
		if err != nil {
			log.Fatalf("Failed to connect to LLM sidecar: %v", err)
		}
		defer client.Close()
		llm = client
		embedder = provider.NewRetryingEmbedder(client, nil)
		logger.Info("llm provider connected", "addr", cfg.LLM.GRPCAddr, "model", cfg.LLM.Model)
	} else {
		logger.Warn("no llm provider configured, titles and embeddings disabled")
	}

	// Span exporter: DB sink plus whatever the tracing group enables.
	var sinks []tracing.Sink
	if cfg.Tracing.EnableDBExport {
		sinks = append(sinks, tracing.NewDBSink(pool))
	}
	if cfg.Tracing.EnableConsole {
		sinks = append(sinks, tracing.NewConsoleSink(logger))
	}
	if cfg.Tracing.OTLPEndpoint != "" {
		sinks = append(sinks, tracing.NewOTLPSink(cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName))
	}
	if cfg.Tracing.NATSURL != "" {
		natsSink, err := tracing.NewNATSSink(cfg.Tracing.NATSURL)
		if err != nil {
			logger.Warn("nats span sink unavailable", "error", err)
		} else {
			defer natsSink.Close()
			sinks = append(sinks, natsSink)
		}
	}
	exporter := tracing.NewExporter(tracing.ExporterOptions{
		BatchSize:     cfg.Tracing.BatchSize,
		FlushInterval: cfg.Tracing.FlushInterval,
		QueueCapacity: cfg.Tracing.QueueCapacity,
	}, sinks, logger)
	exporter.Start()
	defer exporter.Stop()
	tracer := tracing.NewTracer(exporter)
	if llm != nil {
		llm = tracing.NewTracedLLM(llm, tracer, nil)
	}

	factory := services.New(cfg, pool, logger, llm, embedder, nil)

	sessions, err := factory.SessionStore()
	if err != nil {
		log.Fatalf("Failed to build session store: %v", err)
	}
	repository, err := factory.Repository()
	if err != nil {
		log.Fatalf("Failed to build knowledge repository: %v", err)
	}
	pipeline, err := factory.Pipeline()
	if err != nil {
		log.Fatalf("Failed to build ingestion pipeline: %v", err)
	}
	engine, err := factory.Engine()
	if err != nil {
		log.Fatalf("Failed to build retrieval engine: %v", err)
	}
	runs, err := factory.Runs()
	if err != nil {
		log.Fatalf("Failed to build run observability: %v", err)
	}
	artifacts, err := factory.ArtifactStore()
	if err != nil {
		log.Fatalf("Failed to build artifact store: %v", err)
	}
	logger.Info("services initialized",
		"session_backend", cfg.Services.SessionBackend,
		"artifact_backend", cfg.Services.ArtifactBackend)

	// Background pipeline workers drain runs enqueued ahead of execution.
	workerPool := knowledge.NewPipelineWorkerPool(pool, pipeline, 2, 2*time.Second, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	server := api.NewServer(api.ServerDeps{
		Sessions:   sessions,
		Repository: repository,
		Pipeline:   pipeline,
		Engine:     engine,
		Runs:       runs,
		Artifacts:  artifacts,
		Tracer:     tracer,
		Log:        logger,
	})

	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Router(),
	}
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}
