// Command agentserver boots the conversational backend's HTTP surface,
// wiring every node, the orchestrator, the hybrid retrieval index, the
// session cache, and the optional async ingestion pipeline together.
// Bootstrap/shutdown sequencing follows cmd/superagent/main.go's run().
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/background"
	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/deepresearch"
	"dev.helix.agent/internal/eventbus"
	"dev.helix.agent/internal/graph"
	"dev.helix.agent/internal/httpapi"
	"dev.helix.agent/internal/llmclient"
	"dev.helix.agent/internal/logging"
	"dev.helix.agent/internal/nodes"
	"dev.helix.agent/internal/orchestrator"
	"dev.helix.agent/internal/retrieval"
	"dev.helix.agent/internal/sessioncache"
	"dev.helix.agent/internal/sessionstore"
	"dev.helix.agent/internal/telemetry"
)

var (
	configFile = flag.String("config", "", "unused placeholder; configuration is read from the environment")
	version    = flag.Bool("version", false, "print version and exit")
)

// noopToolExecutor answers every MCP tool invocation with a not-implemented
// error. Wiring a real MCP runtime is an external-collaborator concern per
// spec.md §1 scope, same as the web-search and document-fetch providers.
type noopToolExecutor struct{}

func (noopToolExecutor) Execute(ctx context.Context, mcpSchema string, query string) (string, error) {
	return "", fmt.Errorf("no MCP tool runtime configured for schema %q", mcpSchema)
}

func main() {
	flag.Parse()
	_ = configFile

	if *version {
		fmt.Println("agentserver dev")
		return
	}

	if err := run(); err != nil {
		logrus.WithError(err).Fatal("agentserver exited with error")
	}
}

func run() error {
	cfg := config.Load()
	logger := logging.New(cfg.Server.LogLevel)

	llm := llmclient.New(cfg.LLM)
	metrics := telemetry.NewMetrics()

	store := retrieval.NewVectorStore(cfg.VectorDB, logger)
	index := retrieval.NewIndex(store, llm, logger)
	cache := sessioncache.NewManager(cfg.Redis, index, logger)
	sessions := sessionstore.New()
	orch := orchestrator.New(llm, logger)

	searchClient := nodes.NewTavilyClient(cfg.WebSearch)

	rt := graph.New(logger).WithMetrics(metrics).WithOrchestrator(orch)
	rt.Register(nodes.NewSimpleNode(llm))
	rt.Register(nodes.NewRetrievalNode(index, llm))
	rt.Register(nodes.NewWebSearchNode(searchClient, llm))
	rt.Register(nodes.NewImageNode(cfg.LLM))
	rt.Register(nodes.NewToolNode(noopToolExecutor{}))
	rt.Register(deepresearch.New(llm, searchClient, logger))

	pool := background.New(index, logger)

	// eventbus.New's own in-memory fallback has a nil handler (a pure
	// no-op), since the package has no default notion of "where local
	// jobs go" — here that's the background ingestion pool.
	var publisher eventbus.Publisher
	if cfg.Messaging.Enabled && (cfg.Messaging.Backend == "kafka" || cfg.Messaging.Backend == "rabbitmq") {
		var err error
		publisher, err = eventbus.New(cfg.Messaging, logger)
		if err != nil {
			return fmt.Errorf("build ingestion publisher: %w", err)
		}
	} else {
		publisher = eventbus.NewInMemoryPublisher(func(job eventbus.IngestJob) {
			pool.Submit(context.Background(), job)
		})
	}
	defer publisher.Close()

	fetcher := httpapi.NewHTTPFetcher(&http.Client{Timeout: cfg.LLM.Timeout})
	server := httpapi.NewServer(cfg, logger, sessions, cache, orch, rt, fetcher, index, publisher)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Engine(),
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.StreamIdleTimeout + cfg.Server.RequestTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("starting agentserver")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	logger.Info("shutting down agentserver")
	pool.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("agentserver shutdown complete")
	return nil
}
