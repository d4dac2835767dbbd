// Package main is the entry point for the sales-agent API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vendaflow/agent-core/internal/agent"
	"github.com/vendaflow/agent-core/internal/config"
	"github.com/vendaflow/agent-core/internal/delivery"
	"github.com/vendaflow/agent-core/internal/handler"
	"github.com/vendaflow/agent-core/internal/llm"
	"github.com/vendaflow/agent-core/internal/middleware"
	"github.com/vendaflow/agent-core/internal/model"
	natsclient "github.com/vendaflow/agent-core/internal/nats"
	"github.com/vendaflow/agent-core/internal/quota"
	"github.com/vendaflow/agent-core/internal/store"
	"github.com/vendaflow/agent-core/internal/tools"
	"github.com/vendaflow/agent-core/pkg/logger"
	"github.com/vendaflow/agent-core/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-core", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Storage
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	publisher := natsclient.NewPublisher(natsClient)
	if err := publisher.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// LLM clients: every provider with a key is available; the per-org
	// config picks which one a turn uses.
	clients := make(map[model.Provider]llm.Client)
	if cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client", zap.Error(err))
		} else {
			clients[model.ProviderOpenAI] = client
		}
	}
	if cfg.AnthropicAPIKey != "" {
		client, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client", zap.Error(err))
		} else {
			clients[model.ProviderAnthropic] = client
		}
	}
	if len(clients) == 0 {
		log.Warn("no LLM API keys configured, turns will fail")
	}

	// Outbound delivery
	var sender delivery.Sender
	if cfg.DeliveryURL != "" {
		sender = delivery.NewHTTPSender(cfg.DeliveryURL, cfg.DeliveryToken)
	} else {
		log.Warn("no delivery gateway configured, outbound messages are dropped")
		sender = delivery.Noop{}
	}

	ledger := quota.NewLedger(st.DB())
	registry := tools.NewRegistry()

	orchestrator := agent.New(st, ledger, registry, clients, sender, publisher, log, agent.Options{
		MaxToolRounds: cfg.MaxToolRounds,
		HistoryLimit:  cfg.HistoryLimit,
		ModelTimeout:  cfg.ModelTimeout,
	})

	// Handlers
	healthHandler := handler.NewHealthHandler(st, natsClient)
	webhookHandler := handler.NewWebhookHandler(st, orchestrator, log)
	conversationHandler := handler.NewConversationHandler(st, log)
	usageHandler := handler.NewUsageHandler(st, ledger, log)

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Webhook ingestion authenticates per-delivery with HMAC signatures.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middleware.WebhookRateLimit(cfg.RateLimitRequests*10, cfg.RateLimitWindow))
		r.Post("/{provider}/{orgID}", webhookHandler.Receive)
	})

	// Operator/governance API with JWT authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/usage", usageHandler.Get)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Get("/messages", conversationHandler.Messages)
				r.Post("/close", conversationHandler.Close)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
