// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vendaflow/agent-core/internal/agent"
	"github.com/vendaflow/agent-core/internal/middleware"
	"github.com/vendaflow/agent-core/internal/store"
	"github.com/vendaflow/agent-core/internal/webhook"
	"github.com/vendaflow/agent-core/pkg/logger"
	"github.com/vendaflow/agent-core/pkg/metrics"
)

// WebhookHandler ingests provider webhook deliveries.
type WebhookHandler struct {
	store        *store.Store
	orchestrator *agent.Orchestrator
	logger       *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(st *store.Store, orch *agent.Orchestrator, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		store:        st,
		orchestrator: orch,
		logger:       log,
	}
}

// Receive handles POST /webhooks/{provider}/{orgID}. The provider retries on
// 5xx only; 4xx responses mean the delivery is discarded for good.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	orgID := chi.URLParam(r, "orgID")

	if err := middleware.ValidateOrganizationID(orgID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := middleware.ValidateWebhookBody(body); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.store.AgentConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "unknown_org").Inc()
			writeError(w, http.StatusNotFound, "unknown organization")
			return
		}
		h.logger.Error("failed to load agent config", zap.Error(err), zap.String("organization_id", orgID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		signature = r.Header.Get("X-Webhook-Signature")
	}
	if err := webhook.VerifySignature(cfg.WebhookSecret, signature, body); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "unauthorized").Inc()
		h.logger.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("organization_id", orgID))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	nm, err := webhook.Normalize(provider, body)
	if err != nil {
		if errors.Is(err, webhook.ErrUnknownProvider) {
			metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "unknown_provider").Inc()
			writeError(w, http.StatusNotFound, "unknown provider")
			return
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "invalid").Inc()
		h.logger.Warn("webhook payload rejected", zap.Error(err), zap.String("provider", provider))
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.orchestrator.HandleInbound(ctx, orgID, nm)
	if err != nil {
		// Persistence failure: the provider retries and the dedup index makes
		// the retry safe.
		metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "error").Inc()
		h.logger.Error("turn processing failed",
			zap.Error(err),
			zap.String("provider", provider),
			zap.String("organization_id", orgID))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	if result.Duplicate {
		metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "duplicate").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues(provider, "accepted").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "processed",
		"conversation_id": result.ConversationID,
		"state":           result.State,
	})
}
