package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vendaflow/agent-core/internal/middleware"
	"github.com/vendaflow/agent-core/internal/model"
	"github.com/vendaflow/agent-core/internal/quota"
	"github.com/vendaflow/agent-core/internal/store"
	"github.com/vendaflow/agent-core/pkg/logger"
)

// UsageHandler serves the governance dashboard's usage read.
type UsageHandler struct {
	store  *store.Store
	ledger *quota.Ledger
	logger *logger.Logger
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(st *store.Store, ledger *quota.Ledger, log *logger.Logger) *UsageHandler {
	return &UsageHandler{
		store:  st,
		ledger: ledger,
		logger: log,
	}
}

// Get handles GET /api/v1/usage
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	cfg, err := h.store.AgentConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "organization not configured")
			return
		}
		h.logger.Error("failed to load agent config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}

	record, err := h.ledger.Usage(ctx, orgID, cfg.QuotaPeriod)
	if err != nil {
		h.logger.Error("failed to load usage", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}

	writeJSON(w, http.StatusOK, model.UsageSummary{
		OrganizationID: orgID,
		PeriodType:     cfg.QuotaPeriod,
		Limit:          cfg.QuotaLimit,
		Current:        *record,
	})
}
