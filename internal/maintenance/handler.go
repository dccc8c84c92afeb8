// Package maintenance exposes cron-triggered housekeeping endpoints.
package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"auth-serverless/internal/observability"
)

// DenylistPurger deletes denylist entries whose access token has already expired.
type DenylistPurger interface {
	PurgeExpiredDenylist(ctx context.Context, batchSize int) (int64, error)
}

type PurgeHandler struct {
	purger     DenylistPurger
	logger     *observability.Logger
	cronSecret string
	batchSize  int
}

func NewPurgeHandler(purger DenylistPurger, logger *observability.Logger, cronSecret string, batchSize int) *PurgeHandler {
	return &PurgeHandler{
		purger:     purger,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *PurgeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" || h.purger == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	deleted, err := h.purger.PurgeExpiredDenylist(r.Context(), h.batchSize)
	if err != nil {
		h.logger.Error("denylist_purge_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "purge failed"})
		return
	}

	h.logger.Info("denylist_purge_completed", map[string]any{"deleted_denylist_entries": deleted})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                   "ok",
		"deleted_denylist_entries": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
