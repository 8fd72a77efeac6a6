package handlers

import (
	"errors"
	"net/http"

	"github.com/trackvote/backend/internal/crypto"
	"github.com/trackvote/backend/internal/ledger"
	"github.com/trackvote/backend/internal/logging"
	"github.com/trackvote/backend/internal/metrics"
	"github.com/trackvote/backend/internal/models"
	"github.com/trackvote/backend/internal/services"
)

const resetPersistenceWarning = "votes reset but the cleared state could not be saved"

// AdminHandler exchanges the reset PIN for an admin token and performs resets.
type AdminHandler struct {
	pin         *crypto.PINVerifier
	authService *services.AuthService
	ledger      *ledger.Ledger
	metrics     *metrics.VoteMetrics
}

func NewAdminHandler(pin *crypto.PINVerifier, authService *services.AuthService, l *ledger.Ledger, m *metrics.VoteMetrics) *AdminHandler {
	return &AdminHandler{pin: pin, authService: authService, ledger: l, metrics: m}
}

// Login verifies the PIN and returns a short-lived admin token.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.pin.Enabled() {
		writeError(w, http.StatusForbidden, "reset is disabled")
		return
	}

	var req models.AdminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.pin.Verify(req.PIN) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadResetPIN, "invalid reset PIN")
		writeError(w, http.StatusUnauthorized, "invalid PIN")
		return
	}

	token, expiresAt, err := h.authService.GenerateToken(services.RoleAdmin)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, models.AdminLoginResponse{Token: token, ExpiresAt: expiresAt})
}

// Reset clears every count and voter. Requires an admin token.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.Reset(r.Context())
	h.metrics.ResetsTotal.Inc()

	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ledger.ErrPersistence):
		h.metrics.PersistenceFailures.WithLabelValues("reset").Inc()
		logging.LogWarnWithStatus(r.Context(), http.StatusAccepted, "reset applied without persistence", logging.WrapError(err, "save vote state"))
		writeJSON(w, http.StatusAccepted, models.ResetResponse{Warning: resetPersistenceWarning})
	default:
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to reset votes", err)
	}
}
