package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/trackvote/backend/internal/ledger"
	"github.com/trackvote/backend/internal/logging"
	"github.com/trackvote/backend/internal/metrics"
	"github.com/trackvote/backend/internal/models"
	"github.com/trackvote/backend/internal/roster"
)

const persistenceWarning = "vote recorded but could not be saved; it may be lost on restart"

// VoteHandler accepts like/dislike votes.
type VoteHandler struct {
	ledger        *ledger.Ledger
	roster        *roster.Roster
	requireRoster bool
	metrics       *metrics.VoteMetrics
}

// NewVoteHandler creates a VoteHandler. When requireRoster is set, only names
// on the roster may vote.
func NewVoteHandler(l *ledger.Ledger, r *roster.Roster, requireRoster bool, m *metrics.VoteMetrics) *VoteHandler {
	return &VoteHandler{ledger: l, roster: r, requireRoster: requireRoster, metrics: m}
}

// Submit registers one vote and returns the new count for the chosen action.
func (h *VoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An unparsed action reaches the ledger as "" so track and name errors
	// still take precedence.
	category, parseErr := ledger.ParseCategory(req.Action)
	label := string(category)
	if parseErr != nil {
		label = "invalid"
	}

	if h.requireRoster && h.ledger.Known(req.TrackID) && strings.TrimSpace(req.Name) != "" && !h.roster.Contains(req.Name) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventUnknownVoter, "vote from name not on roster")
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultRejected).Inc()
		writeError(w, http.StatusForbidden, "voter is not on the roster")
		return
	}

	count, err := h.ledger.RegisterVote(r.Context(), req.TrackID, category, req.Name)
	switch {
	case err == nil:
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultAccepted).Inc()
		writeJSON(w, http.StatusOK, models.VoteResponse{NewCount: count})

	case errors.Is(err, ledger.ErrPersistence):
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultPersistFailed).Inc()
		h.metrics.PersistenceFailures.WithLabelValues("vote").Inc()
		logging.LogWarnWithStatus(r.Context(), http.StatusAccepted, "vote applied without persistence", logging.WrapError(err, "save vote state"))
		writeJSON(w, http.StatusAccepted, models.VoteResponse{NewCount: count, Warning: persistenceWarning})

	case errors.Is(err, ledger.ErrDuplicateVote):
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultDuplicate).Inc()
		writeError(w, http.StatusConflict, "already voted for this track")

	case errors.Is(err, ledger.ErrUnknownItem):
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultRejected).Inc()
		writeError(w, http.StatusBadRequest, "unknown track")

	case errors.Is(err, ledger.ErrInvalidVoter):
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultRejected).Inc()
		writeError(w, http.StatusBadRequest, "name is required")

	case errors.Is(err, ledger.ErrInvalidCategory):
		h.metrics.VotesTotal.WithLabelValues(label, metrics.ResultRejected).Inc()
		writeError(w, http.StatusBadRequest, "action must be 'like' or 'dislike'")

	default:
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to register vote", err)
	}
}
