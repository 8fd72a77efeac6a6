package handlers

import (
	"errors"
	"net/http"

	"github.com/trackvote/backend/internal/models"
	"github.com/trackvote/backend/internal/roster"
)

// UserHandler exposes the voter roster.
type UserHandler struct {
	roster *roster.Roster
}

func NewUserHandler(r *roster.Roster) *UserHandler {
	return &UserHandler{roster: r}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.UsersResponse{Names: h.roster.Names()})
}

// Replace swaps the whole roster. Requires an admin token.
func (h *UserHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req models.UsersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	names, err := h.roster.Replace(req.Names)
	if errors.Is(err, roster.ErrEmptyName) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to save roster", err)
		return
	}

	writeJSON(w, http.StatusOK, models.UsersResponse{Names: names})
}
