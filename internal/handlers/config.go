package handlers

import (
	"net/http"
	"strings"

	"github.com/trackvote/backend/internal/config"
	"github.com/trackvote/backend/internal/models"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// PublicConfig returns non-sensitive configuration for the frontend
func (h *ConfigHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ConfigResponse{
		SpotifyClientID:    h.cfg.SpotifyClientID,
		SpotifyPlaylistID:  h.cfg.SpotifyPlaylistID,
		ResetEnabled:       strings.TrimSpace(h.cfg.ResetPIN) != "",
		RequireRosterVoter: h.cfg.RequireRosterVoter,
	})
}
