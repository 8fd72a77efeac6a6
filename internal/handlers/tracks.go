package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trackvote/backend/internal/catalog"
	"github.com/trackvote/backend/internal/ledger"
	"github.com/trackvote/backend/internal/models"
	"github.com/trackvote/backend/internal/stats"
)

// TrackHandler serves read-only views over the catalog and the ledger.
type TrackHandler struct {
	catalog  *catalog.Snapshot
	ledger   *ledger.Ledger
	defaultN int
}

func NewTrackHandler(c *catalog.Snapshot, l *ledger.Ledger, defaultN int) *TrackHandler {
	if defaultN <= 0 {
		defaultN = stats.DefaultTopN
	}
	return &TrackHandler{catalog: c, ledger: l, defaultN: defaultN}
}

// List returns the catalog in playlist order with current counts.
func (h *TrackHandler) List(w http.ResponseWriter, r *http.Request) {
	table := h.ledger.Snapshot()
	items := h.catalog.Items()

	resp := make([]models.TrackResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toTrackResponse(it, table[it.ID]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns one track with its current counts.
func (h *TrackHandler) Get(w http.ResponseWriter, r *http.Request) {
	it, ok := h.catalog.Lookup(chi.URLParam(r, "trackId"))
	if !ok {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, toTrackResponse(it, h.ledger.Snapshot()[it.ID]))
}

func toTrackResponse(it catalog.Item, rec ledger.Record) models.TrackResponse {
	return models.TrackResponse{
		TrackID:    it.ID,
		Name:       it.Name,
		Artist:     it.Artist,
		Popularity: it.Popularity,
		Likes:      rec.Likes,
		Dislikes:   rec.Dislikes,
	}
}

// Stats returns the top liked, disliked and popular tracks. The optional
// "n" query parameter limits each list.
func (h *TrackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	n := h.defaultN
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "n must be an integer")
			return
		}
		n = parsed
	}

	s := stats.Compute(h.catalog.Items(), h.ledger.Snapshot(), n)
	writeJSON(w, http.StatusOK, models.StatsResponse{
		TopLiked:    toStatEntries(s.TopLiked),
		TopDisliked: toStatEntries(s.TopDisliked),
		TopPopular:  toStatEntries(s.TopPopular),
	})
}

func toStatEntries(entries []stats.Entry) []models.StatEntry {
	out := make([]models.StatEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.StatEntry{TrackID: e.ItemID, Name: e.Name, Artist: e.Artist, Value: e.Value})
	}
	return out
}
