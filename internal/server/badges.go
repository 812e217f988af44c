package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/arandu-labs/arandu/internal/review"
	"github.com/arandu-labs/arandu/internal/store"
)

// badgeCacheControl lets proxies serve badges without hitting the service on
// every README render.
const badgeCacheControl = "public, max-age=3600"

// handleBadge serves {review_id}/{kind}.svg. Badges for incomplete reviews
// render in their zero state rather than 404ing, so embedded READMEs always
// show something.
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	kind, ok := strings.CutSuffix(r.PathValue("badge"), ".svg")
	if !ok {
		writeError(w, http.StatusNotFound, "badge not found", "")
		return
	}

	rev, err := s.store.GetReview(r.Context(), r.PathValue("review_id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "review not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load review", err.Error())
		return
	}

	var badges review.Badges
	if rev.Badges != "" {
		if err := json.Unmarshal([]byte(rev.Badges), &badges); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to decode badges", err.Error())
			return
		}
	}

	svg, err := review.RenderBadgeSVG(kind, badges)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown badge kind", "")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", badgeCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}
