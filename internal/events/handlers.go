package events

import (
	"context"
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Lister pages stored events. *PgStore satisfies it.
type Lister interface {
	List(ctx context.Context, topic string, limit, offset int) ([]Event, error)
}

// Handler exposes the stored event stream for ops tooling.
type Handler struct {
	Store Lister
}

// List returns stored events, newest first, optionally filtered by topic.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	evts, err := h.Store.List(r.Context(), r.URL.Query().Get("topic"), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load events", nil)
		return
	}
	if evts == nil {
		evts = []Event{}
	}
	common.JSONData(w, http.StatusOK, evts)
}
