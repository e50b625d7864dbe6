package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/guardshare/internal/common"
)

func (h *Handler) adminListLinks(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.links.ListAll(r.Context(), requesterFrom(r.Context()), p)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, p, toLinkResponse))
}

func (h *Handler) adminListFiles(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.files.ListAll(r.Context(), requesterFrom(r.Context()), p)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, p, toFileResponse))
}

func (h *Handler) adminSweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.sweeper.SweepNow(r.Context(), requesterFrom(r.Context()))
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deactivated": n})
}

type purgeRequest struct {
	// OlderThan is a Go duration string such as "720h".
	OlderThan string `json:"older_than"`
}

func (h *Handler) adminPurge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := time.ParseDuration(req.OlderThan)
	if err != nil {
		h.failed(w, r, fmt.Errorf("older_than: %w", common.ErrorValidation))
		return
	}

	n, err := h.sweeper.PurgeNow(r.Context(), requesterFrom(r.Context()), d)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) adminDeactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Deactivate(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "userID")); err != nil {
		h.failed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
