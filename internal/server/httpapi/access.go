package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/server/access"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

// accessRequest collects link id, verification values and caller details.
// Verification values may come from the query or from X-Link-* headers;
// headers win so that secrets can stay out of URLs.
func accessRequest(r *http.Request) services.AccessRequest {
	q := r.URL.Query()
	creds := access.Credentials{Password: q.Get("password"), Username: q.Get("username")}
	if v := r.Header.Get(common.LinkPasswordHeaderName); v != "" {
		creds.Password = v
	}
	if v := r.Header.Get(common.LinkUsernameHeaderName); v != "" {
		creds.Username = v
	}

	return services.AccessRequest{
		LinkID:        chi.URLParam(r, "linkID"),
		Requester:     requesterFrom(r.Context()),
		Credentials:   creds,
		SourceAddress: clientIP(r),
		UserAgent:     r.UserAgent(),
	}
}

func (h *Handler) viewLink(w http.ResponseWriter, r *http.Request) {
	out, err := h.access.View(r.Context(), accessRequest(r))
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccessOutcomeResponse(out))
}

// downloadLink redirects to the presigned URL unless redirect=false is given,
// in which case the outcome is returned as JSON.
func (h *Handler) downloadLink(w http.ResponseWriter, r *http.Request) {
	out, err := h.access.Download(r.Context(), accessRequest(r))
	if err != nil {
		h.failed(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "false" {
		writeJSON(w, http.StatusOK, toAccessOutcomeResponse(out))
		return
	}
	http.Redirect(w, r, out.Retrieval.URL, http.StatusFound)
}
