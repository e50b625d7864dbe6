package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

type createLinkRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FileID      string `json:"file_id"`
	Expiration  struct {
		Type    string     `json:"type"`
		Seconds int64      `json:"seconds"`
		Date    *time.Time `json:"date"`
	} `json:"expiration"`
	AccessLimit  *int64 `json:"access_limit"`
	Verification struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"verification"`
	Audience struct {
		Scope string   `json:"scope"`
		Users []string `json:"users"`
	} `json:"audience"`
	DownloadAllowed bool `json:"download_allowed"`
}

// maxExpirationSeconds is the longest duration time.Duration can hold.
const maxExpirationSeconds = math.MaxInt64 / int64(time.Second)

func (req createLinkRequest) expiration() (models.ExpirationPolicy, error) {
	switch models.ExpirationKind(req.Expiration.Type) {
	case models.ExpirationNone, "":
		return models.NoExpiration(), nil
	case models.ExpirationDuration:
		if req.Expiration.Seconds > maxExpirationSeconds {
			return models.ExpirationPolicy{}, fmt.Errorf("expiration duration is too long: %w", common.ErrorValidation)
		}
		return models.ExpireAfter(time.Duration(req.Expiration.Seconds) * time.Second), nil
	case models.ExpirationFixedDate:
		if req.Expiration.Date == nil {
			return models.ExpirationPolicy{}, fmt.Errorf("expiration date is required: %w", common.ErrorValidation)
		}
		return models.ExpireAt(req.Expiration.Date.UTC()), nil
	default:
		return models.ExpirationPolicy{}, fmt.Errorf("unknown expiration type %q: %w", req.Expiration.Type, common.ErrorValidation)
	}
}

func (h *Handler) createLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exp, err := req.expiration()
	if err != nil {
		h.failed(w, r, err)
		return
	}

	link, err := h.links.Create(r.Context(), requesterFrom(r.Context()), services.CreateLinkInput{
		Name:              req.Name,
		Description:       req.Description,
		FileID:            req.FileID,
		Expiration:        exp,
		AccessLimit:       req.AccessLimit,
		VerificationKind:  models.VerificationKind(req.Verification.Type),
		VerificationValue: req.Verification.Value,
		AudienceScope:     models.AudienceScope(req.Audience.Scope),
		AllowedUsers:      req.Audience.Users,
		DownloadAllowed:   req.DownloadAllowed,
	})
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLinkResponse(link))
}

func (h *Handler) listLinks(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.links.List(r.Context(), requesterFrom(r.Context()), p)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, p, toLinkResponse))
}

func (h *Handler) recentLinks(w http.ResponseWriter, r *http.Request) {
	items, err := h.links.Recent(r.Context(), requesterFrom(r.Context()))
	if err != nil {
		h.failed(w, r, err)
		return
	}
	out := make([]linkResponse, 0, len(items))
	for _, l := range items {
		out = append(out, toLinkResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "linkID"))
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLinkResponse(link))
}

func (h *Handler) toggleLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Toggle(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "linkID"))
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLinkResponse(link))
}

func (h *Handler) deleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Delete(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "linkID")); err != nil {
		h.failed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) accessLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.links.AccessLog(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "linkID"), limit)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	out := make([]accessLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAccessLogResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}
