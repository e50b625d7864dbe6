package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

type uploadURLRequest struct {
	MediaType string `json:"media_type"`
}

type uploadURLResponse struct {
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type commitFileRequest struct {
	StorageKey   string `json:"storage_key"`
	DisplayName  string `json:"display_name"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
	MediaType    string `json:"media_type"`
	Description  string `json:"description"`
}

func (h *Handler) presignUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.files.PresignUpload(r.Context(), requesterFrom(r.Context()), req.MediaType)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadURLResponse{StorageKey: task.StorageKey, URL: task.URL, ExpiresAt: task.ExpiresAt})
}

func (h *Handler) commitFile(w http.ResponseWriter, r *http.Request) {
	var req commitFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.files.Commit(r.Context(), requesterFrom(r.Context()), services.CommitFileInput{
		StorageKey:   req.StorageKey,
		DisplayName:  req.DisplayName,
		OriginalName: req.OriginalName,
		SizeBytes:    req.SizeBytes,
		MediaType:    req.MediaType,
		Description:  req.Description,
	})
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(f))
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.files.List(r.Context(), requesterFrom(r.Context()), p)
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, p, toFileResponse))
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.files.Get(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "fileID"))
	if err != nil {
		h.failed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(r.Context(), requesterFrom(r.Context()), chi.URLParam(r, "fileID")); err != nil {
		h.failed(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
