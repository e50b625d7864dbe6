package httpapi

import (
	"encoding/json"
	"net/http"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.failed(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "username": u.UserName, "role": u.Role})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.failed(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "Bearer"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	req := requesterFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID, "role": req.Role})
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.Search(r.Context(), requesterFrom(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		h.failed(w, r, err)
		return
	}

	out := make([]userSummary, 0, len(found))
	for _, u := range found {
		out = append(out, userSummary{ID: u.ID, Username: u.UserName})
	}
	writeJSON(w, http.StatusOK, out)
}
