// Package httpapi exposes the services over a JSON HTTP API built on chi.
package httpapi

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/ratelimit"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

// Limits are the rate limit policies applied to route groups.
type Limits struct {
	General ratelimit.Policy
	Auth    ratelimit.Policy
	Upload  ratelimit.Policy
}

type Handler struct {
	users   *services.UserService
	files   *services.FileService
	links   *services.LinkService
	access  *services.AccessService
	sweeper *services.Sweeper
	limiter ratelimit.Limiter
	limits  Limits
	proxies []netip.Prefix
	logger  logging.Logger
}

func NewHandler(us *services.UserService, fs *services.FileService, ls *services.LinkService,
	as *services.AccessService, sw *services.Sweeper, limiter ratelimit.Limiter, limits Limits,
	trustedProxies []netip.Prefix, logger logging.Logger) *Handler {
	return &Handler{
		users:   us,
		files:   fs,
		links:   ls,
		access:  as,
		sweeper: sw,
		limiter: limiter,
		limits:  limits,
		proxies: trustedProxies,
		logger:  logger.With("module", "http"),
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, realIP(h.proxies), requestLogger(h.logger), metrics, chimw.Recoverer)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(h.limiter, h.limits.General, h.logger))
		r.Use(h.identify)

		r.With(rateLimit(h.limiter, h.limits.Auth, h.logger)).Post("/api/auth/register", h.register)
		r.With(rateLimit(h.limiter, h.limits.Auth, h.logger)).Post("/api/auth/login", h.login)

		r.Get("/api/links/access/{linkID}", h.viewLink)
		r.Get("/api/links/download/{linkID}", h.downloadLink)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/api/auth/me", h.me)
			r.Get("/api/users/search", h.searchUsers)

			r.With(rateLimit(h.limiter, h.limits.Upload, h.logger)).Post("/api/files/upload-url", h.presignUpload)
			r.Post("/api/files", h.commitFile)
			r.Get("/api/files", h.listFiles)
			r.Get("/api/files/{fileID}", h.getFile)
			r.Delete("/api/files/{fileID}", h.deleteFile)

			r.Post("/api/links", h.createLink)
			r.Get("/api/links", h.listLinks)
			r.Get("/api/links/recent", h.recentLinks)
			r.Get("/api/links/{linkID}", h.getLink)
			r.Delete("/api/links/{linkID}", h.deleteLink)
			r.Post("/api/links/{linkID}/toggle", h.toggleLink)
			r.Get("/api/links/{linkID}/access-log", h.accessLog)

			r.Route("/api/admin", func(r chi.Router) {
				r.Use(requireSuperuser)
				r.Get("/links", h.adminListLinks)
				r.Get("/files", h.adminListFiles)
				r.Post("/sweep", h.adminSweep)
				r.Post("/purge", h.adminPurge)
				r.Post("/users/{userID}/deactivate", h.adminDeactivateUser)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// failed writes err and logs it when it is not a client error.
func (h *Handler) failed(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeServiceError(w, err)
}

// listParams reads search, active, sort, order, page and limit from the query.
func listParams(r *http.Request) models.ListParams {
	q := r.URL.Query()
	p := models.ListParams{
		Search: strings.TrimSpace(q.Get("search")),
		SortBy: q.Get("sort"),
		Desc:   !strings.EqualFold(q.Get("order"), "asc"),
	}
	if v, err := strconv.ParseBool(q.Get("active")); err == nil {
		p.Active = &v
	}
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.Limit, _ = strconv.Atoi(q.Get("limit"))
	return p.Normalize()
}

type page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func newPage[S any, T any](items []S, total int, p models.ListParams, conv func(S) T) page[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return page[T]{Items: out, Total: total, Page: p.Page, Limit: p.Limit}
}
