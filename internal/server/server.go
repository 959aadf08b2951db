// Package server exposes the catalog over read-only JSON endpoints plus a
// revalidation hook for content updates.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-cache/catalog"
	"github.com/goliatone/go-catalog-cache/internal/logging"
	"github.com/goliatone/go-errors"
	"go.uber.org/zap"
)

// SecretHeader carries the revalidation secret.
const SecretHeader = "X-Revalidate-Secret"

const maxBodyBytes = 64 << 10

// Catalog is the read and invalidation surface served over HTTP.
type Catalog interface {
	ListIdeas(ctx context.Context, pageSize int, cursor string, categories []string, query string) catalog.Page
	ListFeaturedIdeas(ctx context.Context, limit int) []catalog.Record
	ListCategories(ctx context.Context) []string
	GetIdeaBySlug(ctx context.Context, slug string) *catalog.Record
	ListMinimalIdeasForNavigation(ctx context.Context) []catalog.NavEntry

	ListTechnologies(ctx context.Context, pageSize int, cursor string, categories []string, query string) catalog.Page
	ListTechnologyCategories(ctx context.Context) []string
	GetTechnologyBySlug(ctx context.Context, slug string) *catalog.Record
	ListMinimalTechnologiesForNavigation(ctx context.Context) []catalog.NavEntry

	Invalidate(ctx context.Context, tags ...string)
	InvalidateAll(ctx context.Context)
}

// Handlers serves a Catalog.
type Handlers struct {
	catalog Catalog
	secret  string
	logger  *zap.Logger
}

// NewHandlers builds the handlers. An empty secret leaves revalidation open.
func NewHandlers(c Catalog, secret string, logger *zap.Logger) *Handlers {
	return &Handlers{catalog: c, secret: secret, logger: logging.Named(logger, "http")}
}

// Routes returns the mux with every endpoint registered.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	mux.HandleFunc("GET /ideas", h.HandleListIdeas)
	mux.HandleFunc("GET /ideas/featured", h.HandleFeaturedIdeas)
	mux.HandleFunc("GET /ideas/categories", h.HandleIdeaCategories)
	mux.HandleFunc("GET /ideas/navigation", h.HandleIdeaNavigation)
	mux.HandleFunc("GET /ideas/{slug}", h.HandleIdea)

	mux.HandleFunc("GET /technologies", h.HandleListTechnologies)
	mux.HandleFunc("GET /technologies/categories", h.HandleTechnologyCategories)
	mux.HandleFunc("GET /technologies/navigation", h.HandleTechnologyNavigation)
	mux.HandleFunc("GET /technologies/{slug}", h.HandleTechnology)

	mux.HandleFunc("POST /revalidate", h.HandleRevalidate)
	return h.logRequests(mux)
}

// New returns an http.Server for addr serving c.
func New(addr string, c Catalog, secret string, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandlers(c, secret, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// HandleHealth answers GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListIdeas serves one page of ideas filtered by category and q.
func (h *Handlers) HandleListIdeas(w http.ResponseWriter, r *http.Request) {
	pageSize, cursor, categories, query := listParams(r)
	writeJSON(w, http.StatusOK, h.catalog.ListIdeas(r.Context(), pageSize, cursor, categories, query))
}

// HandleFeaturedIdeas serves up to limit featured ideas (default 3).
func (h *Handlers) HandleFeaturedIdeas(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 3)
	writeJSON(w, http.StatusOK, map[string]any{"items": h.catalog.ListFeaturedIdeas(r.Context(), limit)})
}

// HandleIdeaCategories serves the sorted idea categories.
func (h *Handlers) HandleIdeaCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.catalog.ListCategories(r.Context())})
}

// HandleIdeaNavigation serves {id, title, slug} for every idea.
func (h *Handlers) HandleIdeaNavigation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.catalog.ListMinimalIdeasForNavigation(r.Context())})
}

// HandleIdea serves the idea with the slug in the path, or 404.
func (h *Handlers) HandleIdea(w http.ResponseWriter, r *http.Request) {
	writeRecord(w, h.catalog.GetIdeaBySlug(r.Context(), r.PathValue("slug")))
}

// HandleListTechnologies serves one page of technologies.
func (h *Handlers) HandleListTechnologies(w http.ResponseWriter, r *http.Request) {
	pageSize, cursor, categories, query := listParams(r)
	writeJSON(w, http.StatusOK, h.catalog.ListTechnologies(r.Context(), pageSize, cursor, categories, query))
}

// HandleTechnologyCategories serves the sorted technology categories.
func (h *Handlers) HandleTechnologyCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.catalog.ListTechnologyCategories(r.Context())})
}

// HandleTechnologyNavigation serves {id, title, slug} for every technology.
func (h *Handlers) HandleTechnologyNavigation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.catalog.ListMinimalTechnologiesForNavigation(r.Context())})
}

// HandleTechnology serves the technology with the slug in the path, or 404.
func (h *Handlers) HandleTechnology(w http.ResponseWriter, r *http.Request) {
	writeRecord(w, h.catalog.GetTechnologyBySlug(r.Context(), r.PathValue("slug")))
}

type revalidateRequest struct {
	Tags []string `json:"tags"`
}

// HandleRevalidate drops the cache entries of the posted tags, or everything when
// the list is empty or the body is absent.
func (h *Handlers) HandleRevalidate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid revalidation secret"})
			return
		}
	}

	var req revalidateRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	var tags []string
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	if len(tags) == 0 {
		h.catalog.InvalidateAll(r.Context())
		h.logger.Info("cache revalidated", zap.Bool("all", true))
		writeJSON(w, http.StatusOK, map[string]any{"revalidated": "all"})
		return
	}

	h.catalog.Invalidate(r.Context(), tags...)
	h.logger.Info("cache revalidated", zap.Strings("tags", tags))
	writeJSON(w, http.StatusOK, map[string]any{"revalidated": tags})
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// listParams reads pageSize, cursor, category (repeatable or comma separated) and q.
func listParams(r *http.Request) (int, string, []string, string) {
	q := r.URL.Query()

	var categories []string
	for _, raw := range q["category"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}
	return intParam(r, "pageSize", 0), q.Get("cursor"), categories, strings.TrimSpace(q.Get("q"))
}

func intParam(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return n
}

func writeRecord(w http.ResponseWriter, rec *catalog.Record) {
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
