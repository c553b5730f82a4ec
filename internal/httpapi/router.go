// Package httpapi exposes the indexing and search services over a thin
// JSON/chi HTTP surface: sources, scans, jobs, documents and search.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	docerrors "github.com/localsearch/docsearch/internal/errors"
	"github.com/localsearch/docsearch/internal/index"
	"github.com/localsearch/docsearch/internal/model"
	"github.com/localsearch/docsearch/internal/search"
	"github.com/localsearch/docsearch/internal/store"
)

// Deps bundles the services and store the router dispatches to.
type Deps struct {
	Metadata store.MetadataStore
	Index    *index.Service
	Search   *search.Service
}

// NewRouter builds the chi router exposing the HTTP API described in
// SPEC_FULL.md section 6.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	h := &handler{deps: deps}

	r.Get("/health", h.health)
	r.Route("/sources", func(r chi.Router) {
		r.Post("/", h.createSource)
		r.Get("/", h.listSources)
		r.Post("/{id}/scan", h.scanSource)
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Get("/{id}", h.getJob)
	})
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.listDocuments)
		r.Get("/{id}", h.getDocument)
		r.Get("/{id}/chunks", h.listDocumentChunks)
	})
	r.Post("/search", h.search)

	return r
}

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSourceRequest struct {
	Name   string            `json:"name"`
	Path   string            `json:"path"`
	Config map[string]string `json:"config"`
}

func (h *handler) createSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, docerrors.Validation("invalid request body", err))
		return
	}
	if req.Name == "" || req.Path == "" {
		writeError(w, docerrors.Validation("name and path are required", nil))
		return
	}

	source := &model.Source{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Path:   req.Path,
		Config: req.Config,
	}
	if err := h.deps.Metadata.UpsertSource(r.Context(), source); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

func (h *handler) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.deps.Metadata.ListSources(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (h *handler) scanSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	source, err := h.deps.Metadata.GetSource(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if source == nil {
		writeError(w, docerrors.NotFound(docerrors.ErrCodeSourceNotFound, "source not found", nil))
		return
	}

	job := &model.Job{
		ID:      uuid.NewString(),
		Type:    model.JobTypeScanSource,
		Status:  model.JobStatusPending,
		Payload: map[string]string{"source_id": id},
	}
	if err := h.deps.Metadata.UpsertJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.deps.Metadata.ListJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.deps.Metadata.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, docerrors.NotFound(docerrors.ErrCodeJobNotFound, "job not found", nil))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		writeError(w, docerrors.Validation("source_id query parameter is required", nil))
		return
	}
	docs, err := h.deps.Metadata.ListDocumentsBySource(r.Context(), sourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.deps.Metadata.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		writeError(w, docerrors.NotFound(docerrors.ErrCodeDocumentNotFound, "document not found", nil))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handler) listDocumentChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, err := h.deps.Metadata.ListChunks(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chunks)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, docerrors.Validation("invalid request body", err))
		return
	}
	limit := req.TopK
	if limit <= 0 {
		limit = 10
	}

	results, err := h.deps.Search.Search(r.Context(), req.Query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", slog.Any("error", err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := docerrors.HTTPStatus(err)
	resp := errorResponse{Error: err.Error()}
	if de, ok := err.(*docerrors.DocError); ok {
		resp.Code = de.Code
	}
	slog.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	writeJSON(w, status, resp)
}
