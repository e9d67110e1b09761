// Package handler exposes the statement service as a JSON REST API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/service"
	"github.com/ledgerline/statement-analyzer/pkg/apperr"
)

// StatementService is the service surface the HTTP layer depends on.
type StatementService interface {
	Upload(ctx context.Context, filename string, data []byte) (*statement.Statement, error)
	Get(ctx context.Context, statementID int64) (*statement.Statement, error)
	List(ctx context.Context, query string) ([]statement.Summary, error)
	Delete(ctx context.Context, statementID int64) error
	Analyze(ctx context.Context, statementID int64, prompt string) (*statement.Analysis, error)
	ListAnalyses(ctx context.Context, statementID int64) ([]statement.Analysis, error)
	ExportCSV(ctx context.Context, statementID int64) ([]byte, string, error)
	ExportXLSX(ctx context.Context, statementID int64) ([]byte, string, error)
}

var _ StatementService = (*service.Service)(nil)

// StatementHandler handles the statement REST endpoints.
type StatementHandler struct {
	svc            StatementService
	logger         *slog.Logger
	maxUploadBytes int64
	dbPing         func(ctx context.Context) error
}

// NewStatementHandler creates a new statement handler. maxUploadBytes caps
// the multipart body; zero falls back to the service default.
func NewStatementHandler(svc StatementService, maxUploadBytes int64, logger *slog.Logger) *StatementHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementHandler{
		svc:            svc,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// WithDBHealth adds a database ping to the health surface.
func (h *StatementHandler) WithDBHealth(ping func(ctx context.Context) error) *StatementHandler {
	h.dbPing = ping
	return h
}

// RegisterRoutes sets up the HTTP routes.
func (h *StatementHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/statements/upload", h.handleUpload)
	mux.HandleFunc("GET /api/v1/statements", h.handleList)
	mux.HandleFunc("GET /api/v1/statements/{id}", h.handleGet)
	mux.HandleFunc("DELETE /api/v1/statements/{id}", h.handleDelete)
	mux.HandleFunc("GET /api/v1/statements/{id}/export", h.handleExport)
	mux.HandleFunc("POST /api/v1/statements/{id}/analyses", h.handleAnalyze)
	mux.HandleFunc("GET /api/v1/statements/{id}/analyses", h.handleListAnalyses)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/db", h.handleDBHealth)
}

func (h *StatementHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	// One extra megabyte covers the multipart framing; the service enforces
	// the real data limit with a classified error.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindValidation, "could not parse multipart form", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, apperr.New(apperr.KindValidation, `no file uploaded: use form field "file"`))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindInternal, "could not read uploaded file", err))
		return
	}

	stmt, err := h.svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, stmt)
}

func (h *StatementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if summaries == nil {
		// nil marshals to JSON null, not [].
		summaries = []statement.Summary{}
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *StatementHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := statementID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stmt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stmt)
}

func (h *StatementHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := statementID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StatementHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := statementID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		data        []byte
		name        string
		contentType string
	)
	switch format {
	case "csv":
		data, name, err = h.svc.ExportCSV(r.Context(), id)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		data, name, err = h.svc.ExportXLSX(r.Context(), id)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		h.writeError(w, r, apperr.New(apperr.KindValidation, "unsupported export format: use csv or xlsx").
			With("format", format))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write export response", "error", err)
	}
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
}

func (h *StatementHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, err := statementID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindValidation, `request body must be JSON with a "prompt" field`, err))
		return
	}

	analysis, err := h.svc.Analyze(r.Context(), id, req.Prompt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, analysis)
}

func (h *StatementHandler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	id, err := statementID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	analyses, err := h.svc.ListAnalyses(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if analyses == nil {
		analyses = []statement.Analysis{}
	}
	h.writeJSON(w, http.StatusOK, analyses)
}

func (h *StatementHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatementHandler) handleDBHealth(w http.ResponseWriter, r *http.Request) {
	if h.dbPing == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "not configured"})
		return
	}
	if err := h.dbPing(r.Context()); err != nil {
		h.logger.Error("database health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// statementID parses the {id} path segment.
func statementID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindValidation, "statement id must be a positive integer").With("id", raw)
	}
	return id, nil
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError translates an error into the wire shape. Unclassified errors
// keep their detail out of the response body and go to the log instead.
func (h *StatementHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)

	resp := errorResponse{
		Error:   apperr.KindOf(err).String(),
		Message: "internal server error",
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
	}
	h.writeJSON(w, status, resp)
}

func (h *StatementHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
