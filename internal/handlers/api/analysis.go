package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vatdesk/api/internal/export"
	"github.com/vatdesk/api/internal/services/analysis"
	"github.com/vatdesk/api/internal/vat"
)

// AnalysisHandler accepts marketplace VAT exports and returns the
// classification report.
type AnalysisHandler struct {
	svc       *analysis.Service
	maxUpload int64
	logger    *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler. Request bodies larger
// than maxUpload bytes are rejected with 413.
func NewAnalysisHandler(svc *analysis.Service, maxUpload int64, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		svc:       svc,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// RegisterRoutes registers the analysis routes.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/analyses", h.Create)
	mux.HandleFunc("GET /api/v1/analyses/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/analyses/{id}", h.Delete)
}

func parseFormat(r *http.Request) (string, bool) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	return format, format == "" || format == "json" || format == "csv"
}

// analysisErrorJSON extends errorJSON with the unresolved columns of a
// structural failure.
type analysisErrorJSON struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// Create handles POST /api/v1/analyses.
//
// The export is either the raw request body or the "file" part of a
// multipart form. Mapping rules come from the "mapping" form field or query
// parameter as JSON. ?format=csv returns the breakdown as CSV instead of the
// JSON report.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	format, ok := parseFormat(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "format must be json or csv"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	in, mappingDoc, err := h.readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorJSON{Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}

	rules, err := analysis.ParseMappingRules([]byte(mappingDoc))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: err.Error()})
		return
	}

	result, err := h.svc.Analyze(r.Context(), in, rules)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}

	h.writeResult(w, format, result)
}

// Get handles GET /api/v1/analyses/{id}, returning an archived result in the
// same formats as Create.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	format, ok := parseFormat(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "format must be json or csv"})
		return
	}
	id, ok := runID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeArchiveError(w, id, err)
		return
	}
	h.writeResult(w, format, result)
}

// Delete handles DELETE /api/v1/analyses/{id}.
func (h *AnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeArchiveError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid analysis ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *AnalysisHandler) writeArchiveError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, analysis.ErrNotFound), errors.Is(err, analysis.ErrArchiveDisabled):
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "analysis not found"})
	default:
		h.logger.Error("archive lookup failed", "error", err, "run_id", id)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
	}
}

func (h *AnalysisHandler) writeResult(w http.ResponseWriter, format string, result *analysis.Result) {
	if format != "csv" {
		writeJSON(w, http.StatusOK, result)
		return
	}

	name := strings.TrimSuffix(filepath.Base(result.Source), filepath.Ext(result.Source))
	if name == "" || name == "." {
		name = "breakdown"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + "-breakdown.csv"}))
	w.Header().Set("X-Run-ID", result.RunID.String())
	if err := export.WriteBreakdown(w, result.Report.Breakdown); err != nil {
		h.logger.Error("failed to write breakdown CSV", "error", err, "run_id", result.RunID)
	}
}

func (h *AnalysisHandler) readUpload(r *http.Request) (analysis.Input, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return analysis.Input{}, "", fmt.Errorf("parsing multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return analysis.Input{}, "", fmt.Errorf("reading uploaded file: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return analysis.Input{}, "", fmt.Errorf("reading uploaded file: %w", err)
		}
		return analysis.Input{Name: header.Filename, Data: data}, r.FormValue("mapping"), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return analysis.Input{}, "", fmt.Errorf("reading request body: %w", err)
	}
	q := r.URL.Query()
	return analysis.Input{Name: q.Get("name"), Data: data}, q.Get("mapping"), nil
}

func (h *AnalysisHandler) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	if analysis.IsInputError(err) {
		resp := analysisErrorJSON{Error: err.Error()}
		var mce *vat.MissingColumnsError
		if errors.As(err, &mce) {
			resp.Missing = mce.Missing
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	if r.Context().Err() != nil {
		h.logger.Warn("analysis abandoned by client", "error", err)
		return
	}

	h.logger.Error("analysis failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
}
