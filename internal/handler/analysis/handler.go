package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/catalyst/backend/internal/export"
	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	"github.com/zhouzirui/catalyst/backend/internal/service/ai"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/pkg/utils"
)

// Handler runs feasibility analyses and serves exports of the current result.
type Handler struct {
	gateway ai.Gateway
	chatSvc *chatService.Service
}

// New creates an analysis handler. A nil gateway answers 503 on analyze;
// exports still work for restored sessions.
func New(gateway ai.Gateway, chatSvc *chatService.Service) *Handler {
	return &Handler{gateway: gateway, chatSvc: chatSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.handleAnalyze)
	r.Get("/export/analysis.csv", h.handleExportCSV)
	r.Get("/export/analysis.pdf", h.handleExportPDF)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "model gateway not configured")
		return
	}

	var payload struct {
		Idea string `json:"idea"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.Analyze(r.Context(), h.gateway, payload.Idea)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, result)
	case errors.Is(err, chatService.ErrInvalidInput):
		if h.chatSvc.Snapshot().AnalysisLoading {
			utils.RespondError(w, http.StatusConflict, "an analysis is already running")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "idea is required")
	case errors.Is(err, chatService.ErrStale):
		utils.RespondError(w, http.StatusConflict, "session changed before the analysis finished")
	default:
		logging.For("analysis").WithError(err).Warn("analysis request failed")
		utils.RespondError(w, http.StatusBadGateway, "analysis failed, please try again")
	}
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, "text/csv; charset=utf-8", export.CSVFileName, export.WriteCSV)
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, "application/pdf", export.PDFFileName, export.WritePDF)
}

func (h *Handler) serveExport(
	w http.ResponseWriter,
	contentType string,
	name func(*chat.AnalysisResult) string,
	write func(io.Writer, *chat.AnalysisResult) error,
) {
	result := h.chatSvc.Snapshot().AnalysisResult
	if result == nil {
		utils.RespondError(w, http.StatusNotFound, "no analysis to export")
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, result); err != nil {
		logging.For("export").WithError(err).Error("export failed")
		utils.RespondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name(result)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
