package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/pkg/utils"
)

// Handler exposes the session controller: the active session state and the
// saved session list.
type Handler struct {
	chatSvc *chatService.Service
}

func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Put("/mode", h.handleSetMode)
	r.Put("/draft", h.handleSetDraft)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleListSessions)
		r.Post("/", h.handleNewSession)
		r.Get("/{sessionID}", h.handleGetSession)
		r.Post("/{sessionID}/load", h.handleLoadSession)
		r.Delete("/{sessionID}", h.handleDeleteSession)
	})
}

type sessionSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        int64     `json:"date"`
	Mode        chat.Mode `json:"mode"`
	HasAnalysis bool      `json:"hasAnalysis"`
	Current     bool      `json:"current"`
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Snapshot())
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	currentID := h.chatSvc.CurrentID()
	sessions := h.chatSvc.Sessions()
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			ID:          s.ID,
			Title:       s.Title,
			Date:        s.Date,
			Mode:        s.Mode,
			HasAnalysis: s.AnalysisResult != nil,
			Current:     s.ID == currentID,
		})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.StartNewSession()
	utils.RespondJSON(w, http.StatusCreated, h.chatSvc.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.chatSvc.LoadSessionByID(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Snapshot())
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode chat.Mode `json:"mode"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.chatSvc.SetMode(r.Context(), payload.Mode); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "mode must be chat or analyze")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Snapshot())
}

func (h *Handler) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.chatSvc.SetDraft(payload.Text)
	w.WriteHeader(http.StatusNoContent)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, chatService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
