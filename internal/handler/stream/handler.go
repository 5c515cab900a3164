package stream

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	"github.com/zhouzirui/catalyst/backend/internal/service/ai"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/pkg/utils"
)

// Handler streams chat replies to the browser as Server-Sent Events.
type Handler struct {
	gateway ai.Gateway
	chatSvc *chatService.Service
	log     *logrus.Entry
}

// New creates a stream handler. A nil gateway answers 503.
func New(gateway ai.Gateway, chatSvc *chatService.Service) *Handler {
	return &Handler{
		gateway: gateway,
		chatSvc: chatSvc,
		log:     logging.For("stream"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

// StreamResponse is the payload of every event on the stream.
type StreamResponse struct {
	Event     string        `json:"event"`
	SessionID string        `json:"sessionId,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	Content   string        `json:"content,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
	Stale     bool          `json:"stale,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "model gateway not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	turn, err := h.chatSvc.BeginTurn(ctx, payload.Text)
	if err != nil {
		if h.chatSvc.Snapshot().Generating {
			utils.RespondError(w, http.StatusConflict, "a reply is already streaming")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	log := h.log.WithField("session_id", turn.Handle.SessionID)
	send := func(resp StreamResponse) {
		if err := utils.SendSSEEvent(w, flusher, resp.Event, resp); err != nil {
			log.WithError(err).Debug("client went away")
		}
	}

	user := turn.User
	send(StreamResponse{Event: "start", SessionID: turn.Handle.SessionID, MessageID: turn.Handle.MessageID, Message: &user})

	reply, err := h.chatSvc.StreamTurn(ctx, h.gateway, turn, func(delta string) {
		send(StreamResponse{Event: "delta", SessionID: turn.Handle.SessionID, MessageID: turn.Handle.MessageID, Content: delta})
	})
	switch {
	case errors.Is(err, chatService.ErrStale):
		send(StreamResponse{Event: "end", SessionID: turn.Handle.SessionID, Finished: true, Stale: true})
		return
	case err != nil:
		log.WithError(err).Warn("chat turn failed")
		if reply.ID != "" {
			send(StreamResponse{Event: "message", SessionID: turn.Handle.SessionID, Message: &reply})
		}
		send(StreamResponse{Event: "error", SessionID: turn.Handle.SessionID, Error: reply.Text})
	default:
		send(StreamResponse{Event: "message", SessionID: turn.Handle.SessionID, Message: &reply})
	}

	send(StreamResponse{Event: "end", SessionID: turn.Handle.SessionID, Finished: true})
	log.Info("chat turn streamed")
}
