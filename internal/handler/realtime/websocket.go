package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/service/ai"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler carries chat turns and analyses over one socket. Replies
// stream as delta frames while the connection keeps reading.
type WebSocketHandler struct {
	gateway  ai.Gateway
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewWebSocketHandler creates the socket handler. A nil gateway rejects the
// upgrade with 503.
func NewWebSocketHandler(gateway ai.Gateway, chatSvc *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logging.For("websocket"),
	}
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage is the data of "text" and "analyze" frames.
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// socket serializes writes; gorilla connections allow one concurrent writer.
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) send(msg outgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *socket) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		http.Error(w, "model gateway not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	sock := &socket{conn: conn}
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, sock)
	}()

	snapshot := h.chatSvc.Snapshot()
	h.sendTo(sock, "connected", snapshot.SessionID, snapshot)
	h.log.WithField("session_id", snapshot.SessionID).Info("websocket connected")

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, &wg, sock, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, wg *sync.WaitGroup, sock *socket, msg *inboundMessage) {
	var payload TextMessage
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(sock, "invalid message data")
			return
		}
	}

	switch msg.Type {
	case "text":
		turn, err := h.chatSvc.BeginTurn(ctx, payload.Text)
		if err != nil {
			h.sendError(sock, "message rejected: empty or a reply is already streaming")
			return
		}
		h.sendTo(sock, "user", turn.Handle.SessionID, turn.User)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.streamTurn(ctx, sock, turn)
		}()
	case "analyze":
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.analyze(ctx, sock, payload.Text)
		}()
	case "state":
		snapshot := h.chatSvc.Snapshot()
		h.sendTo(sock, "state", snapshot.SessionID, snapshot)
	default:
		h.sendError(sock, "unknown message type")
	}
}

func (h *WebSocketHandler) streamTurn(ctx context.Context, sock *socket, turn *chatService.Turn) {
	sessionID := turn.Handle.SessionID
	reply, err := h.chatSvc.StreamTurn(ctx, h.gateway, turn, func(delta string) {
		h.sendTo(sock, "delta", sessionID, map[string]string{
			"messageId": turn.Handle.MessageID,
			"text":      delta,
		})
	})
	switch {
	case errors.Is(err, chatService.ErrStale):
		h.sendTo(sock, "end", sessionID, map[string]bool{"stale": true})
	case err != nil:
		h.sendTo(sock, "reply", sessionID, reply)
		h.sendError(sock, reply.Text)
	default:
		h.sendTo(sock, "reply", sessionID, reply)
	}
}

func (h *WebSocketHandler) analyze(ctx context.Context, sock *socket, idea string) {
	result, err := h.chatSvc.Analyze(ctx, h.gateway, idea)
	switch {
	case err == nil:
		h.sendTo(sock, "analysis", h.chatSvc.CurrentID(), result)
	case errors.Is(err, chatService.ErrInvalidInput):
		h.sendError(sock, "analysis rejected: empty idea or one already running")
	case errors.Is(err, chatService.ErrStale):
		h.sendTo(sock, "end", "", map[string]bool{"stale": true})
	default:
		h.log.WithError(err).Warn("analysis failed")
		h.sendError(sock, "analysis failed, please try again")
	}
}

func (h *WebSocketHandler) sendTo(sock *socket, kind, sessionID string, data interface{}) {
	if err := sock.send(outgoingMessage{Type: kind, SessionID: sessionID, Data: data}); err != nil {
		h.log.WithError(err).WithField("type", kind).Debug("write failed")
	}
}

func (h *WebSocketHandler) sendError(sock *socket, message string) {
	h.sendTo(sock, "error", "", map[string]string{"message": message})
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, sock *socket) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sock.ping(); err != nil {
				return
			}
		}
	}
}
