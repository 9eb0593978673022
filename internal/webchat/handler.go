// Package webchat streams the portal assistant over a websocket.
package webchat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/patient-portal/internal/conversation"
	httpmiddleware "github.com/wolfman30/patient-portal/internal/http/middleware"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// ChatService runs assistant turns for a session.
type ChatService interface {
	SendChatTurn(ctx context.Context, sessionID, text string) (conversation.Turn, error)
	ChatHistory(ctx context.Context, sessionID string) ([]conversation.Turn, error)
}

// ErrorMessageFunc maps an error to patient-facing text.
type ErrorMessageFunc func(err error) (int, string)

// Handler serves one websocket per authenticated chat session.
type Handler struct {
	chat      ChatService
	publicErr ErrorMessageFunc
	logger    *logging.Logger
}

// InboundMessage is what the portal client sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the portal client.
type OutboundMessage struct {
	Type      string           `json:"type"` // "history", "typing", "message", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	Fallback  bool             `json:"fallback,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified turn for history frames.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a websocket chat handler.
func NewHandler(chat ChatService, publicErr ErrorMessageFunc, logger *logging.Logger) *Handler {
	if chat == nil || publicErr == nil {
		panic("webchat: chat service and error mapper required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{chat: chat, publicErr: publicErr, logger: logger}
}

// HandleWebSocket upgrades the request. It must run behind PatientJWT.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpmiddleware.PatientClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, claims.SessionID)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, sessionID string) {
	turns, err := h.chat.ChatHistory(ctx, sessionID)
	if err != nil {
		h.sendError(conn, err)
		return
	}
	history := make([]HistoryMessage, 0, len(turns))
	for _, t := range turns {
		history = append(history, HistoryMessage{
			Role:      string(t.Role),
			Text:      t.Content,
			Timestamp: t.CreatedAt.Format(time.RFC3339),
		})
	}
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})

	h.logger.Info("webchat: connection opened", "session_id", sessionID)
	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
			turn, err := h.chat.SendChatTurn(ctx, sessionID, msg.Text)
			if err != nil {
				h.sendError(conn, err)
				continue
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{
				Type:      "message",
				Role:      string(turn.Role),
				Text:      turn.Content,
				Fallback:  turn.Fallback,
				Timestamp: turn.CreatedAt.Format(time.RFC3339),
			})
		}
	}
}

func (h *Handler) sendError(conn *websocket.Conn, err error) {
	_, text := h.publicErr(err)
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: text})
}
