package webchat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/patient-portal/internal/conversation"
	httpmiddleware "github.com/wolfman30/patient-portal/internal/http/middleware"
)

type stubChat struct {
	history []conversation.Turn
	reply   conversation.Turn
	err     error
	inputs  []string
}

func (s *stubChat) SendChatTurn(_ context.Context, sessionID, text string) (conversation.Turn, error) {
	s.inputs = append(s.inputs, sessionID+":"+text)
	return s.reply, s.err
}

func (s *stubChat) ChatHistory(context.Context, string) ([]conversation.Turn, error) {
	return s.history, nil
}

func publicErr(err error) (int, string) { return http.StatusConflict, "Please wait for the current answer." }

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	token, err := httpmiddleware.IssuePatientToken("secret",
		httpmiddleware.PatientClaims{SessionID: "s-1", PatientID: "p-1"}, time.Hour, time.Now())
	require.NoError(t, err)

	srv := httptest.NewServer(httpmiddleware.PatientWebSocketJWT("secret")(http.HandlerFunc(h.HandleWebSocket)))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/portal/chat/ws?token=" + token
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketSendsHistoryAndReplies(t *testing.T) {
	chat := &stubChat{
		history: []conversation.Turn{{Role: conversation.RoleAssistant, Content: "Hello, Maria!"}},
		reply:   conversation.Turn{Role: conversation.RoleAssistant, Content: "We open at 8."},
	}
	conn := dial(t, NewHandler(chat, publicErr, nil))

	var frame OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "history", frame.Type)
	require.Len(t, frame.Messages, 1)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "hours?"}))
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "typing", frame.Type)
	frame = OutboundMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, "We open at 8.", frame.Text)
	assert.Equal(t, []string{"s-1:hours?"}, chat.inputs)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	frame = OutboundMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "pong", frame.Type)
}

func TestWebSocketReportsPublicErrors(t *testing.T) {
	chat := &stubChat{err: errors.New("busy")}
	conn := dial(t, NewHandler(chat, publicErr, nil))

	var frame OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &frame))

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "hi"}))
	require.NoError(t, websocket.JSON.Receive(conn, &frame)) // typing
	frame = OutboundMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "Please wait for the current answer.", frame.Text)
}
