package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arktty/webtty/src/handler/terminal"
)

func setupTestRouter() (*gin.Engine, func()) {
	gin.SetMode(gin.TestMode)
	router, th := SetupRouter(RouterConfig{AppTitle: "test", ShellCommand: []string{"/bin/sh"}}, true, false)
	return router, func() { th.Registry().Shutdown() }
}

func TestHealthEndpoint(t *testing.T) {
	router, cleanup := setupTestRouter()
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want %q", resp["status"], "ok")
	}
}

func TestConfigEndpoint(t *testing.T) {
	router, cleanup := setupTestRouter()
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"appTitle":"test"`) {
		t.Errorf("body = %s, missing appTitle", w.Body.String())
	}
}

func TestSessionsEndpointEmpty(t *testing.T) {
	router, cleanup := setupTestRouter()
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"sessions":[]`) {
		t.Errorf("body = %s, want empty sessions array", w.Body.String())
	}
}

func TestWebSocketHandshakeAndEcho(t *testing.T) {
	router, cleanup := setupTestRouter()
	defer cleanup()

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tty/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	hs, err := terminal.BuildHandshake(80, 24)
	if err != nil {
		t.Fatalf("BuildHandshake: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, hs); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read session_info: %v", err)
	}
	msg, err := terminal.DecodeControlMessage(data)
	if err != nil {
		t.Fatalf("decode control message: %v", err)
	}
	info, ok := msg.(terminal.SessionInfoMsg)
	if !ok || info.SessionID == "" {
		t.Fatalf("expected session_info with a session id, got %+v", msg)
	}

	input := terminal.EncodeFrame(terminal.ClientFrameInput, []byte("echo ping\n"))
	if err := ws.WriteMessage(websocket.BinaryMessage, input); err != nil {
		t.Fatalf("write input frame: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			continue
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		tag, payload, err := terminal.DecodeFrame(data)
		if err != nil || tag != terminal.ServerFrameOutput {
			continue
		}
		if strings.Contains(string(payload), "ping") {
			return
		}
	}
	t.Fatal("never observed echoed output")
}

func TestWebSocketReconnectMissingSessionStaysOpen(t *testing.T) {
	router, cleanup := setupTestRouter()
	defer cleanup()

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tty/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	reconnect, err := terminal.EncodeControlMessage(terminal.ReconnectMsg{
		Type:      terminal.MsgReconnect,
		SessionID: "nonexistent",
		Columns:   80,
		Rows:      24,
	})
	if err != nil {
		t.Fatalf("encode reconnect: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, reconnect); err != nil {
		t.Fatalf("write reconnect: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read error message: %v", err)
	}
	msg, err := terminal.DecodeControlMessage(data)
	if err != nil {
		t.Fatalf("decode control message: %v", err)
	}
	if _, ok := msg.(terminal.ErrorMsg); !ok {
		t.Fatalf("expected error message, got %+v", msg)
	}

	// The channel must still be open: a fresh handshake should succeed.
	hs, err := terminal.BuildHandshake(80, 24)
	if err != nil {
		t.Fatalf("BuildHandshake: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, hs); err != nil {
		t.Fatalf("write handshake after failed reconnect: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("read session_info: %v", err)
	}
	msg, err = terminal.DecodeControlMessage(data)
	if err != nil {
		t.Fatalf("decode control message: %v", err)
	}
	if _, ok := msg.(terminal.SessionInfoMsg); !ok {
		t.Fatalf("expected session_info after retried handshake, got %+v", msg)
	}
}
