package handler

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/arktty/webtty/src/handler/terminal"
)

// HandshakeTimeout bounds how long a connection may sit open without a
// handshake or reconnect control message before it is closed.
const HandshakeTimeout = 30 * time.Second

// writeTimeout bounds a single websocket write, so a stalled peer can't
// wedge the write pump (and, through a full outbound queue, the session
// goroutines feeding it) indefinitely.
const writeTimeout = 10 * time.Second

// connState is the connection's own small state machine, distinct from
// (and sitting in front of) the Session's own State.
type connState int32

const (
	connAwaitingHandshake connState = iota
	connBound
	connClosed
)

// TerminalHandler upgrades HTTP requests to WebSocket connections and wires
// each one to a session in the registry.
type TerminalHandler struct {
	*BaseHandler
	upgrader websocket.Upgrader
	registry *terminal.Registry
	shellCmd []string
}

// NewTerminalHandler creates a TerminalHandler backed by a fresh Registry.
func NewTerminalHandler() *TerminalHandler {
	return &TerminalHandler{
		BaseHandler: NewBaseHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		registry: terminal.NewRegistry(),
	}
}

// Registry exposes the underlying session registry for the system handler's
// admin endpoints.
func (h *TerminalHandler) Registry() *terminal.Registry {
	return h.registry
}

// SetShellCommand overrides the argv used to spawn new sessions.
func (h *TerminalHandler) SetShellCommand(argv []string) {
	h.shellCmd = argv
}

// ShellCommand returns the argv new sessions are spawned with, for display
// on GET /config.
func (h *TerminalHandler) ShellCommand() []string {
	if h.shellCmd == nil {
		return []string{}
	}
	return h.shellCmd
}

// conn is one Attachment, bound to exactly one *websocket.Conn and (once
// bound) at most one *terminal.Session. It implements terminal.Attachment.
type conn struct {
	ws *websocket.Conn

	out      chan wsFrame
	outClose sync.Once
	done     chan struct{}

	mu      sync.Mutex
	state   connState
	session *terminal.Session
}

// wsFrame is one queued outbound websocket write.
type wsFrame struct {
	messageType int
	data        []byte
}

// HandleTerminalWS upgrades the request and runs the connection until it
// closes: first the handshake/reconnect/bind exchange, then frame dispatch.
func (h *TerminalHandler) HandleTerminalWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("terminal: websocket upgrade failed: %v", err)
		return
	}

	cn := &conn{
		ws:    ws,
		out:   make(chan wsFrame, 64),
		done:  make(chan struct{}),
		state: connAwaitingHandshake,
	}

	go cn.writePump()
	h.runConnection(cn)
}

func (c *conn) writePump() {
	for {
		select {
		case f := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(f.messageType, f.data); err != nil {
				// Unblock anyone waiting to enqueue, then tear down the
				// socket; the read loop will observe the close and detach.
				c.outClose.Do(func() { close(c.done) })
				_ = c.ws.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// SendOutput implements terminal.Attachment.
func (c *conn) SendOutput(data []byte) error {
	payload := terminal.EncodeFrame(terminal.ServerFrameOutput, data)
	return c.enqueue(websocket.BinaryMessage, payload)
}

// SendControl implements terminal.Attachment.
func (c *conn) SendControl(v any) error {
	data, err := terminal.EncodeControlMessage(v)
	if err != nil {
		return err
	}
	return c.enqueue(websocket.TextMessage, data)
}

func (c *conn) enqueue(messageType int, data []byte) error {
	select {
	case c.out <- wsFrame{messageType: messageType, data: data}:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	}
}

// Close implements terminal.Attachment. Safe to call more than once.
func (c *conn) Close(code int, reason string) {
	c.mu.Lock()
	if c.state == connClosed {
		c.mu.Unlock()
		return
	}
	c.state = connClosed
	c.mu.Unlock()

	closeMsg := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, closeMsg, deadline)

	c.outClose.Do(func() { close(c.done) })
	_ = c.ws.Close()
}

func (c *conn) setSession(s *terminal.Session) {
	c.mu.Lock()
	c.session = s
	c.state = connBound
	c.mu.Unlock()
}

func (c *conn) boundSession() (*terminal.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.state == connBound
}

// runConnection owns the read side of the socket: it waits for the initial
// handshake or reconnect, then dispatches binary I/O frames and control
// messages to the bound session for the rest of the connection's life.
func (h *TerminalHandler) runConnection(c *conn) {
	defer func() {
		if s, bound := c.boundSession(); bound {
			s.Detach(c)
		}
		c.Close(terminal.CloseNormal, "")
	}()

	c.ws.SetReadDeadline(time.Now().Add(HandshakeTimeout))

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if _, bound := c.boundSession(); !bound {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					c.Close(terminal.CloseHandshakeTimeout, "no handshake received")
				}
			}
			return
		}

		if s, bound := c.boundSession(); bound {
			if msgType == websocket.BinaryMessage {
				h.dispatchBinary(s, data, c)
				continue
			}
			if h.dispatchControl(s, data, c) {
				return
			}
			continue
		}

		// Not yet bound: only a handshake or reconnect control message is
		// valid. Binary frames before binding are dropped silently;
		// anything else is a protocol error.
		if msgType == websocket.BinaryMessage {
			continue
		}
		switch h.bind(c, data) {
		case bindBound:
			c.ws.SetReadDeadline(time.Time{})
		case bindRemain:
			// Stay in awaiting_handshake — an error was sent, and
			// the client gets to retry with a fresh handshake on the same
			// channel rather than having it torn down.
		case bindClose:
			return
		}
	}
}

type bindResult int

const (
	bindBound bindResult = iota
	bindRemain
	bindClose
)

// dispatchBinary handles an INPUT or RESIZE binary frame. An unrecognized
// tag or malformed payload is dropped silently rather than closing the
// channel — a single bad frame should never tear down a live session.
func (h *TerminalHandler) dispatchBinary(s *terminal.Session, raw []byte, c *conn) {
	tag, payload, err := terminal.DecodeFrame(raw)
	if err != nil {
		return
	}
	switch tag {
	case terminal.ClientFrameInput:
		s.HandleInput(payload)
	case terminal.ClientFrameResize:
		rp, err := terminal.DecodeResizePayload(payload)
		if err != nil {
			return
		}
		s.HandleResize(rp.Columns, rp.Rows)
	}
}

// dispatchControl handles a text control message while bound. It returns
// true if the connection should be torn down (a protocol error).
func (h *TerminalHandler) dispatchControl(s *terminal.Session, data []byte, c *conn) bool {
	msg, err := terminal.DecodeControlMessage(data)
	if err != nil {
		c.Close(terminal.CloseProtocolError, "malformed control message")
		return true
	}
	switch m := msg.(type) {
	case terminal.PongMsg:
		s.HandlePong()
	default:
		_ = m
	}
	return false
}

// bind consumes one handshake or reconnect message from an unbound
// connection, creating or reattaching a session accordingly.
func (h *TerminalHandler) bind(c *conn, data []byte) bindResult {
	msg, err := terminal.DecodeControlMessage(data)
	if err != nil {
		c.Close(terminal.CloseProtocolError, "malformed control message")
		return bindClose
	}

	switch m := msg.(type) {
	case terminal.HandshakeMsg:
		cols := terminal.ClampDim(m.Columns, terminal.MaxCols)
		rows := terminal.ClampDim(m.Rows, terminal.MaxRows)
		s, err := h.registry.Create(cols, rows, h.shellCmd, nil)
		if err != nil {
			logrus.Errorf("terminal: failed to spawn session shell: %v", err)
			_ = c.SendControl(terminal.ErrorMsg{Type: terminal.MsgError, Message: err.Error()})
			c.Close(terminal.CloseInternalError, "spawn failed")
			return bindClose
		}
		c.setSession(s)
		s.Attach(c, cols, rows)
		return bindBound

	case terminal.ReconnectMsg:
		cols := terminal.ClampDim(m.Columns, terminal.MaxCols)
		rows := terminal.ClampDim(m.Rows, terminal.MaxRows)
		s, ok := h.registry.Get(m.SessionID)
		if !ok {
			// Session missing or dead: tell the client to redo the
			// handshake, but leave this channel open for it instead of
			// tearing it down.
			_ = c.SendControl(terminal.ErrorMsg{Type: terminal.MsgError, Message: "session not found"})
			return bindRemain
		}
		c.setSession(s)
		s.Attach(c, cols, rows)
		return bindBound

	default:
		c.Close(terminal.CloseProtocolError, "expected handshake or reconnect")
		return bindClose
	}
}
