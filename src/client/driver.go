package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/arktty/webtty/src/handler/terminal"
)

// State is the user-visible connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Driver owns one logical terminal connection across however many
// underlying WebSocket connections it takes to keep it alive: it issues
// the handshake or reconnect, answers heartbeats, reconnects immediately
// after a RESTART close, and reconnects with backoff after any other
// close that is not a normal one.
type Driver struct {
	URL      string
	Renderer Renderer
	Store    Store

	// OnState is called on every connection-state transition, with a
	// short human-readable detail message.
	OnState func(state State, detail string)

	mu        sync.Mutex
	epoch     uint64
	sessionID string
	connected bool
	writeMu   sync.Mutex
	conn      *websocket.Conn
}

// Run drives the connection until ctx is cancelled or the server closes
// the channel normally (shell exit with no reconnect expected).
func (d *Driver) Run(ctx context.Context) error {
	if d.Store == nil {
		d.Store = NewMemStore()
	}
	if id, ok := d.Store.Load(); ok {
		d.sessionID = id
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		epoch := d.nextEpoch()
		d.setState(StateConnecting, "dialing")
		outcome := d.connectOnce(ctx, epoch)

		if !d.ownsEpoch(epoch) {
			// A newer connection attempt has already superseded this one;
			// its outcome carries no information worth acting on.
			continue
		}

		// A connection that got as far as session_info resets the backoff
		// counter: the next drop is a fresh outage, not attempt N+1 of the
		// current one.
		if d.consumeConnected() {
			attempt = 0
		}

		switch outcome.kind {
		case outcomeNormal:
			d.clearSession()
			d.setState(StateDisconnected, "shell exited")
			return nil

		case outcomeRestart:
			d.clearSession()
			d.Renderer.Reset()
			attempt = 0
			continue

		case outcomeReconnect:
			d.setState(StateError, outcome.reason)
			wait := Delay(attempt)
			attempt++
			logrus.Infof("client: reconnecting in %s (attempt %d): %s", wait, attempt, outcome.reason)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue

		case outcomeFatal:
			d.setState(StateError, outcome.reason)
			return fmt.Errorf("terminal connection failed: %s", outcome.reason)
		}
	}
}

type outcomeKind int

const (
	outcomeReconnect outcomeKind = iota
	outcomeRestart
	outcomeNormal
	outcomeFatal
)

type outcome struct {
	kind   outcomeKind
	reason string
}

func (d *Driver) nextEpoch() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch++
	return d.epoch
}

func (d *Driver) ownsEpoch(epoch uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epoch == epoch
}

// consumeConnected reports whether the last connection attempt reached a
// session_info, clearing the flag for the next attempt.
func (d *Driver) consumeConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.connected
	d.connected = false
	return c
}

// clearSession forgets the session id both in memory and in the Store, so
// the next connection attempt issues a fresh handshake.
func (d *Driver) clearSession() {
	d.mu.Lock()
	d.sessionID = ""
	d.mu.Unlock()
	d.Store.Clear()
}

func (d *Driver) setState(s State, detail string) {
	if d.OnState != nil {
		d.OnState(s, detail)
	}
}

// connectOnce dials the server, performs the handshake/reconnect, and
// runs the control-message and output loop until the connection closes.
// It never itself retries; Run owns the reconnect decision.
func (d *Driver) connectOnce(ctx context.Context, epoch uint64) outcome {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return outcome{kind: outcomeReconnect, reason: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	// Close the socket when ctx is cancelled, so the blocking read below
	// returns and Run can observe the cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	d.mu.Lock()
	d.conn = conn
	sessionID := d.sessionID
	d.mu.Unlock()

	if sessionID != "" {
		d.Renderer.Reset()
		data, _ := terminal.EncodeControlMessage(terminal.ReconnectMsg{
			Type:      terminal.MsgReconnect,
			SessionID: sessionID,
			Columns:   d.Renderer.Cols(),
			Rows:      d.Renderer.Rows(),
		})
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return outcome{kind: outcomeReconnect, reason: fmt.Sprintf("write reconnect: %v", err)}
		}
	} else {
		data, err := terminal.BuildHandshake(d.Renderer.Cols(), d.Renderer.Rows())
		if err != nil {
			return outcome{kind: outcomeFatal, reason: err.Error()}
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return outcome{kind: outcomeReconnect, reason: fmt.Sprintf("write handshake: %v", err)}
		}
	}

	d.Renderer.OnInput(func(data []byte) {
		if !d.ownsEpoch(epoch) {
			return
		}
		frame := terminal.EncodeFrame(terminal.ClientFrameInput, data)
		_ = d.send(websocket.BinaryMessage, frame)
	})
	d.Renderer.OnResize(func(cols, rows int) {
		if !d.ownsEpoch(epoch) {
			return
		}
		payload, err := terminal.EncodeControlMessage(terminal.ResizePayload{Columns: cols, Rows: rows})
		if err != nil {
			return
		}
		frame := terminal.EncodeFrame(terminal.ClientFrameResize, payload)
		_ = d.send(websocket.BinaryMessage, frame)
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return closeOutcome(err)
		}
		if !d.ownsEpoch(epoch) {
			continue
		}

		if msgType == websocket.BinaryMessage {
			d.handleBinary(data)
			continue
		}

		if out, done := d.handleControl(data); done {
			return out
		}
	}
}

func (d *Driver) handleBinary(raw []byte) {
	tag, payload, err := terminal.DecodeFrame(raw)
	if err != nil {
		return
	}
	switch tag {
	case terminal.ServerFrameOutput:
		_ = d.Renderer.WriteBytes(payload)
	}
}

// handleControl processes one text control message. done is true once the
// connection's fate (outcome) has been decided by a message on the wire
// rather than by the socket closing; that happens only when the fresh
// handshake answering an `error` reply cannot be built or sent.
// SessionEnded leaves done false: the server closes 1000 right after it,
// and that close decides the outcome. An `error` reply to a failed
// reconnect does NOT end the connection: the server keeps the channel
// open awaiting a new handshake, so the client reacts by
// clearing its stale id and sending a fresh handshake on the very same
// socket rather than redialing.
func (d *Driver) handleControl(data []byte) (outcome, bool) {
	msg, err := terminal.DecodeControlMessage(data)
	if err != nil {
		return outcome{}, false
	}

	switch m := msg.(type) {
	case terminal.SessionInfoMsg:
		d.mu.Lock()
		d.sessionID = m.SessionID
		d.connected = true
		d.mu.Unlock()
		d.Store.Save(m.SessionID)
		d.setState(StateConnected, "connected")
		d.Renderer.Focus()

	case terminal.PingMsg:
		pong, _ := terminal.EncodeControlMessage(terminal.PongMsg{Type: terminal.MsgPong, Timestamp: m.Timestamp})
		_ = d.send(websocket.TextMessage, pong)

	case terminal.SessionEndedMsg:
		// The socket will also observe a 1000 close right after this, but
		// the id is forgotten here too in case the close frame is lost on
		// an already-failing link.
		d.clearSession()

	case terminal.ErrorMsg:
		d.clearSession()
		d.Renderer.Reset()
		data, err := terminal.BuildHandshake(d.Renderer.Cols(), d.Renderer.Rows())
		if err != nil {
			return outcome{kind: outcomeFatal, reason: err.Error()}, true
		}
		if err := d.send(websocket.TextMessage, data); err != nil {
			return outcome{kind: outcomeReconnect, reason: err.Error()}, true
		}
	}

	return outcome{}, false
}

func (d *Driver) send(messageType int, data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteMessage(messageType, data)
}

// closeOutcome maps a websocket close error to the reconnect decision its
// close code calls for.
func closeOutcome(err error) outcome {
	if websocket.IsCloseError(err, terminal.CloseNormal) {
		return outcome{kind: outcomeNormal, reason: "normal close"}
	}
	if websocket.IsCloseError(err, terminal.CloseRestart) {
		return outcome{kind: outcomeRestart, reason: "restart"}
	}
	return outcome{kind: outcomeReconnect, reason: err.Error()}
}
