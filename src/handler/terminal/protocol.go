// Package terminal implements the server's PTY session layer: the wire
// protocol codec, the scrollback replay buffer, the per-session actor, and
// the process-wide session registry.
package terminal

import (
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxCols and MaxRows bound the dimensions a client may request, whether at
// handshake, reconnect, or resize.
const (
	MaxCols = 500
	MaxRows = 200
)

// Binary frame command tags. The same byte value means different things
// depending on direction: '0' is INPUT client→server but OUTPUT
// server→client.
const (
	ClientFrameInput  byte = '0'
	ClientFrameResize byte = '1'

	ServerFrameOutput      byte = '0'
	ServerFrameWindowTitle byte = '1'
	ServerFramePreferences byte = '2'
)

// ProtocolError marks a malformed control message, a malformed binary
// frame, or an invalid handshake dimension. The server closes the channel
// with code 1002 when a control message fails to decode; a binary frame
// that fails to decode is dropped silently instead. BuildHandshake returns
// it to its caller for invalid dimensions; the server clamps the
// dimensions of a handshake it receives rather than rejecting them.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string { return e.msg }

func newProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// EncodeFrame builds a binary frame: one command-tag byte followed by the
// raw payload.
func EncodeFrame(tag byte, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = tag
	copy(out[1:], payload)
	return out
}

// DecodeFrame splits a binary frame into its command tag and payload.
// A zero-length frame is rejected: a frame carries at least the tag byte.
func DecodeFrame(raw []byte) (tag byte, payload []byte, err error) {
	if len(raw) == 0 {
		return 0, nil, newProtocolError("empty binary frame")
	}
	return raw[0], raw[1:], nil
}

// ResizePayload is the JSON body carried in a binary RESIZE frame's payload.
type ResizePayload struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// DecodeResizePayload parses a RESIZE frame's payload.
func DecodeResizePayload(payload []byte) (ResizePayload, error) {
	var rp ResizePayload
	if err := json.Unmarshal(payload, &rp); err != nil {
		return ResizePayload{}, newProtocolError("invalid resize payload: %v", err)
	}
	return rp, nil
}

// MessageType tags the closed set of text control-message variants.
type MessageType string

const (
	MsgHandshake    MessageType = "handshake"
	MsgReconnect    MessageType = "reconnect"
	MsgPong         MessageType = "pong"
	MsgSessionInfo  MessageType = "session_info"
	MsgPing         MessageType = "ping"
	MsgSessionEnded MessageType = "session_ended"
	MsgError        MessageType = "error"
)

// HandshakeMsg requests creation of a new session.
type HandshakeMsg struct {
	Type    MessageType `json:"type"`
	Columns int         `json:"columns"`
	Rows    int         `json:"rows"`
}

// ReconnectMsg requests attachment to an existing session.
type ReconnectMsg struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Columns   int         `json:"columns"`
	Rows      int         `json:"rows"`
}

// PongMsg is the heartbeat reply.
type PongMsg struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// SessionInfoMsg carries the authoritative session identity, sent right
// after a successful create or reattach.
type SessionInfoMsg struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

// PingMsg is the heartbeat probe.
type PingMsg struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// SessionEndedMsg announces that the shell exited.
type SessionEndedMsg struct {
	Type     MessageType `json:"type"`
	ExitCode *int        `json:"exitCode"`
	Signal   *string     `json:"signal"`
}

// ErrorMsg tells the client its reattach target is gone; the client must
// discard its cached session id and redo the handshake.
type ErrorMsg struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// BuildHandshake encodes a handshake control message, rejecting non-finite
// or non-positive dimensions. Callers other than the client's own handshake
// builder clamp defensively instead of erroring.
func BuildHandshake(cols, rows int) ([]byte, error) {
	if !validDim(cols) || !validDim(rows) {
		return nil, newProtocolError("invalid handshake dimensions: %dx%d", cols, rows)
	}
	return json.Marshal(HandshakeMsg{Type: MsgHandshake, Columns: cols, Rows: rows})
}

func validDim(n int) bool {
	return n > 0 && !math.IsNaN(float64(n)) && !math.IsInf(float64(n), 0)
}

// ClampDim clamps a client-supplied dimension into [1, max].
func ClampDim(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// DecodeControlMessage parses the "type" discriminator and returns the
// concrete message value. Unknown types are a ProtocolError: the
// server closes the channel with 1002, unlike an unrecognized binary tag,
// which is silently dropped.
func DecodeControlMessage(data []byte) (any, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, newProtocolError("malformed control message: %v", err)
	}

	switch envelope.Type {
	case MsgHandshake:
		var m HandshakeMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed handshake: %v", err)
		}
		return m, nil
	case MsgReconnect:
		var m ReconnectMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed reconnect: %v", err)
		}
		return m, nil
	case MsgPong:
		var m PongMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed pong: %v", err)
		}
		return m, nil
	case MsgSessionInfo:
		var m SessionInfoMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed session_info: %v", err)
		}
		return m, nil
	case MsgPing:
		var m PingMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed ping: %v", err)
		}
		return m, nil
	case MsgSessionEnded:
		var m SessionEndedMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed session_ended: %v", err)
		}
		return m, nil
	case MsgError:
		var m ErrorMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, newProtocolError("malformed error message: %v", err)
		}
		return m, nil
	default:
		return nil, newProtocolError("unknown control message type: %q", envelope.Type)
	}
}

// EncodeControlMessage marshals any of the typed control messages above.
func EncodeControlMessage(v any) ([]byte, error) {
	return json.Marshal(v)
}
