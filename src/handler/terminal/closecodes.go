package terminal

// Close codes used on the message channel. 1000-1011 are standard
// WebSocket close codes; 4000-4003 are private-use codes specific to this
// protocol.
const (
	CloseNormal           = 1000 // shell exited or logical end
	CloseProtocolError    = 1002 // malformed control message
	CloseInternalError    = 1011 // spawn failure
	CloseRestart          = 4000 // process-wide restart
	CloseHeartbeatTimeout = 4001 // pong not received in time; reattach expected
	CloseReplaced         = 4002 // session claimed by a newer connection
	CloseHandshakeTimeout = 4003 // no handshake/reconnect within the deadline
)
