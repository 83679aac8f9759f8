package client

// Renderer is the external capability a Driver needs from whatever is
// presenting the terminal — an xterm.js instance behind a browser bridge,
// or the raw-mode tty the CLI client uses. The Driver never reaches
// into terminal internals directly; it only calls this interface.
type Renderer interface {
	// Cols and Rows report the renderer's current dimensions, sent with
	// every handshake, reconnect, and resize.
	Cols() int
	Rows() int

	// WriteBytes writes an OUTPUT frame's payload to the display,
	// byte-exact, including scrollback replay.
	WriteBytes(data []byte) error

	// OnInput registers the callback invoked with raw keystroke bytes.
	// The Driver wraps each call in an INPUT binary frame.
	OnInput(cb func(data []byte))

	// OnResize registers the callback invoked when the renderer's own
	// dimensions change (e.g. a terminal window resize). The Driver wraps
	// each call in a RESIZE binary frame.
	OnResize(cb func(cols, rows int))

	// Reset clears the display. Called before sending a reconnect (so the
	// scrollback replay paints onto a blank screen instead of appending to
	// whatever was already on-screen), after a RESTART close, and before
	// the fresh handshake sent in answer to an `error` reply.
	Reset()

	// Focus gives the renderer input focus. A no-op for a CLI renderer
	// that's already the foreground process.
	Focus()
}
