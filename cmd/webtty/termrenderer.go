package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/term"
)

// termRenderer implements client.Renderer on top of the process's own
// stdin/stdout, in raw mode, for a CLI client rather than a browser tab.
type termRenderer struct {
	fd       int
	oldState *term.State

	mu       sync.Mutex
	cols     int
	rows     int
	inputCb  func(data []byte)
	resizeCb func(cols, rows int)
}

func newTermRenderer() (*termRenderer, error) {
	fd := int(os.Stdin.Fd())
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		cols, rows = 80, 24
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	r := &termRenderer{fd: fd, oldState: oldState, cols: cols, rows: rows}
	go r.watchResize()
	go r.readStdin()
	return r, nil
}

func (r *termRenderer) Close() {
	_ = term.Restore(r.fd, r.oldState)
}

func (r *termRenderer) Cols() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cols
}

func (r *termRenderer) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

func (r *termRenderer) WriteBytes(data []byte) error {
	_, err := os.Stdout.Write(data)
	return err
}

func (r *termRenderer) OnInput(cb func(data []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputCb = cb
}

func (r *termRenderer) OnResize(cb func(cols, rows int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resizeCb = cb
}

func (r *termRenderer) Reset() {
	_, _ = os.Stdout.Write([]byte("\x1b[2J\x1b[H"))
}

func (r *termRenderer) Focus() {}

func (r *termRenderer) readStdin() {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			r.mu.Lock()
			cb := r.inputCb
			r.mu.Unlock()
			if cb != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				cb(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *termRenderer) watchResize() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)
	for range sigCh {
		cols, rows, err := term.GetSize(r.fd)
		if err != nil {
			continue
		}
		r.mu.Lock()
		changed := cols != r.cols || rows != r.rows
		r.cols, r.rows = cols, rows
		cb := r.resizeCb
		r.mu.Unlock()
		if changed && cb != nil {
			cb(cols, rows)
		}
	}
}
