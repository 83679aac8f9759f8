package terminal

import (
	"sync"
	"testing"
	"time"
)

// fakeAttachment is a test double for Attachment that records everything
// sent to it.
type fakeAttachment struct {
	mu         sync.Mutex
	output     [][]byte
	control    []any
	closed     bool
	closeCode  int
	closeMsg   string
	closedOnce chan struct{}
}

func newFakeAttachment() *fakeAttachment {
	return &fakeAttachment{closedOnce: make(chan struct{})}
}

func (f *fakeAttachment) SendOutput(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.output = append(f.output, cp)
	return nil
}

func (f *fakeAttachment) SendControl(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control = append(f.control, v)
	return nil
}

func (f *fakeAttachment) Close(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.closeCode = code
	f.closeMsg = reason
	close(f.closedOnce)
}

func (f *fakeAttachment) allOutput() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, chunk := range f.output {
		out = append(out, chunk...)
	}
	return out
}

func (f *fakeAttachment) waitClosed(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-f.closedOnce:
	case <-time.After(d):
		t.Fatal("timed out waiting for attachment to be closed")
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func newTestSession(t *testing.T, argv []string) (*Session, chan string) {
	t.Helper()
	dead := make(chan string, 1)
	s, err := NewSession("test-session", 80, 24, argv, nil, func(id string) { dead <- id })
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, dead
}

func TestSessionEchoesInputAndReplaysScrollback(t *testing.T) {
	s, dead := newTestSession(t, []string{"/bin/sh", "-c", "cat"})
	defer s.Destroy()

	a := newFakeAttachment()
	s.Attach(a, 80, 24)
	s.HandleInput([]byte("hello\n"))

	waitFor(t, 2*time.Second, func() bool {
		return containsAll(a.allOutput(), "hello")
	})

	// Detach and reattach with a fresh attachment; scrollback must replay.
	s.Detach(a)
	b := newFakeAttachment()
	s.Attach(b, 80, 24)

	waitFor(t, 2*time.Second, func() bool {
		return containsAll(b.allOutput(), "hello")
	})

	s.Destroy()
	select {
	case <-dead:
	case <-time.After(2 * time.Second):
		t.Fatal("onDead callback never fired")
	}
}

func TestSessionShellExitNotifiesAttachment(t *testing.T) {
	s, dead := newTestSession(t, []string{"/bin/sh", "-c", "exit 0"})
	a := newFakeAttachment()
	s.Attach(a, 80, 24)

	a.waitClosed(t, 2*time.Second)

	a.mu.Lock()
	code := a.closeCode
	a.mu.Unlock()
	if code != CloseNormal {
		t.Errorf("close code = %d, want %d", code, CloseNormal)
	}

	select {
	case <-dead:
	case <-time.After(2 * time.Second):
		t.Fatal("onDead callback never fired")
	}
}

func TestSessionAttachReplacesPrevious(t *testing.T) {
	s, _ := newTestSession(t, []string{"/bin/sh", "-c", "cat"})
	defer s.Destroy()

	a := newFakeAttachment()
	s.Attach(a, 80, 24)

	b := newFakeAttachment()
	s.Attach(b, 80, 24)

	a.waitClosed(t, 2*time.Second)
	a.mu.Lock()
	code := a.closeCode
	a.mu.Unlock()
	if code != CloseReplaced {
		t.Errorf("close code = %d, want %d", code, CloseReplaced)
	}
}

func TestSessionDestroyIsIdempotent(t *testing.T) {
	s, dead := newTestSession(t, []string{"/bin/sh", "-c", "cat"})
	s.Destroy()
	s.Destroy() // must not hang or panic

	select {
	case <-dead:
	case <-time.After(2 * time.Second):
		t.Fatal("onDead callback never fired")
	}
}

func TestSessionResizeClamps(t *testing.T) {
	s, _ := newTestSession(t, []string{"/bin/sh", "-c", "cat"})
	defer s.Destroy()

	s.HandleResize(MaxCols+100, MaxRows+100)
	waitFor(t, time.Second, func() bool {
		snap := s.Snapshot()
		return snap.Cols == MaxCols && snap.Rows == MaxRows
	})
}

func containsAll(haystack []byte, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(string(haystack), needle) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
