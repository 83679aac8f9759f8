package terminal

import (
	"bytes"
	"testing"
)

func TestScrollbackWriteReadAll(t *testing.T) {
	sb := NewScrollback(16)
	sb.Write([]byte("hello"))
	sb.Write([]byte(" world"))

	got := sb.ReadAll()
	if !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("ReadAll() = %q, want %q", got, "hello world")
	}
	if sb.Size() != len("hello world") {
		t.Errorf("Size() = %d, want %d", sb.Size(), len("hello world"))
	}
}

func TestScrollbackEvictsOldest(t *testing.T) {
	sb := NewScrollback(5)
	sb.Write([]byte("abcdefgh"))

	got := sb.ReadAll()
	if !bytes.Equal(got, []byte("defgh")) {
		t.Errorf("ReadAll() = %q, want %q", got, "defgh")
	}
}

func TestScrollbackWriteLargerThanCapacity(t *testing.T) {
	sb := NewScrollback(4)
	sb.Write([]byte("0123456789"))

	got := sb.ReadAll()
	if !bytes.Equal(got, []byte("6789")) {
		t.Errorf("ReadAll() = %q, want %q", got, "6789")
	}
}

func TestScrollbackWrapAround(t *testing.T) {
	sb := NewScrollback(4)
	sb.Write([]byte("ab"))
	sb.Write([]byte("cd"))
	sb.Write([]byte("ef")) // should evict "ab"

	got := sb.ReadAll()
	if !bytes.Equal(got, []byte("cdef")) {
		t.Errorf("ReadAll() = %q, want %q", got, "cdef")
	}
}

func TestScrollbackClear(t *testing.T) {
	sb := NewScrollback(16)
	sb.Write([]byte("data"))
	sb.Clear()

	if sb.Size() != 0 {
		t.Errorf("Size() = %d, want 0", sb.Size())
	}
	if got := sb.ReadAll(); got != nil {
		t.Errorf("ReadAll() = %q, want nil", got)
	}
}

func TestScrollbackEmpty(t *testing.T) {
	sb := NewScrollback(16)
	if got := sb.ReadAll(); got != nil {
		t.Errorf("ReadAll() on empty buffer = %q, want nil", got)
	}
}
