package terminal

import (
	"testing"
	"time"
)

func TestRegistryCreateGetRemove(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	s, err := r.Create(80, 24, []string{"/bin/sh", "-c", "cat"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok := r.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v; want %v, true", s.ID, got, ok, s)
	}

	s.Destroy()
	waitFor(t, 2*time.Second, func() bool {
		_, ok := r.Get(s.ID)
		return !ok
	})
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("expected Get to report missing for unknown id")
	}
}

func TestRegistryDestroyAll(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	s1, err := r.Create(80, 24, []string{"/bin/sh", "-c", "cat"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s2, err := r.Create(80, 24, []string{"/bin/sh", "-c", "cat"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r.DestroyAll()

	waitFor(t, 2*time.Second, func() bool {
		_, ok1 := r.Get(s1.ID)
		_, ok2 := r.Get(s2.ID)
		return !ok1 && !ok2
	})
}

func TestRegistrySummaries(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	s, err := r.Create(80, 24, []string{"/bin/sh", "-c", "cat"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Destroy()

	summaries := r.Summaries()
	if len(summaries) != 1 {
		t.Fatalf("Summaries() returned %d entries, want 1", len(summaries))
	}
	if summaries[0].SessionID != s.ID {
		t.Errorf("summary session id = %q, want %q", summaries[0].SessionID, s.ID)
	}
}

func TestRegistrySweepStaleSession(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	s, err := r.Create(80, 24, []string{"/bin/sh", "-c", "cat"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	a := newFakeAttachment()
	s.Attach(a, 80, 24)
	s.Detach(a)

	s.meta.Lock()
	s.meta.lastDetachedAt = time.Now().Add(-SessionIdleTimeout - time.Second)
	s.meta.Unlock()

	r.sweepStale()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := r.Get(s.ID)
		return !ok
	})
}
