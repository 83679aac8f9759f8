package terminal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stale-sweep timing.
const (
	SweepInterval      = 60 * time.Second
	SessionIdleTimeout = 5 * time.Minute
)

// Registry is the process-wide mapping from session id to Session. All
// create/get/remove/sweep operations serialize through a single mutex —
// the registry is
// small and short-lived per call, so a plain mutex (rather than an actor)
// is the simplest thing that satisfies that requirement.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry creates a Registry and starts its stale-sweep loop.
func NewRegistry() *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Create spawns a new shell and registers its session under a fresh id.
func (r *Registry) Create(cols, rows int, argv []string, env map[string]string) (*Session, error) {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := NewSession(id, cols, rows, argv, env, r.remove)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	r.sessions[id] = s
	logrus.Infof("[terminal] created session %s", id)
	return s, nil
}

// Get looks up a session by id. A session that has transitioned to
// StateDead but has not yet been removed (a narrow window around shell
// exit) is reported as missing, so a reconnect for it gets the same error
// reply as one for an unknown id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	if snap := s.Snapshot(); snap.State == StateDead {
		return nil, false
	}
	return s, true
}

// remove deletes a session from the map without destroying it — by the
// time this is called (via Session's onDead hook) the session has already
// destroyed itself.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	logrus.Infof("[terminal] removed session %s", id)
}

// DestroyAll destroys every session in the registry. Used by POST /restart
// and by process-wide shutdown.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Destroy()
	}
}

// Summaries returns a snapshot of every session's admin-surface view
// (GET /sessions).
func (r *Registry) Summaries() []Summary {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Shutdown destroys every session and stops the sweep loop. Safe to call
// more than once.
func (r *Registry) Shutdown() {
	r.DestroyAll()
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepStale()
		case <-r.stop:
			return
		}
	}
}

// sweepStale destroys any session that has sat in StateDetached for at
// least SessionIdleTimeout. Attached sessions are never swept, no matter
// how idle the terminal itself looks — only the absence of a client counts.
func (r *Registry) sweepStale() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if idle, detached := s.IdleSince(); detached && idle >= SessionIdleTimeout {
			logrus.Infof("[terminal] sweeping idle session %s (idle %s)", s.ID, idle.Round(time.Second))
			s.Destroy()
		}
	}
}
