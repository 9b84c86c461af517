package callsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"voice-agent-console/internal/logger"
	"voice-agent-console/internal/telemetry"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry keeps the open panels of the console, one session per id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	log      *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Open constructs a session and stores it under a new id.
func (r *Registry) Open(callID, accessToken, vendor string, factory Factory, opts ...Option) (string, *Session) {
	id := uuid.New().String()
	log := r.log.Component("callsession")
	opts = append([]Option{
		WithLogger(r.log),
		OnTransition(func(t Transition) {
			telemetry.SessionTransition(vendor, string(t.To))
			entry := log.WithField("session_id", id).WithField("from", t.From).WithField("to", t.To)
			if t.Err != nil {
				entry = entry.WithField("error", t.Err.Error())
			}
			entry.Info("session state changed")
		}),
	}, opts...)

	s := New(callID, accessToken, vendor, factory, opts...)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	telemetry.SessionOpened()
	return id, s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close tears down and forgets one session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	telemetry.SessionClosed()
	return nil
}

// CloseAll tears down every session, e.g. on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
		telemetry.SessionClosed()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes panels that are not joining or connected and have not changed
// state for idle. It returns how many were closed.
func (r *Registry) Sweep(idle time.Duration) int {
	return r.sweep(time.Now(), idle)
}

func (r *Registry) sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		snap := s.Snapshot()
		if snap.State == StateJoining || snap.State == StateConnected {
			continue
		}
		if now.Sub(snap.UpdatedAt) < idle {
			continue
		}
		stale = append(stale, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
		telemetry.SessionClosed()
	}
	if len(stale) > 0 {
		r.log.Component("callsession").WithField("closed", len(stale)).Info("idle sessions swept")
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(idle)
		}
	}
}
