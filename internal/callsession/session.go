// Package callsession drives one real-time call panel: it owns exactly one
// vendor client and moves through loading, ready, joining, connected and
// ended, with error reachable from anywhere.
package callsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voice-agent-console/internal/logger"
)

type State string

const (
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateJoining   State = "joining"
	StateConnected State = "connected"
	StateEnded     State = "ended"
	StateError     State = "error"
)

const (
	MsgClientNotInitialized = "Client not initialized"
	MsgMissingAccessToken   = "Missing access token"
	MsgClientInitFailed     = "Client init failed"
	MsgStartFailed          = "Failed to start call"
	MsgUnknownError         = "Unknown error"
)

var (
	ErrJoinNotAllowed   = errors.New("join not allowed while joining or connected")
	ErrNotConnected     = errors.New("call is not connected")
	ErrClosed           = errors.New("session closed")
	ErrRelayUnsupported = errors.New("vendor client does not accept relayed events")
)

// VendorSessionError is any failure reported by or about the vendor client.
type VendorSessionError struct {
	Msg string
	Err error
}

func (e *VendorSessionError) Error() string { return e.Msg }

func (e *VendorSessionError) Unwrap() error { return e.Err }

func vendorError(err error, fallback string) *VendorSessionError {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &VendorSessionError{Msg: msg, Err: err}
}

// Transition is delivered to observers after every state change.
type Transition struct {
	From State
	To   State
	Err  error
	At   time.Time
}

// Snapshot is a copy of the session's visible state.
type Snapshot struct {
	CallID     string    `json:"call_id"`
	Vendor     string    `json:"vendor"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	ConnectURL string    `json:"connect_url,omitempty"`
	Closed     bool      `json:"closed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Option func(*Session)

// WithTokenOptional lets Join proceed without an access token, for vendors
// that obtain their own credentials while connecting.
func WithTokenOptional() Option {
	return func(s *Session) { s.tokenOptional = true }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l.Component("callsession") }
}

// OnTransition registers an observer at construction time, so the
// loading -> ready/error transition is observed too.
func OnTransition(fn func(Transition)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

type Session struct {
	mu            sync.Mutex
	callID        string
	token         string
	vendor        string
	tokenOptional bool

	client    Client
	state     State
	lastErr   error
	closed    bool
	updatedAt time.Time

	observers []func(Transition)
	log       *logger.Logger
}

// New enters loading and constructs the vendor client. A failing or
// panicking factory leaves the session in error.
func New(callID, accessToken, vendor string, factory Factory, opts ...Option) *Session {
	s := &Session{
		callID:    callID,
		token:     accessToken,
		vendor:    vendor,
		state:     StateLoading,
		updatedAt: time.Now(),
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	client, err := construct(factory)
	switch {
	case err != nil:
		s.apply(StateError, vendorError(err, MsgClientInitFailed))
	case client == nil:
		s.apply(StateError, &VendorSessionError{Msg: MsgClientNotInitialized})
	default:
		client.Subscribe(Handlers{
			OnConnected: func() { s.event(StateConnected, nil) },
			OnError:     func(err error) { s.event(StateError, vendorError(err, MsgUnknownError)) },
			OnEnded:     func() { s.event(StateEnded, nil) },
		})
		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
		s.apply(StateReady, nil)
	}
	return s
}

func construct(factory Factory) (c Client, err error) {
	if factory == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return factory()
}

// Join connects the vendor client. Allowed from ready, error and ended.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.client == nil {
		err := &VendorSessionError{Msg: MsgClientNotInitialized}
		t, obs := s.setLocked(StateError, err)
		s.mu.Unlock()
		notify(obs, t)
		return err
	}
	if s.token == "" && !s.tokenOptional {
		err := &VendorSessionError{Msg: MsgMissingAccessToken}
		t, obs := s.setLocked(StateError, err)
		s.mu.Unlock()
		notify(obs, t)
		return err
	}
	if s.state == StateJoining || s.state == StateConnected {
		s.mu.Unlock()
		return ErrJoinNotAllowed
	}
	client := s.client
	creds := Credentials{CallID: s.callID, AccessToken: s.token}
	t, obs := s.setLocked(StateJoining, nil)
	s.mu.Unlock()
	notify(obs, t)

	if err := client.Connect(ctx, creds); err != nil {
		verr := vendorError(err, MsgStartFailed)
		s.log.WithError(err).WithField("call_id", s.callID).Warn("vendor connect failed")
		s.event(StateError, verr)
		return verr
	}
	return nil
}

// End asks the vendor to hang up. The state is left for the vendor's
// following event; disconnect failures are swallowed.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateConnected || s.client == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	client := s.client
	s.mu.Unlock()

	if err := safeDisconnect(ctx, client); err != nil {
		s.log.WithError(err).WithField("call_id", s.callID).Debug("vendor disconnect failed")
	}
	return nil
}

// Relay forwards an externally observed vendor event to the client.
func (s *Session) Relay(event, message string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	relay, ok := s.client.(EventRelay)
	s.mu.Unlock()
	if !ok {
		return ErrRelayUnsupported
	}
	return relay.Dispatch(event, message)
}

// Close tears the panel down: the vendor client is disconnected exactly
// once, failures and panics are swallowed and the reference is dropped.
// Later events are ignored. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := safeDisconnect(ctx, client); err != nil {
		s.log.WithError(err).WithField("call_id", s.callID).Debug("teardown disconnect failed")
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the last recorded error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		CallID:    s.callID,
		Vendor:    s.vendor,
		State:     s.state,
		Closed:    s.closed,
		UpdatedAt: s.updatedAt,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	if d, ok := s.client.(Details); ok {
		snap.ConnectURL = d.ConnectURL()
		if snap.CallID == "" {
			snap.CallID = d.ProviderCallID()
		}
	}
	return snap
}

// event applies a vendor-originated transition unless the panel is closed.
func (s *Session) event(to State, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	t, obs := s.setLocked(to, err)
	s.mu.Unlock()
	notify(obs, t)
}

func (s *Session) apply(to State, err error) {
	s.mu.Lock()
	t, obs := s.setLocked(to, err)
	s.mu.Unlock()
	notify(obs, t)
}

func (s *Session) setLocked(to State, err error) (Transition, []func(Transition)) {
	t := Transition{From: s.state, To: to, Err: err, At: time.Now()}
	s.state = to
	s.updatedAt = t.At
	if to == StateError {
		s.lastErr = err
	} else if to != StateEnded {
		s.lastErr = nil
	}
	entry := s.log.WithField("call_id", s.callID).WithField("vendor", s.vendor).
		WithField("from", t.From).WithField("to", t.To)
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Debug("session transition")
	obs := make([]func(Transition), len(s.observers))
	copy(obs, s.observers)
	return t, obs
}

func notify(obs []func(Transition), t Transition) {
	for _, fn := range obs {
		fn(t)
	}
}

func safeDisconnect(ctx context.Context, c Client) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("disconnect panicked: %v", r)
		}
	}()
	return c.Disconnect(ctx)
}
