// Package pipecat adapts a Pipecat voice start to callsession.Client. The
// backend spins the bot up and hands back a room URL for the operator.
package pipecat

import (
	"context"
	"sync"

	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/types"
)

const Vendor = "pipecat"

// Starter is the slice of the API facade the launcher needs.
type Starter interface {
	StartVoice(ctx context.Context, vendor string, req types.StartVoiceRequest) (types.StartVoiceResponse, error)
}

type Launcher struct {
	starter Starter
	req     types.StartVoiceRequest

	mu         sync.Mutex
	h          callsession.Handlers
	connectURL string
	callID     string
	live       bool
}

// NewFactory returns a callsession.Factory whose clients start req on Connect.
func NewFactory(starter Starter, req types.StartVoiceRequest) callsession.Factory {
	return func() (callsession.Client, error) {
		return New(starter, req), nil
	}
}

func New(starter Starter, req types.StartVoiceRequest) *Launcher {
	if req.CallType == "" {
		req.CallType = "web"
	}
	return &Launcher{starter: starter, req: req}
}

func (l *Launcher) Subscribe(h callsession.Handlers) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h = h
}

// Connect asks the backend to start the bot and reports connected once a
// room URL is known.
func (l *Launcher) Connect(ctx context.Context, _ callsession.Credentials) error {
	resp, err := l.starter.StartVoice(ctx, Vendor, l.req)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.connectURL = resp.ConnectURL
	l.callID = resp.ProviderCallID
	l.live = true
	h := l.h
	l.mu.Unlock()
	if h.OnConnected != nil {
		h.OnConnected()
	}
	return nil
}

func (l *Launcher) Disconnect(context.Context) error {
	l.mu.Lock()
	was := l.live
	l.live = false
	h := l.h
	l.mu.Unlock()
	if was && h.OnEnded != nil {
		h.OnEnded()
	}
	return nil
}

func (l *Launcher) ConnectURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectURL
}

func (l *Launcher) ProviderCallID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callID
}
