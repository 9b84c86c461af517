// Package retell adapts the Retell web-call SDK to callsession.Client.
//
// The SDK runs in the operator's browser. The browser posts every SDK event
// to the console, which feeds it through Dispatch.
package retell

import (
	"context"
	"errors"
	"sync"

	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/logger"
)

const Vendor = "retell"

// SDK event names.
const (
	EventRoomJoined          = "room_joined"
	EventCallStarted         = "call_started"
	EventCallEnded           = "call_ended"
	EventError               = "error"
	EventMediaDeviceError    = "media_device_error"
	EventConversationStarted = "conversation_started"
	EventAgentResponse       = "agent_response"
	EventUserSpeech          = "user_speech"
	EventICEStateChange      = "ice_connection_state_change"
)

const mediaDeviceMessage = "Mic/Audio device error"

var ErrUnknownEvent = errors.New("unknown retell event")

type Relay struct {
	mu        sync.Mutex
	h         callsession.Handlers
	creds     callsession.Credentials
	connected bool
	log       *logger.Logger
}

// Factory returns a callsession.Factory producing relay clients.
func Factory(log *logger.Logger) callsession.Factory {
	return func() (callsession.Client, error) {
		return New(log), nil
	}
}

func New(log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Discard()
	}
	return &Relay{log: log.Component("retell")}
}

func (r *Relay) Subscribe(h callsession.Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.h = h
}

// Connect records the join credentials. The browser performs the actual
// join and reports room_joined or call_started back.
func (r *Relay) Connect(_ context.Context, creds callsession.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds = creds
	r.connected = true
	r.log.WithField("call_id", creds.CallID).Debug("awaiting browser join")
	return nil
}

// Disconnect is stopCall: the call is reported ended.
func (r *Relay) Disconnect(context.Context) error {
	r.mu.Lock()
	was := r.connected
	r.connected = false
	h := r.h
	r.mu.Unlock()
	if was && h.OnEnded != nil {
		h.OnEnded()
	}
	return nil
}

// Dispatch translates one relayed SDK event. Lifecycle events reach the
// session in any state, matching the SDK's listeners which are attached at
// construction.
func (r *Relay) Dispatch(event, message string) error {
	r.mu.Lock()
	h, callID := r.h, r.creds.CallID
	switch event {
	case EventRoomJoined, EventCallStarted:
		r.connected = true
	case EventCallEnded:
		r.connected = false
	}
	r.mu.Unlock()

	entry := r.log.WithField("call_id", callID).WithField("event", event)
	switch event {
	case EventRoomJoined, EventCallStarted:
		if h.OnConnected != nil {
			h.OnConnected()
		}
	case EventCallEnded:
		if h.OnEnded != nil {
			h.OnEnded()
		}
	case EventError:
		entry.WithField("message", message).Warn("retell error")
		if h.OnError != nil {
			h.OnError(errors.New(message))
		}
	case EventMediaDeviceError:
		entry.WithField("message", message).Warn("media device error")
		if h.OnError != nil {
			h.OnError(errors.New(mediaDeviceMessage))
		}
	case EventConversationStarted, EventAgentResponse, EventUserSpeech, EventICEStateChange:
		entry.Debug("retell event")
	default:
		return ErrUnknownEvent
	}
	return nil
}

// Credentials returns what the browser needs to join.
func (r *Relay) Credentials() callsession.Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creds
}
