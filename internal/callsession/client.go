package callsession

import "context"

// Credentials are what a vendor client needs to join a call.
type Credentials struct {
	CallID      string
	AccessToken string
}

// Handlers are the vendor-neutral event subscriptions. Vendors translate
// their own event names into these calls. Any of them may be invoked from
// any goroutine, including from inside Connect or Disconnect.
type Handlers struct {
	OnConnected func()
	OnError     func(err error)
	OnEnded     func()
}

// Client is one vendor real-time-call client.
type Client interface {
	Subscribe(h Handlers)
	Connect(ctx context.Context, creds Credentials) error
	Disconnect(ctx context.Context) error
}

// Factory constructs the vendor client for one panel.
type Factory func() (Client, error)

// EventRelay is implemented by clients whose SDK runs elsewhere (e.g. in
// the operator's browser) and whose events are forwarded to the server.
type EventRelay interface {
	Dispatch(event, message string) error
}

// Details is implemented by clients that learn call details while connecting.
type Details interface {
	ConnectURL() string
	ProviderCallID() string
}
