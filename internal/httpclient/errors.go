package httpclient

import (
	"errors"
	"fmt"
)

// ErrProxyIntercepted means an HTML page came back where JSON was expected,
// typically a tunnel's interstitial warning page. The base URL or the bypass
// header is misconfigured.
var ErrProxyIntercepted = errors.New("proxy warning page intercepted; check VOICE_API_BASE or the proxy bypass header")

// RequestError is a non-2xx upstream response. The message is the body text
// verbatim, or the status code when the body is empty.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// MalformedResponseError wraps a JSON parse failure of a 2xx body.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return "invalid JSON from server"
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
