package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/form"
	"voice-agent-console/internal/httpclient"
	"voice-agent-console/internal/provider/retell"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

// statusFor maps the error taxonomy onto console status codes.
func statusFor(err error) int {
	var verr *form.ValidationError
	var reqErr *httpclient.RequestError
	var malformed *httpclient.MalformedResponseError
	var vendorErr *callsession.VendorSessionError
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, callsession.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, form.ErrBusy),
		errors.Is(err, callsession.ErrJoinNotAllowed),
		errors.Is(err, callsession.ErrNotConnected),
		errors.Is(err, callsession.ErrClosed),
		errors.Is(err, callsession.ErrRelayUnsupported):
		return http.StatusConflict
	case errors.Is(err, retell.ErrUnknownEvent):
		return http.StatusBadRequest
	case errors.As(err, &reqErr):
		if reqErr.StatusCode < 400 {
			return http.StatusBadGateway
		}
		return reqErr.StatusCode
	case errors.Is(err, httpclient.ErrProxyIntercepted), errors.As(err, &malformed):
		return http.StatusBadGateway
	case errors.As(err, &vendorErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err inline as {"error": "..."}. Upstream request
// errors carry the backend's message verbatim.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *form.ValidationError
	var reqErr *httpclient.RequestError
	switch {
	case errors.As(err, &verr):
		body.Fields = verr.Fields
	case errors.As(err, &reqErr):
		body.Error = reqErr.Error()
	}

	entry := s.log.WithRequest(r).WithField("status", status).WithField("error", err.Error())
	if status >= http.StatusInternalServerError {
		entry.Warn("console request failed")
	} else {
		entry.Debug("console request rejected")
	}
	writeJSON(w, status, body)
}

type badRequestError struct{ err error }

func badRequest(err error) error {
	return &badRequestError{err}
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }
