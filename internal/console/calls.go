package console

import (
	"context"
	"net/http"

	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/form"
	"voice-agent-console/internal/types"
	"voice-agent-console/internal/provider/pipecat"
	"voice-agent-console/internal/provider/retell"
)

type sessionResponse struct {
	SessionID   string               `json:"session_id"`
	AccessToken string               `json:"access_token,omitempty"`
	Session     callsession.Snapshot `json:"session"`
}

// triggerCall runs the call-trigger form against the backend's phone call.
func (s *Server) triggerCall(w http.ResponseWriter, r *http.Request) {
	var fields form.CallTriggerFields
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}

	var result map[string]any
	f := form.NewCallTriggerForm(func(ctx context.Context, p types.CallTriggerPayload) error {
		out, err := s.backend.TriggerCall(ctx, p)
		result = out
		return err
	})
	f.Set(fields)
	payload, err := f.Submit(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	success, _ := f.Messages()
	s.log.WithField("load_number", payload.LoadNumber).WithField("scenario", payload.Scenario).Info("test call queued")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message": success,
		"payload": payload,
		"result":  result,
	})
}

// startWebCall creates a Retell web call and opens its session panel. The
// access token is handed to the browser, which runs the SDK.
func (s *Server) startWebCall(w http.ResponseWriter, r *http.Request) {
	var fields form.WebCallFields
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	if errs := form.ValidateWebCall(fields); len(errs) > 0 {
		s.writeError(w, r, &form.ValidationError{Fields: errs})
		return
	}
	fields = fields.Normalized()

	resp, err := s.backend.StartWebCall(r.Context(), fields.DriverName, fields.LoadNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, sess := s.sessions.Open(resp.Retell.CallID, resp.Retell.AccessToken, retell.Vendor, retell.Factory(s.log))
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   id,
		AccessToken: resp.Retell.AccessToken,
		Session:     sess.Snapshot(),
	})
}

// startPipecatCall opens a Pipecat panel. The bot is started on join.
func (s *Server) startPipecatCall(w http.ResponseWriter, r *http.Request) {
	var fields form.WebCallFields
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	if errs := form.ValidateWebCall(fields); len(errs) > 0 {
		s.writeError(w, r, &form.ValidationError{Fields: errs})
		return
	}
	fields = fields.Normalized()

	req := types.StartVoiceRequest{
		DriverName: fields.DriverName,
		LoadNumber: fields.LoadNumber,
		CallType:   "web",
		Scenario:   fields.Scenario,
	}
	id, sess := s.sessions.Open("", "", pipecat.Vendor, pipecat.NewFactory(s.backend, req), callsession.WithTokenOptional())
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Session: sess.Snapshot()})
}
