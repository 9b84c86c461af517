package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/provider/retell"
)

type openSessionRequest struct {
	CallID      string `json:"call_id"`
	AccessToken string `json:"access_token"`
}

type relayRequest struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// openSession opens a Retell panel for credentials obtained elsewhere. A
// missing token is not rejected here; joining reports it.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, sess := s.sessions.Open(req.CallID, req.AccessToken, retell.Vendor, retell.Factory(s.log))
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Session: sess.Snapshot()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*callsession.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, callsession.ErrSessionNotFound)
	}
	return sess, ok
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) joinSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Join(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.End(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// relayEvent accepts an SDK event forwarded by the operator's browser.
func (s *Server) relayEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req relayRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.Relay(req.Event, req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
