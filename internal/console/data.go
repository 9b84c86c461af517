package console

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-agent-console/internal/aggregator"
	"voice-agent-console/internal/export"
	"voice-agent-console/internal/form"
	"voice-agent-console/internal/telemetry"
	"voice-agent-console/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type conversationsResponse struct {
	types.ConversationPage
	Pages  int    `json:"pages"`
	CSVURL string `json:"csv_url"`
}

// analyticsResponse carries the selected view's key even when it has no rows.
type analyticsResponse struct {
	View    types.View                 `json:"view"`
	Retell  *types.RetellMetrics       `json:"retell,omitempty"`
	Pipecat *[]types.PipecatCallMetric `json:"pipecat,omitempty"`
	Rollup  *aggregator.PipecatRollup  `json:"rollup,omitempty"`
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.ListResults(r.Context(), r.URL.Query().Get("load_number"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func filtersFrom(r *http.Request) types.ConversationFilters {
	q := r.URL.Query()
	return types.ConversationFilters{
		Q:          q.Get("q"),
		DriverName: q.Get("driver_name"),
		LoadNumber: q.Get("load_number"),
		Status:     q.Get("status"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
	}
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s must be an integer", key))
	}
	return n, nil
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", s.settings.PageLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f := filtersFrom(r)
	out, err := s.backend.ListConversations(r.Context(), f, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f.Limit = s.settings.ExportLimit
	writeJSON(w, http.StatusOK, conversationsResponse{
		ConversationPage: out,
		Pages:            out.Pages(),
		CSVURL:           s.backend.ConversationsCSVURL(f),
	})
}

// exportCSV sends the browser to the backend's CSV export.
func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.settings.ExportLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f := filtersFrom(r)
	f.Limit = limit
	http.Redirect(w, r, s.backend.ConversationsCSVURL(f), http.StatusFound)
}

// exportXLSX pages through the filtered list and renders a workbook.
func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.settings.ExportLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit < 1 || limit > s.settings.ExportLimit {
		limit = s.settings.ExportLimit
	}
	rows, err := export.Collect(r.Context(), s.backend, filtersFrom(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteConversations(&buf, rows, s.log); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("conversations_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	view := types.View(r.URL.Query().Get("view"))
	if view == "" {
		view = types.ViewRetell
	}
	if view != types.ViewRetell && view != types.ViewPipecat {
		s.writeError(w, r, badRequest(fmt.Errorf("unknown analytics view %q", view)))
		return
	}
	snap, err := s.backend.Snapshot(r.Context(), view)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := analyticsResponse{View: view, Retell: snap.Retell}
	if view == types.ViewPipecat {
		rows := snap.Pipecat
		if rows == nil {
			rows = []types.PipecatCallMetric{}
		}
		rollup := aggregator.Aggregate(rows)
		resp.Pipecat, resp.Rollup = &rows, &rollup
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	out, err := s.backend.ListAgents(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAgent(w http.ResponseWriter, r *http.Request) {
	var fields form.AgentFields
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	if errs := form.ValidateAgent(fields); len(errs) > 0 {
		telemetry.FormSubmission("agent", "invalid")
		s.writeError(w, r, &form.ValidationError{Fields: errs})
		return
	}
	agent, err := s.backend.CreateAgent(r.Context(), fields.Input())
	if err != nil {
		telemetry.FormSubmission("agent", "failed")
		s.writeError(w, r, err)
		return
	}
	telemetry.FormSubmission("agent", "ok")
	writeJSON(w, http.StatusCreated, agent)
}
