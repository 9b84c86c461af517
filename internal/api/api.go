// Package api is the typed facade over the voice backend's /api/v1 surface.
// Each operation is one round trip; nothing is cached or retried.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"voice-agent-console/internal/httpclient"
	"voice-agent-console/internal/logger"
	"voice-agent-console/internal/telemetry"
	"voice-agent-console/internal/types"
)

const (
	pathCallsStart    = "/api/v1/calls/start"
	pathVoiceStart    = "/api/v1/voice/start"
	pathResults       = "/api/v1/results"
	pathConversations = "/api/v1/conversations"
	pathExportCSV     = "/api/v1/conversations/export.csv"
	pathMetrics       = "/api/v1/metrics"
	pathPipecatMetric = "/api/v1/pipecat/metrics"
	pathAgents        = "/api/v1/agents"
	pathHealth        = "/healthz"

	// Server-side bounds for conversation listing.
	MaxPageLimit = 200
)

type Client struct {
	http       *httpclient.Client
	fromNumber string
	log        *logger.Logger
}

type Option func(*Client)

// WithFromNumber sets the caller id used for outbound phone calls.
func WithFromNumber(n string) Option {
	return func(c *Client) { c.fromNumber = n }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l.Component("api") }
}

func New(hc *httpclient.Client, opts ...Option) *Client {
	c := &Client{http: hc, log: logger.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartWebCall creates a Retell web call and returns its join credentials.
func (c *Client) StartWebCall(ctx context.Context, driverName, loadNumber string) (resp types.StartWebCallResponse, err error) {
	defer observe("start_web_call", time.Now(), &err)
	body := map[string]string{
		"driver_name": driverName,
		"load_number": loadNumber,
		"call_type":   "web",
	}
	err = c.http.DecodeJSON(ctx, pathCallsStart, &httpclient.RequestOptions{Method: http.MethodPost, Body: body}, &resp)
	if err != nil {
		return resp, fmt.Errorf("start web call: %w", err)
	}
	c.log.WithField("provider_call_id", resp.ProviderCallID).Info("web call created")
	return resp, nil
}

// TriggerCall places an outbound phone call for a validated trigger payload.
func (c *Client) TriggerCall(ctx context.Context, p types.CallTriggerPayload) (out map[string]any, err error) {
	defer observe("trigger_call", time.Now(), &err)
	body := map[string]any{
		"driver_name":  p.DriverName,
		"driver_phone": p.PhoneNumber,
		"load_number":  p.LoadNumber,
		"call_type":    "phone",
		"language":     p.Language,
		"scenario":     p.Scenario,
	}
	if c.fromNumber != "" {
		body["from_number"] = c.fromNumber
	}
	if p.Note != "" {
		body["note"] = p.Note
	}
	err = c.http.DecodeJSON(ctx, pathCallsStart, &httpclient.RequestOptions{Method: http.MethodPost, Body: body}, &out)
	if err != nil {
		return nil, fmt.Errorf("trigger call: %w", err)
	}
	return out, nil
}

// StartVoice starts a call through the vendor-neutral voice endpoint.
func (c *Client) StartVoice(ctx context.Context, vendor string, req types.StartVoiceRequest) (resp types.StartVoiceResponse, err error) {
	defer observe("start_voice", time.Now(), &err)
	path := pathVoiceStart
	if vendor != "" {
		path += "?" + url.Values{"vendor": []string{vendor}}.Encode()
	}
	err = c.http.DecodeJSON(ctx, path, &httpclient.RequestOptions{Method: http.MethodPost, Body: req}, &resp)
	if err != nil {
		return resp, fmt.Errorf("start %s voice call: %w", vendor, err)
	}
	return resp, nil
}

// ListResults returns call results, optionally for one load number.
func (c *Client) ListResults(ctx context.Context, loadNumber string) (out []types.ResultRecord, err error) {
	defer observe("list_results", time.Now(), &err)
	path := pathResults
	if ln := strings.TrimSpace(loadNumber); ln != "" {
		path += "?" + url.Values{"load_number": []string{ln}}.Encode()
	}
	if err = c.http.DecodeJSON(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if out == nil {
		out = []types.ResultRecord{}
	}
	return out, nil
}

// ListConversations fetches one page. page is clamped to >= 1 and limit to
// the server's 1..200 range.
func (c *Client) ListConversations(ctx context.Context, f types.ConversationFilters, page, limit int) (out types.ConversationPage, err error) {
	defer observe("list_conversations", time.Now(), &err)
	page, limit = ClampPage(page, limit)
	q := FilterValues(f)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	if err = c.http.DecodeJSON(ctx, pathConversations+"?"+q.Encode(), nil, &out); err != nil {
		return out, fmt.Errorf("list conversations: %w", err)
	}
	if out.Items == nil {
		out.Items = []types.ConversationRecord{}
	}
	if out.Page < 1 {
		out.Page = page
	}
	if out.Limit < 1 {
		out.Limit = limit
	}
	return out, nil
}

// ConversationsCSVURL builds the browser download URL. No request is made.
func (c *Client) ConversationsCSVURL(f types.ConversationFilters) string {
	q := FilterValues(f)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	u := c.http.URL(pathExportCSV)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Metrics returns the Retell aggregate snapshot.
func (c *Client) Metrics(ctx context.Context) (out types.RetellMetrics, err error) {
	defer observe("metrics", time.Now(), &err)
	if out, err = httpclient.GetJSON[types.RetellMetrics](ctx, c.http, pathMetrics, nil); err != nil {
		return out, fmt.Errorf("metrics: %w", err)
	}
	return out, nil
}

// PipecatMetrics returns the per-call Pipecat rows.
func (c *Client) PipecatMetrics(ctx context.Context) (out []types.PipecatCallMetric, err error) {
	defer observe("pipecat_metrics", time.Now(), &err)
	var wrap struct {
		Items []types.PipecatCallMetric `json:"items"`
	}
	if err = c.http.DecodeJSON(ctx, pathPipecatMetric, nil, &wrap); err != nil {
		return nil, fmt.Errorf("pipecat metrics: %w", err)
	}
	if wrap.Items == nil {
		return []types.PipecatCallMetric{}, nil
	}
	return wrap.Items, nil
}

// Snapshot fetches the analytics for the given view.
func (c *Client) Snapshot(ctx context.Context, view types.View) (types.MetricsSnapshot, error) {
	switch view {
	case types.ViewRetell, "":
		m, err := c.Metrics(ctx)
		if err != nil {
			return types.MetricsSnapshot{}, err
		}
		return types.MetricsSnapshot{View: types.ViewRetell, Retell: &m}, nil
	case types.ViewPipecat:
		rows, err := c.PipecatMetrics(ctx)
		if err != nil {
			return types.MetricsSnapshot{}, err
		}
		return types.MetricsSnapshot{View: types.ViewPipecat, Pipecat: rows}, nil
	default:
		return types.MetricsSnapshot{}, fmt.Errorf("unknown analytics view %q", view)
	}
}

func (c *Client) ListAgents(ctx context.Context) (out []types.Agent, err error) {
	defer observe("list_agents", time.Now(), &err)
	if out, err = httpclient.GetJSON[[]types.Agent](ctx, c.http, pathAgents, nil); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if out == nil {
		out = []types.Agent{}
	}
	return out, nil
}

// CreateAgent stores an agent persona. The backend may answer with a
// one-element array; that element is returned.
func (c *Client) CreateAgent(ctx context.Context, in types.AgentInput) (out types.Agent, err error) {
	defer observe("create_agent", time.Now(), &err)
	var raw agentReply
	err = c.http.DecodeJSON(ctx, pathAgents, &httpclient.RequestOptions{Method: http.MethodPost, Body: in}, &raw)
	if err != nil {
		return out, fmt.Errorf("create agent: %w", err)
	}
	return raw.Agent, nil
}

// Ping checks that the backend answers JSON on its health endpoint.
func (c *Client) Ping(ctx context.Context) (err error) {
	defer observe("ping", time.Now(), &err)
	return c.http.DecodeJSON(ctx, pathHealth, nil, nil)
}

// ClampPage applies page >= 1 and 1 <= limit <= MaxPageLimit.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// FilterValues keeps only the non-empty filter fields. Encode() on the
// result is deterministic, so identical filters give identical querystrings.
func FilterValues(f types.ConversationFilters) url.Values {
	q := url.Values{}
	add := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			q.Set(k, v)
		}
	}
	add("q", f.Q)
	add("driver_name", f.DriverName)
	add("load_number", f.LoadNumber)
	add("status", f.Status)
	add("date_from", f.DateFrom)
	add("date_to", f.DateTo)
	return q
}

func observe(op string, start time.Time, err *error) {
	telemetry.ObserveUpstream(op, start, *err)
}
