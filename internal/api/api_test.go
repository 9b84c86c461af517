package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voice-agent-console/internal/httpclient"
	"voice-agent-console/internal/types"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Raw    string
	Body   map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T, routes map[string]http.HandlerFunc) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Raw: r.URL.RawQuery}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		fb.mu.Lock()
		fb.requests = append(fb.requests, rec)
		fb.mu.Unlock()

		h, ok := fb.routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	hc := httpclient.New(httpclient.Options{BaseURL: srv.URL})
	return fb, New(hc, WithFromNumber("+15550009999"))
}

func (fb *fakeBackend) last() recorded {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.requests[len(fb.requests)-1]
}

func (fb *fakeBackend) count() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.requests)
}

func jsonReply(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestStartWebCall(t *testing.T) {
	fb, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/v1/calls/start": jsonReply(map[string]any{
			"provider_call_id": "retell_1",
			"retell":           map[string]string{"call_id": "call_abc", "access_token": "tok"},
		}),
	})

	resp, err := c.StartWebCall(context.Background(), "John Doe", "7891-B")
	require.NoError(t, err)
	assert.Equal(t, "retell_1", resp.ProviderCallID)
	assert.Equal(t, "call_abc", resp.Retell.CallID)
	assert.Equal(t, "tok", resp.Retell.AccessToken)

	req := fb.last()
	assert.Equal(t, "web", req.Body["call_type"])
	assert.Equal(t, "John Doe", req.Body["driver_name"])
	assert.Equal(t, "7891-B", req.Body["load_number"])
}

func TestTriggerCall(t *testing.T) {
	fb, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/v1/calls/start": jsonReply(map[string]any{"provider_call_id": "retell_2"}),
	})

	out, err := c.TriggerCall(context.Background(), types.CallTriggerPayload{
		DriverName:  "Ahmed",
		PhoneNumber: "+966512345678",
		LoadNumber:  "LDN-10492",
		Language:    types.LanguageArabic,
		Scenario:    types.ScenarioDelay,
	})
	require.NoError(t, err)
	assert.Equal(t, "retell_2", out["provider_call_id"])

	req := fb.last()
	assert.Equal(t, "phone", req.Body["call_type"])
	assert.Equal(t, "+966512345678", req.Body["driver_phone"])
	assert.Equal(t, "+15550009999", req.Body["from_number"])
	assert.Equal(t, "Arabic", req.Body["language"])
	_, hasNote := req.Body["note"]
	assert.False(t, hasNote)
}

func TestStartVoicePipecat(t *testing.T) {
	fb, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/v1/voice/start": jsonReply(map[string]any{
			"connect_url":      "https://pipecat.local/room/1",
			"provider_call_id": "pc_1",
			"vendor":           "pipecat",
		}),
	})
	resp, err := c.StartVoice(context.Background(), "pipecat", types.StartVoiceRequest{
		DriverName: "John", LoadNumber: "1", CallType: "web_call",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pipecat.local/room/1", resp.ConnectURL)
	assert.Equal(t, "pipecat", fb.last().Query.Get("vendor"))
}

func TestListResults(t *testing.T) {
	fb, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/v1/results": jsonReply([]map[string]any{{"load_number": "A 1"}}),
	})

	out, err := c.ListResults(context.Background(), "A 1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A 1", fb.last().Query.Get("load_number"))

	_, err = c.ListResults(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, fb.last().Raw)
}

func TestListConversationsQuerystring(t *testing.T) {
	fb, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/v1/conversations": jsonReply(map[string]any{
			"items": []any{}, "page": 1, "limit": 20, "total": 57,
		}),
	})
	ctx := context.Background()

	a := types.ConversationFilters{Q: "late", Status: "Delayed"}
	b := types.ConversationFilters{DriverName: "John", DateFrom: "2025-10-01"}

	page, err := c.ListConversations(ctx, a, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 57, page.Total)
	assert.Equal(t, 3, page.Pages())
	first := fb.last().Raw

	_, err = c.ListConversations(ctx, b, 1, 20)
	require.NoError(t, err)
	second := fb.last().Raw

	_, err = c.ListConversations(ctx, a, 1, 20)
	require.NoError(t, err)
	again := fb.last().Raw

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, again)

	q, _ := url.ParseQuery(first)
	assert.Equal(t, url.Values{
		"q": {"late"}, "status": {"Delayed"}, "page": {"1"}, "limit": {"20"},
	}, q)
}

func TestListConversationsClampsPage(t *testing.T) {
	fb, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/v1/conversations": jsonReply(map[string]any{"total": 0}),
	})
	page, err := c.ListConversations(context.Background(), types.ConversationFilters{}, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, "1", fb.last().Query.Get("page"))
	assert.Equal(t, "200", fb.last().Query.Get("limit"))
	assert.Equal(t, 1, page.Page)
	assert.NotNil(t, page.Items)
}

func TestConversationsCSVURLIsPure(t *testing.T) {
	fb, c := newFakeBackend(t, nil)
	u := c.ConversationsCSVURL(types.ConversationFilters{LoadNumber: "7891-B", Limit: 5000})
	assert.Equal(t, 0, fb.count())

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/conversations/export.csv", parsed.Path)
	assert.Equal(t, url.Values{"load_number": {"7891-B"}, "limit": {"5000"}}, parsed.Query())

	bare := c.ConversationsCSVURL(types.ConversationFilters{})
	assert.NotContains(t, bare, "?")
}

func TestSnapshotViews(t *testing.T) {
	_, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/v1/metrics": jsonReply(map[string]any{
			"total_calls": 10, "arrivals": 4, "delays": 3, "emergencies": 1, "avg_delay_minutes": 22.5,
		}),
		"GET /api/v1/pipecat/metrics": jsonReply(map[string]any{
			"items": []map[string]any{{"id": 1, "load_number": "A", "duration_secs": 61.5, "keyword_hits": map[string]int{"emergency": 2}}},
		}),
	})
	ctx := context.Background()

	retell, err := c.Snapshot(ctx, types.ViewRetell)
	require.NoError(t, err)
	require.NotNil(t, retell.Retell)
	assert.Equal(t, 10, retell.Retell.TotalCalls)
	assert.InDelta(t, 22.5, retell.Retell.AvgDelayMinutes, 0.001)

	pc, err := c.Snapshot(ctx, types.ViewPipecat)
	require.NoError(t, err)
	require.Len(t, pc.Pipecat, 1)
	assert.Equal(t, 2, pc.Pipecat[0].KeywordHits["emergency"])

	_, err = c.Snapshot(ctx, "other")
	assert.Error(t, err)
}

func TestPipecatMetricsMissingItems(t *testing.T) {
	_, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/v1/pipecat/metrics": jsonReply(map[string]any{}),
	})
	rows, err := c.PipecatMetrics(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestCreateAgentUnwrapsList(t *testing.T) {
	_, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/v1/agents": jsonReply([]map[string]any{{"id": 3, "name": "Dispatch", "language": "English", "voice_type": "Female", "active": true}}),
		"GET /api/v1/agents":  jsonReply([]map[string]any{{"id": "a1", "name": "Dispatch"}}),
	})
	a, err := c.CreateAgent(context.Background(), types.AgentInput{Name: "Dispatch", Language: types.LanguageEnglish, VoiceType: types.VoiceFemale, Active: true})
	require.NoError(t, err)
	assert.Equal(t, types.ID("3"), a.ID)
	assert.Equal(t, types.VoiceFemale, a.VoiceType)

	list, err := c.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.ID("a1"), list[0].ID)
}

func TestErrorsAreWrapped(t *testing.T) {
	_, c := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/v1/metrics": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		},
	})
	_, err := c.Metrics(context.Background())
	var re *httpclient.RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "boom", re.Error())
}
