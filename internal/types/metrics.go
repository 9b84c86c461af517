package types

import "encoding/json"

// View selects which provider's analytics are shown.
type View string

const (
	ViewRetell  View = "retell"
	ViewPipecat View = "pipecat"
)

// RetellMetrics is the aggregate snapshot computed by the backend.
type RetellMetrics struct {
	TotalCalls      int     `json:"total_calls"`
	Arrivals        int     `json:"arrivals"`
	Delays          int     `json:"delays"`
	Emergencies     int     `json:"emergencies"`
	AvgDelayMinutes float64 `json:"avg_delay_minutes"`
}

// PipecatCallMetric is one per-call row of the Pipecat analytics view.
type PipecatCallMetric struct {
	ID               ID             `json:"id"`
	DriverID         ID             `json:"driver_id"`
	LoadNumber       string         `json:"load_number"`
	CreatedAt        Timestamp      `json:"created_at"`
	DurationSecs     float64        `json:"duration_secs"`
	InterruptionsEst int            `json:"interruptions_est"`
	TokensEstimated  int            `json:"tokens_estimated"`
	KeywordHits      map[string]int `json:"keyword_hits"`
}

// MetricsSnapshot holds exactly one of the two provider views.
type MetricsSnapshot struct {
	View    View                `json:"view"`
	Retell  *RetellMetrics      `json:"retell,omitempty"`
	Pipecat []PipecatCallMetric `json:"pipecat,omitempty"`
}

// MarshalJSON always writes the key of the selected view, so an empty
// pipecat view encodes as [] rather than disappearing.
func (m MetricsSnapshot) MarshalJSON() ([]byte, error) {
	if m.View != ViewPipecat {
		type plain MetricsSnapshot
		return json.Marshal(plain(m))
	}
	rows := m.Pipecat
	if rows == nil {
		rows = []PipecatCallMetric{}
	}
	return json.Marshal(struct {
		View    View                `json:"view"`
		Pipecat []PipecatCallMetric `json:"pipecat"`
	}{m.View, rows})
}
