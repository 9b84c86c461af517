package types

import "strings"

type Language string

const (
	LanguageEnglish Language = "English"
	LanguageSpanish Language = "Spanish"
	LanguageArabic  Language = "Arabic"
)

var Languages = []Language{LanguageEnglish, LanguageSpanish, LanguageArabic}

type Scenario string

const (
	ScenarioCheckIn   Scenario = "Normal Check-in"
	ScenarioDelay     Scenario = "Delay / ETA Update"
	ScenarioEmergency Scenario = "Breakdown / Emergency"
)

var Scenarios = []Scenario{ScenarioCheckIn, ScenarioDelay, ScenarioEmergency}

// DriverStatus values found in structured_payload.driver_status.
type DriverStatus string

const (
	StatusDriving   DriverStatus = "Driving"
	StatusDelayed   DriverStatus = "Delayed"
	StatusArrived   DriverStatus = "Arrived"
	StatusUnloading DriverStatus = "Unloading"
)

var DriverStatuses = []DriverStatus{StatusDriving, StatusDelayed, StatusArrived, StatusUnloading}

// CallTriggerPayload is built once per valid form submission.
type CallTriggerPayload struct {
	DriverName  string   `json:"driver_name"`
	PhoneNumber string   `json:"phone_number"`
	LoadNumber  string   `json:"load_number"`
	Language    Language `json:"language"`
	Scenario    Scenario `json:"scenario"`
	Note        string   `json:"note,omitempty"`
}

type StartWebCallResponse struct {
	ProviderCallID string `json:"provider_call_id"`
	Retell         struct {
		CallID      string `json:"call_id"`
		AccessToken string `json:"access_token"`
	} `json:"retell"`
}

type StartVoiceRequest struct {
	DriverName  string `json:"driver_name"`
	LoadNumber  string `json:"load_number"`
	DriverPhone string `json:"driver_phone,omitempty"`
	CallType    string `json:"call_type"`
	Scenario    string `json:"scenario,omitempty"`
}

type StartVoiceResponse struct {
	ConnectURL     string `json:"connect_url"`
	ProviderCallID string `json:"provider_call_id"`
	Vendor         string `json:"vendor,omitempty"`
}

// ResultRecord is opaque; the backend owns its shape.
type ResultRecord map[string]any

type Driver struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// ConversationRecord is read-only and server-owned.
type ConversationRecord struct {
	ID                ID             `json:"id"`
	CreatedAt         Timestamp      `json:"created_at"`
	LoadNumber        string         `json:"load_number"`
	Status            string         `json:"status"`
	Scenario          string         `json:"scenario"`
	Transcript        string         `json:"transcript"`
	StructuredPayload map[string]any `json:"structured_payload"`
	Driver            *Driver        `json:"driver,omitempty"`
}

// DriverStatus prefers the extracted driver status over the call status.
func (c ConversationRecord) DriverStatus() string {
	if v, ok := c.StructuredPayload["driver_status"].(string); ok && v != "" {
		return v
	}
	return c.Status
}

// Snippet flattens the transcript onto one line and cuts it to n runes.
func (c ConversationRecord) Snippet(n int) string {
	flat := strings.Join(strings.Split(c.Transcript, "\n"), " ")
	r := []rune(flat)
	if len(r) <= n {
		return flat
	}
	return string(r[:n]) + "…"
}

type ConversationFilters struct {
	Q          string `json:"q,omitempty"`
	DriverName string `json:"driver_name,omitempty"`
	LoadNumber string `json:"load_number,omitempty"`
	Status     string `json:"status,omitempty"`
	DateFrom   string `json:"date_from,omitempty"`
	DateTo     string `json:"date_to,omitempty"`
	// Limit only applies to CSV export.
	Limit int `json:"limit,omitempty"`
}

type ConversationPage struct {
	Items []ConversationRecord `json:"items"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Total int                  `json:"total"`
}

// Pages is the page count for the server-reported total; never below 1.
func (p ConversationPage) Pages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

type VoiceType string

const (
	VoiceMale   VoiceType = "Male"
	VoiceFemale VoiceType = "Female"
)

type Agent struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Language  Language  `json:"language"`
	VoiceType VoiceType `json:"voice_type"`
	Active    bool      `json:"active"`
}

type AgentInput struct {
	Name      string    `json:"name"`
	Language  Language  `json:"language"`
	VoiceType VoiceType `json:"voice_type"`
	Active    bool      `json:"active"`
}
