package form

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"voice-agent-console/internal/types"
)

// phoneRe is the international dialing shape: optional +, no leading zero,
// 8 to 15 digits in total.
var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		return oneOf(types.Language(fl.Field().String()), types.Languages)
	})
	_ = v.RegisterValidation("scenario", func(fl validator.FieldLevel) bool {
		return oneOf(types.Scenario(fl.Field().String()), types.Scenarios)
	})
	return v
}

// ValidPhone reports whether s, after trimming, is a dialable phone number.
func ValidPhone(s string) bool {
	return phoneRe.MatchString(strings.TrimSpace(s))
}

func oneOf[T comparable](v T, set []T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ValidationError blocks a submission. Fields maps field name to message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

// CallTriggerFields are the raw values of the call-trigger form.
type CallTriggerFields struct {
	DriverName  string         `json:"driver_name" validate:"required"`
	PhoneNumber string         `json:"phone_number" validate:"phone"`
	LoadNumber  string         `json:"load_number" validate:"required"`
	Language    types.Language `json:"language" validate:"language"`
	Scenario    types.Scenario `json:"scenario" validate:"scenario"`
	Note        string         `json:"note,omitempty"`
}

var callTriggerMessages = map[string]string{
	"driver_name":  "Driver name is required.",
	"phone_number": "Enter a valid phone (e.g., +9665XXXXXXXX).",
	"load_number":  "Load / reference number is required.",
	"language":     "Choose English, Spanish or Arabic.",
	"scenario":     "Choose a supported scenario.",
}

// Normalized trims every value and fills the select defaults.
func (f CallTriggerFields) Normalized() CallTriggerFields {
	f.DriverName = strings.TrimSpace(f.DriverName)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.LoadNumber = strings.TrimSpace(f.LoadNumber)
	f.Note = strings.TrimSpace(f.Note)
	if f.Language == "" {
		f.Language = types.LanguageEnglish
	}
	if f.Scenario == "" {
		f.Scenario = types.ScenarioCheckIn
	}
	return f
}

// Payload converts already valid fields into the submitted payload.
func (f CallTriggerFields) Payload() types.CallTriggerPayload {
	n := f.Normalized()
	return types.CallTriggerPayload{
		DriverName:  n.DriverName,
		PhoneNumber: n.PhoneNumber,
		LoadNumber:  n.LoadNumber,
		Language:    n.Language,
		Scenario:    n.Scenario,
		Note:        n.Note,
	}
}

// ValidateCallTrigger returns field -> message for each invalid field. An
// empty map means the form may be submitted.
func ValidateCallTrigger(f CallTriggerFields) map[string]string {
	return collect(f.Normalized(), callTriggerMessages)
}

// AgentFields are the raw values of the agent-config form.
type AgentFields struct {
	Name      string          `json:"name" validate:"required"`
	Language  types.Language  `json:"language" validate:"language"`
	VoiceType types.VoiceType `json:"voice_type" validate:"oneof=Male Female"`
	Active    bool            `json:"active"`
}

var agentMessages = map[string]string{
	"name":       "Agent name is required.",
	"language":   "Choose English, Spanish or Arabic.",
	"voice_type": "Choose Male or Female.",
}

func (f AgentFields) Normalized() AgentFields {
	f.Name = strings.TrimSpace(f.Name)
	if f.Language == "" {
		f.Language = types.LanguageEnglish
	}
	if f.VoiceType == "" {
		f.VoiceType = types.VoiceMale
	}
	return f
}

func ValidateAgent(f AgentFields) map[string]string {
	return collect(f.Normalized(), agentMessages)
}

// Input converts already valid fields into the create request.
func (f AgentFields) Input() types.AgentInput {
	n := f.Normalized()
	return types.AgentInput{Name: n.Name, Language: n.Language, VoiceType: n.VoiceType, Active: n.Active}
}

// WebCallFields start a browser call; the driver's phone is not needed.
type WebCallFields struct {
	DriverName string `json:"driver_name" validate:"required"`
	LoadNumber string `json:"load_number" validate:"required"`
	Scenario   string `json:"scenario,omitempty"`
}

func (f WebCallFields) Normalized() WebCallFields {
	f.DriverName = strings.TrimSpace(f.DriverName)
	f.LoadNumber = strings.TrimSpace(f.LoadNumber)
	f.Scenario = strings.TrimSpace(f.Scenario)
	return f
}

func ValidateWebCall(f WebCallFields) map[string]string {
	return collect(f.Normalized(), callTriggerMessages)
}

func collect(v any, messages map[string]string) map[string]string {
	out := map[string]string{}
	err := validate.Struct(v)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid.", fe.Field())
		}
		out[fe.Field()] = msg
	}
	return out
}
