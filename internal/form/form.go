package form

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"voice-agent-console/internal/telemetry"
	"voice-agent-console/internal/types"
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("submission already in progress")

const (
	successMessage = "Test call has been queued successfully."
	failureMessage = "Failed to queue the test call."

	// placeholderDelay stands in for a submit target when none is wired.
	placeholderDelay = 600 * time.Millisecond
)

// Submitter runs one action at a time and always clears its busy flag,
// whether the action succeeds, fails or panics.
type Submitter struct {
	busy atomic.Bool
}

func (s *Submitter) Busy() bool { return s.busy.Load() }

func (s *Submitter) Run(ctx context.Context, fn func(context.Context) error) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	return fn(ctx)
}

// TriggerAction delivers a validated payload, e.g. to the API facade.
type TriggerAction func(ctx context.Context, p types.CallTriggerPayload) error

// CallTriggerForm holds the trigger form's values and display state.
type CallTriggerForm struct {
	mu      sync.Mutex
	fields  CallTriggerFields
	touched map[string]bool
	success string
	failure string

	submitter Submitter
	action    TriggerAction
}

func NewCallTriggerForm(action TriggerAction) *CallTriggerForm {
	f := &CallTriggerForm{action: action}
	f.Reset()
	return f
}

// Set replaces the field values. Touched state is kept.
func (f *CallTriggerForm) Set(fields CallTriggerFields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
}

// Touch marks one field as visited (the blur event).
func (f *CallTriggerForm) Touch(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[field] = true
}

// VisibleErrors returns only the errors of touched fields.
func (f *CallTriggerForm) VisibleErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range ValidateCallTrigger(f.fields) {
		if f.touched[k] {
			out[k] = v
		}
	}
	return out
}

func (f *CallTriggerForm) Busy() bool { return f.submitter.Busy() }

// Messages returns the success and failure banners of the last submission.
func (f *CallTriggerForm) Messages() (success, failure string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.success, f.failure
}

// Reset restores the initial values and clears touched state and banners.
func (f *CallTriggerForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = CallTriggerFields{
		Language: types.LanguageEnglish,
		Scenario: types.ScenarioCheckIn,
	}
	f.touched = map[string]bool{}
	f.success = ""
	f.failure = ""
}

// Submit validates, builds the payload and runs the action. Invalid input
// returns a *ValidationError and the action is never called.
func (f *CallTriggerForm) Submit(ctx context.Context) (types.CallTriggerPayload, error) {
	f.mu.Lock()
	for k := range callTriggerMessages {
		f.touched[k] = true
	}
	f.success, f.failure = "", ""
	fields := f.fields
	f.mu.Unlock()

	if errs := ValidateCallTrigger(fields); len(errs) > 0 {
		telemetry.FormSubmission("call_trigger", "invalid")
		return types.CallTriggerPayload{}, &ValidationError{Fields: errs}
	}
	payload := fields.Payload()

	err := f.submitter.Run(ctx, func(ctx context.Context) error {
		if f.action == nil {
			return placeholder(ctx)
		}
		return f.action(ctx, payload)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		telemetry.FormSubmission("call_trigger", "failed")
		f.failure = err.Error()
		if f.failure == "" {
			f.failure = failureMessage
		}
		return payload, err
	}
	telemetry.FormSubmission("call_trigger", "ok")
	f.success = successMessage
	return payload, nil
}

func placeholder(ctx context.Context) error {
	t := time.NewTimer(placeholderDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
