// Package trace records the execution history of a run as an append-only
// sequence of step records. One Tracer belongs to one run and is written by
// the run's goroutine only; nothing mutates or deletes an event once recorded.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/weaveflow/weaveflow/ir"
)

// ModelAttempt records one model invocation inside a step, successful or not.
// A step that falls through its fallback chain carries one attempt per model
// tried, in order.
type ModelAttempt struct {
	Model      string  `json:"model"`
	Provider   string  `json:"provider,omitempty"`
	DurationMS int64   `json:"duration_ms"`
	CostUSD    float64 `json:"cost_usd"`
	Error      string  `json:"error,omitempty"`
}

// Event is the record of a single executed step.
type Event struct {
	Seq        int            `json:"seq"`
	StepID     string         `json:"step_id"`
	Type       ir.StepKind    `json:"type"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Input      map[string]any `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	CostDelta  float64        `json:"cost_delta,omitempty"`
	Attempts   []ModelAttempt `json:"attempts,omitempty"`
	Next       string         `json:"next,omitempty"`
}

// Tracer accumulates the events of one run in execution order.
type Tracer struct {
	runID    string
	workflow string
	events   []Event
}

// New returns an empty tracer for one run.
func New(runID, workflow string) *Tracer {
	return &Tracer{runID: runID, workflow: workflow}
}

// RunID returns the run this trace belongs to.
func (t *Tracer) RunID() string { return t.runID }

// Workflow returns the workflow name the run executed.
func (t *Tracer) Workflow() string { return t.workflow }

// Append records the next event, stamping its sequence number and normalizing
// its timestamp to UTC.
func (t *Tracer) Append(ev Event) {
	ev.Seq = len(t.events) + 1
	if !ev.StartedAt.IsZero() {
		ev.StartedAt = ev.StartedAt.UTC()
	}
	t.events = append(t.events, ev)
}

// Len returns the number of recorded events.
func (t *Tracer) Len() int { return len(t.events) }

// Events returns a copy of the recorded events in execution order.
func (t *Tracer) Events() []Event { return slices.Clone(t.events) }

// Last returns the most recent event. ok is false on an empty trace.
func (t *Tracer) Last() (Event, bool) {
	if len(t.events) == 0 {
		return Event{}, false
	}
	return t.events[len(t.events)-1], true
}

// Document is the serialized form of a run trace.
type Document struct {
	RunID    string  `json:"run_id"`
	Workflow string  `json:"workflow"`
	Events   []Event `json:"events"`
}

// WriteJSON writes the document to w as indented JSON.
func (d Document) WriteJSON(w io.Writer) error {
	if d.Events == nil {
		d.Events = []Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func (t *Tracer) doc() Document {
	events := t.events
	if events == nil {
		events = []Event{}
	}
	return Document{RunID: t.runID, Workflow: t.workflow, Events: events}
}

// MarshalJSON renders the whole trace as one JSON document.
func (t *Tracer) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.doc())
}

// WriteJSON writes the trace to w as indented JSON.
func (t *Tracer) WriteJSON(w io.Writer) error {
	return t.doc().WriteJSON(w)
}

// Preview renders v as compact JSON truncated to at most limit bytes, for
// log lines. Truncation never splits a UTF-8 sequence.
func Preview(v any, limit int) string {
	b, err := json.Marshal(v)
	var s string
	if err != nil {
		s = fmt.Sprintf("%v", v)
	} else {
		s = string(b)
	}
	if limit > 0 && len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
