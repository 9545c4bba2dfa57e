// Package progress defines the event format the research core emits to
// collaborators (the desktop shell, the CLI, tests). The executor never
// assumes a consumer is attached; events go to a Sink and Sinks are cheap.
package progress

import (
	"encoding/json"
	"time"
)

// Phase identifies where in the research pipeline an event was emitted.
type Phase string

const (
	PhaseIntake       Phase = "intake"       // plan accepted, actions queued
	PhaseExecuting    Phase = "executing"    // an action is running
	PhaseCheckpoint   Phase = "checkpoint"   // a round finished, gate evaluated
	PhaseSynthesizing Phase = "synthesizing" // host LLM loop is composing the answer
	PhaseDone         Phase = "done"         // execution finished
)

// Event is a single progress notification. Optional fields are omitted from
// the wire when empty.
type Event struct {
	Phase            Phase     `json:"phase"`
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Message          string    `json:"message"`
	Actions          []Action  `json:"actions,omitempty"`
	Sources          []Source  `json:"sources,omitempty"`
	ActiveSourceID   string    `json:"active_source_id,omitempty"`
	ActiveSourceURL  string    `json:"active_source_url,omitempty"`
	Gate             *Gate     `json:"gate_status,omitempty"`
	CheckpointNumber int       `json:"checkpoint_number,omitempty"`
}

// Action is the wire view of a planned search action.
type Action struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Source   string `json:"source"`
	Query    string `json:"query"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

// Source is the wire view of a recorded source preview.
type Source struct {
	ID            string `json:"source_id"`
	URL           string `json:"url"`
	Host          string `json:"host"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet,omitempty"`
	Kind          string `json:"source_kind"`
	Tier          string `json:"source_tier"`
	Eligible      bool   `json:"eligible_for_synthesis"`
	Primary       bool   `json:"eligible_for_primary_claims"`
	DiscardReason string `json:"discard_reason,omitempty"`
	CacheRef      string `json:"cache_ref,omitempty"`
}

// Gate is the wire view of a gate evaluation.
type Gate struct {
	OK            bool     `json:"ok"`
	Reasons       []string `json:"reasons,omitempty"`
	EligibleCount int      `json:"eligible_count"`
	HostCount     int      `json:"host_count"`
	HasPrimary    bool     `json:"has_primary"`
}

// Parse decodes a wire event.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Sink receives progress events. Implementations must not block for long;
// the executor emits inline.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ev Event) { f(ev) }

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// ChannelSink forwards events to a channel, dropping when the channel is
// full so a slow consumer never stalls an execution.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink returns a ChannelSink with the given buffer size.
func NewChannelSink(buf int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buf)}
}

// Emit implements Sink.
func (s *ChannelSink) Emit(ev Event) {
	select {
	case s.C <- ev:
	default:
	}
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
