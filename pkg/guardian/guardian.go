// Package guardian implements Observer Guardians (spec §4.15): bounded
// ring buffers of Findings fed by every turn's observed
// (role, content, tool_results) tuple. Grounded on pkg/turn.Observer,
// which this package implements directly, and on the teacher's
// bounded-ring idiom for event history (pkg/session/transcript.go
// trims to a max length the same way Ring.Push does here).
package guardian

import (
	"strings"
	"time"

	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/observability"
	"github.com/arclane/conduit/pkg/tool"
)

// Severity is a Finding's closed severity set.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is one guardian observation, per spec §3.
type Finding struct {
	ID         string
	GuardianID string
	Domain     string
	Severity   Severity
	Title      string
	Description string
	Confidence float64
	Location   string
	Timestamp  time.Time
}

// Ring is a bounded, append-only ring buffer of Findings; once full, the
// oldest entry is dropped (spec §5's backpressure rule for finding
// rings).
type Ring struct {
	buf   []Finding
	cap   int
	start int
	size  int
}

// NewRing builds a Ring holding at most capacity findings.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring{buf: make([]Finding, capacity), cap: capacity}
}

// Push appends f, evicting the oldest entry if the ring is full.
func (r *Ring) Push(f Finding) {
	idx := (r.start + r.size) % r.cap
	r.buf[idx] = f
	if r.size < r.cap {
		r.size++
	} else {
		r.start = (r.start + 1) % r.cap
	}
}

// All returns the ring's contents, oldest first.
func (r *Ring) All() []Finding {
	out := make([]Finding, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%r.cap]
	}
	return out
}

// Guardian observes turn-loop activity and may append Findings to its
// own Ring. Implementations must never mutate AgentState (spec §9);
// Observe receives read-only views.
type Guardian interface {
	ID() string
	Observe(obs Observation)
	Findings() []Finding
}

// Observation is the (role, content, tool_results) tuple guardians react
// to, assembled once per turn by an Aggregator from pkg/turn.Observer
// calls.
type Observation struct {
	AssistantText string
	ToolResults   []tool.Result
	ToolNames     []string
}

// Aggregator adapts pkg/turn.Observer's two callbacks into a single
// per-turn Observation, fanned out to every registered Guardian.
type Aggregator struct {
	guardians   []Guardian
	confidence  float64
	pendingTool []tool.Result
	pendingName []string
	recorder    observability.Recorder
}

// NewAggregator wires guardians behind a shared minimum-confidence
// filter: any Finding scoring below minConfidence is left out of
// AllFindings (spec §4.15). Guardians still push such findings into their
// own Rings, and the recorder counts them.
func NewAggregator(minConfidence float64, guardians ...Guardian) *Aggregator {
	return &Aggregator{guardians: guardians, confidence: minConfidence, recorder: observability.GetGlobalRecorder()}
}

// ObserveTool implements turn.Observer, buffering per-tool outcomes until
// ObserveTurn flushes them as one Observation.
func (a *Aggregator) ObserveTool(toolName string, args map[string]any, result tool.Result, latency time.Duration) {
	a.pendingTool = append(a.pendingTool, result)
	a.pendingName = append(a.pendingName, toolName)
}

// ObserveTurn implements turn.Observer, building the turn's Observation
// and fanning it out.
func (a *Aggregator) ObserveTurn(state *message.AgentState, lastAssistant message.Message) {
	obs := Observation{
		AssistantText: lastAssistant.Text(),
		ToolResults:   a.pendingTool,
		ToolNames:     a.pendingName,
	}
	a.pendingTool = nil
	a.pendingName = nil

	for _, g := range a.guardians {
		before := len(g.Findings())
		g.Observe(obs)
		for _, f := range g.Findings()[before:] {
			a.recorder.RecordFinding(g.ID(), string(f.Severity))
		}
	}
}

// AllFindings collects every guardian's current findings at or above the
// aggregator's confidence threshold.
func (a *Aggregator) AllFindings() []Finding {
	var out []Finding
	for _, g := range a.guardians {
		for _, f := range g.Findings() {
			if f.Confidence >= a.confidence {
				out = append(out, f)
			}
		}
	}
	return out
}

// correctionPhrases are user-correction markers the correctness guardian
// watches for, per spec §4.15.
var correctionPhrases = []string{"no,", "no.", "that's wrong", "thats wrong", "incorrect", "not right"}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
