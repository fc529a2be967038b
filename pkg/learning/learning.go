// Package learning implements the Learning Loop (spec §4.16): per-tool
// outcome statistics, a first-order Markov transition matrix over tool
// names for next-tool prediction, and a blended per-tool performance
// score. It implements pkg/turn.Observer
// directly, the same "ordinary bus subscriber" role pkg/guardian plays
// (spec §9: "Guardians and the learning loop are ordinary subscribers").
// The round-trippable snapshot follows the teacher's JSON-tagged struct
// + encoding/json idiom used throughout pkg/config for serializable state.
package learning

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/tool"
)

// ToolStats is the spec's per-tool counters.
type ToolStats struct {
	TotalCalls      int     `json:"total_calls"`
	SuccessCount    int     `json:"success_count"`
	FailureCount    int     `json:"failure_count"`
	TotalLatencyMs  int64   `json:"total_latency_ms"`
	FeedbackTurns   int     `json:"feedback_turns"`
	AcceptedTurns   int     `json:"accepted_turns"`
}

// SuccessRate returns success_count/total_calls, or 0 if no calls yet.
func (s ToolStats) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalCalls)
}

func (s ToolStats) avgLatencyMs() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.TotalLatencyMs) / float64(s.TotalCalls)
}

// UserSatisfaction is accepted_turns/feedback_turns, defaulted to 0.5
// absent any feedback, per spec §4.16.
func (s ToolStats) UserSatisfaction() float64 {
	if s.FeedbackTurns == 0 {
		return 0.5
	}
	return float64(s.AcceptedTurns) / float64(maxInt(1, s.FeedbackTurns))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Tau is the speed-score decay constant, in milliseconds; a latency
// equal to Tau scores exp(-1) ~= 0.37.
const Tau = 2000.0

// PerformanceScore blends success rate, speed, and user satisfaction per
// spec §4.16's weighted formula (0.5/0.3/0.2).
func (s ToolStats) PerformanceScore() float64 {
	speedScore := math.Exp(-s.avgLatencyMs() / Tau)
	return 0.5*s.SuccessRate() + 0.3*speedScore + 0.2*s.UserSatisfaction()
}

// Snapshot is the round-trippable serialized form of a Loop, per spec
// §6's persisted-state shape.
type Snapshot struct {
	Stats       map[string]ToolStats      `json:"stats"`
	Transitions map[string]map[string]int `json:"transitions"`
}

// Loop implements pkg/turn.Observer, accumulating ToolStats and a
// first-order Markov transition matrix over the sequence of tool names
// it observes.
type Loop struct {
	mu          sync.Mutex
	stats       map[string]*ToolStats
	transitions map[string]map[string]int
	lastTool    string
	haveLast    bool
}

// New builds an empty Loop.
func New() *Loop {
	return &Loop{
		stats:       make(map[string]*ToolStats),
		transitions: make(map[string]map[string]int),
	}
}

// ObserveTool implements pkg/turn.Observer.
func (l *Loop) ObserveTool(toolName string, args map[string]any, result tool.Result, latency time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.stats[toolName]
	if !ok {
		st = &ToolStats{}
		l.stats[toolName] = st
	}
	st.TotalCalls++
	if result.IsError {
		st.FailureCount++
	} else {
		st.SuccessCount++
	}
	st.TotalLatencyMs += latency.Milliseconds()

	if l.haveLast {
		if l.transitions[l.lastTool] == nil {
			l.transitions[l.lastTool] = make(map[string]int)
		}
		l.transitions[l.lastTool][toolName]++
	}
	l.lastTool = toolName
	l.haveLast = true
}

// ObserveTurn implements pkg/turn.Observer. The learning loop does not
// react to full-turn content beyond tool outcomes, so this is a no-op
// except for feedback phrase detection, handled by RecordFeedback
// instead (feedback is an explicit, separate signal, not inferable from
// assistant text alone, per spec §4.16's feedback_turns/accepted_turns
// pair being caller-driven).
func (l *Loop) ObserveTurn(state *message.AgentState, lastAssistant message.Message) {}

// RecordFeedback marks that a tool's most recent use received explicit
// user feedback, accepted or not — incrementing both feedback_turns and,
// if accepted, accepted_turns.
func (l *Loop) RecordFeedback(toolName string, accepted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.stats[toolName]
	if !ok {
		st = &ToolStats{}
		l.stats[toolName] = st
	}
	st.FeedbackTurns++
	if accepted {
		st.AcceptedTurns++
	}
}

// StatsFor returns a copy of the named tool's current ToolStats.
func (l *Loop) StatsFor(toolName string) ToolStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.stats[toolName]; ok {
		return *st
	}
	return ToolStats{}
}

// PredictNext returns the most likely next tool name given the last
// observed tool, by maximum transition count, or ("", false) if no
// transitions from that tool have been observed.
func (l *Loop) PredictNext(fromTool string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.transitions[fromTool]
	if !ok || len(row) == 0 {
		return "", false
	}
	var best string
	bestCount := -1
	for name, count := range row {
		if count > bestCount || (count == bestCount && name < best) {
			best = name
			bestCount = count
		}
	}
	return best, true
}

// Snapshot serializes the loop's current state for persistence.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make(map[string]ToolStats, len(l.stats))
	for k, v := range l.stats {
		stats[k] = *v
	}
	transitions := make(map[string]map[string]int, len(l.transitions))
	for k, row := range l.transitions {
		copied := make(map[string]int, len(row))
		for name, count := range row {
			copied[name] = count
		}
		transitions[k] = copied
	}
	return Snapshot{Stats: stats, Transitions: transitions}
}

// Restore replaces the loop's state with a previously-serialized Snapshot.
func (l *Loop) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats = make(map[string]*ToolStats, len(snap.Stats))
	for k, v := range snap.Stats {
		copied := v
		l.stats[k] = &copied
	}
	l.transitions = make(map[string]map[string]int, len(snap.Transitions))
	for k, row := range snap.Transitions {
		copied := make(map[string]int, len(row))
		for name, count := range row {
			copied[name] = count
		}
		l.transitions[k] = copied
	}
}

// MarshalJSON round-trips via Snapshot.
func (l *Loop) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(l.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("learning: marshal snapshot: %w", err)
	}
	return b, nil
}

// UnmarshalJSON round-trips via Snapshot.
func (l *Loop) UnmarshalJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("learning: unmarshal snapshot: %w", err)
	}
	l.Restore(snap)
	return nil
}
