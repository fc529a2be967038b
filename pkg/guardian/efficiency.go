package guardian

import (
	"fmt"
	"time"
)

// EfficiencyGuardian flags turns where every tool call in the turn
// failed (a sign the agent is thrashing), regardless of whether
// CorrectnessGuardian's consecutive-failure threshold has been crossed
// yet — this guardian reacts per-turn, not across turns.
type EfficiencyGuardian struct {
	ring   *Ring
	clock  func() time.Time
	nextID int
}

func NewEfficiencyGuardian(ringCapacity int, clock func() time.Time) *EfficiencyGuardian {
	if clock == nil {
		clock = time.Now
	}
	return &EfficiencyGuardian{ring: NewRing(ringCapacity), clock: clock}
}

func (g *EfficiencyGuardian) ID() string { return "efficiency" }

func (g *EfficiencyGuardian) Observe(obs Observation) {
	if len(obs.ToolResults) < 2 {
		return
	}
	allFailed := true
	for _, r := range obs.ToolResults {
		if !r.IsError {
			allFailed = false
			break
		}
	}
	if !allFailed {
		return
	}
	g.nextID++
	g.ring.Push(Finding{
		ID:          fmt.Sprintf("finding-%d", g.nextID),
		GuardianID:  g.ID(),
		Domain:      "efficiency",
		Severity:    SeverityInfo,
		Title:       "entire turn's tool calls failed",
		Description: fmt.Sprintf("all %d tool calls in this turn returned errors", len(obs.ToolResults)),
		Confidence:  0.55,
		Timestamp:   g.clock(),
	})
}

func (g *EfficiencyGuardian) Findings() []Finding { return g.ring.All() }
