package guardian

import (
	"fmt"
	"time"
)

// CorrectnessGuardian tracks consecutive tool errors and user-correction
// phrases, per spec §4.15: warning at 3 consecutive errors, critical at
// 5; also flags a correction phrase appearing in the assistant's own
// text (echoing back a user's "no, that's wrong").
type CorrectnessGuardian struct {
	ring              *Ring
	consecutiveErrors int
	clock             func() time.Time
	nextID            int
}

// NewCorrectnessGuardian builds a guardian with the given Finding ring
// capacity. clock defaults to time.Now.
func NewCorrectnessGuardian(ringCapacity int, clock func() time.Time) *CorrectnessGuardian {
	if clock == nil {
		clock = time.Now
	}
	return &CorrectnessGuardian{ring: NewRing(ringCapacity), clock: clock}
}

func (g *CorrectnessGuardian) ID() string { return "correctness" }

func (g *CorrectnessGuardian) Observe(obs Observation) {
	for _, r := range obs.ToolResults {
		if !r.IsError {
			g.consecutiveErrors = 0
			continue
		}
		g.consecutiveErrors++

		switch {
		case g.consecutiveErrors == 5:
			g.push(SeverityCritical, "repeated tool failures",
				fmt.Sprintf("%d consecutive tool calls have failed", g.consecutiveErrors), 0.9)
		case g.consecutiveErrors == 3:
			g.push(SeverityWarning, "repeated tool failures",
				fmt.Sprintf("%d consecutive tool calls have failed", g.consecutiveErrors), 0.6)
		}
	}

	if containsAny(obs.AssistantText, correctionPhrases) {
		g.push(SeverityWarning, "possible user correction echoed",
			"assistant text contains a correction phrase", 0.5)
	}
}

func (g *CorrectnessGuardian) push(sev Severity, title, desc string, confidence float64) {
	g.nextID++
	g.ring.Push(Finding{
		ID:          fmt.Sprintf("finding-%d", g.nextID),
		GuardianID:  g.ID(),
		Domain:      "correctness",
		Severity:    sev,
		Title:       title,
		Description: desc,
		Confidence:  confidence,
		Timestamp:   g.clock(),
	})
}

func (g *CorrectnessGuardian) Findings() []Finding { return g.ring.All() }
