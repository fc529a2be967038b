package guardian

import (
	"fmt"
	"strings"
	"time"
)

// SafetyGuardian flags tool results whose content hints at destructive
// or credential-sensitive operations slipping past policy, as a second
// line of defense alongside pkg/policy.
type SafetyGuardian struct {
	ring   *Ring
	clock  func() time.Time
	nextID int
}

func NewSafetyGuardian(ringCapacity int, clock func() time.Time) *SafetyGuardian {
	if clock == nil {
		clock = time.Now
	}
	return &SafetyGuardian{ring: NewRing(ringCapacity), clock: clock}
}

func (g *SafetyGuardian) ID() string { return "safety" }

var sensitiveMarkers = []string{"rm -rf", "drop table", "api_key", "secret", "password"}

func (g *SafetyGuardian) Observe(obs Observation) {
	for i, r := range obs.ToolResults {
		lower := strings.ToLower(r.Content)
		for _, marker := range sensitiveMarkers {
			if strings.Contains(lower, marker) {
				name := ""
				if i < len(obs.ToolNames) {
					name = obs.ToolNames[i]
				}
				g.nextID++
				g.ring.Push(Finding{
					ID:          fmt.Sprintf("finding-%d", g.nextID),
					GuardianID:  g.ID(),
					Domain:      "safety",
					Severity:    SeverityWarning,
					Title:       "sensitive pattern in tool output",
					Description: fmt.Sprintf("tool %q output matched %q", name, marker),
					Confidence:  0.7,
					Timestamp:   g.clock(),
				})
				break
			}
		}
	}
}

func (g *SafetyGuardian) Findings() []Finding { return g.ring.All() }
