package guardian

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/tool"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := NewRing(2)
	r.Push(Finding{ID: "1"})
	r.Push(Finding{ID: "2"})
	r.Push(Finding{ID: "3"})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID)
	assert.Equal(t, "3", all[1].ID)
}

func TestCorrectnessGuardianWarnsAtThreeFailures(t *testing.T) {
	g := NewCorrectnessGuardian(10, fixedClock(time.Now()))
	for i := 0; i < 3; i++ {
		g.Observe(Observation{ToolResults: []tool.Result{{IsError: true}}})
	}
	findings := g.Findings()
	require.NotEmpty(t, findings)
	assert.Equal(t, SeverityWarning, findings[len(findings)-1].Severity)
}

func TestCorrectnessGuardianCriticalAtFiveFailures(t *testing.T) {
	g := NewCorrectnessGuardian(10, fixedClock(time.Now()))
	for i := 0; i < 5; i++ {
		g.Observe(Observation{ToolResults: []tool.Result{{IsError: true}}})
	}
	findings := g.Findings()
	var sawCritical bool
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			sawCritical = true
		}
	}
	assert.True(t, sawCritical)
}

func TestCorrectnessGuardianResetsOnSuccess(t *testing.T) {
	g := NewCorrectnessGuardian(10, fixedClock(time.Now()))
	g.Observe(Observation{ToolResults: []tool.Result{{IsError: true}}})
	g.Observe(Observation{ToolResults: []tool.Result{{IsError: true}}})
	g.Observe(Observation{ToolResults: []tool.Result{{IsError: false}}})
	assert.Equal(t, 0, g.consecutiveErrors)
}

func TestAggregatorDropsBelowConfidence(t *testing.T) {
	g := NewCorrectnessGuardian(10, fixedClock(time.Now()))
	agg := NewAggregator(0.8, g)

	agg.ObserveTool("read", nil, tool.Result{IsError: true}, 0)
	agg.ObserveTool("read", nil, tool.Result{IsError: true}, 0)
	agg.ObserveTool("read", nil, tool.Result{IsError: true}, 0)
	agg.ObserveTurn(nil, message.NewMessage(message.RoleAssistant, time.Now(), message.TextPart{Text: "done"}))

	findings := agg.AllFindings()
	assert.Empty(t, findings) // warning-level confidence 0.6 < threshold 0.8
}

func TestSafetyGuardianFlagsSensitivePattern(t *testing.T) {
	g := NewSafetyGuardian(10, fixedClock(time.Now()))
	g.Observe(Observation{
		ToolResults: []tool.Result{{Content: "running rm -rf /tmp/scratch"}},
		ToolNames:   []string{"shell"},
	})
	assert.NotEmpty(t, g.Findings())
}

func TestEfficiencyGuardianFlagsAllFailedTurn(t *testing.T) {
	g := NewEfficiencyGuardian(10, fixedClock(time.Now()))
	g.Observe(Observation{ToolResults: []tool.Result{{IsError: true}, {IsError: true}}})
	assert.NotEmpty(t, g.Findings())
}
