package procedural

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func buildSessions(n int, path string) []Session {
	var sessions []Session
	for i := 0; i < n; i++ {
		sessions = append(sessions, Session{
			ID:                 "s" + string(rune('0'+i)),
			PrecedingUtterance: "fix the bug",
			Calls: []Call{
				{SessionID: "s", ToolName: "read", Args: map[string]any{"path": path}, Success: true},
				{SessionID: "s", ToolName: "edit", Args: map[string]any{"path": path}, Success: true},
			},
		})
	}
	return sessions
}

func TestExtractRequiresMinSessions(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	sessions := buildSessions(2, "a.txt") // below MinSessions=3
	procs := e.Extract(sessions)
	assert.Empty(t, procs)
}

func TestExtractProducesProcedureAtMinSessions(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	sessions := buildSessions(3, "a.txt")
	procs := e.Extract(sessions)
	require.Len(t, procs, 1)
	assert.Equal(t, "read_then_edit", procs[0].Name)
}

func TestAntiUnifyDetectsConstantPath(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	sessions := buildSessions(3, "a.txt")
	procs := e.Extract(sessions)
	require.Len(t, procs, 1)
	for _, step := range procs[0].Steps {
		for _, p := range step.Params {
			if p.Key == "path" {
				assert.Equal(t, ParamTypeConstant, p.Type)
			}
		}
	}
}

func TestAntiUnifyDetectsVaryingPathAsPathType(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	var sessions []Session
	paths := []string{"a.txt", "b.txt", "c.txt"}
	for i, p := range paths {
		sessions = append(sessions, Session{
			ID:                 "s" + string(rune('0'+i)),
			PrecedingUtterance: "fix the bug",
			Calls: []Call{
				{ToolName: "read", Args: map[string]any{"path": p}, Success: true},
				{ToolName: "edit", Args: map[string]any{"path": p}, Success: true},
			},
		})
	}
	procs := e.Extract(sessions)
	require.Len(t, procs, 1)
	found := false
	for _, step := range procs[0].Steps {
		for _, p := range step.Params {
			if p.Key == "path" {
				assert.Equal(t, ParamTypePath, p.Type)
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestLowSuccessRateDropped(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	var sessions []Session
	for i := 0; i < 4; i++ {
		success := i < 1 // only 1/4 succeed, below 0.8 threshold
		sessions = append(sessions, Session{
			ID: "s" + string(rune('0'+i)),
			Calls: []Call{
				{ToolName: "read", Success: success},
				{ToolName: "edit", Success: success},
			},
		})
	}
	procs := e.Extract(sessions)
	assert.Empty(t, procs)
}

func TestRepeatedDiscoveryNudgesConfidence(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	first := e.Extract(buildSessions(3, "a.txt"))
	require.Len(t, first, 1)
	initial := first[0].Confidence

	more := buildSessions(3, "a.txt")
	more[0].ID = "new-session-1"
	more[1].ID = "new-session-2"
	more[2].ID = "new-session-3"
	second := e.Extract(more)
	require.Len(t, second, 1)
	assert.Greater(t, second[0].Confidence, initial)
}

func TestMatchScoresByTriggerJaccard(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	e.Extract(buildSessions(3, "a.txt"))

	rng := rand.New(rand.NewSource(1))
	proc, ok := e.Match("fix the bug please", rng)
	require.True(t, ok)
	assert.Equal(t, "read_then_edit", proc.Name)
}

func TestMatchNoOverlapReturnsFalse(t *testing.T) {
	e := New(DefaultConfig(), fixedClock(time.Now()))
	e.Extract(buildSessions(3, "a.txt"))

	rng := rand.New(rand.NewSource(1))
	_, ok := e.Match("completely unrelated query text", rng)
	assert.False(t, ok)
}

func TestSuccessRateLaplaceSmoothed(t *testing.T) {
	p := Procedure{SuccessCount: 0, FailureCount: 0}
	assert.Equal(t, 0.5, p.SuccessRate())
}
