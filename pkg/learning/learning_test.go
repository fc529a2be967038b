package learning

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/conduit/pkg/tool"
)

func TestObserveToolAccumulatesStats(t *testing.T) {
	l := New()
	l.ObserveTool("read", nil, tool.Result{IsError: false}, 100*time.Millisecond)
	l.ObserveTool("read", nil, tool.Result{IsError: true}, 200*time.Millisecond)

	st := l.StatsFor("read")
	assert.Equal(t, 2, st.TotalCalls)
	assert.Equal(t, 1, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	assert.InDelta(t, 0.5, st.SuccessRate(), 1e-9)
}

func TestUserSatisfactionDefaultsWithoutFeedback(t *testing.T) {
	st := ToolStats{}
	assert.Equal(t, 0.5, st.UserSatisfaction())
}

func TestPerformanceScoreBlendsComponents(t *testing.T) {
	st := ToolStats{TotalCalls: 10, SuccessCount: 10, TotalLatencyMs: 0, FeedbackTurns: 2, AcceptedTurns: 2}
	// perfect success, instant latency (speed=1), full satisfaction -> 0.5+0.3+0.2=1.0
	assert.InDelta(t, 1.0, st.PerformanceScore(), 1e-9)
}

func TestTransitionMatrixPredictsNextTool(t *testing.T) {
	l := New()
	l.ObserveTool("read", nil, tool.Result{}, 0)
	l.ObserveTool("edit", nil, tool.Result{}, 0)
	l.ObserveTool("read", nil, tool.Result{}, 0)
	l.ObserveTool("edit", nil, tool.Result{}, 0)

	next, ok := l.PredictNext("read")
	require.True(t, ok)
	assert.Equal(t, "edit", next)
}

func TestPredictNextUnknownToolReturnsFalse(t *testing.T) {
	l := New()
	_, ok := l.PredictNext("nonexistent")
	assert.False(t, ok)
}

func TestSnapshotRoundTrips(t *testing.T) {
	l := New()
	l.ObserveTool("read", nil, tool.Result{}, 50*time.Millisecond)
	l.ObserveTool("edit", nil, tool.Result{IsError: true}, 10*time.Millisecond)
	l.RecordFeedback("read", true)

	data, err := json.Marshal(l)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, l.StatsFor("read"), restored.StatsFor("read"))
	assert.Equal(t, l.StatsFor("edit"), restored.StatsFor("edit"))
	next, ok := restored.PredictNext("read")
	require.True(t, ok)
	assert.Equal(t, "edit", next)
}
