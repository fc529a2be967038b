package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesEvents(t *testing.T) {
	f := &Fake{Scripts: []Response{{Events: []Event{
		{Kind: EventStart},
		{Kind: EventText, Text: "hello "},
		{Kind: EventText, Text: "world"},
		{Kind: EventToolCall, ToolCallID: "1", ToolName: "read", ArgsJSON: `{"path":"a.txt"}`},
		{Kind: EventDone, StopReason: StopToolUse, Cost: 0.01},
	}}}}

	agg, err := Run(context.Background(), f.Stream(context.Background(), "m", RequestContext{}, Options{}))
	require.NoError(t, err)
	assert.Equal(t, "hello world", agg.Text)
	assert.Equal(t, StopToolUse, agg.StopReason)
	require.Len(t, agg.ToolCalls, 1)
	assert.Equal(t, "read", agg.ToolCalls[0].ToolName)
}

func TestRunPropagatesStreamError(t *testing.T) {
	f := &Fake{Scripts: []Response{{Events: []Event{
		{Kind: EventStart},
		{Kind: EventError, Err: assert.AnError},
	}}}}

	_, err := Run(context.Background(), f.Stream(context.Background(), "m", RequestContext{}, Options{}))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunCancelledBeforeDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Fake{Scripts: []Response{{
		Events: []Event{
			{Kind: EventStart},
			{Kind: EventText, Text: "partial"},
		},
		CancelAfter: 2,
		cancel:      cancel,
	}}}

	_, err := Run(ctx, f.Stream(ctx, "m", RequestContext{}, Options{}))
	assert.ErrorIs(t, err, ErrCancelled)
}
