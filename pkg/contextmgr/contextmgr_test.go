package contextmgr

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/conduit/pkg/message"
)

func TestBuildUnderBudgetKeepsEverything(t *testing.T) {
	m, err := New(10000, "")
	require.NoError(t, err)

	state := message.NewAgentState("a1")
	state.SystemPrompt = "you are a helpful assistant"
	state.Append(message.NewMessage(message.RoleUser, time.Now(), message.TextPart{Text: "hello"}))
	state.Append(message.NewMessage(message.RoleAssistant, time.Now(), message.TextPart{Text: "hi there"}))

	reqCtx := m.Build(state, nil)
	assert.Len(t, reqCtx.Messages, 2)
}

func TestBuildKeepsFinalMessageUnderTightBudget(t *testing.T) {
	m, err := New(50, "")
	require.NoError(t, err)

	state := message.NewAgentState("a1")
	state.SystemPrompt = "system"
	for i := 0; i < 30; i++ {
		state.Append(message.NewMessage(message.RoleUser, time.Now(),
			message.TextPart{Text: strings.Repeat("padding text to consume budget ", 20)}))
	}
	state.Append(message.NewMessage(message.RoleAssistant, time.Now(), message.TextPart{Text: "final answer"}))

	reqCtx := m.Build(state, nil)
	require.NotEmpty(t, reqCtx.Messages)
	last := reqCtx.Messages[len(reqCtx.Messages)-1].(message.Message)
	assert.Equal(t, "final answer", last.Text())
}

func TestSummarizeToolResultsPreservesFinalAndSystem(t *testing.T) {
	m, err := New(1, "") // forces every tier
	require.NoError(t, err)

	state := message.NewAgentState("a1")
	state.SystemPrompt = "sys"
	state.Append(message.NewMessage(message.RoleSystem, time.Now(), message.TextPart{Text: "system rules"}))
	state.Append(message.NewMessage(message.RoleAssistant, time.Now(),
		message.ToolCallPart{CallID: "c1", ToolName: "read"},
	))
	state.Append(message.NewMessage(message.RoleToolResult, time.Now(),
		message.ToolResultPart{CallID: "c1", ToolName: "read", Content: strings.Repeat("x", 500)},
	))
	state.Append(message.NewMessage(message.RoleAssistant, time.Now(), message.TextPart{Text: "done"}))

	reqCtx := m.Build(state, nil)
	require.NotEmpty(t, reqCtx.Messages)
	foundSystem := false
	for _, raw := range reqCtx.Messages {
		msg := raw.(message.Message)
		if msg.Role == message.RoleSystem {
			foundSystem = true
		}
	}
	assert.True(t, foundSystem)
	last := reqCtx.Messages[len(reqCtx.Messages)-1].(message.Message)
	assert.Equal(t, "done", last.Text())
}

func TestMergeAdjacentTextSameRole(t *testing.T) {
	history := []message.Message{
		message.NewMessage(message.RoleUser, time.Now(), message.TextPart{Text: "a"}),
		message.NewMessage(message.RoleUser, time.Now(), message.TextPart{Text: "b"}),
	}
	merged := mergeAdjacentText(history)
	require.Len(t, merged, 1)
	assert.Contains(t, merged[0].Text(), "a")
	assert.Contains(t, merged[0].Text(), "b")
}
