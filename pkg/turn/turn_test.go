package turn

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invopop/jsonschema"

	"github.com/arclane/conduit/pkg/bus"
	"github.com/arclane/conduit/pkg/cancel"
	"github.com/arclane/conduit/pkg/contextmgr"
	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/provider"
	"github.com/arclane/conduit/pkg/tool"
)

type readTool struct{}

func (readTool) Definition() tool.Def {
	return tool.Def{Name: "read", InputSchema: &jsonschema.Schema{Required: []string{"path"}}}
}
func (readTool) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	return "contents of " + args["path"].(string), nil
}

type editTool struct{}

func (editTool) Definition() tool.Def {
	return tool.Def{Name: "edit", InputSchema: &jsonschema.Schema{Required: []string{"path"}}}
}
func (editTool) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	return "edited " + args["path"].(string), nil
}

func newManager(t *testing.T) *contextmgr.Manager {
	m, err := contextmgr.New(100000, "")
	require.NoError(t, err)
	return m
}

func TestHappyPathTwoToolCallsThenEndTurn(t *testing.T) {
	fake := &provider.Fake{Scripts: []provider.Response{
		{Events: []provider.Event{
			{Kind: provider.EventStart},
			{Kind: provider.EventToolCall, ToolCallID: "1", ToolName: "read", ArgsJSON: `{"path":"a.txt"}`},
			{Kind: provider.EventToolCall, ToolCallID: "2", ToolName: "edit", ArgsJSON: `{"path":"a.txt"}`},
			{Kind: provider.EventDone, StopReason: provider.StopToolUse},
		}},
		{Events: []provider.Event{
			{Kind: provider.EventStart},
			{Kind: provider.EventText, Text: "done"},
			{Kind: provider.EventDone, StopReason: provider.StopEndTurn},
		}},
	}}

	b := bus.New(nil)
	var toolStarts, toolDones int
	b.Subscribe("tool:start", func(bus.Event) { toolStarts++ })
	b.Subscribe("tool:done", func(bus.Event) { toolDones++ })

	loop := New(Config{
		Provider:   fake,
		ModelID:    "test-model",
		ContextMgr: newManager(t),
		Tools:      tool.NewExecutor(readTool{}, editTool{}),
		Bus:        b,
	})

	state := message.NewAgentState("s1")
	state.Append(message.NewMessage(message.RoleUser, time.Now(), message.TextPart{Text: "please fix a.txt"}))

	token := cancel.New()
	result, err := loop.Run(context.Background(), token, "s1", state)
	require.NoError(t, err)
	assert.Equal(t, provider.StopEndTurn, result.StopReason)
	assert.Equal(t, 2, toolStarts)
	assert.Equal(t, 2, toolDones)

	// user, assistant-with-2-tool-calls, tool_result(x2 as one message), assistant-final
	require.Len(t, state.History, 4)
	assert.Equal(t, message.RoleUser, state.History[0].Role)
	assert.Equal(t, message.RoleAssistant, state.History[1].Role)
	assert.Equal(t, message.RoleToolResult, state.History[2].Role)
	assert.Equal(t, message.RoleAssistant, state.History[3].Role)
}

func TestCancellationMidStreamStopsToolExecution(t *testing.T) {
	token := cancel.New()
	customProvider := cancelAfterNProvider{n: 1, token: token}

	b := bus.New(nil)
	var toolStarts int
	b.Subscribe("tool:start", func(bus.Event) { toolStarts++ })

	loop := New(Config{
		Provider:   customProvider,
		ModelID:    "test-model",
		ContextMgr: newManager(t),
		Tools:      tool.NewExecutor(readTool{}),
		Bus:        b,
	})

	state := message.NewAgentState("s1")
	state.Append(message.NewMessage(message.RoleUser, time.Now(), message.TextPart{Text: "go"}))

	_, err := loop.Run(context.Background(), token, "s1", state)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, toolStarts)
}

// cancelAfterNProvider yields n text events then aborts the token before
// ever emitting Done, modeling a cancellation signalled mid-stream.
type cancelAfterNProvider struct {
	n     int
	token *cancel.Token
}

func (p cancelAfterNProvider) Stream(ctx context.Context, modelID string, reqCtx provider.RequestContext, opts provider.Options) iter.Seq2[provider.Event, error] {
	return func(yield func(provider.Event, error) bool) {
		if !yield(provider.Event{Kind: provider.EventStart}, nil) {
			return
		}
		for i := 0; i < p.n; i++ {
			if !yield(provider.Event{Kind: provider.EventText, Text: "partial"}, nil) {
				return
			}
		}
		p.token.Signal("test cancel")
	}
}
