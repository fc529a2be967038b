package tool

import (
	"context"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/conduit/pkg/cancel"
)

type echoHandler struct{ fail bool }

func (echoHandler) Definition() Def {
	return Def{
		Name:        "echo",
		Description: "echoes back the given text",
		InputSchema: &jsonschema.Schema{Required: []string{"text"}},
	}
}

func (h echoHandler) Execute(ctx context.Context, ectx ExecContext, args map[string]any) (string, error) {
	if h.fail {
		panic("boom")
	}
	return args["text"].(string), nil
}

func newTestExecutor(fail bool) *Executor {
	return NewExecutor(echoHandler{fail: fail})
}

func TestExecuteMissingTool(t *testing.T) {
	e := newTestExecutor(false)
	res := e.Execute(context.Background(), "nonexistent", nil, ExecContext{Cancel: cancel.New()})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "not found")
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	e := newTestExecutor(false)
	res := e.Execute(context.Background(), "echo", map[string]any{}, ExecContext{Cancel: cancel.New()})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "missing required argument")
}

func TestExecuteSuccess(t *testing.T) {
	e := newTestExecutor(false)
	res := e.Execute(context.Background(), "echo", map[string]any{"text": "hi"}, ExecContext{Cancel: cancel.New()})
	require.False(t, res.IsError)
	assert.Equal(t, "hi", res.Content)
}

func TestExecuteRecoversPanic(t *testing.T) {
	e := newTestExecutor(true)
	res := e.Execute(context.Background(), "echo", map[string]any{"text": "hi"}, ExecContext{Cancel: cancel.New()})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "panicked")
}

func TestExecuteNeverReturnsError(t *testing.T) {
	// Execute's "never throws" contract: every failure mode above folds
	// into Result.IsError, not a Go error return — there's nothing to
	// assert beyond compiling against Execute's (ctx, name, args, ectx)
	// Result-only signature.
	e := newTestExecutor(false)
	_ = e.Execute(context.Background(), "echo", nil, ExecContext{})
}
