package dag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoExecutor(value any) Executor {
	return func(ctx context.Context, nodeID string, inputs map[string]any) (any, error) {
		return value, nil
	}
}

func failingExecutor(err error) Executor {
	return func(ctx context.Context, nodeID string, inputs map[string]any) (any, error) {
		return nil, err
	}
}

func TestValidateRejectsEmptyWorkflow(t *testing.T) {
	err := Validate(Workflow{})
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	w := Workflow{Nodes: []Node{{ID: "a"}, {ID: "a"}}}
	assert.ErrorIs(t, Validate(w), ErrDuplicateID)
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	w := Workflow{Nodes: []Node{{ID: "a", Dependencies: []string{"ghost"}}}}
	assert.ErrorIs(t, Validate(w), ErrUnknownDependency)
}

func TestValidateRejectsSelfEdge(t *testing.T) {
	w := Workflow{Nodes: []Node{{ID: "a", Dependencies: []string{"a"}}}}
	assert.ErrorIs(t, Validate(w), ErrSelfEdge)
}

func TestValidateRejectsCycle(t *testing.T) {
	w := Workflow{Nodes: []Node{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}}
	assert.ErrorIs(t, Validate(w), ErrCycle)
}

func TestRunExecutesInTopologicalOrder(t *testing.T) {
	w := Workflow{Nodes: []Node{
		{ID: "a", Executor: echoExecutor(1)},
		{ID: "b", Dependencies: []string{"a"}, Executor: func(ctx context.Context, nodeID string, inputs map[string]any) (any, error) {
			return inputs["a"].(int) + 1, nil
		}},
	}}
	result, err := Run(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Outputs["b"])
}

func TestRunSkipsNodeWhenDependencyFails(t *testing.T) {
	boom := errors.New("boom")
	w := Workflow{Nodes: []Node{
		{ID: "a", Executor: failingExecutor(boom)},
		{ID: "b", Dependencies: []string{"a"}, Executor: echoExecutor("unreachable")},
	}}
	result, err := Run(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Errors["a"], boom)
	assert.ErrorIs(t, result.Errors["b"], ErrDependenciesFailed)
	_, ranB := result.Outputs["b"]
	assert.False(t, ranB)
}

func TestRunParallelLevelExecutesIndependentNodes(t *testing.T) {
	w := Workflow{Nodes: []Node{
		{ID: "a", Executor: echoExecutor("a")},
		{ID: "b", Executor: echoExecutor("b")},
		{ID: "c", Dependencies: []string{"a", "b"}, Executor: func(ctx context.Context, nodeID string, inputs map[string]any) (any, error) {
			return inputs["a"].(string) + inputs["b"].(string), nil
		}},
	}}
	result, err := Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "ab", result.Outputs["c"])
}

func TestRunNodeTimeoutRaces(t *testing.T) {
	w := Workflow{Nodes: []Node{
		{ID: "slow", Timeout: 10 * time.Millisecond, Executor: func(ctx context.Context, nodeID string, inputs map[string]any) (any, error) {
			select {
			case <-time.After(time.Second):
				return "too slow", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}},
	}}
	result, err := Run(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Error(t, result.Errors["slow"])
}
