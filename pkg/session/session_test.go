package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/conduit/pkg/message"
)

func TestAppendTurnAssignsSequentialNumbers(t *testing.T) {
	s := NewMemoryStore()
	key := Key{Project: "proj", SessionID: "s1"}
	ctx := context.Background()

	require.NoError(t, s.AppendTurn(ctx, key, Turn{Role: message.RoleUser, Content: "hi", CreatedAt: time.Now()}))
	require.NoError(t, s.AppendTurn(ctx, key, Turn{Role: message.RoleAssistant, Content: "hello", CreatedAt: time.Now()}))

	turns, err := s.ListTurns(ctx, key)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].TurnNumber)
	assert.Equal(t, 2, turns[1].TurnNumber)
}

func TestListTurnsUnknownSessionReturnsErr(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ListTurns(context.Background(), Key{Project: "p", SessionID: "ghost"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListSessionsFiltersByProject(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, Key{Project: "a", SessionID: "1"}, Turn{Content: "x"}))
	require.NoError(t, s.AppendTurn(ctx, Key{Project: "b", SessionID: "2"}, Turn{Content: "y"}))

	sessions, err := s.ListSessions(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, sessions)
}

func TestDeleteSessionRemovesTranscript(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := Key{Project: "p", SessionID: "s"}
	require.NoError(t, s.AppendTurn(ctx, key, Turn{Content: "x"}))

	require.NoError(t, s.DeleteSession(ctx, key))
	_, err := s.ListTurns(ctx, key)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendTurnPreservesToolCalls(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := Key{Project: "p", SessionID: "s"}
	calls := []message.ToolCallPart{{CallID: "c1", ToolName: "search", Arguments: map[string]any{"q": "go"}}}
	require.NoError(t, s.AppendTurn(ctx, key, Turn{Content: "x", ToolCalls: calls}))

	turns, err := s.ListTurns(ctx, key)
	require.NoError(t, err)
	require.Len(t, turns[0].ToolCalls, 1)
	assert.Equal(t, "search", turns[0].ToolCalls[0].ToolName)
}
