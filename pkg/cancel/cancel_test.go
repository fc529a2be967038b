package cancel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_SignalAborts(t *testing.T) {
	tok := New()
	assert.False(t, tok.IsAborted())
	assert.NoError(t, tok.ThrowIfAborted())

	tok.Signal("user requested stop")
	assert.True(t, tok.IsAborted())
	assert.ErrorIs(t, tok.ThrowIfAborted(), ErrAborted)
	assert.Equal(t, "user requested stop", tok.Reason())
}

func TestToken_ChildAbortsWithParent(t *testing.T) {
	parent := New()
	child := parent.Child()

	parent.Signal("parent stopped")
	assert.True(t, child.IsAborted())
	assert.Equal(t, "parent stopped", child.Reason())
}

func TestToken_ChildDoesNotAbortParent(t *testing.T) {
	parent := New()
	child := parent.Child()

	child.Signal("child stopped")
	assert.True(t, child.IsAborted())
	assert.False(t, parent.IsAborted())
}

func TestToken_DoneChannelClosesOnSignal(t *testing.T) {
	tok := New()
	select {
	case <-tok.Done():
		t.Fatal("done channel should not be closed yet")
	default:
	}

	tok.Signal("stop")
	select {
	case <-tok.Done():
	default:
		t.Fatal("done channel should be closed after signal")
	}
}

func TestToken_FromContext(t *testing.T) {
	parentCtx, parentCancel := context.WithCancel(context.Background())
	parentCancel()

	tok := FromContext(parentCtx)
	require.NotNil(t, tok)
	assert.True(t, tok.IsAborted())
}
