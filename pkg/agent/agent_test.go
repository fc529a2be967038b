package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/conduit/pkg/message"
)

func TestSpawnDepth(t *testing.T) {
	tree := NewTree(2)
	root, err := tree.Spawn("root", "coordinator")
	require.NoError(t, err)
	assert.Equal(t, 0, root.Depth)

	child, err := tree.SpawnChild(root.ID, "child", "worker")
	require.NoError(t, err)
	assert.Equal(t, 1, child.Depth)

	grandchild, err := tree.SpawnChild(child.ID, "grandchild", "worker")
	require.NoError(t, err)
	assert.Equal(t, 2, grandchild.Depth)

	_, err = tree.SpawnChild(grandchild.ID, "too-deep", "worker")
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestDepthInvariant(t *testing.T) {
	tree := NewTree(DefaultMaxDepth)
	root, _ := tree.Spawn("root", "")
	a, _ := tree.SpawnChild(root.ID, "a", "")
	b, _ := tree.SpawnChild(a.ID, "b", "")

	for _, n := range []Node{root, a, b} {
		got, ok := tree.Find(n.ID)
		require.True(t, ok)
		if got.Parent == nil {
			assert.Equal(t, 0, got.Depth)
			continue
		}
		parent, ok := tree.Find(*got.Parent)
		require.True(t, ok)
		assert.Equal(t, parent.Depth+1, got.Depth)
	}
}

func TestLineageAndDescendants(t *testing.T) {
	tree := NewTree(DefaultMaxDepth)
	root, _ := tree.Spawn("root", "")
	a, _ := tree.SpawnChild(root.ID, "a", "")
	b, _ := tree.SpawnChild(root.ID, "b", "")
	c, _ := tree.SpawnChild(a.ID, "c", "")

	desc, err := tree.Descendants(root.ID)
	require.NoError(t, err)
	ids := map[Id]bool{}
	for _, n := range desc {
		ids[n.ID] = true
	}
	assert.True(t, ids[a.ID])
	assert.True(t, ids[b.ID])
	assert.True(t, ids[c.ID])

	path, err := tree.LineagePath(c.ID)
	require.NoError(t, err)
	assert.Equal(t, []Id{root.ID, a.ID, c.ID}, path)

	assert.True(t, tree.IsDescendantOf(c.ID, root.ID))
	assert.False(t, tree.IsDescendantOf(b.ID, a.ID))

	siblings, err := tree.Siblings(a.ID)
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, b.ID, siblings[0].ID)
}

func TestPruneRequiresTerminal(t *testing.T) {
	tree := NewTree(DefaultMaxDepth)
	root, _ := tree.Spawn("root", "")
	child, _ := tree.SpawnChild(root.ID, "child", "")

	err := tree.Prune(child.ID)
	assert.ErrorIs(t, err, ErrNotTerminal)

	require.NoError(t, tree.SetStatus(child.ID, StatusCompleted))
	require.NoError(t, tree.Prune(child.ID))

	_, ok := tree.Find(child.ID)
	assert.False(t, ok)
}

func TestDelegateParallelPreservesOrder(t *testing.T) {
	tree := NewTree(DefaultMaxDepth)
	root, _ := tree.Spawn("root", "")
	var children []Id
	var prompts []string
	for i := 0; i < 5; i++ {
		c, _ := tree.SpawnChild(root.ID, "w", "")
		children = append(children, c.ID)
		prompts = append(prompts, string(rune('a'+i)))
	}

	run := func(ctx context.Context, child Id, prompt string) (message.Message, error) {
		return message.NewMessage(message.RoleAssistant, time.Now(), message.TextPart{Text: prompt}), nil
	}

	results, err := tree.DelegateParallel(context.Background(), run, children, prompts, 2)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, prompts[i], r.Text())
	}
}

func TestRenderDeterministic(t *testing.T) {
	tree := NewTree(DefaultMaxDepth)
	root, _ := tree.Spawn("root", "")
	tree.SpawnChild(root.ID, "a", "")
	tree.SpawnChild(root.ID, "b", "")

	first := tree.Render()
	second := tree.Render()
	assert.Equal(t, first, second)
}

func TestRenderColorContainsSameStructureAsRender(t *testing.T) {
	tree := NewTree(DefaultMaxDepth)
	root, _ := tree.Spawn("root", "")
	tree.SpawnChild(root.ID, "a", "")

	plain := tree.Render()
	colored := tree.RenderColor()
	assert.Equal(t, strings.Count(plain, "\n"), strings.Count(colored, "\n"))
	assert.Contains(t, colored, "root")
	assert.Contains(t, colored, "a")
}
