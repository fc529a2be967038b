// Package agent implements the agent tree: a forest of AgentNode values
// held in a flat arena and addressed by AgentId, so parent/child references
// never form pointer cycles and lineage walks are plain index lookups (see
// spec §9, "arena + index for the agent tree").
package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Status is the closed set of lifecycle states an AgentNode can be in.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusError     Status = "error"
)

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusError:
		return true
	}
	return false
}

// DefaultMaxDepth is MAX_AGENT_DEPTH's default per spec §6.
const DefaultMaxDepth = 5

// ErrDepthExceeded is returned by Spawn when the child's depth would exceed
// the tree's configured maximum.
var ErrDepthExceeded = errors.New("agent: max depth exceeded")

// ErrNotFound is returned when an AgentId does not resolve to a node.
var ErrNotFound = errors.New("agent: not found")

// ErrNotTerminal is returned by Prune when the target node is not in a
// terminal status.
var ErrNotTerminal = errors.New("agent: node is not terminal, cannot prune")

// Id identifies a node in a Tree's arena.
type Id string

// Node is the spec's AgentNode: a point in the tree, holding only ids of
// its parent and children so the arena owns all node lifetime.
type Node struct {
	ID        Id
	Purpose   string
	Depth     int
	Parent    *Id
	Children  []Id
	Status    Status
	ProfileID string
	CreatedAt time.Time
}

// Tree is an arena of Node values forming a forest: every root has a nil
// Parent, every non-root's Depth is Parent.Depth+1, and every Children
// entry resolves to a Node whose Parent points back.
type Tree struct {
	mu       sync.RWMutex
	nodes    map[Id]*Node
	roots    []Id
	maxDepth int
}

// NewTree creates an empty tree. maxDepth<=0 uses DefaultMaxDepth.
func NewTree(maxDepth int) *Tree {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tree{
		nodes:    make(map[Id]*Node),
		maxDepth: maxDepth,
	}
}

// Spawn creates a new root node (parent == nil) with depth 0.
func (t *Tree) Spawn(purpose, profileID string) (*Node, error) {
	return t.spawn(nil, purpose, profileID)
}

// SpawnChild creates a node under parent. It fails with ErrDepthExceeded if
// the child's depth would exceed the tree's maxDepth.
func (t *Tree) SpawnChild(parent Id, purpose, profileID string) (*Node, error) {
	return t.spawn(&parent, purpose, profileID)
}

func (t *Tree) spawn(parent *Id, purpose, profileID string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	depth := 0
	if parent != nil {
		p, ok := t.nodes[*parent]
		if !ok {
			return nil, fmt.Errorf("agent: spawn: parent %w", ErrNotFound)
		}
		depth = p.Depth + 1
		if depth > t.maxDepth {
			return nil, fmt.Errorf("%w: depth %d exceeds max %d", ErrDepthExceeded, depth, t.maxDepth)
		}
	}

	n := &Node{
		ID:        Id(uuid.NewString()),
		Purpose:   purpose,
		Depth:     depth,
		Parent:    parent,
		Status:    StatusIdle,
		ProfileID: profileID,
		CreatedAt: time.Now(),
	}
	t.nodes[n.ID] = n

	if parent == nil {
		t.roots = append(t.roots, n.ID)
	} else {
		p := t.nodes[*parent]
		p.Children = append(p.Children, n.ID)
	}
	return n, nil
}

// SetStatus transitions node id to status.
func (t *Tree) SetStatus(id Id, status Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("agent: set status: %w", ErrNotFound)
	}
	n.Status = status
	return nil
}

// Find returns a copy of the node with the given id.
func (t *Tree) Find(id Id) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Prune removes a node from the tree. The node must be in a terminal
// status and must have no children (children are pruned first).
func (t *Tree) Prune(id Id) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("agent: prune: %w", ErrNotFound)
	}
	if !n.Status.IsTerminal() {
		return ErrNotTerminal
	}
	if len(n.Children) > 0 {
		return fmt.Errorf("agent: prune: node %s still has %d children", id, len(n.Children))
	}

	if n.Parent == nil {
		t.roots = removeId(t.roots, id)
	} else {
		p := t.nodes[*n.Parent]
		p.Children = removeId(p.Children, id)
	}
	delete(t.nodes, id)
	return nil
}

func removeId(ids []Id, target Id) []Id {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Roots returns every root node, in spawn order.
func (t *Tree) Roots() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, *t.nodes[id])
	}
	return out
}

// Root returns the root of id's tree, walking Parent links.
func (t *Tree) Root(id Id) (Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("agent: root: %w", ErrNotFound)
	}
	for n.Parent != nil {
		n = t.nodes[*n.Parent]
	}
	return *n, nil
}

// Ancestors returns id's ancestors, nearest first, root last.
func (t *Tree) Ancestors(id Id) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("agent: ancestors: %w", ErrNotFound)
	}
	var out []Node
	for n.Parent != nil {
		n = t.nodes[*n.Parent]
		out = append(out, *n)
	}
	return out, nil
}

// Descendants returns every node beneath id, depth-first, pre-order.
func (t *Tree) Descendants(id Id) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.nodes[id]; !ok {
		return nil, fmt.Errorf("agent: descendants: %w", ErrNotFound)
	}
	var out []Node
	t.walk(id, func(n *Node) {
		if n.ID != id {
			out = append(out, *n)
		}
	})
	return out, nil
}

func (t *Tree) walk(id Id, visit func(*Node)) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	visit(n)
	for _, c := range n.Children {
		t.walk(c, visit)
	}
}

// Siblings returns id's siblings (same parent, excluding id itself).
func (t *Tree) Siblings(id Id) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("agent: siblings: %w", ErrNotFound)
	}
	var ids []Id
	if n.Parent == nil {
		ids = t.roots
	} else {
		ids = t.nodes[*n.Parent].Children
	}
	var out []Node
	for _, sid := range ids {
		if sid != id {
			out = append(out, *t.nodes[sid])
		}
	}
	return out, nil
}

// IsDescendantOf reports whether id is a (possibly indirect) descendant of
// ancestor.
func (t *Tree) IsDescendantOf(id, ancestor Id) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	for n.Parent != nil {
		if *n.Parent == ancestor {
			return true
		}
		n = t.nodes[*n.Parent]
	}
	return false
}

// LineagePath returns node ids from root to id inclusive.
func (t *Tree) LineagePath(id Id) ([]Id, error) {
	anc, err := t.Ancestors(id)
	if err != nil {
		return nil, err
	}
	path := make([]Id, 0, len(anc)+1)
	for i := len(anc) - 1; i >= 0; i-- {
		path = append(path, anc[i].ID)
	}
	path = append(path, id)
	return path, nil
}

// Render produces a deterministic ASCII tree of every root and its
// descendants, sorted by node id within each sibling group so repeated
// calls on an unchanged tree always print identically.
func (t *Tree) Render() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	roots := append([]Id(nil), t.roots...)
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	for _, r := range roots {
		t.render(&b, r, "", true)
	}
	return b.String()
}

func (t *Tree) render(b *strings.Builder, id Id, prefix string, isLast bool) {
	n := t.nodes[id]
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if prefix == "" {
		fmt.Fprintf(b, "%s (%s)\n", n.Purpose, n.Status)
	} else {
		fmt.Fprintf(b, "%s%s%s (%s)\n", prefix, connector, n.Purpose, n.Status)
	}

	childPrefix := prefix
	if prefix != "" {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	} else {
		childPrefix = "    "
	}

	children := append([]Id(nil), n.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	for i, c := range children {
		t.render(b, c, childPrefix, i == len(children)-1)
	}
}

// RenderColor is Render's terminal-facing twin: the same deterministic
// ASCII tree, with each node's status word colored by lifecycle outcome
// (running=yellow, completed=green, aborted/error=red, idle=plain) the
// way the teacher colors CLI output with fatih/color. Render itself stays
// plain so its output is diff-stable for tests and log capture.
func (t *Tree) RenderColor() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	roots := append([]Id(nil), t.roots...)
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	for _, r := range roots {
		t.renderColor(&b, r, "", true)
	}
	return b.String()
}

func (t *Tree) renderColor(b *strings.Builder, id Id, prefix string, isLast bool) {
	n := t.nodes[id]
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	status := colorizeStatus(n.Status)
	if prefix == "" {
		fmt.Fprintf(b, "%s (%s)\n", n.Purpose, status)
	} else {
		fmt.Fprintf(b, "%s%s%s (%s)\n", prefix, connector, n.Purpose, status)
	}

	childPrefix := prefix
	if prefix != "" {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	} else {
		childPrefix = "    "
	}

	children := append([]Id(nil), n.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	for i, c := range children {
		t.renderColor(b, c, childPrefix, i == len(children)-1)
	}
}

// colorizeStatus wraps a Status in the color its lifecycle outcome
// warrants, following the teacher's plain fatih/color.New(...).Sprint use
// (no global color.NoColor toggling here — callers piping to a file can
// set that themselves, same as the teacher's CLI does).
func colorizeStatus(s Status) string {
	switch s {
	case StatusRunning:
		return color.YellowString(string(s))
	case StatusCompleted:
		return color.GreenString(string(s))
	case StatusAborted, StatusError:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}
