// Package dag implements the DAG Engine (spec §4.14): workflow
// validation via three-colour DFS cycle detection, then Kahn's-algorithm
// topological-level execution with concurrent within-level dispatch and
// per-node timeout racing. Grounded on pkg/agent's errgroup-based
// DelegateParallel for the "bounded fan-out, first error wins" shape,
// generalized here to per-node timeouts and dependency-failure skipping.
package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Executor runs one node's work, given its dependencies' outputs keyed
// by node ID.
type Executor func(ctx context.Context, nodeID string, inputs map[string]any) (any, error)

// Node is one unit of work in a Workflow.
type Node struct {
	ID           string
	Label        string
	Dependencies []string
	Executor     Executor
	Timeout      time.Duration
}

// Workflow is the spec's DAG definition.
type Workflow struct {
	ID    string
	Name  string
	Nodes []Node
}

// Validation errors, per spec §4.14.
var (
	ErrEmptyWorkflow    = fmt.Errorf("dag: workflow has no nodes")
	ErrDuplicateID      = fmt.Errorf("dag: duplicate node id")
	ErrUnknownDependency = fmt.Errorf("dag: dependency references unknown node id")
	ErrSelfEdge         = fmt.Errorf("dag: node depends on itself")
	ErrCycle            = fmt.Errorf("dag: dependency cycle detected")
)

// Validate checks the workflow's structural invariants, per spec §4.14:
// non-empty, unique IDs, dependencies resolve, no self-edges, no cycles.
func Validate(w Workflow) error {
	if len(w.Nodes) == 0 {
		return ErrEmptyWorkflow
	}
	byID := make(map[string]Node, len(w.Nodes))
	for _, n := range w.Nodes {
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
		}
		byID[n.ID] = n
	}
	for _, n := range w.Nodes {
		for _, dep := range n.Dependencies {
			if dep == n.ID {
				return fmt.Errorf("%w: %s", ErrSelfEdge, n.ID)
			}
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, n.ID, dep)
			}
		}
	}
	return detectCycle(byID)
}

// color states for the 3-colour DFS cycle check.
const (
	white = 0
	gray  = 1
	black = 2
)

func detectCycle(byID map[string]Node) error {
	colors := make(map[string]int, len(byID))
	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = gray
		for _, dep := range byID[id].Dependencies {
			switch colors[dep] {
			case gray:
				return fmt.Errorf("%w: involving %s", ErrCycle, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		colors[id] = black
		return nil
	}
	for id := range byID {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Result is the spec's execution outcome.
type Result struct {
	Success  bool
	Outputs  map[string]any
	Errors   map[string]error
	Duration time.Duration
}

// ErrDependenciesFailed is the per-node error recorded when a node is
// skipped because a dependency failed or was itself skipped.
var ErrDependenciesFailed = fmt.Errorf("dag: dependencies failed or missing")

// Run executes w level by level via Kahn's algorithm: each level's nodes
// run concurrently (bounded by nothing beyond the level's own size, per
// spec §4.14 "within a level all nodes run concurrently"); a node
// missing a successful dependency is skipped with ErrDependenciesFailed
// rather than aborting the whole run.
func Run(ctx context.Context, w Workflow) (Result, error) {
	if err := Validate(w); err != nil {
		return Result{}, err
	}

	start := time.Now()
	byID := make(map[string]Node, len(w.Nodes))
	indegree := make(map[string]int, len(w.Nodes))
	dependents := make(map[string][]string)
	for _, n := range w.Nodes {
		byID[n.ID] = n
		indegree[n.ID] = len(n.Dependencies)
		for _, dep := range n.Dependencies {
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	outputs := make(map[string]any)
	errs := make(map[string]error)
	var mu sync.Mutex

	ready := levelZero(indegree)
	for len(ready) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		levelResults := make([]struct {
			id  string
			out any
			err error
		}, len(ready))

		for i, id := range ready {
			i, id := i, id
			g.Go(func() error {
				node := byID[id]

				mu.Lock()
				depsOK := true
				for _, dep := range node.Dependencies {
					if _, failed := errs[dep]; failed {
						depsOK = false
						break
					}
				}
				mu.Unlock()

				if !depsOK {
					levelResults[i] = struct {
						id  string
						out any
						err error
					}{id: id, err: ErrDependenciesFailed}
					return nil
				}

				mu.Lock()
				inputs := make(map[string]any, len(node.Dependencies))
				for _, dep := range node.Dependencies {
					inputs[dep] = outputs[dep]
				}
				mu.Unlock()

				out, err := runNode(gctx, node, inputs)
				levelResults[i] = struct {
					id  string
					out any
					err error
				}{id: id, out: out, err: err}
				return nil
			})
		}
		_ = g.Wait() // node errors are captured per-result, never aborts siblings

		var next []string
		mu.Lock()
		for _, r := range levelResults {
			if r.err != nil {
				errs[r.id] = r.err
			} else {
				outputs[r.id] = r.out
			}
			for _, dependent := range dependents[r.id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		mu.Unlock()
		ready = next
	}

	success := len(errs) == 0
	return Result{Success: success, Outputs: outputs, Errors: errs, Duration: time.Since(start)}, nil
}

func levelZero(indegree map[string]int) []string {
	var out []string
	for id, deg := range indegree {
		if deg == 0 {
			out = append(out, id)
		}
	}
	return out
}

// runNode races node.Executor against node.Timeout, per spec §4.14.
func runNode(ctx context.Context, node Node, inputs map[string]any) (any, error) {
	if node.Timeout <= 0 {
		return node.Executor(ctx, node.ID, inputs)
	}

	ctx, cancel := context.WithTimeout(ctx, node.Timeout)
	defer cancel()

	type res struct {
		out any
		err error
	}
	ch := make(chan res, 1)
	go func() {
		out, err := node.Executor(ctx, node.ID, inputs)
		ch <- res{out: out, err: err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("dag: node %s timed out: %w", node.ID, ctx.Err())
	}
}
