package agent

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/arclane/conduit/pkg/message"
)

// Runner executes a single turn-loop run for a child agent given a prompt,
// returning its final assistant message. The turn loop implements this;
// agent only depends on the shape, keeping pkg/agent free of a pkg/turn
// import cycle.
type Runner func(ctx context.Context, child Id, prompt string) (message.Message, error)

// DefaultParallelism bounds delegate_parallel when the caller does not
// specify one.
const DefaultParallelism = 4

// Delegate runs child to completion via run, transitioning its status to
// Running before the call and to Completed or Error afterward.
func (t *Tree) Delegate(ctx context.Context, run Runner, child Id, prompt string) (message.Message, error) {
	if _, ok := t.Find(child); !ok {
		return message.Message{}, fmt.Errorf("agent: delegate: %w", ErrNotFound)
	}
	_ = t.SetStatus(child, StatusRunning)

	msg, err := run(ctx, child, prompt)
	if err != nil {
		_ = t.SetStatus(child, StatusError)
		return message.Message{}, err
	}
	_ = t.SetStatus(child, StatusCompleted)
	return msg, nil
}

// DelegateParallel runs each (children[i], prompts[i]) pair concurrently,
// bounded by parallelism (DefaultParallelism if <=0), and returns results in
// the same order as children regardless of completion order — callers that
// need deterministic merging across sibling agents (spec §5, "parents merge
// results deterministically by child spawn order") get it for free from the
// index-aligned return slice.
func (t *Tree) DelegateParallel(ctx context.Context, run Runner, children []Id, prompts []string, parallelism int) ([]message.Message, error) {
	if len(children) != len(prompts) {
		return nil, fmt.Errorf("agent: delegate_parallel: children/prompts length mismatch")
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	results := make([]message.Message, len(children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i := range children {
		i := i
		g.Go(func() error {
			msg, err := t.Delegate(gctx, run, children[i], prompts[i])
			if err != nil {
				return err
			}
			results[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// sortedIds returns a sorted copy of ids, for deterministic enumeration of
// a tree's node set.
func sortedIds(ids []Id) []Id {
	out := append([]Id(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
