package provider

import (
	"context"
	"iter"
)

// Fake is an in-memory Provider returning a scripted sequence of Events per
// call, used by turn loop and orchestrator tests in place of a real vendor
// SDK (out of scope per spec §1). Grounded on the teacher's
// pkg/testutils-style fakes for llmagent.Flow tests.
type Fake struct {
	// Scripts is consumed one response per call to Stream, in order; the
	// last response repeats once exhausted so tests don't need to script
	// every turn of a long-running loop explicitly.
	Scripts []Response
	calls   int
}

// Response is one scripted reply: either a normal event sequence or a
// cancellation/error to inject mid-stream.
type Response struct {
	Events      []Event
	CancelAfter int // cancel ctx after this many events, 0 disables
	cancel      func()
}

func (f *Fake) Stream(ctx context.Context, modelID string, reqCtx RequestContext, opts Options) iter.Seq2[Event, error] {
	idx := f.calls
	if idx >= len(f.Scripts) {
		idx = len(f.Scripts) - 1
	}
	f.calls++
	resp := f.Scripts[idx]

	return func(yield func(Event, error) bool) {
		for i, evt := range resp.Events {
			if ctx.Err() != nil {
				return
			}
			if !yield(evt, nil) {
				return
			}
			if resp.CancelAfter > 0 && i+1 == resp.CancelAfter && resp.cancel != nil {
				resp.cancel()
			}
		}
	}
}

// Registry is a named-provider lookup, grounded on pkg/llms/registry.go's
// registration pattern, generalized from vendor-SDK clients to any
// Provider implementation (fakes included).
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register associates name with p.
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
