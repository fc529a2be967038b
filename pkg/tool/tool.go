// Package tool defines the Tool collaborator interface consumed by the
// turn loop (spec §6) and implements the Tool Executor (spec §4.7): schema
// validation, handler dispatch, and the "never throws" contract that turns
// every failure mode into an is_error result instead of a panic or error
// return.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/arclane/conduit/pkg/cancel"
)

// Def mirrors an MCP tool descriptor's shape (name/description/schema)
// without implementing the MCP wire protocol, which is out of scope per
// spec §1 — only the capability-registry shape is reused.
type Def struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// ExecContext carries the per-invocation context a handler needs: the
// session it belongs to, the working directory tools resolve relative
// paths against, and a cancellation token derived from the owning turn.
type ExecContext struct {
	SessionID  string
	WorkingDir string
	Cancel     *cancel.Token
}

// Result is what a handler (or the executor itself, on a validation
// failure) returns for one invocation.
type Result struct {
	Content string
	IsError bool
}

// Handler is a tool implementation: a schema (for request validation and
// for surfacing to the provider as a ToolDef) plus an Execute function.
// Execute may return an error; the Executor turns it into an is_error
// Result rather than propagating it, per spec §4.7's "never throws".
type Handler interface {
	Definition() Def
	Execute(ctx context.Context, ectx ExecContext, args map[string]any) (string, error)
}

// ErrToolNotFound is the content-carrying sentinel used when Execute is
// asked for a name with no registered Handler.
var ErrToolNotFound = fmt.Errorf("tool: not found")

// Executor looks up and invokes named tools. It never panics or returns a
// Go error for an expected failure mode (missing tool, bad args, handler
// exception); those are all folded into Result.IsError so the turn loop can
// push them back into the conversation for the model to react to.
type Executor struct {
	handlers map[string]Handler
}

// NewExecutor builds an Executor over the given handlers, keyed by their
// own declared name.
func NewExecutor(handlers ...Handler) *Executor {
	e := &Executor{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		e.handlers[h.Definition().Name] = h
	}
	return e
}

// Register adds or replaces a handler after construction.
func (e *Executor) Register(h Handler) {
	e.handlers[h.Definition().Name] = h
}

// Definitions returns every registered tool's Def, for building the
// provider-facing tool list.
func (e *Executor) Definitions() []Def {
	defs := make([]Def, 0, len(e.handlers))
	for _, h := range e.handlers {
		defs = append(defs, h.Definition())
	}
	return defs
}

// Execute runs the named tool. Steps, per spec §4.7:
//  1. missing handler -> is_error with ErrToolNotFound's message
//  2. args fails validateArgs -> is_error before invocation
//  3. invoke handler with ectx.Cancel's context
//  4. handler error -> is_error carrying the message
//
// Execute returns only a Result; callers inspect Result.IsError. A nil
// ectx.Cancel runs the handler under ctx.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, ectx ExecContext) Result {
	h, ok := e.handlers[name]
	if !ok {
		return Result{Content: fmt.Sprintf("%s: %q", ErrToolNotFound, name), IsError: true}
	}

	if err := validateArgs(h.Definition(), args); err != nil {
		return Result{Content: fmt.Sprintf("tool: invalid arguments: %s", err), IsError: true}
	}

	runCtx := ctx
	if ectx.Cancel != nil {
		runCtx = ectx.Cancel.Context()
	}

	content, err := safeExecute(runCtx, h, ectx, args)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}
	}
	return Result{Content: content}
}

// safeExecute recovers a panicking handler, converting it into an error so
// Execute's "never throws" contract holds even against misbehaving tools.
func safeExecute(ctx context.Context, h Handler, ectx ExecContext, args map[string]any) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool: handler panicked: %v", r)
		}
	}()
	return h.Execute(ctx, ectx, args)
}

// validateArgs checks args against the handler's JSON schema: args must
// survive a JSON round trip and every required field must be present.
// Property types, enums and patterns are not checked.
func validateArgs(def Def, args map[string]any) error {
	if def.InputSchema == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments not JSON-serializable: %w", err)
	}
	var round map[string]any
	if err := json.Unmarshal(raw, &round); err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}
	for _, name := range def.InputSchema.Required {
		if _, ok := round[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}
	return nil
}

// Decode is a convenience used by handlers to map loosely-typed args into a
// strongly-typed struct, via mapstructure the way the rest of the stack
// decodes config and tool arguments.
func Decode[T any](args map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(args); err != nil {
		return out, err
	}
	return out, nil
}
