// Package provider defines the Stream Adapter contract (spec §4.8, §6):
// the Provider collaborator consumed by the turn loop, and the normalized
// stream-event shapes every concrete provider (an external, out-of-scope
// HTTP/SSE client per spec §1) must emit. Grounded on the teacher's
// pkg/llms/registry.go named-provider pattern and the response-aggregation
// shape of pkg/agent/llmagent/flow.go, kept here as the interface plus an
// in-memory fake for tests — vendor SDKs are explicitly out of scope.
package provider

import (
	"context"
	"errors"
	"iter"
)

// StopReason is the closed set of reasons a stream can end with, per
// spec §4.8.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopSequence     StopReason = "stop_sequence"
)

// ErrCancelled is returned when the stream is cancelled before a Done
// event is produced, per spec §4.8's contract.
var ErrCancelled = errors.New("provider: stream cancelled before done")

// EventKind is the closed set of normalized stream event kinds.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventText     EventKind = "text"
	EventThinking EventKind = "thinking"
	EventToolCall EventKind = "tool_call"
	EventUsage    EventKind = "usage"
	EventDone     EventKind = "done"
	EventError    EventKind = "error"
)

// Usage is token/cost accounting for one stream.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Event is one normalized event yielded by a provider stream. Exactly one
// of the payload fields is meaningful, selected by Kind — a closed sum type
// modeled as a single struct (rather than an interface hierarchy) because
// the caller always switches on Kind before touching a payload field, and a
// flat struct avoids an allocation per event on a hot streaming path.
type Event struct {
	Kind EventKind

	Text       string
	ToolCallID string
	ToolName   string
	ArgsJSON   string
	Usage      Usage

	StopReason StopReason
	Cost       float64

	Err error
}

// ThinkingOptions configures extended-thinking budgets, per spec §6.
type ThinkingOptions struct {
	Enabled      bool
	BudgetTokens int
}

// Options are the request-shaping knobs spec §6 recognizes.
type Options struct {
	MaxTokens   uint32
	Temperature float64
	Thinking    ThinkingOptions
}

// ToolSchema is the subset of a tool definition a provider needs to
// advertise function-calling capability to the underlying model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// RequestContext is everything a Provider needs to produce one stream:
// the assembled system prompt, ordered messages (opaque to this package —
// providers serialize pkg/message.Message however their wire format needs),
// and the tool schemas currently available.
type RequestContext struct {
	SystemPrompt string
	Messages     []any
	Tools        []ToolSchema
}

// Provider is the consumed Stream Adapter collaborator (spec §6): given a
// model id and request context, it streams normalized events. Start occurs
// exactly once; Done occurs exactly once and carries the stop reason and
// cost; Error terminates the sequence; cancellation before Done yields
// ErrCancelled.
type Provider interface {
	Stream(ctx context.Context, modelID string, reqCtx RequestContext, opts Options) iter.Seq2[Event, error]
}

// Aggregated is what Run assembles from a Provider's stream, in the turn
// loop's expected shape: concatenated text, concatenated thinking, ordered
// tool calls, the last usage report, the final stop reason, and cost. Run
// is the single place turn.Loop needs to touch a Provider, keeping the
// state-machine code itself free of event-by-event bookkeeping.
type Aggregated struct {
	Text       string
	Thinking   string
	ToolCalls  []ToolCallEvent
	Usage      Usage
	StopReason StopReason
	Cost       float64
}

// ToolCallEvent is one ToolCall stream event, captured for the turn loop to
// turn into a message.ToolCallPart.
type ToolCallEvent struct {
	CallID   string
	ToolName string
	ArgsJSON string
}

// Run drains seq, returning ErrCancelled if ctx is done before a Done event
// arrives, or the stream's own Error event's error otherwise.
func Run(ctx context.Context, seq iter.Seq2[Event, error]) (Aggregated, error) {
	var agg Aggregated
	var sawStart, sawDone bool

	for evt, err := range seq {
		if err != nil {
			return agg, err
		}
		switch evt.Kind {
		case EventStart:
			sawStart = true
		case EventText:
			agg.Text += evt.Text
		case EventThinking:
			agg.Thinking += evt.Text
		case EventToolCall:
			agg.ToolCalls = append(agg.ToolCalls, ToolCallEvent{
				CallID:   evt.ToolCallID,
				ToolName: evt.ToolName,
				ArgsJSON: evt.ArgsJSON,
			})
		case EventUsage:
			agg.Usage = evt.Usage
		case EventDone:
			agg.StopReason = evt.StopReason
			agg.Cost = evt.Cost
			sawDone = true
		case EventError:
			return agg, evt.Err
		}
		if ctx.Err() != nil && !sawDone {
			return agg, ErrCancelled
		}
	}

	_ = sawStart
	if !sawDone {
		return agg, ErrCancelled
	}
	return agg, nil
}
