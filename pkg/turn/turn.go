// Package turn implements the Turn Loop (spec §4.10): the per-agent
// finite-state machine driving stream -> tools -> repeat under
// cancellation, policy, autonomy, and observer hooks. Modeled as an
// explicit state machine (spec §9's open question (c) / design note on
// "suspension at provider boundaries") rather than a coroutine generator,
// following the outer/inner loop shape of the teacher's
// pkg/agent/llmagent/flow.go Flow.Run/runOneStep/handleToolCalls.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arclane/conduit/pkg/bus"
	"github.com/arclane/conduit/pkg/cancel"
	"github.com/arclane/conduit/pkg/contextmgr"
	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/observability"
	"github.com/arclane/conduit/pkg/policy"
	"github.com/arclane/conduit/pkg/provider"
	"github.com/arclane/conduit/pkg/tool"
)

// State is the closed set of turn-loop states, per spec §4.10.
type State string

const (
	StateIdle           State = "idle"
	StateStreaming      State = "streaming"
	StateExecutingTools State = "executing_tools"
	StateDone           State = "done"
	StateAborted        State = "aborted"
	StateError          State = "error"
)

// DefaultMaxTurns is the turn-loop ceiling's default, per spec §6.
const DefaultMaxTurns = 25

// ErrCancelled is returned when the loop is aborted before completion; any
// prior assistant message is still appended and retained, per spec §7.
var ErrCancelled = errors.New("turn: cancelled")

// ErrMaxTurnsExceeded marks the case where max_turns was reached without a
// terminal stop reason; per spec §7, the loop still returns normally with
// a synthetic assistant message, so this is recorded on the Result rather
// than returned as an error.
var ErrMaxTurnsExceeded = errors.New("turn: max turns exceeded")

// AutonomyGate reports whether a named tool has been temporarily disabled
// after repeated failure (spec §4.10's "autonomy.is_disabled" check).
type AutonomyGate interface {
	IsDisabled(toolName string) bool
}

// Observer receives every tool execution outcome, used by the learning
// loop and observer guardians (spec §4.16, §4.15). Observers must not
// mutate agent state (spec §9), only append to their own state.
type Observer interface {
	ObserveTool(toolName string, args map[string]any, result tool.Result, latency time.Duration)
	ObserveTurn(state *message.AgentState, lastAssistant message.Message)
}

// Steering lets an external supervisor inject a system message before the
// next context build, per spec §9 open question (b): never mid-stream.
type Steering interface {
	// Next returns a steering message to inject, or ("", false) if none is
	// pending. Called once at the start of every turn, before that turn's
	// context build (so after the previous turn's tools have run).
	Next() (string, bool)
}

// Event is published to the bus at every turn-loop transition.
type Event struct {
	EventKind  string
	SessionID  string
	Turn       int
	ToolName   string
	StopReason provider.StopReason
}

func (e Event) Kind() string { return e.EventKind }

// Config wires a Loop's collaborators.
type Config struct {
	Provider    provider.Provider
	ModelID     string
	ContextMgr  *contextmgr.Manager
	Tools       *tool.Executor
	Policy      *policy.Evaluator
	Bus         *bus.Bus
	Autonomy    AutonomyGate
	Observers   []Observer
	Steering    Steering
	MaxTurns    int
	ToolSchemas []provider.ToolSchema
}

// Loop drives one agent's state machine to completion.
type Loop struct {
	cfg      Config
	recorder observability.Recorder
}

// New builds a Loop. cfg.MaxTurns<=0 uses DefaultMaxTurns.
func New(cfg Config) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Loop{cfg: cfg, recorder: observability.GetGlobalRecorder()}
}

// Result is what Run returns on normal completion.
type Result struct {
	FinalAssistant   message.Message
	StopReason       provider.StopReason
	Turns            int
	MaxTurnsExceeded bool
}

// Run drives state to completion per spec §4.10's algorithm, publishing
// turn:start / tool:start / tool:done / turn:done events to the bus at
// each transition.
func (l *Loop) Run(ctx context.Context, token *cancel.Token, sessionID string, state *message.AgentState) (Result, error) {
	cumulativeCost := 0.0
	filesModified := make([]string, 0)
	commandsRun := make([]string, 0)

	for turnNum := 1; turnNum <= l.cfg.MaxTurns; turnNum++ {
		if err := token.ThrowIfAborted(); err != nil {
			return Result{}, fmt.Errorf("%w: %s", ErrCancelled, token.Reason())
		}

		turnStart := time.Now()
		l.publish(Event{EventKind: "turn:start", SessionID: sessionID, Turn: turnNum})

		if l.cfg.Steering != nil {
			if msg, ok := l.cfg.Steering.Next(); ok {
				state.Append(message.NewMessage(message.RoleSystem, time.Now(), message.TextPart{Text: msg}))
			}
		}

		reqCtx := l.cfg.ContextMgr.Build(state, l.cfg.ToolSchemas)

		state.IsStreaming = true
		agg, err := provider.Run(token.Context(), l.cfg.Provider.Stream(token.Context(), l.cfg.ModelID, reqCtx, provider.Options{}))
		state.IsStreaming = false
		if err != nil {
			if errors.Is(err, provider.ErrCancelled) || token.IsAborted() {
				return Result{}, fmt.Errorf("%w: %s", ErrCancelled, token.Reason())
			}
			return Result{}, fmt.Errorf("turn: stream error: %w", err)
		}

		assistantParts := buildAssistantParts(agg)
		assistantMsg := message.NewMessage(message.RoleAssistant, time.Now(), assistantParts...)
		state.Append(assistantMsg)
		cumulativeCost += agg.Cost

		for _, obs := range l.cfg.Observers {
			obs.ObserveTurn(state, assistantMsg)
		}

		if len(agg.ToolCalls) == 0 || agg.StopReason != provider.StopToolUse {
			l.recorder.RecordTurn(string(agg.StopReason), time.Since(turnStart))
			l.publish(Event{EventKind: "turn:done", SessionID: sessionID, Turn: turnNum, StopReason: agg.StopReason})
			return Result{FinalAssistant: assistantMsg, StopReason: agg.StopReason, Turns: turnNum}, nil
		}

		resultParts := l.executeTools(ctx, token, sessionID, turnNum, agg, state, &filesModified, &commandsRun, cumulativeCost)
		state.Append(message.NewMessage(message.RoleToolResult, time.Now(), resultParts...))

		l.recorder.RecordTurn(string(provider.StopToolUse), time.Since(turnStart))
		l.publish(Event{EventKind: "turn:done", SessionID: sessionID, Turn: turnNum, StopReason: provider.StopToolUse})
	}

	if err := token.ThrowIfAborted(); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrCancelled, token.Reason())
	}

	synthetic := message.NewMessage(message.RoleAssistant, time.Now(),
		message.TextPart{Text: "[max turns reached]"})
	state.Append(synthetic)
	return Result{
		FinalAssistant:   synthetic,
		StopReason:       provider.StopMaxTokens,
		Turns:            l.cfg.MaxTurns,
		MaxTurnsExceeded: true,
	}, nil
}

// executeTools runs every tool call in agg, in order, sequentially — per
// spec §4.10/§5, tool calls within one turn never run concurrently, so
// their results stay matchable to the tool-call ids that produced them. An
// error executing one call never aborts the others.
func (l *Loop) executeTools(
	ctx context.Context,
	token *cancel.Token,
	sessionID string,
	turnNum int,
	agg provider.Aggregated,
	state *message.AgentState,
	filesModified, commandsRun *[]string,
	cumulativeCost float64,
) []message.Part {
	parts := make([]message.Part, 0, len(agg.ToolCalls))

	for _, call := range agg.ToolCalls {
		if err := token.ThrowIfAborted(); err != nil {
			// A cancelled token mid-tool-loop still needs to surface via
			// Run's own check at the top of the next turn; here we stop
			// issuing further calls but keep whatever results we have.
			break
		}

		l.publish(Event{EventKind: "tool:start", SessionID: sessionID, Turn: turnNum, ToolName: call.ToolName})

		args, parseErr := parseArgs(call.ArgsJSON)
		if parseErr != nil {
			parts = append(parts, message.ToolResultPart{
				CallID: call.CallID, ToolName: call.ToolName,
				Content: fmt.Sprintf("tool: invalid arguments json: %s", parseErr), IsError: true,
			})
			l.publish(Event{EventKind: "tool:error", SessionID: sessionID, Turn: turnNum, ToolName: call.ToolName})
			continue
		}

		if l.cfg.Policy != nil {
			verdict := l.cfg.Policy.Check(policy.Action{
				Kind:     policy.ActionGenericTool,
				ToolName: call.ToolName,
				Args:     args,
			}, policy.Context{
				FilesModified:  *filesModified,
				CommandsRun:    *commandsRun,
				CumulativeCost: cumulativeCost,
			})
			if verdict.Verdict == policy.Deny {
				parts = append(parts, message.ToolResultPart{
					CallID: call.CallID, ToolName: call.ToolName,
					Content: fmt.Sprintf("policy denied (%s): %s", verdict.RuleID, verdict.Reason), IsError: true,
				})
				l.publish(Event{EventKind: "tool:error", SessionID: sessionID, Turn: turnNum, ToolName: call.ToolName})
				continue
			}
		}

		if l.cfg.Autonomy != nil && l.cfg.Autonomy.IsDisabled(call.ToolName) {
			parts = append(parts, message.ToolResultPart{
				CallID: call.CallID, ToolName: call.ToolName,
				Content: fmt.Sprintf("tool %q temporarily disabled after repeated failure", call.ToolName), IsError: true,
			})
			l.publish(Event{EventKind: "tool:error", SessionID: sessionID, Turn: turnNum, ToolName: call.ToolName})
			continue
		}

		start := time.Now()
		res := l.cfg.Tools.Execute(ctx, call.ToolName, args, tool.ExecContext{SessionID: sessionID, Cancel: token})
		latency := time.Since(start)
		l.recorder.RecordToolCall(call.ToolName, latency, res.IsError)

		for _, obs := range l.cfg.Observers {
			obs.ObserveTool(call.ToolName, args, res, latency)
		}

		parts = append(parts, message.ToolResultPart{
			CallID: call.CallID, ToolName: call.ToolName, Content: res.Content, IsError: res.IsError,
		})
		l.publish(Event{EventKind: "tool:done", SessionID: sessionID, Turn: turnNum, ToolName: call.ToolName})
	}

	return parts
}

func (l *Loop) publish(e Event) {
	if l.cfg.Bus != nil {
		l.cfg.Bus.Publish(e)
	}
}

func buildAssistantParts(agg provider.Aggregated) []message.Part {
	var parts []message.Part
	if agg.Thinking != "" {
		parts = append(parts, message.ThinkingPart{Text: agg.Thinking})
	}
	if agg.Text != "" {
		parts = append(parts, message.TextPart{Text: agg.Text})
	}
	for _, tc := range agg.ToolCalls {
		args, _ := parseArgs(tc.ArgsJSON)
		parts = append(parts, message.ToolCallPart{CallID: tc.CallID, ToolName: tc.ToolName, Arguments: args})
	}
	return parts
}
