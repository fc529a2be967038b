// Package policy implements the Policy Evaluator (spec §4.6): a
// deterministic, side-effect-free ordered rule table producing an
// allow/warn/deny verdict for a proposed action. Grounded on the
// ordered-check, first-deny-wins shape of the teacher's approval gate in
// pkg/agent/llmagent/flow.go, generalized into a standalone rule table.
package policy

import (
	"fmt"
	"path/filepath"
	"time"
)

// ActionKind is the closed set of action categories a policy rule can
// evaluate, per spec §4.6.
type ActionKind string

const (
	ActionFileRead      ActionKind = "file_read"
	ActionFileWrite     ActionKind = "file_write"
	ActionFileDelete    ActionKind = "file_delete"
	ActionShellExec     ActionKind = "shell_exec"
	ActionNetworkReq    ActionKind = "network_request"
	ActionLLMCall       ActionKind = "llm_call"
	ActionGenericTool   ActionKind = "tool_call"
)

// Action is the proposed operation a rule evaluates.
type Action struct {
	Kind     ActionKind
	ToolName string
	Args     map[string]any
}

// Verdict is the closed set of evaluation outcomes.
type Verdict string

const (
	Allow Verdict = "allow"
	Warn  Verdict = "warn"
	Deny  Verdict = "deny"
)

// Context carries the state a rule evaluates an Action against.
type Context struct {
	ProjectRoot     string
	FilesModified   []string
	CommandsRun     []string
	CumulativeCost  float64
	CostBudget      float64
	Now             time.Time
}

// Result is what Evaluate returns: the final verdict, the reason from
// whichever rule produced it (the denying rule, or the last warning if the
// final verdict is a warn), and every warning accumulated along the way.
type Result struct {
	Verdict  Verdict
	Reason   string
	RuleID   string
	Warnings []Warning
}

// Warning is one accumulated warn verdict, kept even though a later rule
// may still deny — the caller (turn loop, policy-denied tool result) wants
// the full trail, not just the final word.
type Warning struct {
	RuleID string
	Reason string
}

// Rule is one entry in the ordered rule table.
type Rule struct {
	ID       string
	Category string
	Severity string
	Evaluate func(action Action, ctx Context) (Verdict, string)
}

// ErrBudgetExceeded is surfaced as a deny verdict when a rule compares
// ctx.CumulativeCost against ctx.CostBudget, per spec §7.
var ErrBudgetExceeded = fmt.Errorf("policy: budget exceeded")

// Evaluator holds an ordered rule table and evaluates actions against it.
type Evaluator struct {
	rules []Rule
}

// New builds an Evaluator with rules evaluated in the given order.
func New(rules ...Rule) *Evaluator {
	return &Evaluator{rules: rules}
}

// Check evaluates action against every rule in order. The first Deny
// short-circuits; Warns accumulate; if no rule fires, the verdict is
// Allow. Deterministic and side-effect free, per spec §4.6.
func (e *Evaluator) Check(action Action, ctx Context) Result {
	var warnings []Warning
	for _, r := range e.rules {
		verdict, reason := r.Evaluate(action, ctx)
		switch verdict {
		case Deny:
			return Result{Verdict: Deny, Reason: reason, RuleID: r.ID, Warnings: warnings}
		case Warn:
			warnings = append(warnings, Warning{RuleID: r.ID, Reason: reason})
		}
	}
	if len(warnings) > 0 {
		last := warnings[len(warnings)-1]
		return Result{Verdict: Warn, Reason: last.Reason, RuleID: last.RuleID, Warnings: warnings}
	}
	return Result{Verdict: Allow, Warnings: warnings}
}

// BudgetRule denies any action once ctx.CumulativeCost has reached
// ctx.CostBudget (a budget of 0 means unlimited). Grounded on spec §7's
// BudgetExceeded row.
func BudgetRule(id string) Rule {
	return Rule{
		ID:       id,
		Category: "cost",
		Severity: "critical",
		Evaluate: func(action Action, ctx Context) (Verdict, string) {
			if ctx.CostBudget > 0 && ctx.CumulativeCost >= ctx.CostBudget {
				return Deny, fmt.Sprintf("%s: cumulative cost %.4f reached budget %.4f", ErrBudgetExceeded, ctx.CumulativeCost, ctx.CostBudget)
			}
			return Allow, ""
		},
	}
}

// PathPrefixRule denies file_read/file_write/file_delete actions whose
// "path" argument resolves outside allowedPrefix, the filesystem-confinement
// rule the turn loop relies on to keep tools within a project root.
func PathPrefixRule(id, allowedPrefix string) Rule {
	return Rule{
		ID:       id,
		Category: "filesystem",
		Severity: "critical",
		Evaluate: func(action Action, ctx Context) (Verdict, string) {
			switch action.Kind {
			case ActionFileRead, ActionFileWrite, ActionFileDelete:
			default:
				return Allow, ""
			}
			path, _ := action.Args["path"].(string)
			if path == "" {
				return Allow, ""
			}
			path = filepath.Clean(path)
			if len(path) < len(allowedPrefix) || path[:len(allowedPrefix)] != allowedPrefix {
				return Deny, fmt.Sprintf("path %q outside allowed root %q", path, allowedPrefix)
			}
			return Allow, ""
		},
	}
}

// DestructiveShellRule warns on shell_exec actions whose command contains
// any of the given destructive substrings (e.g. "rm -rf", "DROP TABLE"),
// without outright denying them — the operator may still want the model to
// proceed with an accepted risk, just with the warning recorded.
func DestructiveShellRule(id string, patterns []string) Rule {
	return Rule{
		ID:       id,
		Category: "shell",
		Severity: "warning",
		Evaluate: func(action Action, ctx Context) (Verdict, string) {
			if action.Kind != ActionShellExec {
				return Allow, ""
			}
			cmd, _ := action.Args["command"].(string)
			for _, p := range patterns {
				if contains(cmd, p) {
					return Warn, fmt.Sprintf("shell command matches destructive pattern %q", p)
				}
			}
			return Allow, ""
		},
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
