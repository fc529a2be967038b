package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetRuleDenies(t *testing.T) {
	e := New(BudgetRule("budget"))
	res := e.Check(Action{Kind: ActionLLMCall}, Context{CumulativeCost: 1.0, CostBudget: 1.0})
	assert.Equal(t, Deny, res.Verdict)
	assert.Equal(t, "budget", res.RuleID)
}

func TestBudgetRuleAllowsUnderBudget(t *testing.T) {
	e := New(BudgetRule("budget"))
	res := e.Check(Action{Kind: ActionLLMCall}, Context{CumulativeCost: 0.5, CostBudget: 1.0})
	assert.Equal(t, Allow, res.Verdict)
}

func TestFirstDenyShortCircuits(t *testing.T) {
	var secondCalled bool
	e := New(
		Rule{ID: "first", Evaluate: func(Action, Context) (Verdict, string) { return Deny, "blocked" }},
		Rule{ID: "second", Evaluate: func(Action, Context) (Verdict, string) {
			secondCalled = true
			return Allow, ""
		}},
	)
	res := e.Check(Action{Kind: ActionShellExec}, Context{})
	assert.Equal(t, Deny, res.Verdict)
	assert.Equal(t, "first", res.RuleID)
	assert.False(t, secondCalled)
}

func TestWarningsAccumulate(t *testing.T) {
	e := New(
		Rule{ID: "w1", Evaluate: func(Action, Context) (Verdict, string) { return Warn, "r1" }},
		Rule{ID: "w2", Evaluate: func(Action, Context) (Verdict, string) { return Warn, "r2" }},
	)
	res := e.Check(Action{Kind: ActionShellExec}, Context{})
	assert.Equal(t, Warn, res.Verdict)
	assert.Len(t, res.Warnings, 2)
}

func TestPathPrefixRule(t *testing.T) {
	e := New(PathPrefixRule("paths", "/workspace"))

	denied := e.Check(Action{Kind: ActionFileWrite, Args: map[string]any{"path": "/etc/passwd"}}, Context{})
	assert.Equal(t, Deny, denied.Verdict)

	allowed := e.Check(Action{Kind: ActionFileWrite, Args: map[string]any{"path": "/workspace/a.txt"}}, Context{})
	assert.Equal(t, Allow, allowed.Verdict)
}

func TestDestructiveShellRuleWarns(t *testing.T) {
	e := New(DestructiveShellRule("destructive", []string{"rm -rf"}))
	res := e.Check(Action{Kind: ActionShellExec, Args: map[string]any{"command": "rm -rf /"}}, Context{})
	assert.Equal(t, Warn, res.Verdict)
}

func TestNoRuleFiresIsAllow(t *testing.T) {
	e := New()
	res := e.Check(Action{Kind: ActionToolCallForTest()}, Context{})
	assert.Equal(t, Allow, res.Verdict)
	assert.Empty(t, res.Warnings)
}

func ActionToolCallForTest() ActionKind { return ActionGenericTool }
