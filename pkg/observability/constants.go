package observability

// Span and attribute names shared by tracer and recorder instrumentation,
// following the teacher's observability/constants.go convention of a flat
// namespaced const block rather than scattering literal strings.
const (
	AttrSessionID  = "session.id"
	AttrAgentID    = "agent.id"
	AttrTurn       = "turn.number"
	AttrToolName   = "tool.name"
	AttrStrategy   = "orchestrator.strategy"
	AttrTaskID     = "orchestrator.task_id"
	AttrGuardianID = "guardian.id"
	AttrSeverity   = "guardian.severity"

	SpanTurn           = "turn.run"
	SpanToolExecution  = "tool.execute"
	SpanOrchestratorOp = "orchestrator.dispatch"
	SpanRecall         = "recall.query"

	DefaultServiceName = "conduit"
)
