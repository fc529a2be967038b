// Package orchestrator implements the Orchestrator Scheduler (spec
// §4.13): a priority+FIFO task queue over a pool of agent slots, with
// per-ready-task strategy selection via pkg/bandit and six dispatch
// strategies. Grounded on pkg/agent's errgroup-based parallel dispatch
// (swarm/competitive strategies reuse that shape directly) and on the
// teacher's pkg/databases registry idiom for the slot pool (a named set
// of interchangeable workers selected by policy, not by static wiring).
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arclane/conduit/pkg/bandit"
	"github.com/arclane/conduit/pkg/observability"
)

// Priority is the spec's closed priority set, ordered most to least
// urgent.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// TaskStatus is a Task's lifecycle state.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Task is the spec's Task record.
type Task struct {
	ID           string
	Kind         string
	Description  string
	Priority     Priority
	Dependencies []string
	Deadline     *time.Time
	MaxRetries   int
	Status       TaskStatus
	Metadata     map[string]any

	retries int
}

// Slot is the spec's AgentSlot.
type Slot struct {
	ID               string
	Capabilities     []string
	Busy             bool
	RunningTaskCount int
	QueuedTaskCount  int
}

// Executor runs a task on a slot and returns its outcome, used by every
// dispatch strategy.
type Executor func(ctx context.Context, slot *Slot, task Task) (Outcome, error)

// Outcome is what an Executor reports back for reward computation.
type Outcome struct {
	Success           bool
	DurationMs        float64
	Cost              float64
	ExpectedDurationMs float64
	BudgetCost        float64
}

// RewardWeights are the spec's default (0.5, 0.3, 0.2) success/time/cost
// blend.
type RewardWeights struct {
	Success float64
	Time    float64
	Cost    float64
}

// DefaultRewardWeights matches spec §4.13.
func DefaultRewardWeights() RewardWeights {
	return RewardWeights{Success: 0.5, Time: 0.3, Cost: 0.2}
}

// Reward computes the spec's clamped outcome reward.
func (w RewardWeights) Reward(o Outcome) float64 {
	successTerm := 0.0
	if o.Success {
		successTerm = 1.0
	}
	timeTerm := clamp01(1 - safeDiv(o.DurationMs, o.ExpectedDurationMs))
	costTerm := clamp01(1 - safeDiv(o.Cost, o.BudgetCost))
	r := w.Success*successTerm + w.Time*timeTerm + w.Cost*costTerm
	return clamp01(r)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

// BanConfig governs the spec §4.13 strategy-ban mechanism.
type BanConfig struct {
	MinTasks         int
	FailureThreshold float64
	BanDuration      time.Duration
}

// DefaultBanConfig matches the spec's stated defaults.
func DefaultBanConfig() BanConfig {
	return BanConfig{MinTasks: 10, FailureThreshold: 0.5, BanDuration: 5 * time.Minute}
}

// Config wires an Orchestrator's collaborators and tunables.
type Config struct {
	RewardWeights    RewardWeights
	Ban              BanConfig
	BanditMode       bandit.Mode
	BanditSeed       int64
	Parallelism      int
	HierarchicalMaxDepth int
	AutosaveInterval int
}

// Orchestrator schedules Tasks onto Slots using Strategy Bandit to pick a
// dispatch strategy per ready task.
type Orchestrator struct {
	mu      sync.Mutex
	cfg     Config
	bandit  *bandit.Bandit
	slots   []*Slot
	queue   []*Task
	byID    map[string]*Task

	strategyTrials  map[bandit.Strategy]int
	strategyFailures map[bandit.Strategy]int
	outcomesSinceSave int
	clock   func() time.Time
	rrCursor int
	recorder observability.Recorder
}

// New builds an Orchestrator. cfg zero-values fall back to spec defaults.
func New(cfg Config, slots []*Slot, clock func() time.Time) *Orchestrator {
	if cfg.RewardWeights == (RewardWeights{}) {
		cfg.RewardWeights = DefaultRewardWeights()
	}
	if cfg.Ban == (BanConfig{}) {
		cfg.Ban = DefaultBanConfig()
	}
	if cfg.BanditMode == "" {
		cfg.BanditMode = bandit.ModeThompson
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.HierarchicalMaxDepth <= 0 {
		cfg.HierarchicalMaxDepth = 3
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = 10
	}
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		cfg:              cfg,
		bandit:           bandit.New(cfg.BanditMode, cfg.BanditSeed),
		slots:            slots,
		byID:             make(map[string]*Task),
		strategyTrials:   make(map[bandit.Strategy]int),
		strategyFailures: make(map[bandit.Strategy]int),
		clock:            clock,
		recorder:         observability.GetGlobalRecorder(),
	}
}

// Submit enqueues a task, priority-then-FIFO ordered.
func (o *Orchestrator) Submit(t Task) {
	o.mu.Lock()
	defer o.mu.Unlock()

	t.Status = TaskPending
	o.byID[t.ID] = &t
	o.queue = append(o.queue, o.byID[t.ID])
	sort.SliceStable(o.queue, func(i, j int) bool { return o.queue[i].Priority < o.queue[j].Priority })
}

// ready returns queued tasks whose dependencies have all completed
// successfully.
func (o *Orchestrator) ready() []*Task {
	var out []*Task
	for _, t := range o.queue {
		if t.Status != TaskPending {
			continue
		}
		eligible := true
		for _, dep := range t.Dependencies {
			depTask, ok := o.byID[dep]
			if !ok || depTask.Status != TaskCompleted {
				eligible = false
				break
			}
		}
		if eligible {
			out = append(out, t)
		}
	}
	return out
}

// contextVector builds the LinUCB feature vector for the current system
// state, per spec §4.12.
func (o *Orchestrator) contextVector(task Task) bandit.Context {
	complexity := complexityHint(task.Description)
	agentCountNorm := clamp01(float64(len(o.slots)) / 16.0)
	memoryPressure := 0.0 // wired by callers that track context-manager budget usage
	avgLatencyNorm := 0.0
	errorRate := o.globalFailureRate()
	return bandit.NewContext(complexity, agentCountNorm, memoryPressure, avgLatencyNorm, errorRate)
}

func complexityHint(description string) float64 {
	words := len(strings.Fields(description))
	return clamp01(float64(words) / 50.0)
}

func (o *Orchestrator) globalFailureRate() float64 {
	var trials, failures int
	for s, t := range o.strategyTrials {
		trials += t
		failures += o.strategyFailures[s]
	}
	if trials == 0 {
		return 0
	}
	return float64(failures) / float64(trials)
}

// RunOnce dispatches every currently-ready task once, using Strategy
// Bandit to choose a dispatch strategy per task, and records outcomes
// back into the bandit and ban tracker.
func (o *Orchestrator) RunOnce(ctx context.Context, exec Executor) error {
	o.mu.Lock()
	readyTasks := o.ready()
	o.mu.Unlock()

	for _, task := range readyTasks {
		if err := o.dispatchOne(ctx, exec, task); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) dispatchOne(ctx context.Context, exec Executor, task *Task) error {
	o.mu.Lock()
	now := o.clock().UnixMilli()
	strategy, err := o.bandit.Select(o.contextVector(*task), now)
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("orchestrator: select strategy: %w", err)
	}

	task.Status = TaskRunning
	var outcome Outcome
	var dispatchErr error
	dispatchStart := o.clock()

	switch strategy {
	case bandit.RoundRobin:
		outcome, dispatchErr = o.dispatchRoundRobin(ctx, exec, *task)
	case bandit.LeastLoaded:
		outcome, dispatchErr = o.dispatchLeastLoaded(ctx, exec, *task)
	case bandit.Specialized:
		outcome, dispatchErr = o.dispatchSpecialized(ctx, exec, *task)
	case bandit.Hierarchical:
		outcome, dispatchErr = o.dispatchHierarchical(ctx, exec, *task, 0)
	case bandit.Swarm:
		outcome, dispatchErr = o.dispatchSwarm(ctx, exec, *task)
	case bandit.Competitive:
		outcome, dispatchErr = o.dispatchCompetitive(ctx, exec, *task)
	default:
		outcome, dispatchErr = o.dispatchRoundRobin(ctx, exec, *task)
	}

	if dispatchErr != nil || !outcome.Success {
		task.Status = TaskFailed
		if task.retries < task.MaxRetries {
			task.retries++
			task.Status = TaskPending
		}
	} else {
		task.Status = TaskCompleted
	}

	o.recorder.RecordDispatch(string(strategy), o.clock().Sub(dispatchStart), outcome.Success)
	o.recordOutcome(strategy, task.ID, outcome)
	return nil
}

func (o *Orchestrator) recordOutcome(strategy bandit.Strategy, taskID string, outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	reward := o.cfg.RewardWeights.Reward(outcome)
	ctxVec := o.contextVector(*o.byID[taskID])
	o.bandit.Update(strategy, ctxVec, reward)
	o.recorder.RecordReward(string(strategy), reward)

	o.strategyTrials[strategy]++
	if !outcome.Success {
		o.strategyFailures[strategy]++
	}
	o.maybeApplyBan(strategy)

	o.outcomesSinceSave++
	if o.outcomesSinceSave >= o.cfg.AutosaveInterval {
		o.outcomesSinceSave = 0
		// Autosave hook: callers poll Snapshot() on this boundary via
		// AutosavePending(), keeping the orchestrator itself free of any
		// concrete persistence backend.
	}
}

// AutosavePending reports whether an autosave boundary was just crossed,
// letting the caller persist a Snapshot without this package depending
// on pkg/session or pkg/store directly.
func (o *Orchestrator) AutosavePending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomesSinceSave == 0
}

func (o *Orchestrator) maybeApplyBan(strategy bandit.Strategy) {
	trials := o.strategyTrials[strategy]
	if trials < o.cfg.Ban.MinTasks {
		return
	}
	failureRate := float64(o.strategyFailures[strategy]) / float64(trials)
	if failureRate > o.cfg.Ban.FailureThreshold {
		now := o.clock()
		o.bandit.Ban(strategy, "failure rate exceeded threshold",
			now.UnixMilli(), now.Add(o.cfg.Ban.BanDuration).UnixMilli(), failureRate)
	}
}

// dispatchRoundRobin implements spec §4.13's round-robin strategy.
func (o *Orchestrator) dispatchRoundRobin(ctx context.Context, exec Executor, task Task) (Outcome, error) {
	o.mu.Lock()
	if len(o.slots) == 0 {
		o.mu.Unlock()
		return Outcome{}, fmt.Errorf("orchestrator: no slots available")
	}
	slot := o.slots[o.rrCursor%len(o.slots)]
	o.rrCursor++
	o.mu.Unlock()
	return runOnSlot(ctx, exec, slot, task)
}

// dispatchLeastLoaded implements spec §4.13's least-loaded strategy.
func (o *Orchestrator) dispatchLeastLoaded(ctx context.Context, exec Executor, task Task) (Outcome, error) {
	o.mu.Lock()
	if len(o.slots) == 0 {
		o.mu.Unlock()
		return Outcome{}, fmt.Errorf("orchestrator: no slots available")
	}
	best := o.slots[0]
	for _, s := range o.slots[1:] {
		if s.RunningTaskCount < best.RunningTaskCount ||
			(s.RunningTaskCount == best.RunningTaskCount && s.QueuedTaskCount < best.QueuedTaskCount) {
			best = s
		}
	}
	o.mu.Unlock()
	return runOnSlot(ctx, exec, best, task)
}

// dispatchSpecialized implements spec §4.13's specialized strategy:
// maximize Jaccard overlap between description-derived capability hints
// and slot capabilities.
func (o *Orchestrator) dispatchSpecialized(ctx context.Context, exec Executor, task Task) (Outcome, error) {
	hints := capabilityHints(task.Description)

	o.mu.Lock()
	if len(o.slots) == 0 {
		o.mu.Unlock()
		return Outcome{}, fmt.Errorf("orchestrator: no slots available")
	}
	best := o.slots[0]
	bestScore := -1.0
	for _, s := range o.slots {
		score := jaccard(hints, toSet(s.Capabilities))
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	o.mu.Unlock()
	return runOnSlot(ctx, exec, best, task)
}

func runOnSlot(ctx context.Context, exec Executor, slot *Slot, task Task) (Outcome, error) {
	slot.Busy = true
	slot.RunningTaskCount++
	defer func() {
		slot.RunningTaskCount--
		slot.Busy = slot.RunningTaskCount > 0
	}()
	return exec(ctx, slot, task)
}

// capabilityKeywords is the keyword table used to derive capability hints from
// a free-text task description, per spec §4.13's "specialized" strategy.
var capabilityKeywords = map[string][]string{
	"code":     {"code", "function", "refactor", "implement", "bug", "compile"},
	"search":   {"search", "find", "grep", "lookup", "query"},
	"write":    {"write", "draft", "compose", "document", "report"},
	"web":      {"web", "browser", "url", "fetch", "http", "page"},
	"data":     {"data", "csv", "table", "database", "sql"},
	"review":   {"review", "audit", "verify", "check", "inspect"},
	"planning": {"plan", "schedule", "coordinate", "decompose"},
}

// capabilityHints extracts a set of capability tags from a task
// description by keyword membership, per spec §4.13.
func capabilityHints(description string) map[string]struct{} {
	lower := strings.ToLower(description)
	out := make(map[string]struct{})
	for capability, keywords := range capabilityKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out[capability] = struct{}{}
				break
			}
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[strings.ToLower(it)] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// decompositionSeparators are the "then" forms that split a task
// description into sub-task clauses for the hierarchical strategy; a
// plain "and" is not a separator.
var decompositionSeparators = []string{" then ", " and then ", ", then ", "; then "}

// decompose splits a description into ordered sub-task clauses. A
// description with no recognized separator decomposes to itself alone,
// so callers always get at least one clause.
func decompose(description string) []string {
	lower := strings.ToLower(description)
	cut := -1
	sepLen := 0
	for _, sep := range decompositionSeparators {
		if idx := strings.Index(lower, sep); idx != -1 && (cut == -1 || idx < cut) {
			cut = idx
			sepLen = len(sep)
		}
	}
	if cut == -1 {
		return []string{description}
	}
	head := strings.TrimSpace(description[:cut])
	tail := strings.TrimSpace(description[cut+sepLen:])
	return append([]string{head}, decompose(tail)...)
}

// dispatchHierarchical implements spec §4.13's hierarchical strategy:
// decompose the description on "then" into ordered sub-tasks, recursing
// up to HierarchicalMaxDepth, dispatch the sub-tasks via least-loaded one
// after another, stopping at the first failed one, and fold the outcomes.
// Sub-tasks never run in parallel, and "and" does not split a description.
func (o *Orchestrator) dispatchHierarchical(ctx context.Context, exec Executor, task Task, depth int) (Outcome, error) {
	clauses := decompose(task.Description)
	if depth >= o.cfg.HierarchicalMaxDepth || len(clauses) <= 1 {
		return o.dispatchLeastLoaded(ctx, exec, task)
	}

	var combined Outcome
	combined.Success = true
	for i, clause := range clauses {
		sub := task
		sub.ID = fmt.Sprintf("%s.%d", task.ID, i)
		sub.Description = clause
		out, err := o.dispatchHierarchical(ctx, exec, sub, depth+1)
		if err != nil {
			return Outcome{}, err
		}
		combined.Success = combined.Success && out.Success
		combined.DurationMs += out.DurationMs
		combined.Cost += out.Cost
		combined.ExpectedDurationMs += out.ExpectedDurationMs
		combined.BudgetCost += out.BudgetCost
		if !out.Success {
			break
		}
	}
	return combined, nil
}

// dispatchSwarm implements spec §4.13's swarm strategy: every slot works
// the same task concurrently against a shared scratchpad, and their
// outcomes are folded by foldSwarmOutcomes (durations, costs and budgets
// summed, the largest expected duration kept). Success requires at least
// one slot to succeed.
func (o *Orchestrator) dispatchSwarm(ctx context.Context, exec Executor, task Task) (Outcome, error) {
	o.mu.Lock()
	slots := append([]*Slot(nil), o.slots...)
	o.mu.Unlock()
	if len(slots) == 0 {
		return Outcome{}, fmt.Errorf("orchestrator: no slots available")
	}

	scratchpad := &sync.Map{}
	task.Metadata = mergeMetadata(task.Metadata, map[string]any{"scratchpad": scratchpad})

	g, gctx := errgroup.WithContext(ctx)
	outcomes := make([]Outcome, len(slots))
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			out, err := runOnSlot(gctx, exec, slot, task)
			if err == nil {
				outcomes[i] = out
			}
			return nil // swarm tolerates individual member failure
		})
	}
	_ = g.Wait()

	return foldSwarmOutcomes(outcomes), nil
}

func mergeMetadata(existing map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(extra))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func foldSwarmOutcomes(outcomes []Outcome) Outcome {
	var folded Outcome
	anySuccess := false
	for _, o := range outcomes {
		if o.Success {
			anySuccess = true
		}
		folded.DurationMs += o.DurationMs
		folded.Cost += o.Cost
		if o.ExpectedDurationMs > folded.ExpectedDurationMs {
			folded.ExpectedDurationMs = o.ExpectedDurationMs
		}
		folded.BudgetCost += o.BudgetCost
	}
	folded.Success = anySuccess
	return folded
}

// dispatchCompetitive implements spec §4.13's competitive strategy: race
// k slots against the same task, take the first success, cancel the
// rest. Per spec §9 open question (a), when two slots report success in
// the same tick the slot with the lower index in the configured slot
// list wins — the drain below collects every racer already waiting on
// the channel before deciding, so simultaneous arrivals are resolved by
// slot order rather than goroutine-scheduling order.
func (o *Orchestrator) dispatchCompetitive(ctx context.Context, exec Executor, task Task) (Outcome, error) {
	o.mu.Lock()
	slots := append([]*Slot(nil), o.slots...)
	o.mu.Unlock()
	if len(slots) == 0 {
		return Outcome{}, fmt.Errorf("orchestrator: no slots available")
	}
	slotIndex := make(map[*Slot]int, len(slots))
	for i, s := range slots {
		slotIndex[s] = i
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type racer struct {
		slot *Slot
		out  Outcome
		err  error
	}
	results := make(chan racer, len(slots))
	for _, slot := range slots {
		slot := slot
		go func() {
			out, err := runOnSlot(raceCtx, exec, slot, task)
			select {
			case results <- racer{slot: slot, out: out, err: err}:
			case <-raceCtx.Done():
			}
		}()
	}

	var last racer
	for i := 0; i < len(slots); i++ {
		select {
		case r := <-results:
			batch := []racer{r}
		drain:
			for {
				select {
				case extra := <-results:
					batch = append(batch, extra)
				default:
					break drain
				}
			}
			sort.SliceStable(batch, func(a, b int) bool {
				return slotIndex[batch[a].slot] < slotIndex[batch[b].slot]
			})
			for _, candidate := range batch {
				last = candidate
				if candidate.err == nil && candidate.out.Success {
					cancel()
					return candidate.out, nil
				}
			}
			i += len(batch) - 1
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
	return last.out, last.err
}
