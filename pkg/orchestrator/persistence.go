package orchestrator

import "github.com/arclane/conduit/pkg/bandit"

// Snapshot is the atomically-persisted state an Orchestrator autosaves
// every AutosaveInterval outcomes, per spec §4.13.
type Snapshot struct {
	StrategyTrials   map[string]int  `json:"strategy_trials"`
	StrategyFailures map[string]int  `json:"strategy_failures"`
	PendingTasks     []Task          `json:"pending_tasks"`
	Bandit           bandit.Snapshot `json:"bandit"`
}

// Snapshot captures the orchestrator's queue, strategy-trial counters, and
// the bandit's full arm state, including its active bans, for atomic
// persistence. No per-outcome performance history is recorded.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	trials := make(map[string]int, len(o.strategyTrials))
	for s, n := range o.strategyTrials {
		trials[string(s)] = n
	}
	failures := make(map[string]int, len(o.strategyFailures))
	for s, n := range o.strategyFailures {
		failures[string(s)] = n
	}
	pending := make([]Task, 0, len(o.queue))
	for _, t := range o.queue {
		if t.Status == TaskPending || t.Status == TaskRunning {
			pending = append(pending, *t)
		}
	}
	return Snapshot{
		StrategyTrials:   trials,
		StrategyFailures: failures,
		PendingTasks:     pending,
		Bandit:           o.bandit.Serialize(),
	}
}

// Restore replaces the orchestrator's queue, strategy-trial counters, and
// bandit model from a previously-captured Snapshot. seed reseeds the
// restored bandit's Thompson RNG (not itself part of the persisted state,
// per bandit.Deserialize).
func (o *Orchestrator) Restore(snap Snapshot, seed int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.strategyTrials = make(map[bandit.Strategy]int, len(snap.StrategyTrials))
	for s, n := range snap.StrategyTrials {
		o.strategyTrials[bandit.Strategy(s)] = n
	}
	o.strategyFailures = make(map[bandit.Strategy]int, len(snap.StrategyFailures))
	for s, n := range snap.StrategyFailures {
		o.strategyFailures[bandit.Strategy(s)] = n
	}

	o.byID = make(map[string]*Task, len(snap.PendingTasks))
	o.queue = o.queue[:0]
	for i := range snap.PendingTasks {
		t := snap.PendingTasks[i]
		o.byID[t.ID] = &t
		o.queue = append(o.queue, &t)
	}

	if len(snap.Bandit.PerArm) > 0 {
		o.bandit = bandit.Deserialize(snap.Bandit, seed)
	}
}
