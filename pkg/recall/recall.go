// Package recall implements the Recall Engine (spec §4.4): reciprocal
// rank fusion over up to four independent rankers — BM25 lexical search,
// a dense vector ranker, a personalized-PageRank graph walk over
// pkg/edgestore, and an epistemic (confidence x recency) ranker — with
// per-ranker weights learned online. The "ranker interface + registry +
// fuse" shape follows the teacher's pkg/databases registry
// (DatabaseProvider behind a common interface, swappable at runtime);
// the RRF fusion itself and the from-scratch BM25 have no teacher
// analogue and are plain Go, documented in DESIGN.md.
package recall

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arclane/conduit/pkg/bandit"
	"github.com/arclane/conduit/pkg/observability"
)

// Candidate is a unit of recallable content: a message, a procedure, a
// graph entity summary, whatever the caller indexes.
type Candidate struct {
	ID        string
	Content   string
	Embedding []float32
	Entities  []string
	Confidence float64
	RecordedAtUnix int64
}

// Ranker produces a ranked list of candidate IDs for a query. Rankers
// never see each other's output; fusion happens in Engine.
type Ranker interface {
	Name() string
	Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error)
}

// RRFConstant is the spec's fixed k in 1/(k+rank), per §4.4.
const RRFConstant = 60

// Engine fuses an arbitrary set of Rankers via reciprocal rank fusion,
// with weights sampled by a Thompson bandit so rankers that historically
// lead to accepted results are favored over time, per spec §4.4.
type Engine struct {
	rankers []Ranker
	weights *bandit.Bandit // reused as a generic per-arm Beta sampler, arms = ranker index
	names   []bandit.Strategy
}

// New builds an Engine over the given rankers. It creates no bandit, so
// every ranker weighs 1.0 until EnableLearnedWeights wires one; ranker
// names double as bandit "strategies" since bandit.Strategy is just a
// string type.
func New(rankers ...Ranker) *Engine {
	e := &Engine{rankers: rankers}
	return e
}

// Recall runs every available ranker, fuses by RRF, and returns the top-K
// distinct candidate IDs in fused-score order. Per spec §4.4, a ranker
// that errors is treated as unavailable: its weight is dropped and the
// rest renormalize implicitly (RRF sums are not normalized to begin
// with, so "renormalize" reduces to "skip its contribution").
func (e *Engine) Recall(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	type ranked struct {
		ranker Ranker
		order  []string
	}

	start := time.Now()
	var results []ranked
	var available []string
	for _, r := range e.rankers {
		ids, err := r.Rank(ctx, query, candidates, topK*4)
		if err != nil || len(ids) == 0 {
			continue
		}
		results = append(results, ranked{ranker: r, order: ids})
		available = append(available, r.Name())
	}
	observability.GetGlobalRecorder().RecordRecallQuery(strings.Join(available, "+"), time.Since(start))
	if len(results) == 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for _, res := range results {
		weight := e.weightFor(res.ranker.Name())
		for rank, id := range res.order {
			scores[id] += weight / float64(RRFConstant+rank+1)
		}
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > topK {
		ids = ids[:topK]
	}
	return ids, nil
}

// weightFor returns 1.0 until a bandit has been wired with Feedback, at
// which point it returns that ranker's learned mean reward, never zero
// (a ranker with no feedback yet contributes at full weight rather than
// being silently excluded).
func (e *Engine) weightFor(rankerName string) float64 {
	if e.weights == nil {
		return 1.0
	}
	st := e.weights.StatsFor(bandit.Strategy(rankerName))
	if st.Plays == 0 {
		return 1.0
	}
	return math.Max(0.05, st.CumulativeReward/float64(st.Plays))
}

// EnableLearnedWeights wires a Thompson bandit over the engine's current
// ranker set so subsequent Feedback calls shift fusion weights.
func (e *Engine) EnableLearnedWeights(seed int64) {
	e.weights = bandit.New(bandit.ModeThompson, seed)
}

// Feedback records that a recalled candidate was used/clicked (reward=1)
// or ignored (reward=0) for a given ranker, nudging its fusion weight.
func (e *Engine) Feedback(rankerName string, reward float64) {
	if e.weights == nil {
		return
	}
	e.weights.Update(bandit.Strategy(rankerName), bandit.Context{}, reward)
}
