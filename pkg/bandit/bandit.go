// Package bandit implements the Strategy Bandit (spec §4.12): a contextual
// multi-armed bandit over the six orchestration strategies, selectable at
// runtime between UCB1, Thompson sampling, and LinUCB. No direct teacher
// analogue exists in the pack; the "named strategy + factory + stats" idiom
// follows pkg/reasoning/chain_of_thought_strategy.go's shape, and the
// linear algebra is plain Go (documented stdlib use in DESIGN.md — a 6x6
// Gauss-Jordan solve does not warrant a matrix library dependency).
package bandit

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Strategy is the closed set of six orchestration formations spec §2 names.
type Strategy string

const (
	RoundRobin   Strategy = "round_robin"
	LeastLoaded  Strategy = "least_loaded"
	Specialized  Strategy = "specialized"
	Hierarchical Strategy = "hierarchical"
	Swarm        Strategy = "swarm"
	Competitive  Strategy = "competitive"
)

// AllStrategies lists the six arms in a fixed, deterministic order so
// iteration order never depends on map ordering.
var AllStrategies = []Strategy{RoundRobin, LeastLoaded, Specialized, Hierarchical, Swarm, Competitive}

// Mode selects the bandit's selection algorithm.
type Mode string

const (
	ModeUCB1     Mode = "ucb1"
	ModeThompson Mode = "thompson"
	ModeLinUCB   Mode = "linucb"
)

// ContextDim is LinUCB's context vector dimensionality, per spec §4.12.
const ContextDim = 6

// Context is LinUCB's per-decision feature vector:
// [1, complexity, agent_count_norm, memory_pressure, avg_latency_norm, error_rate].
type Context [ContextDim]float64

// NewContext builds a Context from the named features, fixing the leading
// bias term to 1.
func NewContext(complexity, agentCountNorm, memoryPressure, avgLatencyNorm, errorRate float64) Context {
	return Context{1, complexity, agentCountNorm, memoryPressure, avgLatencyNorm, errorRate}
}

// Stats is the spec's StrategyStats: per-arm play/reward bookkeeping for
// UCB1 and Thompson, plus LinUCB's per-arm covariance matrix and vector.
type Stats struct {
	Plays            int
	CumulativeReward float64
	Alpha            float64 // Thompson: successes prior
	Beta             float64 // Thompson: failures prior
	A                [ContextDim][ContextDim]float64
	B                [ContextDim]float64
}

func newStats() Stats {
	s := Stats{Alpha: 1, Beta: 1}
	for i := 0; i < ContextDim; i++ {
		s.A[i][i] = 1
	}
	return s
}

func (s Stats) mean() float64 {
	if s.Plays == 0 {
		return 0
	}
	return s.CumulativeReward / float64(s.Plays)
}

// Ban records a temporary exclusion of a strategy from selection, per
// spec §4.13's self-healing ban mechanism.
type Ban struct {
	Strategy    Strategy
	Reason      string
	BannedAt    int64 // unix millis, caller-supplied (bandit does not call time.Now)
	ExpiresAt   int64
	FailureRate float64
}

// Bandit holds per-arm Stats and active bans, selectable under any of the
// three modes.
type Bandit struct {
	mode  Mode
	stats map[Strategy]*Stats
	bans  map[Strategy]Ban
	rng   *rand.Rand
}

// New builds a Bandit in the given mode. seed makes Thompson sampling
// reproducible (spec §8 property 6: "Thompson is seed-deterministic").
func New(mode Mode, seed int64) *Bandit {
	b := &Bandit{
		mode:  mode,
		stats: make(map[Strategy]*Stats, len(AllStrategies)),
		bans:  make(map[Strategy]Ban),
		rng:   rand.New(rand.NewSource(seed)),
	}
	for _, s := range AllStrategies {
		st := newStats()
		b.stats[s] = &st
	}
	return b
}

// Ban excludes strategy from selection until nowMillis >= expiresAtMillis.
func (b *Bandit) Ban(strategy Strategy, reason string, nowMillis, expiresAtMillis int64, failureRate float64) {
	b.bans[strategy] = Ban{Strategy: strategy, Reason: reason, BannedAt: nowMillis, ExpiresAt: expiresAtMillis, FailureRate: failureRate}
}

// Unban immediately lifts a ban.
func (b *Bandit) Unban(strategy Strategy) {
	delete(b.bans, strategy)
}

// ActiveBans returns every currently-active ban given nowMillis, expiring
// (and removing) any whose window has elapsed.
func (b *Bandit) ActiveBans(nowMillis int64) []Ban {
	var active []Ban
	for s, ban := range b.bans {
		if nowMillis >= ban.ExpiresAt {
			delete(b.bans, s)
			continue
		}
		active = append(active, ban)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Strategy < active[j].Strategy })
	return active
}

// candidates returns the arms eligible for selection at nowMillis: every
// strategy not currently banned. If all are banned, round-robin is
// returned alone as the spec's fallback (§4.13).
func (b *Bandit) candidates(nowMillis int64) []Strategy {
	b.ActiveBans(nowMillis) // prune expired bans as a side effect
	var out []Strategy
	for _, s := range AllStrategies {
		if _, banned := b.bans[s]; !banned {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []Strategy{RoundRobin}
	}
	return out
}

// ErrNoArms is returned only in the boundary case where no candidate arm
// exists; candidates always falls back to round-robin, so Select does not
// return it in practice.
var ErrNoArms = fmt.Errorf("bandit: no candidate arms")

// Select picks a strategy under the configured mode and context, among
// non-banned arms. Deterministic for UCB1/LinUCB given identical
// (stats, context); seed-deterministic for Thompson (spec §8 property 6).
func (b *Bandit) Select(ctx Context, nowMillis int64) (Strategy, error) {
	candidates := b.candidates(nowMillis)
	if len(candidates) == 0 {
		return "", ErrNoArms
	}

	switch b.mode {
	case ModeUCB1:
		return b.selectUCB1(candidates), nil
	case ModeThompson:
		return b.selectThompson(candidates), nil
	case ModeLinUCB:
		return b.selectLinUCB(candidates, ctx), nil
	default:
		return b.selectThompson(candidates), nil
	}
}

// selectUCB1 implements spec §4.12's UCB1 rule: untried arms (plays==0)
// are tried first, in AllStrategies order; otherwise the arm maximizing
// mean + sqrt(2)*sqrt(ln(N)/n_a) wins, ties broken by lower play count.
func (b *Bandit) selectUCB1(candidates []Strategy) Strategy {
	var totalPlays int
	for _, s := range candidates {
		totalPlays += b.stats[s].Plays
	}

	for _, s := range candidates {
		if b.stats[s].Plays == 0 {
			return s
		}
	}

	const c = math.Sqrt2
	best := candidates[0]
	bestScore := math.Inf(-1)
	for _, s := range candidates {
		st := b.stats[s]
		score := st.mean() + c*math.Sqrt(math.Log(float64(totalPlays))/float64(st.Plays))
		if score > bestScore || (score == bestScore && st.Plays < b.stats[best].Plays) {
			bestScore = score
			best = s
		}
	}
	return best
}

// selectThompson samples Beta(alpha, beta) per candidate arm and returns
// the argmax, ties broken by lower play count.
func (b *Bandit) selectThompson(candidates []Strategy) Strategy {
	best := candidates[0]
	bestSample := -1.0
	for _, s := range candidates {
		st := b.stats[s]
		sample := sampleBeta(b.rng, st.Alpha, st.Beta)
		if sample > bestSample || (sample == bestSample && st.Plays < b.stats[best].Plays) {
			bestSample = sample
			best = s
		}
	}
	return best
}

// selectLinUCB implements spec §4.12's LinUCB rule:
// theta_a = A_a^-1 b_a; score(a) = theta_a.x + alpha*sqrt(x.A_a^-1.x), alpha=1.
func (b *Bandit) selectLinUCB(candidates []Strategy, x Context) Strategy {
	const alpha = 1.0
	best := candidates[0]
	bestScore := math.Inf(-1)
	for _, s := range candidates {
		st := b.stats[s]
		theta, z := linucbSolve(st.A, st.B, x)
		mean := dot(theta, x)
		bonus := alpha * math.Sqrt(math.Max(0, dot(x, z)))
		score := mean + bonus
		if score > bestScore || (score == bestScore && st.Plays < b.stats[best].Plays) {
			bestScore = score
			best = s
		}
	}
	return best
}

// Update records the outcome of playing strategy with context x and
// reward r (spec §8 property 8 clamps reward to [0,1] upstream; Update
// itself does not re-clamp, trusting the caller).
func (b *Bandit) Update(strategy Strategy, x Context, r float64) {
	st, ok := b.stats[strategy]
	if !ok {
		return
	}
	st.Plays++
	st.CumulativeReward += r
	st.Alpha += r
	st.Beta += 1 - r

	// A_a += x x^T; b_a += r*x — atomic relative to Select under the
	// caller's external lock (spec §5: "selection+update atomic per arm").
	for i := 0; i < ContextDim; i++ {
		for j := 0; j < ContextDim; j++ {
			st.A[i][j] += x[i] * x[j]
		}
		st.B[i] += r * x[i]
	}
}

// StatsFor returns a copy of strategy's current Stats.
func (b *Bandit) StatsFor(strategy Strategy) Stats {
	return *b.stats[strategy]
}

func dot(a, x Context) float64 {
	var s float64
	for i := range a {
		s += a[i] * x[i]
	}
	return s
}

// sampleBeta draws from Beta(alpha, beta) via two Gamma draws, the
// standard Beta(a,b) = Gamma(a)/(Gamma(a)+Gamma(b)) construction.
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	ga := sampleGamma(rng, alpha)
	gb := sampleGamma(rng, beta)
	if ga+gb == 0 {
		return 0.5
	}
	return ga / (ga + gb)
}

// sampleGamma draws from Gamma(shape, 1) via Marsaglia-Tsang for shape>=1,
// boosting shape<1 draws by one unit and correcting with a uniform power,
// a standard technique for a dependency-free Gamma sampler.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
