package recall

import (
	"context"
	"math"
	"sort"
	"time"
)

// EpistemicRanker scores candidates by confidence x recency, per spec
// §4.4's fourth fusion input. Recency decays exponentially with a
// configurable half-life, the same decay shape pkg/edgestore.TemporalDecay
// uses for edge weights.
type EpistemicRanker struct {
	HalfLife time.Duration
	Now      time.Time
}

func NewEpistemicRanker(halfLife time.Duration) *EpistemicRanker {
	return &EpistemicRanker{HalfLife: halfLife}
}

func (r *EpistemicRanker) Name() string { return "epistemic" }

func (r *EpistemicRanker) Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}
	halfLife := r.HalfLife
	if halfLife <= 0 {
		halfLife = 24 * time.Hour
	}

	type scored struct {
		id    string
		score float64
	}
	var out []scored
	for _, c := range candidates {
		elapsed := now.Sub(time.Unix(c.RecordedAtUnix, 0))
		if elapsed < 0 {
			elapsed = 0
		}
		decay := decayFactor(elapsed, halfLife)
		score := c.Confidence * decay
		if score > 0 {
			out = append(out, scored{id: c.ID, score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if len(out) > topK {
		out = out[:topK]
	}
	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.id
	}
	return ids, nil
}

func decayFactor(elapsed, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	ratio := float64(elapsed) / float64(halfLife)
	return math.Pow(2, -ratio)
}
