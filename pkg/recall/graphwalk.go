package recall

import (
	"context"
	"sort"
	"time"

	"github.com/arclane/conduit/pkg/edgestore"
)

// GraphWalkRanker scores candidates by personalized PageRank seeded at
// the entities mentioned in the query, walking pkg/edgestore's current
// edge set. No teacher file implements PageRank; the power-iteration
// loop is plain Go (documented in DESIGN.md).
type GraphWalkRanker struct {
	Store    *edgestore.Store
	Damping  float64
	Iterations int
	Now      time.Time
}

// NewGraphWalkRanker builds a ranker with the spec's implied defaults:
// damping 0.85, 20 iterations (matching pkg/contextmgr's TextRank pass).
func NewGraphWalkRanker(store *edgestore.Store) *GraphWalkRanker {
	return &GraphWalkRanker{Store: store, Damping: 0.85, Iterations: 20}
}

func (r *GraphWalkRanker) Name() string { return "graph_walk" }

// Rank runs personalized PageRank seeded uniformly on the query's
// matched entities (the entity names listed on any candidate that share a
// token with the query), and returns candidate IDs ranked by the summed
// PageRank mass of their entities.
func (r *GraphWalkRanker) Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	if r.Store == nil {
		return nil, nil
	}
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}
	edges := r.Store.QueryAt(now, time.Time{})
	if len(edges) == 0 {
		return nil, nil
	}

	nodes := make(map[string]bool)
	out := make(map[string][]weightedEdge)
	for _, e := range edges {
		nodes[e.Source] = true
		nodes[e.Target] = true
		out[e.Source] = append(out[e.Source], weightedEdge{to: e.Target, weight: e.Weight})
	}

	seeds := seedEntities(query, candidates)
	if len(seeds) == 0 {
		return nil, nil
	}
	teleport := make(map[string]float64, len(seeds))
	for _, s := range seeds {
		teleport[s] = 1.0 / float64(len(seeds))
	}

	rank := make(map[string]float64, len(nodes))
	for n := range nodes {
		rank[n] = 1.0 / float64(len(nodes))
	}

	for iter := 0; iter < r.Iterations; iter++ {
		next := make(map[string]float64, len(nodes))
		for n := range nodes {
			next[n] = (1 - r.Damping) * teleport[n]
		}
		for src, edgesOut := range out {
			var total float64
			for _, e := range edgesOut {
				total += e.weight
			}
			if total == 0 {
				continue
			}
			for _, e := range edgesOut {
				next[e.to] += r.Damping * rank[src] * (e.weight / total)
			}
		}
		rank = next
	}

	type scored struct {
		id    string
		score float64
	}
	var out2 []scored
	for _, c := range candidates {
		var score float64
		for _, entity := range c.Entities {
			score += rank[entity]
		}
		if score > 0 {
			out2 = append(out2, scored{id: c.ID, score: score})
		}
	}
	sort.Slice(out2, func(i, j int) bool {
		if out2[i].score != out2[j].score {
			return out2[i].score > out2[j].score
		}
		return out2[i].id < out2[j].id
	})
	if len(out2) > topK {
		out2 = out2[:topK]
	}
	ids := make([]string, len(out2))
	for i, s := range out2 {
		ids[i] = s.id
	}
	return ids, nil
}

type weightedEdge struct {
	to     string
	weight float64
}

// seedEntities matches query tokens against every candidate's Entities
// list, returning the distinct entity names actually mentioned.
func seedEntities(query string, candidates []Candidate) []string {
	tokens := make(map[string]bool)
	for _, t := range tokenize(query) {
		tokens[t] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		for _, e := range c.Entities {
			if seen[e] {
				continue
			}
			for _, t := range tokenize(e) {
				if tokens[t] {
					out = append(out, e)
					seen[e] = true
					break
				}
			}
		}
	}
	return out
}
