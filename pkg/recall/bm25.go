package recall

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// BM25Ranker is a from-scratch inverted-index lexical ranker. No example
// repo vendors a BM25 implementation and pulling in a dependency for ~40
// lines of classic IR arithmetic is not warranted (documented in
// DESIGN.md); it is built the way the teacher builds small self-contained
// scoring utilities — a single-purpose struct with no external state.
type BM25Ranker struct {
	K1 float64
	B  float64
}

// NewBM25Ranker returns a ranker using the standard defaults k1=1.2, b=0.75.
func NewBM25Ranker() *BM25Ranker {
	return &BM25Ranker{K1: 1.2, B: 0.75}
}

func (r *BM25Ranker) Name() string { return "bm25" }

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9_]+`)

func tokenize(s string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(s), -1)
	return matches
}

// Rank scores every candidate's Content against query using Okapi BM25
// and returns IDs in descending score order, per spec §4.4.
func (r *BM25Ranker) Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(candidates))
	var totalLen int
	df := make(map[string]int)
	for i, c := range candidates {
		toks := tokenize(c.Content)
		docs[i] = toks
		totalLen += len(toks)
		seen := make(map[string]bool)
		for _, t := range toks {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(candidates))
	if avgLen == 0 {
		avgLen = 1
	}
	n := float64(len(candidates))

	qTerms := tokenize(query)

	type scored struct {
		id    string
		score float64
	}
	var out []scored
	for i, c := range candidates {
		tf := make(map[string]int)
		for _, t := range docs[i] {
			tf[t]++
		}
		docLen := float64(len(docs[i]))

		var score float64
		for _, qt := range qTerms {
			f, ok := tf[qt]
			if !ok {
				continue
			}
			idf := math.Log(1 + (n-float64(df[qt])+0.5)/(float64(df[qt])+0.5))
			num := float64(f) * (r.K1 + 1)
			den := float64(f) + r.K1*(1-r.B+r.B*docLen/avgLen)
			score += idf * num / den
		}
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
