package recall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25RanksExactMatchHighest(t *testing.T) {
	r := NewBM25Ranker()
	candidates := []Candidate{
		{ID: "a", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "b", Content: "completely unrelated content about cooking"},
	}
	ids, err := r.Rank(context.Background(), "quick fox", candidates, 10)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	assert.Equal(t, "a", ids[0])
}

func TestBM25EmptyQueryNoMatches(t *testing.T) {
	r := NewBM25Ranker()
	candidates := []Candidate{{ID: "a", Content: "hello world"}}
	ids, err := r.Rank(context.Background(), "", candidates, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLocalDenseIndexCosine(t *testing.T) {
	idx := &LocalDenseIndex{Candidates: []Candidate{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: []float32{0, 1, 0}},
	}}
	ids, err := idx.SearchSimilar(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	assert.Equal(t, "a", ids[0])
}

type stubRanker struct {
	name  string
	order []string
}

func (s stubRanker) Name() string { return s.name }
func (s stubRanker) Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	return s.order, nil
}

func TestFusionCombinesTwoRankers(t *testing.T) {
	e := New(
		stubRanker{name: "r1", order: []string{"a", "b", "c"}},
		stubRanker{name: "r2", order: []string{"b", "a", "c"}},
	)
	ids, err := e.Recall(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	// a and b are each ranked 1st by one ranker, so they should beat c,
	// which is always last.
	assert.Equal(t, "c", ids[2])
}

func TestFusionDegradesWhenRankerErrors(t *testing.T) {
	failing := stubRankerErr{}
	e := New(stubRanker{name: "r1", order: []string{"a", "b"}}, failing)
	ids, err := e.Recall(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

type stubRankerErr struct{}

func (stubRankerErr) Name() string { return "broken" }
func (stubRankerErr) Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	return nil, assertErr
}

var assertErr = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestEpistemicRankerPrefersRecentHighConfidence(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &EpistemicRanker{HalfLife: time.Hour, Now: now}
	candidates := []Candidate{
		{ID: "old", Confidence: 0.9, RecordedAtUnix: now.Add(-10 * time.Hour).Unix()},
		{ID: "new", Confidence: 0.9, RecordedAtUnix: now.Unix()},
	}
	ids, err := r.Rank(context.Background(), "", candidates, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "new", ids[0])
}
