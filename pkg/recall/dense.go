// dense.go adapts an injected embedding-backed vector store to the
// Ranker interface, grounded on the teacher's
// pkg/databases.DatabaseProvider (Upsert/Search/Delete behind a common
// interface, swappable at runtime across qdrant/chroma/pinecone/milvus/
// weaviate). DenseIndex mirrors that surface but is scoped to recall's
// needs: cosine search only, no collection management (the engine's
// caller owns the collection lifecycle, same division of responsibility
// as the teacher's registry pattern).
package recall

import (
	"context"
	"math"
	"sort"
)

// DenseIndex is the minimal surface the dense ranker needs; the
// chromem-go in-process implementation and the qdrant.go-client remote
// implementation both satisfy it.
type DenseIndex interface {
	// SearchSimilar returns up to topK candidate IDs ranked by cosine
	// similarity to the query embedding.
	SearchSimilar(ctx context.Context, queryEmbedding []float32, topK int) ([]string, error)
}

// DenseRanker delegates to an injected DenseIndex, embedding the query
// text via an injected Embedder first.
type DenseRanker struct {
	Index    DenseIndex
	Embedder Embedder
}

// Embedder turns text into a vector; the teacher's pkg/llms providers
// each expose an equivalent embedding call, kept abstract here so recall
// does not depend on a specific provider package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func (r *DenseRanker) Name() string { return "dense" }

func (r *DenseRanker) Rank(ctx context.Context, query string, candidates []Candidate, topK int) ([]string, error) {
	if r.Index == nil || r.Embedder == nil {
		return nil, nil
	}
	vec, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.Index.SearchSimilar(ctx, vec, topK)
}

// LocalDenseIndex is a brute-force in-memory DenseIndex over candidate
// embeddings already present in the Recall call's Candidate slice —
// usable without any external vector store, exercising the same
// interface chromem-go/qdrant implementations would.
type LocalDenseIndex struct {
	Candidates []Candidate
}

func (l *LocalDenseIndex) SearchSimilar(ctx context.Context, queryEmbedding []float32, topK int) ([]string, error) {
	type scored struct {
		id    string
		score float64
	}
	var out []scored
	for _, c := range l.Candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		out = append(out, scored{id: c.ID, score: cosine(queryEmbedding, c.Embedding)})
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

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
