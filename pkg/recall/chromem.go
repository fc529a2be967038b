// chromem.go wires github.com/philippgille/chromem-go as an in-process
// DenseIndex alternative to the remote QdrantIndex — useful for single-
// node deployments that want dense recall without an external service.
// Grounded on the teacher's pkg/databases registry pattern: multiple
// DatabaseProvider implementations behind one interface, chosen by
// config rather than compiled-in preference.
package recall

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex implements DenseIndex against an in-process chromem-go
// collection.
type ChromemIndex struct {
	Collection *chromem.Collection
}

// NewChromemIndex creates (or reuses) a named collection in db, using
// embeddingFunc to vectorize documents (nil defaults to chromem-go's
// built-in OpenAI-compatible embedder).
func NewChromemIndex(db *chromem.DB, name string, embeddingFunc chromem.EmbeddingFunc) (*ChromemIndex, error) {
	col, err := db.GetOrCreateCollection(name, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("recall: chromem collection: %w", err)
	}
	return &ChromemIndex{Collection: col}, nil
}

// Upsert stores a candidate's content under its ID; chromem-go embeds
// the content itself via the collection's EmbeddingFunc.
func (c *ChromemIndex) Upsert(ctx context.Context, id, content string, metadata map[string]string) error {
	doc := chromem.Document{ID: id, Content: content, Metadata: metadata}
	if err := c.Collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("recall: chromem add: %w", err)
	}
	return nil
}

// SearchSimilar implements DenseIndex by querying chromem-go's built-in
// cosine search with queryEmbedding. The original query text is not
// available here (DenseIndex only receives the vector); callers that want
// chromem's own embedder should instead call
// Collection.Query directly with the raw query string and skip
// DenseRanker's Embedder step for this backend.
func (c *ChromemIndex) SearchSimilar(ctx context.Context, queryEmbedding []float32, topK int) ([]string, error) {
	results, err := c.Collection.QueryEmbedding(ctx, queryEmbedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("recall: chromem query: %w", err)
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
