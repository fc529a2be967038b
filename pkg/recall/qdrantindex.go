// qdrantindex.go wires github.com/qdrant/go-client as a DenseIndex,
// following the teacher's pkg/databases/qdrant.go client construction and
// upsert/search call shape directly.
package recall

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements DenseIndex against a remote Qdrant collection.
type QdrantIndex struct {
	Client     *qdrant.Client
	Collection string
}

// NewQdrantIndex dials a Qdrant instance the way the teacher's
// NewQdrantDatabaseProviderFromConfig does.
func NewQdrantIndex(host string, port int, collection string, useTLS bool) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port, UseTLS: useTLS})
	if err != nil {
		return nil, fmt.Errorf("recall: qdrant client: %w", err)
	}
	return &QdrantIndex{Client: client, Collection: collection}, nil
}

// Upsert stores a candidate's embedding under its ID, for ingestion
// pipelines that keep the dense index in sync with the edge store.
func (q *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
	}
	_, err := q.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.Collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("recall: qdrant upsert: %w", err)
	}
	return nil
}

// SearchSimilar implements DenseIndex.
func (q *QdrantIndex) SearchSimilar(ctx context.Context, queryEmbedding []float32, topK int) ([]string, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: q.Collection,
		Vector:         queryEmbedding,
		Limit:          uint64(topK),
	}
	pointsClient := q.Client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("recall: qdrant search: %w", err)
	}

	ids := make([]string, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		if point.Id == nil || point.Id.PointIdOptions == nil {
			continue
		}
		switch idType := point.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			ids = append(ids, idType.Uuid)
		case *qdrant.PointId_Num:
			ids = append(ids, fmt.Sprintf("%d", idType.Num))
		}
	}
	return ids, nil
}
