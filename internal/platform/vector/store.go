package vector

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// Store is the per-tenant vector index contract, grounded on the example
// pack's vectorstore.VectorStore interface.
type Store interface {
	EnsureCollection(ctx context.Context, tenantID string, dimension int) error
	Upsert(ctx context.Context, record Record) error
	Delete(ctx context.Context, tenantID, documentID string) error
	Close() error
}

// QdrantStore implements Store over Qdrant, isolating tenants at the
// collection level: each tenant gets its own `tenant_<tenantId>`
// collection, so a cross-tenant query is structurally impossible rather
// than merely filtered, per SPEC_FULL.md §4.5.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore dials Qdrant's gRPC endpoint at url ("host:port",
// defaulting the port to 6334 following the example pack's convention).
func NewQdrantStore(url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) collectionName(tenantID string) string {
	return fmt.Sprintf("tenant_%s", tenantID)
}

// EnsureCollection creates the tenant's collection if it does not
// already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, tenantID string, dimension int) error {
	name := s.collectionName(tenantID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert writes or replaces a document's vector point, keyed by
// DocumentID so re-embedding the same document overwrites in place.
func (s *QdrantStore) Upsert(ctx context.Context, record Record) error {
	name := s.collectionName(record.TenantID)

	payload := map[string]*qdrant.Value{
		"document_id":   qdrant.NewValueString(record.DocumentID),
		"type":          qdrant.NewValueString(record.Type),
		"semantic_hash": qdrant.NewValueString(record.SemanticHash),
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(record.DocumentID),
		Payload: payload,
		Vectors: qdrant.NewVectors(record.Embedding...),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert vector point: %w", err)
	}
	return nil
}

// Delete removes the document's vector point, if any.
func (s *QdrantStore) Delete(ctx context.Context, tenantID, documentID string) error {
	name := s.collectionName(tenantID)

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewIDUUID(documentID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete vector point: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

var _ Store = (*QdrantStore)(nil)
