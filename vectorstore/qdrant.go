package vectorstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// originalIDField stores a caller-supplied string ID in the point payload,
// since Qdrant only accepts UUID or unsigned-integer point IDs.
const originalIDField = "_original_id"

// QdrantStore is a second durable Store backend, demonstrating that C4's
// interface is genuinely backend-agnostic (spec.md §4.4's persistence
// boundary). It is best suited to deployments that already run Qdrant for
// ANN search at scale; RedisStore is the simpler durable option.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore connects to a Qdrant instance (gRPC, default port 6334) and
// ensures the target collection exists with a cosine-distance vector config
// of the given dimensionality.
func NewQdrantStore(ctx context.Context, host string, port int, collection string, dimension int) (*QdrantStore, error) {
	if collection == "" {
		return nil, memerrors.NewConfigurationError("qdrant: collection name is required")
	}
	if dimension <= 0 {
		return nil, memerrors.NewConfigurationError("qdrant: dimension must be > 0")
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, memerrors.NewStorageError("connect", err)
	}
	s := &QdrantStore{client: client, collection: collection, dimension: dimension}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return memerrors.NewStorageError("collection_exists", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return memerrors.NewStorageError("create_collection", err)
	}
	return nil
}

func pointIDFor(id string) (*qdrant.PointId, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id), false
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	return qdrant.NewIDUUID(derived), true
}

// Store implements Store.
func (s *QdrantStore) Store(ctx context.Context, entry Entry) error {
	return s.StoreBatch(ctx, []Entry{entry})
}

// StoreBatch implements Store.
func (s *QdrantStore) StoreBatch(ctx context.Context, entries []Entry) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != s.dimension {
			return memerrors.NewStorageError("store_batch", memerrors.NewValidationError(
				"embedding", "dimension mismatch with collection"))
		}
		pointID, derived := pointIDFor(e.ID)
		payload := map[string]any{
			"content":   e.Content,
			"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		for k, v := range e.Metadata {
			payload[k] = v
		}
		if derived {
			payload[originalIDField] = e.ID
		}
		vec := make([]float32, len(e.Embedding))
		for i, x := range e.Embedding {
			vec[i] = float32(x)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: s.collection, Points: points})
	if err != nil {
		return memerrors.NewStorageError("store_batch", err)
	}
	return nil
}

// Get implements Store. Qdrant's Go client exposes retrieval by point ID;
// we look the point up by its derived/UUID ID and reconstruct the original
// Entry from its payload.
func (s *QdrantStore) Get(ctx context.Context, id string) (*Entry, error) {
	pointID, _ := pointIDFor(id)
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID},
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, memerrors.NewStorageError("get", err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	e := entryFromPoint(id, points[0].GetPayload(), points[0].GetVectors())
	return &e, nil
}

// GetAll implements Store via Qdrant's scroll API, ordered by timestamp
// ascending.
func (s *QdrantStore) GetAll(ctx context.Context) ([]Entry, error) {
	limit := uint32(1000)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, memerrors.NewStorageError("get_all", err)
	}
	out := make([]Entry, 0, len(points))
	for _, p := range points {
		id := p.GetId().GetUuid()
		payload := p.GetPayload()
		if orig, ok := payload[originalIDField]; ok {
			id = orig.GetStringValue()
		}
		out = append(out, entryFromPoint(id, payload, p.GetVectors()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func entryFromPoint(id string, payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) Entry {
	meta := make(map[string]string, len(payload))
	var content, timestamp string
	for k, v := range payload {
		switch k {
		case "content":
			content = v.GetStringValue()
		case "timestamp":
			timestamp = v.GetStringValue()
		case originalIDField:
		default:
			meta[k] = v.GetStringValue()
		}
	}
	var embedding []float64
	if vectors != nil {
		if dense := vectors.GetVector(); dense != nil {
			data := dense.GetData()
			embedding = make([]float64, len(data))
			for i, x := range data {
				embedding[i] = float64(x)
			}
		}
	}
	ts, _ := time.Parse(time.RFC3339Nano, timestamp)
	return Entry{ID: id, Embedding: embedding, Content: content, Metadata: meta, Timestamp: ts}
}

// Delete implements Store.
func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	pointID, _ := pointIDFor(id)
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointID),
	})
	if err != nil {
		return memerrors.NewStorageError("delete", err)
	}
	return nil
}

// DeleteBatch implements Store.
func (s *QdrantStore) DeleteBatch(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Clear implements Store by dropping and recreating the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return memerrors.NewStorageError("clear", err)
	}
	return s.ensureCollection(ctx)
}

// Count implements Store.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, memerrors.NewStorageError("count", err)
	}
	return int(info.GetPointsCount()), nil
}

// Search implements Store via Qdrant's query API. MetadataFilter and
// FilterExpr are applied client-side after retrieval, same as RedisStore,
// since translating FilterExpr's JMESPath syntax into Qdrant's filter DSL
// isn't a faithful translation for arbitrary expressions.
func (s *QdrantStore) Search(ctx context.Context, query []float64, opts SearchOptions) ([]SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}
	vec := make([]float32, len(query))
	for i, x := range query {
		vec[i] = float32(x)
	}
	limit := uint64(topK) * 4 // over-fetch to leave room for client-side filtering
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, memerrors.NewStorageError("search", err)
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		id := h.GetId().GetUuid()
		payload := h.GetPayload()
		if orig, ok := payload[originalIDField]; ok {
			id = orig.GetStringValue()
		}
		entry := entryFromPoint(id, payload, h.GetVectors())
		if len(opts.MetadataFilter) > 0 && !matchesMetadataFilter(entry.Metadata, opts.MetadataFilter) {
			continue
		}
		if opts.FilterExpr != "" {
			ok, err := evaluateFilterExpr(opts.FilterExpr, entry.Metadata)
			if err != nil || !ok {
				continue
			}
		}
		sim := float64(h.GetScore())
		if sim < opts.MinSimilarity {
			continue
		}
		results = append(results, SearchResult{Entry: entry, Similarity: sim})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

var _ Store = (*QdrantStore)(nil)
