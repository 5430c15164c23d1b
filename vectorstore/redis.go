package vectorstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Liv-Coder/chat-memory-sub001/memerrors"
)

// RedisStore is a durable Store backend for the "production" preset. The
// preset does not open one itself: a host passes it in through
// chatmemory.Options.VectorStore. Each entry is one Redis hash keyed "<prefix>:vector:<id>", with fields
// matching spec.md §6's normative minimum row layout: embedding as a
// float32-little-endian blob, dimension, content, role (pulled out of
// metadata for fast filtering), metadata as a JSON blob, and timestamp as
// RFC3339. A set at "<prefix>:vectors" tracks all member IDs for GetAll/Count
// without a full keyspace SCAN, mirroring statestore.RedisStore's use of a
// secondary index set alongside per-item keys.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	dimension int
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default "memengine".
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithRedisTTL sets a TTL applied to each entry key. Zero means no expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a Redis-backed vector store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "memengine"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) entryKey(id string) string { return fmt.Sprintf("%s:vector:%s", s.prefix, id) }
func (s *RedisStore) indexKey() string           { return fmt.Sprintf("%s:vectors", s.prefix) }

// Store implements Store.
func (s *RedisStore) Store(ctx context.Context, entry Entry) error {
	return s.StoreBatch(ctx, []Entry{entry})
}

// StoreBatch implements Store, writing every entry in a single pipeline.
func (s *RedisStore) StoreBatch(ctx context.Context, entries []Entry) error {
	pipe := s.client.Pipeline()
	for _, e := range entries {
		if s.dimension != 0 && len(e.Embedding) != s.dimension {
			return memerrors.NewStorageError("store_batch", memerrors.NewValidationError(
				"embedding", "dimension mismatch with store"))
		}
		fields, err := encodeEntry(e)
		if err != nil {
			return memerrors.NewStorageError("store_batch", err)
		}
		key := s.entryKey(e.ID)
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.SAdd(ctx, s.indexKey(), e.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return memerrors.NewStorageError("store_batch", err)
	}
	if s.dimension == 0 && len(entries) > 0 {
		s.dimension = len(entries[0].Embedding)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Entry, error) {
	m, err := s.client.HGetAll(ctx, s.entryKey(id)).Result()
	if err != nil {
		return nil, memerrors.NewStorageError("get", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	e, err := decodeEntry(id, m)
	if err != nil {
		return nil, memerrors.NewStorageError("get", err)
	}
	return e, nil
}

// GetAll implements Store, ordered by timestamp ascending.
func (s *RedisStore) GetAll(ctx context.Context) ([]Entry, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, memerrors.NewStorageError("get_all", err)
	}
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.entryKey(id))
	pipe.SRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return memerrors.NewStorageError("delete", err)
	}
	return nil
}

// DeleteBatch implements Store.
func (s *RedisStore) DeleteBatch(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return memerrors.NewStorageError("clear", err)
	}
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.entryKey(id))
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, s.indexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return memerrors.NewStorageError("clear", err)
	}
	return nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, memerrors.NewStorageError("count", err)
	}
	return int(n), nil
}

// Search implements Store. RedisStore does not maintain a vector index, so
// it loads all entries and scores them in-process; it exists to exercise the
// durable-persistence contract, not to scale semantic search — a deployment
// needing indexed ANN search over Redis-resident vectors should front this
// store with RediSearch, or use QdrantStore instead.
func (s *RedisStore) Search(ctx context.Context, query []float64, opts SearchOptions) ([]SearchResult, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	mem := NewMemoryStore()
	if err := mem.StoreBatch(ctx, all); err != nil {
		return nil, err
	}
	return mem.Search(ctx, query, opts)
}

func encodeEntry(e Entry) (map[string]any, error) {
	blob := make([]byte, 4*len(e.Embedding))
	for i, x := range e.Embedding {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(float32(x)))
	}
	metaJSON, err := encodeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"embedding": blob,
		"dimension": strconv.Itoa(len(e.Embedding)),
		"content":   e.Content,
		"role":      e.Metadata["role"],
		"metadata":  metaJSON,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}, nil
}

func decodeEntry(id string, fields map[string]string) (*Entry, error) {
	dim, err := strconv.Atoi(fields["dimension"])
	if err != nil {
		return nil, fmt.Errorf("decode entry %s: invalid dimension: %w", id, err)
	}
	blob := []byte(fields["embedding"])
	if len(blob) != dim*4 {
		return nil, errors.New("decode entry: embedding blob length mismatch")
	}
	vec := make([]float64, dim)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = float64(math.Float32frombits(bits))
	}
	meta, err := decodeMetadata(fields["metadata"])
	if err != nil {
		return nil, err
	}
	ts, _ := time.Parse(time.RFC3339Nano, fields["timestamp"])
	return &Entry{
		ID:        id,
		Embedding: vec,
		Content:   fields["content"],
		Metadata:  meta,
		Timestamp: ts,
	}, nil
}

var _ Store = (*RedisStore)(nil)
