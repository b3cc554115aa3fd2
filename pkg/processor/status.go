package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/patho-fhir/pkg/common/models"
)

var ErrNotFound = errors.New("record status not found")

// statusClient is the part of *redis.Client the store uses.
type statusClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStatusStore keeps the latest outcome per record for a limited time.
type RedisStatusStore struct {
	client statusClient
	ttl    time.Duration
}

func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{client: client, ttl: ttl}
}

func statusKey(kind models.RecordKind, recordID string) string {
	return "patho-fhir:status:" + string(kind) + ":" + recordID
}

func (s *RedisStatusStore) Save(ctx context.Context, outcome models.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, statusKey(outcome.Kind, outcome.RecordID), data, s.ttl).Err()
}

func (s *RedisStatusStore) Get(ctx context.Context, kind models.RecordKind, recordID string) (*models.Outcome, error) {
	data, err := s.client.Get(ctx, statusKey(kind, recordID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var outcome models.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}
