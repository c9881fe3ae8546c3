package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	inFlightMarker       = "in-flight"
)

// ErrIdempotencyInFlight is returned while another request holds the same key
var ErrIdempotencyInFlight = errors.New("a request with this idempotency key is in progress")

// StoredResponse is the replayable outcome of a request
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// RedisIdempotencyStore remembers responses to requests carrying an Idempotency-Key
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis; returns nil when redisURL is empty
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		log.Warn("Redis URL not configured, idempotency keys are disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info("Connected to Redis")
	return client, nil
}

// NewRedisIdempotencyStore creates a store that keeps responses for ttl
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

// Begin claims key for a new request. It returns the stored response when the
// key was already completed, and ErrIdempotencyInFlight while it is claimed.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (*StoredResponse, error) {
	redisKey := idempotencyKeyPrefix + key

	claimed, err := s.client.SetNX(ctx, redisKey, inFlightMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	value, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; the caller may simply retry
		return nil, ErrIdempotencyInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if value == inFlightMarker {
		return nil, ErrIdempotencyInFlight
	}

	var stored StoredResponse
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &stored, nil
}

// Complete stores the final response for key
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, response StoredResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

// Release forgets key so the request can be retried
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
