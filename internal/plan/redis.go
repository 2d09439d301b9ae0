package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/studyplan/internal/logger"
)

const keyPrefix = "studyplan:"

// RedisStore implements the Store interface using Redis.
// Each plan is a hash with a TTL; a sorted set per user indexes plans by generation time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed plan store. A ttl <= 0 keeps plans forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// ConnectRedis parses redisURL and pings the server, retrying with exponential backoff
// (1s, 2s, 4s ... capped at 30s) up to attempts times.
func ConnectRedis(ctx context.Context, redisURL string, attempts int, log logger.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}

	client := redis.NewClient(opts)
	for attempt := 0; attempt < attempts; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		if attempt == attempts-1 {
			break
		}

		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		if log != nil {
			log.Warn("Failed to connect to Redis, retrying",
				"attempt", attempt+1,
				"max_attempts", attempts,
				"error", err,
				"retry_in", delay)
		}

		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", attempts, err)
}

// maxScoreVersion is the largest version that still breaks ties within one millisecond.
const maxScoreVersion = 999

// planScore orders a user's plans by generation time, then version.
// Milliseconds times 1000 stays exact in a float64 until well past year 2200.
// Versions above maxScoreVersion share its tiebreak and fall back to member order.
func planScore(p *Plan) float64 {
	v := p.Version
	if v > maxScoreVersion {
		v = maxScoreVersion
	}
	if v < 0 {
		v = 0
	}
	return float64(p.GeneratedAt.UnixMilli())*1000 + float64(v)
}

func planKey(planID string) string {
	return keyPrefix + "plan:" + planID
}

func userKey(userID string) string {
	return keyPrefix + "user:" + userID + ":plans"
}

// Save stores a plan in Redis
func (r *RedisStore) Save(ctx context.Context, p *Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	data := map[string]interface{}{
		"user_id":      p.UserID,
		"version":      p.Version,
		"generated_at": p.GeneratedAt.Format(time.RFC3339Nano),
		"data":         string(body),
	}

	// Use pipeline for atomicity: HSET + EXPIRE + ZADD
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, planKey(p.ID), data)
	if r.ttl > 0 {
		pipe.Expire(ctx, planKey(p.ID), r.ttl)
	}
	pipe.ZAdd(ctx, userKey(p.UserID), redis.Z{
		Score:  planScore(p),
		Member: p.ID,
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, userKey(p.UserID), r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store plan: %w", err)
	}
	return nil
}

// Get retrieves a plan from Redis
func (r *RedisStore) Get(ctx context.Context, planID string) (*Plan, error) {
	body, err := r.client.HGet(ctx, planKey(planID), "data").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return decodePlan(planID, body)
}

// Latest returns the newest plan for a user
func (r *RedisStore) Latest(ctx context.Context, userID string) (*Plan, error) {
	plans, err := r.List(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return plans[0], nil
}

// List returns plans for a user, newest first. Index entries whose plan has expired are pruned.
func (r *RedisStore) List(ctx context.Context, userID string, limit int) ([]*Plan, error) {
	ids, err := r.client.ZRevRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	var (
		plans []*Plan
		stale []interface{}
	)
	for _, id := range ids {
		if limit > 0 && len(plans) >= limit {
			break
		}
		p, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			stale = append(stale, id)
			continue
		}
		plans = append(plans, p)
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired plans: %w", err)
		}
	}
	return plans, nil
}

// Delete removes a plan and its index entry
func (r *RedisStore) Delete(ctx context.Context, planID string) error {
	userID, err := r.client.HGet(ctx, planKey(planID), "user_id").Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, planKey(planID))
	pipe.ZRem(ctx, userKey(userID), planID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

// Close closes the Redis client connection
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
