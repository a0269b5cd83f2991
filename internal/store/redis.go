package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultFailureKeyPrefix namespaces the failure memory keys.
const DefaultFailureKeyPrefix = "planner:failures"

// RedisFailureMemory keeps action and cause failure counters in Redis so they
// survive restarts and can be shared between planner processes.
type RedisFailureMemory struct {
	client *redis.Client
	prefix string
}

func NewRedisFailureMemory(client *redis.Client, prefix string) *RedisFailureMemory {
	if prefix == "" {
		prefix = DefaultFailureKeyPrefix
	}
	return &RedisFailureMemory{client: client, prefix: prefix}
}

// OpenRedisFailureMemory parses url, connects and pings the server.
func OpenRedisFailureMemory(ctx context.Context, url string) (*RedisFailureMemory, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFailureMemory(client, ""), nil
}

func (r *RedisFailureMemory) actionsKey() string { return r.prefix + ":actions" }
func (r *RedisFailureMemory) causesKey() string  { return r.prefix + ":causes" }
func (r *RedisFailureMemory) logKey() string     { return r.prefix + ":log" }

func (r *RedisFailureMemory) RecordFailure(ctx context.Context, f domain.FailureRecord) error {
	entry, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, r.actionsKey(), f.Action, 1)
		if f.Cause != "" {
			pipe.HIncrBy(ctx, r.causesKey(), f.Cause, 1)
		}
		pipe.RPush(ctx, r.logKey(), entry)
		return nil
	})
	return err
}

func (r *RedisFailureMemory) FailureCount(ctx context.Context, action string) (int, error) {
	return r.count(ctx, r.actionsKey(), action)
}

func (r *RedisFailureMemory) CauseCount(ctx context.Context, cause string) (int, error) {
	return r.count(ctx, r.causesKey(), cause)
}

func (r *RedisFailureMemory) count(ctx context.Context, key, field string) (int, error) {
	n, err := r.client.HGet(ctx, key, field).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RedisFailureMemory) TopFailures(ctx context.Context, n int) ([]domain.ActionFailureCount, error) {
	all, err := r.client.HGetAll(ctx, r.actionsKey()).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.ActionFailureCount, 0, len(all))
	for action, raw := range all {
		c, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failure count for %q: %w", action, err)
		}
		out = append(out, domain.ActionFailureCount{Action: action, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Action < out[j].Action
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Records returns the failure log in insertion order.
func (r *RedisFailureMemory) RecentFailures(ctx context.Context, n int) ([]domain.FailureRecord, error) {
	start := int64(0)
	if n > 0 {
		start = -int64(n)
	}
	raw, err := r.client.LRange(ctx, r.logKey(), start, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.FailureRecord, 0, len(raw))
	for _, s := range raw {
		var f domain.FailureRecord
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			return nil, fmt.Errorf("decode failure record: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Len is the number of logged failures.

func (r *RedisFailureMemory) Close() error {
	return r.client.Close()
}
