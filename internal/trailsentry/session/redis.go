package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

// Redis stores sessions as JSON values, one key per session per kind.
// Meant for multi-instance serving; memory is fine for single-process use.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, db int, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

func eventsKey(id string) string   { return "trailsentry:session:" + id + ":events" }
func verdictsKey(id string) string { return "trailsentry:session:" + id + ":verdicts" }

func (r *Redis) PutEvents(ctx context.Context, id string, events []parsers.Event) error {
	if err := r.set(ctx, eventsKey(id), events); err != nil {
		return fmt.Errorf("redis put events: %w", err)
	}
	// stale verdicts do not survive a new event set
	if err := r.client.Del(ctx, verdictsKey(id)).Err(); err != nil {
		return fmt.Errorf("redis drop verdicts: %w", err)
	}
	return nil
}

func (r *Redis) AppendEvents(ctx context.Context, id string, events []parsers.Event) error {
	existing, err := r.GetEvents(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return r.PutEvents(ctx, id, append(existing, events...))
}

func (r *Redis) GetEvents(ctx context.Context, id string) ([]parsers.Event, error) {
	var events []parsers.Event
	if err := r.get(ctx, eventsKey(id), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Redis) PutVerdicts(ctx context.Context, id string, verdicts []risk.Verdict) error {
	if err := r.set(ctx, verdictsKey(id), verdicts); err != nil {
		return fmt.Errorf("redis put verdicts: %w", err)
	}
	return nil
}

func (r *Redis) GetVerdicts(ctx context.Context, id string) ([]risk.Verdict, error) {
	var verdicts []risk.Verdict
	if err := r.get(ctx, verdictsKey(id), &verdicts); err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, eventsKey(id), verdictsKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *Redis) get(ctx context.Context, key string, target interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return json.Unmarshal(data, target)
}
