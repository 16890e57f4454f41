package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// changeChannel carries one JSON Event per committed write, so every
// portal instance sees changes made by the others.
const changeChannel = "studentsphere:changes"

const redisOpTimeout = 3 * time.Second

// RedisKV backs the store with Redis. Values are plain strings; change
// events are published on a single pub/sub channel.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV builds a Redis-backed store.
func NewRedisKV(addr, password string) *RedisKV {
	return &RedisKV{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Get returns the value under key and whether it exists.
func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key and publishes the change.
func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return r.publish(ctx, Event{Key: key, Value: value})
}

// Remove deletes key and publishes the change.
func (r *RedisKV) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return r.publish(ctx, Event{Key: key, Removed: true})
}

// Subscribe listens on the change channel until cancel is called.
func (r *RedisKV) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	sub := r.client.Subscribe(ctx, changeChannel)
	// Force the subscription to be established before first use.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", changeChannel, err)
	}

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case events <- ev:
			default:
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return events, cancel, nil
}

func (r *RedisKV) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, changeChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}
