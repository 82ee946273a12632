package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const turnKeyPrefix = "conversation:"

type storeOptions struct {
	redis *redis.Client
}

type StoreOption func(*storeOptions)

// WithRedisClient supplies the client used by the redis backend.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(o *storeOptions) { o.redis = client }
}

// Redis keeps each conversation as a JSON list under conversation:<key>.
// It survives process restarts but is still not the durable mirror; that
// remains the persistence synchronizer's job. Redis serializes commands per
// connection, which gives us the per-key append ordering for free.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func turnKey(key string) string { return turnKeyPrefix + key }

func (r *Redis) Ensure(ctx context.Context, key string) error {
	// Lists spring into existence on first RPUSH; registering the user in a
	// set keeps creation explicit and lets History distinguish nothing at all
	// from cleared.
	return r.client.SAdd(ctx, "conversation:users", key).Err()
}

func (r *Redis) History(ctx context.Context, key string) ([]Turn, error) {
	vals, err := r.client.LRange(ctx, turnKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading conversation %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	out := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("decoding turn for %s: %w", key, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Redis) Append(ctx context.Context, key string, turn Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, turnKey(key), data).Err(); err != nil {
		return fmt.Errorf("appending turn for %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, turnKey(key)).Err(); err != nil {
		return fmt.Errorf("clearing conversation %s: %w", key, err)
	}
	return nil
}
