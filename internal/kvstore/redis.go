package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chemaudit/chemaudit/internal/config"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	scanCount         = 500
	reconnectAttempts = 3
	reconnectBackoff  = 100 * time.Millisecond
)

// Script is a server-side Lua script, loaded lazily by sha.
type Script struct {
	script *redis.Script
}

func NewScript(src string) *Script {
	return &Script{script: redis.NewScript(src)}
}

type redisStore struct {
	client *redis.Client
	name   string
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client *redis.Client, name string) Store {
	return &redisStore{client: client, name: name}
}

// NewNamespaces dials both logical databases and checks they answer.
func NewNamespaces(ctx context.Context, cfg *config.Config) (*Namespaces, error) {
	dial := func(db int, name string) (Store, error) {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           db,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis %s (db %d): %w", cfg.Redis.Address, db, err)
		}
		zap.S().Named("kvstore").Infow("connected to redis", "address", cfg.Redis.Address, "db", db, "namespace", name)
		return NewRedis(client, name), nil
	}

	def, err := dial(cfg.Redis.DB, "default")
	if err != nil {
		return nil, err
	}
	rl, err := dial(cfg.Redis.RateLimitDB, "ratelimit")
	if err != nil {
		_ = def.Close()
		return nil, err
	}
	return &Namespaces{Default: def, RateLimit: rl}, nil
}

func mapErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNil
	}
	return err
}

func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	return v, mapErr(err)
}

func (r *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisStore) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.SetEX(ctx, key, value, ttl).Err()
}

func (r *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return r.client.HSet(ctx, key, values).Err()
}

func (r *redisStore) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := r.client.HGet(ctx, key, field).Result()
	return v, mapErr(err)
}

func (r *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *redisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return r.client.HIncrBy(ctx, key, field, delta).Result()
}

func (r *redisStore) HLen(ctx context.Context, key string) (int64, error) {
	return r.client.HLen(ctx, key).Result()
}

func (r *redisStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return r.client.SAdd(ctx, key, toArgs(members)...).Result()
}

func (r *redisStore) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return r.client.SRem(ctx, key, toArgs(members)...).Result()
}

func (r *redisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *redisStore) SCard(ctx context.Context, key string) (int64, error) {
	return r.client.SCard(ctx, key).Result()
}

func (r *redisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *redisStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanCount).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (r *redisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *redisStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	// the first reply is the subscription confirmation
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan Message, 16),
		done: make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

func (r *redisStore) LPush(ctx context.Context, key string, values ...string) error {
	return r.client.LPush(ctx, key, toArgs(values)...).Err()
}

func (r *redisStore) RPush(ctx context.Context, key string, values ...string) error {
	return r.client.RPush(ctx, key, toArgs(values)...).Err()
}

func (r *redisStore) RPopLPush(ctx context.Context, source, destination string) (string, error) {
	v, err := r.client.RPopLPush(ctx, source, destination).Result()
	return v, mapErr(err)
}

func (r *redisStore) LRem(ctx context.Context, key string, count int64, value string) error {
	return r.client.LRem(ctx, key, count, value).Err()
}

func (r *redisStore) LLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

func (r *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

func (r *redisStore) BLPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	v, err := r.client.BLPop(ctx, timeout, key).Result()
	if err != nil {
		return "", mapErr(err)
	}
	// reply is [key, value]
	if len(v) != 2 {
		return "", ErrNil
	}
	return v[1], nil
}

func (r *redisStore) Eval(ctx context.Context, script *Script, keys []string, args ...interface{}) (interface{}, error) {
	v, err := script.script.Run(ctx, r.client, keys, args...).Result()
	return v, mapErr(err)
}

func (r *redisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisStore) EnsureConnected(ctx context.Context) error {
	var err error
	backoff := reconnectBackoff
	for attempt := 0; attempt < reconnectAttempts; attempt++ {
		if err = r.client.Ping(ctx).Err(); err == nil {
			return nil
		}
		zap.S().Named("kvstore").Warnw("ping failed, retrying", "namespace", r.name, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("kv store %s unreachable: %w", r.name, err)
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
