package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNil is returned when a key, field or list element does not exist.
var ErrNil = errors.New("kvstore: nil")

// Message is one payload received on a subscribed channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a confirmed subscription to one channel. Messages is closed after Close.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Store is the shared key/value store used as broker, progress log, cache and pub/sub fan-out.
// Every call is a single round-trip and atomic at the key level.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HLen(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	// IncrWithTTL increments key and sets ttl when the key was just created.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// ScanPrefix returns every key starting with prefix.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns once the server confirmed the subscription.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	RPopLPush(ctx context.Context, source, destination string) (string, error)
	LRem(ctx context.Context, key string, count int64, value string) error
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// BLPop waits up to timeout for an element of key.
	BLPop(ctx context.Context, timeout time.Duration, key string) (string, error)

	Eval(ctx context.Context, script *Script, keys []string, args ...interface{}) (interface{}, error)

	Ping(ctx context.Context) error
	// EnsureConnected pings with a short bounded retry so a dropped connection is re-dialed.
	EnsureConnected(ctx context.Context) error
	Close() error
}

// Namespaces keeps the two logical databases apart.
type Namespaces struct {
	Default   Store
	RateLimit Store
}

func (n *Namespaces) Ping(ctx context.Context) error {
	if err := n.Default.Ping(ctx); err != nil {
		return err
	}
	return n.RateLimit.Ping(ctx)
}

func (n *Namespaces) Close() error {
	return errors.Join(n.Default.Close(), n.RateLimit.Close())
}
