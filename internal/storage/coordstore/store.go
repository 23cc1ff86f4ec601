// Package coordstore implements the coordination / rate-control store
// spec.md §4.1 and §6 require: atomic set membership, TTL keys, and a
// sorted-set priority queue, expressed directly as the Redis command
// surface §6 lists (SADD/SCARD/SREM, SET EX/TTL, ZADD/ZRANGE/ZREM/ZCARD/
// ZRANK, GET/SET). The teacher has no analogue (DefraDB has none of
// these primitives); this package is grounded on taibuivan/yomira's use
// of github.com/redis/go-redis/v9.
package coordstore

import (
	"context"
	"time"
)

// Store is the coordination-store contract consulted by
// internal/admission and internal/queue. Every method maps to exactly
// the Redis command(s) named in its doc comment, so a caller can reason
// about atomicity without needing to read the implementation.
type Store interface {
	// SAdd adds member to set key. SADD.
	SAdd(ctx context.Context, key, member string) error
	// SRem removes member from set key. SREM.
	SRem(ctx context.Context, key, member string) error
	// SCard returns the cardinality of set key. SCARD.
	SCard(ctx context.Context, key string) (int64, error)
	// SIsMember reports whether member is in set key. SISMEMBER.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// SetEX sets key=value with an expiry. SET k v EX ttl.
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	// TTL returns the remaining time-to-live of key, or -1 if it has no
	// expiry, or -2 if it does not exist. TTL.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ZAdd adds member with score to sorted set key. ZADD.
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRange returns members of key ordered by score ascending, start/stop
	// inclusive 0-based indices (-1 meaning "to the end"). ZRANGE.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZRem removes member from sorted set key. ZREM.
	ZRem(ctx context.Context, key, member string) error
	// ZCard returns the cardinality of sorted set key. ZCARD.
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRank returns the 0-based rank of member in key ordered by score
	// ascending, or -1 if member is not present. ZRANK.
	ZRank(ctx context.Context, key, member string) (int64, error)

	// Get returns the value of key, or "" with ok=false if absent. GET.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set sets key=value with no expiry. SET.
	Set(ctx context.Context, key, value string) error

	// Ping verifies connectivity, used by admission's fail-closed check.
	Ping(ctx context.Context) error
}
