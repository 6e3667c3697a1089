package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CacheWriter is the real-time cache layer field workers' dirty state
// ultimately lands on. Implemented by RedisCache; a fake satisfying this
// interface is used in tests so the storage system's flush/backpressure
// logic can be exercised without a live redis.
type CacheWriter interface {
	WriteRealtime(ctx context.Context, entries map[uint64]RTFields) error
	FetchUsers(ctx context.Context, uids []uint64) (map[uint64]UserSnapshot, error)
}

// RedisCache is the go-redis backed CacheWriter. Every player's realtime
// state lives in a `u:{uid}:rt` hash with x,z,hp,sp fields.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps an already-configured *redis.Client.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func rtKey(uid uint64) string {
	return fmt.Sprintf("u:%d:rt", uid)
}

// WriteRealtime pipelines one HSet per entry so a large real-time flush
// costs a single round trip regardless of batch size.
func (c *RedisCache) WriteRealtime(ctx context.Context, entries map[uint64]RTFields) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for uid, f := range entries {
		pipe.HSet(ctx, rtKey(uid), map[string]interface{}{
			"x":  f.X,
			"z":  f.Z,
			"hp": f.HP,
			"sp": f.SP,
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// FetchUsers pipelines one HMGet per uid, returning only the uids that
// actually had a cache entry.
func (c *RedisCache) FetchUsers(ctx context.Context, uids []uint64) (map[uint64]UserSnapshot, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	pipe := c.rdb.Pipeline()
	cmds := make(map[uint64]*redis.SliceCmd, len(uids))
	for _, uid := range uids {
		cmds[uid] = pipe.HMGet(ctx, rtKey(uid), "x", "z", "hp", "sp")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make(map[uint64]UserSnapshot, len(uids))
	for uid, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) != 4 || vals[0] == nil {
			continue
		}
		x, _ := strconv.ParseFloat(fmt.Sprint(vals[0]), 64)
		z, _ := strconv.ParseFloat(fmt.Sprint(vals[1]), 64)
		hp, _ := strconv.Atoi(fmt.Sprint(vals[2]))
		sp, _ := strconv.Atoi(fmt.Sprint(vals[3]))
		out[uid] = UserSnapshot{UID: uid, RTFields: RTFields{X: x, Z: z, HP: hp, SP: sp}}
	}
	return out, nil
}
