package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ducdigital/fairy-go/internal/config"
)

// ScoredMember is one entry of a sorted-set range read, used for SLOWEST.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the storage contract the dispatch/process/reschedule/
// introspection logic is written against. RedisStore is the production
// implementation; tests use an in-memory fake satisfying the same
// interface so the decision logic (failure-table, reschedule buffer
// construction, envelope shaping) can be exercised without a live Redis.
type Store interface {
	Close() error

	RPush(ctx context.Context, key, value string) error
	LPush(ctx context.Context, key, value string) error
	LPop(ctx context.Context, key string) (value string, ok bool, err error)
	RPop(ctx context.Context, key string) (value string, ok bool, err error)
	LIndex(ctx context.Context, key string, index int64) (value string, ok bool, err error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HDel(ctx context.Context, key, field string) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error
	ZCard(ctx context.Context, key string) (int64, error)

	// PromoteHead atomically moves the head of src onto the tail of dst,
	// but only if src's current head still equals want. ok=false means the
	// head changed (or src emptied) between the caller's read and this
	// call and nothing was mutated; the caller restarts without sleeping.
	PromoteHead(ctx context.Context, src, dst, want string) (newLen int64, ok bool, err error)

	// DrainHead atomically pops key's head and peeks (without removing)
	// the element that becomes the new head. has=false means the list is
	// now empty.
	DrainHead(ctx context.Context, key string) (next string, has bool, err error)

	// CommitReschedule appends buffer to the tail of sourceKey and deletes
	// every key in delKeys, guarded by a WATCH on watchKeys. aborted=true
	// means a concurrent mutation was observed (per §4.4) and nothing was
	// committed; the caller retries the whole read-then-commit protocol.
	CommitReschedule(ctx context.Context, watchKeys []string, sourceKey string, buffer []string, delKeys []string) (aborted bool, err error)
}

// RedisStore is the go-redis backed Store implementation. It generalizes
// the teacher's stream-oriented client wrapper to the list/set/hash/
// sorted-set primitives this queue's protocol is built from.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials Redis per cfg and verifies connectivity.
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying go-redis client for callers that need
// direct access (pub/sub subscription, heartbeat keys).
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) RPush(ctx context.Context, key, value string) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) LPush(ctx context.Context, key, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lpop %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) RPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rpop %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) LIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	v, err := s.client.LIndex(ctx, key, index).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lindex %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vs, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return vs, nil
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del %v: %w", keys, err)
	}
	return nil
}

func (s *RedisStore) SAdd(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	vs, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return vs, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return m, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, incr).Result()
	if err != nil {
		return 0, fmt.Errorf("hincrby %s.%s: %w", key, field, err)
	}
	return n, nil
}

func (s *RedisStore) HDel(ctx context.Context, key, field string) error {
	if err := s.client.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("hdel %s.%s: %w", key, field, err)
	}
	return nil
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("zrevrange %s: non-string member", key)
		}
		out = append(out, ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (s *RedisStore) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	if err := s.client.ZRemRangeByRank(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("zremrangebyrank %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) PromoteHead(ctx context.Context, src, dst, want string) (int64, bool, error) {
	var cmders []redis.Cmder
	var matched bool

	txf := func(tx *redis.Tx) error {
		cur, err := tx.LIndex(ctx, src, 0).Result()
		if errors.Is(err, redis.Nil) {
			matched = false
			return nil
		}
		if err != nil {
			return err
		}
		if cur != want {
			matched = false
			return nil
		}
		matched = true
		var perr error
		cmders, perr = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPop(ctx, src)
			pipe.RPush(ctx, dst, want)
			return nil
		})
		return perr
	}

	err := s.client.Watch(ctx, txf, src)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("promote head %s->%s: %w", src, dst, err)
	}
	if !matched {
		return 0, false, nil
	}
	newLen := cmders[1].(*redis.IntCmd).Val()
	return newLen, true, nil
}

func (s *RedisStore) DrainHead(ctx context.Context, key string) (string, bool, error) {
	for {
		var cmders []redis.Cmder
		txf := func(tx *redis.Tx) error {
			var perr error
			cmders, perr = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LPop(ctx, key)
				pipe.LIndex(ctx, key, 0)
				return nil
			})
			return perr
		}
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("drain head %s: %w", key, err)
		}
		peek, err := cmders[1].(*redis.StringCmd).Result()
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("drain head %s: peek: %w", key, err)
		}
		return peek, true, nil
	}
}

func (s *RedisStore) CommitReschedule(ctx context.Context, watchKeys []string, sourceKey string, buffer []string, delKeys []string) (bool, error) {
	txf := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, raw := range buffer {
				pipe.RPush(ctx, sourceKey, raw)
			}
			if len(delKeys) > 0 {
				pipe.Del(ctx, delKeys...)
			}
			return nil
		})
		return err
	}
	err := s.client.Watch(ctx, txf, watchKeys...)
	if errors.Is(err, redis.TxFailedErr) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("commit reschedule %v: %w", watchKeys, err)
	}
	return false, nil
}
