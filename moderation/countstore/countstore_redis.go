package countstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCountPrefix string = "count/"
var redisDistinctPrefix string = "distinct/"

// RedisCountStore implements windowed counters on redis. INCR and
// SADD+SCARD are atomic server-side, which gives the required
// increment-and-check semantics across concurrent events and across
// multiple guardian instances.
//
// Distinct counts use sets rather than HyperLogLog: the mass-report (15)
// and harassment (3) thresholds are small enough that approximation
// error would change outcomes.
type RedisCountStore struct {
	Client *redis.Client
}

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	rcs := RedisCountStore{
		Client: rdb,
	}
	return &rcs, nil
}

// windows are retained for twice their length, so a just-rolled-over
// bucket can still be read while the new one fills
func windowTTL(window time.Duration) time.Duration {
	return 2 * window
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string, window time.Duration) (int, error) {
	key := redisCountPrefix + windowBucket(name, val, window)

	// increment and set expiry in a single redis round-trip
	multi := s.Client.Pipeline()
	incr := multi.Incr(ctx, key)
	if window > 0 {
		multi.Expire(ctx, key, windowTTL(window))
	}
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisCountStore) Get(ctx context.Context, name, val string, window time.Duration) (int, error) {
	key := redisCountPrefix + windowBucket(name, val, window)
	c, err := s.Client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Reset(ctx context.Context, name, val string, window time.Duration) error {
	key := redisCountPrefix + windowBucket(name, val, window)
	return s.Client.Del(ctx, key).Err()
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, member string, window time.Duration) (int, error) {
	key := redisDistinctPrefix + windowBucket(name, bucket, window)

	multi := s.Client.Pipeline()
	multi.SAdd(ctx, key, member)
	card := multi.SCard(ctx, key)
	if window > 0 {
		multi.Expire(ctx, key, windowTTL(window))
	}
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

func (s *RedisCountStore) GetDistinct(ctx context.Context, name, bucket string, window time.Duration) (int, error) {
	key := redisDistinctPrefix + windowBucket(name, bucket, window)
	c, err := s.Client.SCard(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}
