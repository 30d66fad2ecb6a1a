// internal/cache/trigger_log.go

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"PetAlertAPI/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// entries older than the weekly window plus a day of slack expire on their own
const keyTTL = 8 * 24 * time.Hour

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return rdb, nil
}

// TriggerLog keeps one sorted set per rule, scored by trigger time in
// microseconds. Counting is exact to the microsecond.
type TriggerLog struct {
	rdb    *redis.Client
	prefix string
}

func NewTriggerLog(rdb *redis.Client, prefix string) *TriggerLog {
	return &TriggerLog{rdb: rdb, prefix: prefix}
}

func (l *TriggerLog) key(ruleID string) string {
	return l.prefix + ":triggers:" + ruleID
}

func (l *TriggerLog) Append(ctx context.Context, ruleID string, at time.Time) error {
	key := l.key(ruleID)
	member := fmt.Sprintf("%d-%s", at.UnixNano(), uuid.NewString())

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append trigger for rule %s: %w", ruleID, err)
	}
	return nil
}

// CountBetween counts entries in [from, to).
func (l *TriggerLog) CountBetween(ctx context.Context, ruleID string, from, to time.Time) (int, error) {
	min := strconv.FormatInt(from.UnixMicro(), 10)
	max := "(" + strconv.FormatInt(ceilMicro(to), 10)

	n, err := l.rdb.ZCount(ctx, l.key(ruleID), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count triggers for rule %s: %w", ruleID, err)
	}
	return int(n), nil
}

// Prune removes entries older than before from every rule's set.
func (l *TriggerLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	max := "(" + strconv.FormatInt(before.UnixMicro(), 10)

	var removed int64
	iter := l.rdb.Scan(ctx, 0, l.prefix+":triggers:*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := l.rdb.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan trigger keys: %w", err)
	}

	return removed, nil
}

func ceilMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Sub(time.UnixMicro(us)) > 0 {
		us++
	}
	return us
}
