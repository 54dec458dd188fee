// Package aggregates provides the rolling per-account windows behind the
// structuring and velocity layers: a 24-hour transacted-amount total and a
// 1-hour transaction count. Windows are eventually consistent; the scoring
// path tolerates modest staleness.
package aggregates

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aegisfin/txmonitor/pkg/metrics"
)

const (
	amountWindow = 24 * time.Hour
	countWindow  = time.Hour

	// Keys expire a little after their window so an idle account cleans
	// itself up without a reaper job.
	keySlack = 10 * time.Minute
)

// RedisAggregateStore keeps both windows in per-account sorted sets scored
// by event time in milliseconds. Reads prune expired members first, so the
// store needs no background maintenance.
type RedisAggregateStore struct {
	client redis.UniversalClient
	prefix string
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewRedisAggregateStore creates a store on the given client. prefix
// namespaces the keys; an empty prefix defaults to "aml".
func NewRedisAggregateStore(client redis.UniversalClient, prefix string, logger *zap.SugaredLogger) *RedisAggregateStore {
	if prefix == "" {
		prefix = "aml"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedisAggregateStore{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RedisAggregateStore) amountKey(account string) string {
	return fmt.Sprintf("%s:agg:amount24h:%s", s.prefix, account)
}

func (s *RedisAggregateStore) countKey(account string) string {
	return fmt.Sprintf("%s:agg:count1h:%s", s.prefix, account)
}

// Total24h returns the rolling 24-hour transacted amount for an account.
// Unknown accounts report zero, never an error.
func (s *RedisAggregateStore) Total24h(ctx context.Context, account string) (decimal.Decimal, error) {
	started := s.now()
	key := s.amountKey(account)
	cutoff := started.Add(-amountWindow).UnixMilli()

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		metrics.AggregateReadErrors.WithLabelValues("24h_total").Inc()
		return decimal.Zero, fmt.Errorf("prune 24h window for %s: %w", account, err)
	}
	members, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		metrics.AggregateReadErrors.WithLabelValues("24h_total").Inc()
		return decimal.Zero, fmt.Errorf("read 24h window for %s: %w", account, err)
	}

	total := decimal.Zero
	for _, member := range members {
		amount, err := parseAmountMember(member)
		if err != nil {
			// A corrupt member means the window is unreliable; scoring
			// on a partial total would understate risk.
			metrics.AggregateReadErrors.WithLabelValues("24h_total").Inc()
			return decimal.Zero, fmt.Errorf("corrupt 24h window member for %s: %w", account, err)
		}
		total = total.Add(amount)
	}

	metrics.AggregateReadLatency.WithLabelValues("24h_total").Observe(s.now().Sub(started).Seconds())
	return total, nil
}

// Count1h returns the rolling 1-hour transaction count for an account.
// Unknown accounts report zero, never an error.
func (s *RedisAggregateStore) Count1h(ctx context.Context, account string) (int64, error) {
	started := s.now()
	key := s.countKey(account)
	cutoff := started.Add(-countWindow).UnixMilli()

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		metrics.AggregateReadErrors.WithLabelValues("1h_count").Inc()
		return 0, fmt.Errorf("prune 1h window for %s: %w", account, err)
	}
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		metrics.AggregateReadErrors.WithLabelValues("1h_count").Inc()
		return 0, fmt.Errorf("read 1h window for %s: %w", account, err)
	}

	metrics.AggregateReadLatency.WithLabelValues("1h_count").Observe(s.now().Sub(started).Seconds())
	return count, nil
}

// Record appends a scored transaction to both windows. The scoring path
// reads before the consumer records, so the current transaction never
// double-counts into its own structuring check.
func (s *RedisAggregateStore) Record(ctx context.Context, account string, txID string, amount decimal.Decimal, at time.Time) error {
	member := txID + "|" + amount.String()
	score := float64(at.UnixMilli())

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.amountKey(account), redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, s.amountKey(account), amountWindow+keySlack)
	pipe.ZAdd(ctx, s.countKey(account), redis.Z{Score: score, Member: txID})
	pipe.Expire(ctx, s.countKey(account), countWindow+keySlack)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record transaction %s into windows: %w", txID, err)
	}
	return nil
}

func parseAmountMember(member string) (decimal.Decimal, error) {
	idx := strings.LastIndex(member, "|")
	if idx < 0 {
		return decimal.Zero, fmt.Errorf("member %q has no amount part", member)
	}
	return decimal.NewFromString(member[idx+1:])
}
