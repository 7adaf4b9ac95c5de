package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-align/internal/goal"
)

const summaryKeyFmt = "goalsummary:%s:%s:%s"

// SummaryCache stores computed summaries per organisation, level and
// evaluation instant (to the second).
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

// SummaryKey builds the cache key. An empty level means the whole
// organisation. asOf is keyed in UTC to the second.
func SummaryKey(orgID string, level goal.Level, asOf time.Time) string {
	lvl := string(level)
	if lvl == "" {
		lvl = "all"
	}
	return fmt.Sprintf(summaryKeyFmt, orgID, lvl, asOf.UTC().Truncate(time.Second).Format(time.RFC3339))
}

// Get returns the cached summary, or ok=false on a miss.
func (c *SummaryCache) Get(ctx context.Context, orgID string, level goal.Level, asOf time.Time) (goal.Summary, bool, error) {
	raw, err := c.rdb.Get(ctx, SummaryKey(orgID, level, asOf)).Bytes()
	if errors.Is(err, redis.Nil) {
		return goal.Summary{}, false, nil
	}
	if err != nil {
		return goal.Summary{}, false, err
	}
	var out goal.Summary
	if err := json.Unmarshal(raw, &out); err != nil {
		return goal.Summary{}, false, fmt.Errorf("decode cached summary: %w", err)
	}
	return out, true, nil
}

func (c *SummaryCache) Set(ctx context.Context, orgID string, level goal.Level, asOf time.Time, summary goal.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, SummaryKey(orgID, level, asOf), raw, c.ttl).Err()
}

// Invalidate drops every cached summary for an organisation.
func (c *SummaryCache) Invalidate(ctx context.Context, orgID string) (int, error) {
	var cursor uint64
	removed := 0
	pattern := fmt.Sprintf("goalsummary:%s:*", orgID)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return removed, nil
}
