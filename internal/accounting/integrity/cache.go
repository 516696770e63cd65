package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "gl:integrity:version"
	reportKeyPrefix = "gl:integrity:report:"
	bumpChannel     = "gl.bump"
)

// ReportCache keeps the last integrity report in Redis. Posting bumps the
// version so a stale report is never served after the ledger changes.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Version returns the current ledger version, initialising when missing.
func (c *ReportCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	return ver, err
}

func (c *ReportCache) key(ctx context.Context) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return reportKeyPrefix + strconv.FormatInt(ver, 10), nil
}

// Last returns the cached report for the current version.
func (c *ReportCache) Last(ctx context.Context) (Report, bool, error) {
	if c == nil || c.client == nil {
		return Report{}, false, nil
	}
	key, err := c.key(ctx)
	if err != nil {
		return Report{}, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, err
	}
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return Report{}, false, err
	}
	return report, true, nil
}

// Store saves the report under the current version.
func (c *ReportCache) Store(ctx context.Context, report Report) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Fetch serves the cached report or runs the loader and caches its result.
func (c *ReportCache) Fetch(ctx context.Context, loader func(context.Context) (Report, error)) (Report, bool, error) {
	if loader == nil {
		return Report{}, false, errors.New("integrity: loader required")
	}
	if report, ok, err := c.Last(ctx); err != nil {
		return Report{}, false, err
	} else if ok {
		return report, true, nil
	}
	report, err := loader(ctx)
	if err != nil {
		return Report{}, false, err
	}
	if err := c.Store(ctx, report); err != nil {
		return report, false, err
	}
	return report, false, nil
}

// Bump invalidates the cached report and announces the new version.
func (c *ReportCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}
