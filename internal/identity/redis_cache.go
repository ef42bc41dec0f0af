package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyActive = "identity:snapshot:active"
	snapshotKeyAll    = "identity:snapshot:all"

	// Last-known-good copies outlive the freshness TTL so access checks can
	// ride out short directory outages.
	lastKnownSuffix = ":last"
	lastKnownTTL    = 24 * time.Hour
)

// CachedLookup is a read-through cache in front of a Lookup. Membership
// snapshots are cached in Redis for a short TTL so a detector sweep and the
// per-request access checks in the same window share one upstream call.
// Cache failures fall back to the inner lookup; a stale-but-present snapshot
// is also served when the upstream call fails, which keeps access checks
// working through short directory outages.
type CachedLookup struct {
	inner  Lookup
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLookup wraps inner with a Redis snapshot cache.
func NewCachedLookup(inner Lookup, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLookup {
	return &CachedLookup{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// ListMemberships serves the snapshot from cache when fresh, refreshing it
// from the inner lookup otherwise.
func (c *CachedLookup) ListMemberships(ctx context.Context, includeInactive bool) (*OrgSnapshot, error) {
	key := snapshotKeyActive
	if includeInactive {
		key = snapshotKeyAll
	}

	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var snapshot OrgSnapshot
		if err := json.Unmarshal(cached, &snapshot); err == nil {
			return &snapshot, nil
		}
		c.logger.Warn("discarding corrupt cached identity snapshot", "key", key)
	}

	snapshot, err := c.inner.ListMemberships(ctx, includeInactive)
	if err != nil {
		if stale, staleErr := c.client.Get(ctx, key+lastKnownSuffix).Bytes(); staleErr == nil {
			var s OrgSnapshot
			if json.Unmarshal(stale, &s) == nil {
				c.logger.Warn("identity lookup failed, serving last known snapshot", "error", err)
				return &s, nil
			}
		}
		return nil, err
	}

	if payload, marshalErr := json.Marshal(snapshot); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("failed to cache identity snapshot", "error", setErr)
		}
		if setErr := c.client.Set(ctx, key+lastKnownSuffix, payload, lastKnownTTL).Err(); setErr != nil {
			c.logger.Warn("failed to store last known identity snapshot", "error", setErr)
		}
	}
	return snapshot, nil
}

// ResolveNames caches individual name resolutions under per-id keys.
func (c *CachedLookup) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	var misses []string

	for _, id := range ids {
		if name, err := c.client.Get(ctx, nameKey(id)).Result(); err == nil {
			names[id] = name
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return names, nil
	}

	resolved, err := c.inner.ResolveNames(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, name := range resolved {
		names[id] = name
		if setErr := c.client.Set(ctx, nameKey(id), name, c.ttl).Err(); setErr != nil {
			c.logger.Warn("failed to cache identity name", "id", id, "error", setErr)
		}
	}
	return names, nil
}

func nameKey(id string) string {
	return fmt.Sprintf("identity:name:%s", id)
}
