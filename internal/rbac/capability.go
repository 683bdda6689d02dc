package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/huiui/hello-antd-role/internal/shared"
)

// Capabilities is the read-only projection handed to clients so they can
// hide controls. The server never consults it for enforcement.
type Capabilities struct {
	IsAdmin     bool     `json:"isAdmin"`
	Permissions []string `json:"permissions"`
}

// Has reports whether the projection grants name.
func (c Capabilities) Has(name string) bool {
	if c.IsAdmin {
		return true
	}
	name = normalizeName(name)
	for _, p := range c.Permissions {
		if p == shared.Wildcard || p == name {
			return true
		}
	}
	return false
}

func capabilitiesFrom(set PermissionSet) Capabilities {
	return Capabilities{IsAdmin: set.IsSuperuser(), Permissions: set.Names()}
}

const capabilityVersionKey = "rbac:capabilities:version"

// CapabilityCache stores projections in Redis under a versioned key. Bumping
// the version orphans every cached projection at once.
type CapabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCapabilityCache builds the cache. A nil client disables caching.
func NewCapabilityCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CapabilityCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapabilityCache{client: client, ttl: ttl, logger: logger}
}

func (c *CapabilityCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, capabilityVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

func (c *CapabilityCache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rbac:capabilities:%d:%d", userID, ver), nil
}

// Fetch returns the cached projection for userID or builds it with load.
// Redis failures fall back to load so a cache outage never blocks login.
func (c *CapabilityCache) Fetch(ctx context.Context, userID int64, load func(context.Context) (Capabilities, error)) (Capabilities, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		c.logger.Warn("capability cache unavailable", slog.Any("error", err))
		return load(ctx)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// The call is shared by every waiter on key.
		ctx := context.WithoutCancel(ctx)
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var caps Capabilities
			if err := json.Unmarshal(payload, &caps); err == nil {
				return caps, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("capability cache read", slog.Any("error", err))
		}

		caps, err := load(ctx)
		if err != nil {
			return Capabilities{}, err
		}
		if raw, err := json.Marshal(caps); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("capability cache write", slog.Any("error", err))
			}
		}
		return caps, nil
	})
	if err != nil {
		return Capabilities{}, err
	}
	return v.(Capabilities), nil
}

// Bump invalidates every cached projection.
func (c *CapabilityCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, capabilityVersionKey).Err()
}

// Version reports the current version; used by health output.
func (c *CapabilityCache) Version(ctx context.Context) (string, error) {
	if c == nil || c.client == nil {
		return "disabled", nil
	}
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(ver, 10), nil
}
