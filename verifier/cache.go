package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CachedVerifier fronts a Verifier with a short-lived Redis cache of
// positive verdicts. Rejections are never cached; cache outages degrade to
// calling the verifier directly.
type CachedVerifier struct {
	next   Verifier
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedVerifier wraps next with the Redis cache.
func NewCachedVerifier(next Verifier, client *redis.Client, prefix string, ttl time.Duration) *CachedVerifier {
	if prefix == "" {
		prefix = "portal"
	}
	return &CachedVerifier{next: next, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedVerifier) redisKey(resourceID, token string) string {
	return fmt.Sprintf("%s:verify:%s:%s", c.prefix, resourceID, hashToken(token))
}

// Verify implements Verifier.
func (c *CachedVerifier) Verify(ctx context.Context, resourceID, token string) error {
	key := c.redisKey(resourceID, token)

	if err := c.client.Get(ctx, key).Err(); err == nil {
		return nil
	} else if err != redis.Nil {
		log.Debug().Err(err).Msg("Verification cache unavailable, consulting verifier")
	}

	if err := c.next.Verify(ctx, resourceID, token); err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, "1", c.ttl).Err(); err != nil {
		log.Debug().Err(err).Msg("Failed to cache verification verdict")
	}
	return nil
}

var _ Verifier = (*CachedVerifier)(nil)
