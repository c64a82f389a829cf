package categorize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/cache"
)

const suggestionTTL = 24 * time.Hour

var _ Categorizer = (*CachedCategorizer)(nil)

// CachedCategorizer memoizes suggestions in Redis. The model call is
// the expensive hop; merchants repeat, so identical inputs within a
// day reuse the first answer.
type CachedCategorizer struct {
	inner  Categorizer
	cache  *cache.RedisClient
	logger *slog.Logger
}

func NewCachedCategorizer(inner Categorizer, c *cache.RedisClient, logger *slog.Logger) *CachedCategorizer {
	return &CachedCategorizer{
		inner:  inner,
		cache:  c,
		logger: logger,
	}
}

// suggestionKey hashes the inputs so merchant names with odd
// characters stay safe as Redis keys.
func suggestionKey(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Merchant))
	h.Write([]byte{0})
	h.Write([]byte(in.Description))
	return "suggest:" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedCategorizer) Categorize(ctx context.Context, in Input) (Suggestion, error) {
	key := suggestionKey(in)

	cached, found, err := cache.Get[Suggestion](c.cache, ctx, key)
	if err != nil {
		// Cache trouble must not block categorization.
		c.logger.WarnContext(ctx, "Suggestion cache read failed", "error", err)
	}
	if found && cached != nil {
		return *cached, nil
	}

	suggestion, err := c.inner.Categorize(ctx, in)
	if err != nil {
		return Suggestion{}, err
	}

	if err := cache.Set(c.cache, ctx, key, suggestion, suggestionTTL); err != nil {
		c.logger.WarnContext(ctx, "Suggestion cache write failed", "error", err)
	}

	return suggestion, nil
}
