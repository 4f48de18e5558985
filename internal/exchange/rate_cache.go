package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// DefaultCacheTTL is how long a live table is served before refreshing.
const DefaultCacheTTL = 24 * time.Hour

// defaultRetryAfter spaces out live fetches after a failure, so an
// unreachable source does not add its timeout to every request.
const defaultRetryAfter = time.Minute

type refreshCall struct {
	done  chan struct{}
	table *RateTable
}

// RateCache serves a rate table from a RateSource, refreshing lazily once
// the table is older than the TTL. Fetch failures never surface: callers
// get the last good table, or the static fallback table when there is none.
type RateCache struct {
	source     RateSource
	base       string
	ttl        time.Duration
	retryAfter time.Duration
	now        func() time.Time
	refreshes  metric.Int64Counter

	mu          sync.Mutex
	table       *RateTable
	lastFailure time.Time
	inFlight    *refreshCall
}

// NewRateCache returns a cache over source relative to models.BaseCurrency.
func NewRateCache(source RateSource, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	refreshes, err := otel.Meter("gitlab.com/yelinaung/business-ledger/internal/exchange").Int64Counter(
		"ledger.exchange.refreshes",
		metric.WithDescription("Exchange rate refresh attempts, by resulting table origin."),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create rate refresh counter")
	}
	return &RateCache{
		source:     source,
		base:       models.BaseCurrency,
		ttl:        ttl,
		retryAfter: defaultRetryAfter,
		now:        time.Now,
		refreshes:  refreshes,
	}
}

// Rates returns the current table. Concurrent callers hitting an expired
// cache share one in-flight fetch.
func (c *RateCache) Rates(ctx context.Context) (*RateTable, error) {
	now := c.now()

	c.mu.Lock()
	if c.table != nil && now.Sub(c.table.FetchedAt) < c.ttl {
		table := c.table
		c.mu.Unlock()
		return table, nil
	}
	if c.source == nil || (!c.lastFailure.IsZero() && now.Sub(c.lastFailure) < c.retryAfter) {
		table := c.degradedLocked()
		c.mu.Unlock()
		return table, nil
	}

	call := c.inFlight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		c.inFlight = call
		// Detached so one impatient caller cannot fail the shared fetch.
		go c.refresh(context.WithoutCancel(ctx), call)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		table := c.degradedLocked()
		c.mu.Unlock()
		return table, nil
	case <-call.done:
		return call.table, nil
	}
}

// Reset drops the cached table and any failure backoff.
func (c *RateCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = nil
	c.lastFailure = time.Time{}
}

func (c *RateCache) refresh(ctx context.Context, call *refreshCall) {
	table, err := c.source.Latest(ctx, c.base)
	fetchedAt := c.now()

	c.mu.Lock()
	if err == nil && table != nil {
		var filled []string
		table, filled = withFallbackGaps(table)
		table.FetchedAt = fetchedAt
		table.Origin = OriginLive
		c.table = table
		c.lastFailure = time.Time{}
		if len(filled) > 0 {
			logger.Log.Debug().
				Str("currencies", strings.Join(filled, ",")).
				Msg("Live rate table missing currencies; filled from fallback table")
		}
	} else {
		c.lastFailure = fetchedAt
		table = c.degradedLocked()
		logger.Log.Warn().
			Err(err).
			Str("origin", table.Origin).
			Msg("Exchange rate refresh failed")
	}
	call.table = table
	c.inFlight = nil
	close(call.done)
	c.mu.Unlock()

	if c.refreshes != nil {
		c.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", table.Origin)))
	}
}

// degradedLocked returns the last good table marked stale, or the fallback table.
func (c *RateCache) degradedLocked() *RateTable {
	if c.table == nil {
		return FallbackTable()
	}
	stale := *c.table
	stale.Origin = OriginStale
	return &stale
}
