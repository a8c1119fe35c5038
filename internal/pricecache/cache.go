package pricecache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"multiswap/internal/constants"
	"multiswap/internal/pricefeed"
)

// Fetcher is the narrow slice of the price feed client the cache needs.
type Fetcher interface {
	FetchPrice(ctx context.Context, feedID string) (pricefeed.Quote, error)
}

// Record is the latest known price point for one feed id. Records survive
// failed refreshes: a refresh that fails marks the previous record stale
// instead of dropping it.
type Record struct {
	FeedID       string    `json:"feed_id"`
	PriceUsd     float64   `json:"price_usd"`
	MarketCapUsd float64   `json:"market_cap_usd"`
	FetchedAt    time.Time `json:"fetched_at"`
	Stale        bool      `json:"stale"`
}

// Config holds cache construction parameters.
type Config struct {
	Fetcher         Fetcher
	FeedIDs         []string
	RetryInterval   time.Duration // default constants.PriceRetryInterval
	RefreshInterval time.Duration // default constants.PriceRefreshInterval
	RequestsPerSec  float64       // feed request pacing, default 5
	Store           Store         // optional shared record store
	Logger          *logrus.Logger
}

type inflight struct {
	done chan struct{}
	rec  Record
	err  error
}

// Cache holds PriceRecords for a fixed set of feed ids and keeps them fresh
// with two timers: a short retry cycle over feeds that failed last time, and
// a long cycle over everything. The mutex is needed because the timers fire
// on their own goroutine while the session reads from the event loop.
type Cache struct {
	fetcher Fetcher
	feedIDs []string
	retry   time.Duration
	refresh time.Duration
	limiter *rate.Limiter
	store   Store
	logger  *logrus.Logger

	mu       sync.Mutex
	records  map[string]Record
	failed   map[string]struct{}
	inFlight map[string]*inflight

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(cfg Config) (*Cache, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("pricecache: fetcher is nil")
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = constants.PriceRetryInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = constants.PriceRefreshInterval
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Cache{
		fetcher:  cfg.Fetcher,
		feedIDs:  append([]string(nil), cfg.FeedIDs...),
		retry:    cfg.RetryInterval,
		refresh:  cfg.RefreshInterval,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		store:    cfg.Store,
		logger:   cfg.Logger,
		records:  make(map[string]Record),
		failed:   make(map[string]struct{}),
		inFlight: make(map[string]*inflight),
	}, nil
}

// Start warms the cache from the shared store (best effort), kicks off an
// initial full refresh and launches both timer loops. Close cancels them.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.warm(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.RefreshAll(ctx); err != nil {
			c.logger.WithError(err).Warn("initial price refresh incomplete")
		}
		c.run(ctx)
	}()
}

// Close tears down the timers so nothing keeps mutating a cache nobody reads.
func (c *Cache) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.started = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Cache) run(ctx context.Context) {
	retryTicker := time.NewTicker(c.retry)
	refreshTicker := time.NewTicker(c.refresh)
	defer retryTicker.Stop()
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-retryTicker.C:
			if err := c.RefreshFailed(ctx); err != nil {
				c.logger.WithError(err).Debug("price retry cycle incomplete")
			}
		case <-refreshTicker.C:
			if err := c.RefreshAll(ctx); err != nil {
				c.logger.WithError(err).Warn("price refresh cycle incomplete")
			}
		}
	}
}

// Get returns the latest record for feedID, stale or not. The second return
// is false when no fetch has ever succeeded for the feed.
func (c *Cache) Get(feedID string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[feedID]
	return rec, ok
}

// Delayed reports whether every known feed is currently in the failed set,
// i.e. the UI should show "prices delayed".
func (c *Cache) Delayed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.feedIDs) > 0 && len(c.failed) >= len(c.feedIDs)
}

// RefreshAll fetches every known feed id. Individual failures land in the
// retry set and do not abort the cycle; the returned error aggregates them.
func (c *Cache) RefreshAll(ctx context.Context) error {
	return c.refreshSet(ctx, c.feedIDs)
}

// RefreshFailed fetches only the feeds that failed in a previous cycle.
func (c *Cache) RefreshFailed(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.failed))
	for id := range c.failed {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	return c.refreshSet(ctx, ids)
}

func (c *Cache) refreshSet(ctx context.Context, ids []string) error {
	var failures int
	var lastErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Refresh(ctx, id); err != nil {
			failures++
			lastErr = err
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d feeds failed, last: %w", failures, len(ids), lastErr)
	}
	return nil
}

// Refresh fetches one feed id. Concurrent callers for the same id share a
// single in-flight request; the second caller blocks on the first's result.
func (c *Cache) Refresh(ctx context.Context, feedID string) (Record, error) {
	c.mu.Lock()
	if call, ok := c.inFlight[feedID]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.rec, call.err
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	call := &inflight{done: make(chan struct{})}
	c.inFlight[feedID] = call
	c.mu.Unlock()

	call.rec, call.err = c.fetchAndStore(ctx, feedID)
	close(call.done)

	c.mu.Lock()
	delete(c.inFlight, feedID)
	c.mu.Unlock()

	return call.rec, call.err
}

func (c *Cache) fetchAndStore(ctx context.Context, feedID string) (Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Record{}, err
	}

	quote, err := c.fetcher.FetchPrice(ctx, feedID)
	if err == nil {
		err = validQuote(quote)
	}
	if err != nil {
		c.mu.Lock()
		c.failed[feedID] = struct{}{}
		prev, had := c.records[feedID]
		if had && !prev.Stale {
			prev.Stale = true
			c.records[feedID] = prev
		}
		c.mu.Unlock()
		c.logger.WithError(err).WithField("feed", feedID).Debug("price fetch failed")
		return prev, err
	}

	rec := Record{
		FeedID:       feedID,
		PriceUsd:     quote.PriceUsd,
		MarketCapUsd: quote.MarketCapUsd,
		FetchedAt:    time.Now().UTC(),
	}

	c.mu.Lock()
	c.records[feedID] = rec
	delete(c.failed, feedID)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, rec); err != nil {
			c.logger.WithError(err).WithField("feed", feedID).Debug("price store save failed")
		}
	}

	return rec, nil
}

// warm seeds records from the shared store so a fresh session has prices to
// show before its first fetch lands. Warmed records are tagged stale.
func (c *Cache) warm(ctx context.Context) {
	if c.store == nil {
		return
	}
	for _, id := range c.feedIDs {
		rec, err := c.store.Load(ctx, id)
		if err != nil {
			continue
		}
		rec.Stale = true
		c.mu.Lock()
		if _, have := c.records[id]; !have {
			c.records[id] = rec
		}
		c.mu.Unlock()
	}
}

// validQuote rejects quotes the UI must never consume: non-positive or
// non-finite prices, and non-finite market caps.
func validQuote(q pricefeed.Quote) error {
	if q.PriceUsd <= 0 || math.IsInf(q.PriceUsd, 0) || math.IsNaN(q.PriceUsd) {
		return fmt.Errorf("%w: price %v", ErrInvalidQuote, q.PriceUsd)
	}
	if math.IsInf(q.MarketCapUsd, 0) || math.IsNaN(q.MarketCapUsd) {
		return fmt.Errorf("%w: market cap %v", ErrInvalidQuote, q.MarketCapUsd)
	}
	return nil
}
