package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fiply/internal/feed"
	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

// DefaultPageCap is the last iteration index of a walk; a walk makes at most DefaultPageCap+1 fetches.
const DefaultPageCap = 100

// HistoryFetcher returns one page of events played at or before at.
type HistoryFetcher interface {
	Fetch(ctx context.Context, at time.Time) (*models.Page, error)
}

// CollectorConfig tunes a [Collector]. Zero values use the defaults.
type CollectorConfig struct {
	PageCap      int
	Policy       RetryPolicy
	AllowPartial bool
	Now          func() time.Time
	Logger       *log.Logger
}

// CollectStats describes a finished walk.
type CollectStats struct {
	Pages    int
	Events   int
	Retries  int
	Partial  bool
	Boundary time.Time
	Reached  time.Time // oldest cursor the walk reached
}

// Collector walks the history feed backwards from now until a lookback boundary.
type Collector struct {
	fetcher      HistoryFetcher
	pageCap      int
	policy       RetryPolicy
	allowPartial bool
	now          func() time.Time
	logger       *log.Logger
}

// NewCollector creates a [Collector] reading pages from fetcher.
func NewCollector(fetcher HistoryFetcher, cfg CollectorConfig) *Collector {
	if cfg.PageCap <= 0 {
		cfg.PageCap = DefaultPageCap
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}

	return &Collector{
		fetcher:      fetcher,
		pageCap:      cfg.PageCap,
		policy:       cfg.Policy,
		allowPartial: cfg.AllowPartial,
		now:          cfg.Now,
		logger:       shared.WithLogger(cfg.Logger, "component", "collector"),
	}
}

// CollectSince returns every event from now back to now-lookback, most recent page first.
//
// Each page is fetched through the retry policy and its end cursor is decoded before deciding
// whether to continue; a malformed cursor fails the walk even on the last page. The walk stops
// after the page cap, when the feed reports no next page, or when the next cursor falls before the
// boundary, so no fetch is made at a cursor older than the boundary.
func (c *Collector) CollectSince(ctx context.Context, lookback time.Duration, progress chan<- ProgressUpdate) ([]models.PlayEvent, *CollectStats, error) {
	if c.fetcher == nil {
		return nil, nil, fmt.Errorf("%w: history fetcher not initialized", shared.ErrServiceUnavailable)
	}
	if lookback <= 0 {
		return nil, nil, fmt.Errorf("%w: lookback must be positive, got %s", shared.ErrInvalidArgument, lookback)
	}

	now := c.now()
	stats := &CollectStats{Boundary: now.Add(-lookback)}
	cursor := now
	var events []models.PlayEvent

	c.logger.Info("collecting history", "from", now.Format(time.RFC3339), "boundary", stats.Boundary.Format(time.RFC3339))

	for itr := 0; ; itr++ {
		if err := ctx.Err(); err != nil {
			return c.stop(events, stats, fmt.Errorf("collection cancelled: %w", err))
		}

		at := cursor
		page, err := Retry(ctx, c.policy, func(ctx context.Context, attempt int) (*models.Page, error) {
			if attempt > 1 {
				stats.Retries++
				c.logger.Warn("retrying history page", "page", itr+1, "attempt", attempt)
			}
			return c.fetcher.Fetch(ctx, at)
		})
		if err != nil {
			return c.stop(events, stats, fmt.Errorf("page %d: %w", itr+1, err))
		}

		stats.Pages++
		events = append(events, page.Events...)
		stats.Events = len(events)

		next, err := feed.DecodeCursor(page.Info.EndCursor)
		if err != nil {
			return nil, stats, fmt.Errorf("page %d: %w", itr+1, err)
		}
		stats.Reached = next
		sendProgress(progress, fetchPageUpdate(stats.Pages, c.pageCap+1, len(events), next))

		if itr >= c.pageCap || !page.Info.HasNextPage || next.Before(stats.Boundary) {
			break
		}
		cursor = next
	}

	c.logger.Info("history collected", "pages", stats.Pages, "events", stats.Events, "retries", stats.Retries)
	return events, stats, nil
}

// stop ends a walk on a fetch failure, keeping what was gathered when partial results are allowed.
func (c *Collector) stop(events []models.PlayEvent, stats *CollectStats, err error) ([]models.PlayEvent, *CollectStats, error) {
	recoverable := errors.Is(err, shared.ErrRetriesExhausted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)

	if c.allowPartial && recoverable && stats.Pages > 0 {
		stats.Partial = true
		c.logger.Warn("returning partial history", "pages", stats.Pages, "events", len(events), "error", err)
		return events, stats, nil
	}
	return nil, stats, err
}
