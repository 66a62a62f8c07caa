package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Refresher is a feed that can be forced to refetch.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scraper keeps the market and news feeds warm between agent cycles so a
// cycle rarely waits on an upstream fetch.
type Scraper struct {
	markets Refresher
	news    Refresher
	logger  *slog.Logger
}

// NewScraper creates a Scraper. news may be nil.
func NewScraper(markets, news Refresher, logger *slog.Logger) *Scraper {
	return &Scraper{
		markets: markets,
		news:    news,
		logger:  logger.With(slog.String("component", "scraper")),
	}
}

// Run refreshes every feed once. Failures are logged; the feeds keep serving
// their last good data.
func (s *Scraper) Run(ctx context.Context) {
	start := time.Now()
	if err := s.markets.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "scraper: market refresh failed", slog.String("error", err.Error()))
	}
	if s.news != nil {
		if err := s.news.Refresh(ctx); err != nil {
			s.logger.WarnContext(ctx, "scraper: news refresh failed", slog.String("error", err.Error()))
		}
	}
	s.logger.DebugContext(ctx, "scraper: refresh complete", slog.Duration("took", time.Since(start)))
}

// RunLoop refreshes on start and then every interval until ctx is done.
func (s *Scraper) RunLoop(ctx context.Context, interval time.Duration) error {
	s.Run(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}
