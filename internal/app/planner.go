package app

import (
	"context"
	"fmt"

	"top8scraper/internal/config"
	"top8scraper/internal/observability"
	"top8scraper/internal/scraper"
	"top8scraper/internal/storage"
)

// Range is an inclusive span of event IDs.
type Range struct {
	Start int
	End   int
}

func (r Range) Empty() bool {
	return r.Start > r.End
}

func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Planner works out which event IDs have not been scraped yet.
type Planner struct {
	cfg     *config.Config
	logger  *observability.Logger
	fetcher PageFetcher
	scraper *scraper.Scraper
	store   storage.Store
}

func NewPlanner(
	cfg *config.Config,
	logger *observability.Logger,
	f PageFetcher,
	s *scraper.Scraper,
	store storage.Store,
) *Planner {
	return &Planner{
		cfg:     cfg,
		logger:  logger,
		fetcher: f,
		scraper: s,
		store:   store,
	}
}

// NewestAvailable returns the highest event ID linked from the index page.
func (p *Planner) NewestAvailable(ctx context.Context) (int, error) {
	body, err := p.fetcher.Fetch(ctx, p.cfg.Site.IndexPath, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch index: %w", err)
	}

	newest, skipped, err := p.scraper.ParseIndex(body)
	for _, href := range skipped {
		p.logger.Warn("Index marker without event id", "href", href)
	}
	if err != nil {
		return 0, fmt.Errorf("parse index: %w", err)
	}
	return newest, nil
}

func (p *Planner) LatestScraped(ctx context.Context) (int, error) {
	return p.store.LatestExternalID(ctx)
}

// Plan returns [latest scraped + 1, newest available]. The range is empty when
// nothing new has been published.
func (p *Planner) Plan(ctx context.Context) (Range, error) {
	latest, err := p.LatestScraped(ctx)
	if err != nil {
		return Range{}, err
	}
	newest, err := p.NewestAvailable(ctx)
	if err != nil {
		return Range{}, err
	}

	r := Range{Start: latest + 1, End: newest}
	p.logger.Info("Resume plan", "latest_scraped", latest, "newest_available", newest, "events", r.Len())
	return r, nil
}
