package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"top8scraper/internal/config"
	"top8scraper/internal/observability"
	"top8scraper/internal/scraper"
	"top8scraper/internal/storage"
)

// PageFetcher is the part of fetcher.Fetcher the pipeline needs.
type PageFetcher interface {
	Fetch(ctx context.Context, path string, params map[string]string) ([]byte, error)
}

type Orchestrator struct {
	cfg      *config.Config
	logger   *observability.Logger
	fetcher  PageFetcher
	scraper  *scraper.Scraper
	progress observability.Progress
}

func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	f PageFetcher,
	s *scraper.Scraper,
	progress observability.Progress,
) *Orchestrator {
	if progress == nil {
		progress = observability.NewNopProgress()
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		fetcher:  f,
		scraper:  s,
		progress: progress,
	}
}

// Failure is one isolated error. DeckPath is empty when the event page itself failed.
type Failure struct {
	EventID  int
	DeckPath string
	Err      error
}

type RunStats struct {
	Attempted int
	Succeeded int
	Failures  []Failure
	Decks     int
	Entries   int
}

// FailedEventIDs returns the distinct event IDs with at least one failure, in record order.
func (s *RunStats) FailedEventIDs() []int {
	seen := make(map[int]bool, len(s.Failures))
	var ids []int
	for _, f := range s.Failures {
		if !seen[f.EventID] {
			seen[f.EventID] = true
			ids = append(ids, f.EventID)
		}
	}
	return ids
}

type eventResult struct {
	decks    int
	entries  int
	failures []Failure
}

// deckError ties a deck failure to the deck page that caused it.
type deckError struct {
	path string
	err  error
}

func (e *deckError) Error() string {
	return fmt.Sprintf("deck %s: %v", e.path, e.err)
}

func (e *deckError) Unwrap() error {
	return e.err
}

// ScrapeRange scrapes every event ID in [start, end] concurrently and stages the
// results in uow. Failures of single events are recorded, not returned; the
// only error is ctx cancellation.
func (o *Orchestrator) ScrapeRange(ctx context.Context, uow storage.UnitOfWork, start, end int) (*RunStats, error) {
	stats := &RunStats{}
	if start > end {
		return stats, nil
	}

	total := end - start + 1
	o.logger.Info("Starting scrape", "start", start, "end", end, "events", total)
	o.progress.Start(total)
	defer o.progress.Done()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	for id := start; id <= end; id++ {
		id := id
		g.Go(func() error {
			defer o.progress.Increment()

			res, err := o.scrapeEvent(ctx, uow, id)
			if ctx.Err() != nil {
				return ctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()

			stats.Attempted++
			stats.Decks += res.decks
			stats.Entries += res.entries
			stats.Failures = append(stats.Failures, res.failures...)
			if err != nil {
				failure := Failure{EventID: id, Err: err}
				var de *deckError
				if errors.As(err, &de) {
					failure.DeckPath = de.path
					failure.Err = de.err
				}
				o.logger.Error("Event scrape failed",
					"event_id", id,
					"deck_url", failure.DeckPath,
					"error", failure.Err.Error(),
				)
				stats.Failures = append(stats.Failures, failure)
				return nil
			}
			stats.Succeeded++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	o.logger.Info("Scrape finished",
		"attempted", stats.Attempted,
		"succeeded", stats.Succeeded,
		"failed", len(stats.Failures),
		"decks", stats.Decks,
		"entries", stats.Entries,
	)
	return stats, nil
}

func (o *Orchestrator) scrapeEvent(ctx context.Context, uow storage.UnitOfWork, id int) (eventResult, error) {
	var res eventResult

	body, err := o.fetcher.Fetch(ctx, o.cfg.Site.EventPath, map[string]string{
		o.scraper.EventParam(): strconv.Itoa(id),
	})
	if err != nil {
		return res, fmt.Errorf("fetch event: %w", err)
	}

	page, err := o.scraper.ParseEvent(body)
	if err != nil {
		return res, fmt.Errorf("parse event: %w", err)
	}

	event := &storage.Event{
		ExternalID:  id,
		Name:        page.Name,
		Date:        page.Date,
		PlayerCount: page.PlayerCount,
	}

	format, err := uow.FindFormat(ctx, page.Format)
	switch {
	case err == nil:
		event.FormatID = &format.ID
	case errors.Is(err, storage.ErrNotFound):
		o.logger.Debug("Unknown format, storing event without one", "event_id", id, "format", page.Format)
	default:
		return res, err
	}

	if err := uow.InsertEvent(ctx, event); err != nil {
		return res, err
	}

	for _, path := range page.DeckPaths {
		entries, err := o.scrapeDeck(ctx, uow, event.ID, path)
		if err != nil {
			if !o.cfg.Scrape.IsolateDecks || ctx.Err() != nil {
				return res, &deckError{path: path, err: err}
			}
			o.logger.Warn("Deck scrape failed",
				"event_id", id,
				"deck_url", path,
				"error", err.Error(),
			)
			res.failures = append(res.failures, Failure{EventID: id, DeckPath: path, Err: err})
			continue
		}
		res.decks++
		res.entries += entries
	}

	o.logger.Debug("Event scraped", "event_id", id, "name", event.Name, "decks", res.decks)
	return res, nil
}

func (o *Orchestrator) scrapeDeck(ctx context.Context, uow storage.UnitOfWork, eventID int64, path string) (int, error) {
	body, err := o.fetcher.Fetch(ctx, o.cfg.Site.EventPath+path, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch deck: %w", err)
	}

	page, err := o.scraper.ParseDeck(body)
	if err != nil {
		return 0, fmt.Errorf("parse deck: %w", err)
	}

	player, err := uow.GetOrCreatePlayer(ctx, page.Player)
	if err != nil {
		return 0, err
	}

	deck := &storage.Deck{
		PlayerID: player.ID,
		EventID:  eventID,
		Rank:     page.Rank,
	}
	if err := uow.InsertDeck(ctx, deck); err != nil {
		return 0, err
	}

	entries := make([]storage.DeckEntry, len(page.CardIDs))
	for i, cardID := range page.CardIDs {
		entries[i] = storage.DeckEntry{DeckID: deck.ID, CardID: cardID}
	}
	if err := uow.InsertDeckEntries(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
