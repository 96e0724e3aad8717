package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"top8scraper/internal/config"
	"top8scraper/internal/fetcher"
	"top8scraper/internal/observability"
	"top8scraper/internal/scraper"
	"top8scraper/internal/storage"
	"top8scraper/internal/storage/sqldb"
)

// Run performs one incremental scrape into the database at connString:
// schema, resume plan, format seeding, scrape, and a single commit. Any
// returned error means nothing from this run was committed.
func Run(
	ctx context.Context,
	cfg *config.Config,
	logger *observability.Logger,
	connString string,
	progress observability.Progress,
) (*RunStats, error) {
	logger = logger.With("run_id", uuid.NewString())
	startedAt := time.Now()

	store, err := sqldb.Open(ctx, connString, cfg.GetCommandTimeout(), logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		return nil, err
	}

	selectors, err := cfg.Selectors()
	if err != nil {
		return nil, err
	}
	scr := scraper.NewScraper(selectors)

	f, err := fetcher.NewFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// plan before Begin: sqlite runs on a single connection
	plan, err := NewPlanner(cfg, logger, f, scr, store).Plan(ctx)
	if err != nil {
		return nil, err
	}

	uow, err := store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			// a cancelled ctx already ended the transaction
			if err := uow.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Error("Rollback failed", "error", err.Error())
				return
			}
			logger.Warn("Run rolled back")
		}
	}()

	seeded, err := storage.SeedFormats(ctx, uow)
	if err != nil {
		return nil, fmt.Errorf("seed formats: %w", err)
	}
	logger.Debug("Formats seeded", "count", seeded)

	stats := &RunStats{}
	if plan.Empty() {
		logger.Info("No new events")
	} else {
		stats, err = NewOrchestrator(cfg, logger, f, scr, progress).ScrapeRange(ctx, uow, plan.Start, plan.End)
		if err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	committed = true

	logger.Info("Run completed",
		"start", plan.Start,
		"end", plan.End,
		"succeeded", stats.Succeeded,
		"failed_events", stats.FailedEventIDs(),
		"duration", time.Since(startedAt).String(),
	)
	return stats, nil
}
