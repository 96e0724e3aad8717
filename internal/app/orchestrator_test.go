package app

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"top8scraper/internal/config"
	"top8scraper/internal/fetcher"
	"top8scraper/internal/markup"
	"top8scraper/internal/observability"
	"top8scraper/internal/scraper"
	"top8scraper/internal/storage"
	"top8scraper/internal/storage/sqldb"
)

type testEnv struct {
	cfg        *config.Config
	logger     *observability.Logger
	connString string
	dbPath     string
}

func newTestEnv(t *testing.T, site *fakeSite) *testEnv {
	t.Helper()
	srv := newFakeSite(t, site)

	cfg := config.Default()
	cfg.Site.BaseURL = srv.URL
	cfg.HTTP.MaxConnections = 4

	dbPath := filepath.Join(t.TempDir(), "top8.db")
	return &testEnv{
		cfg:        cfg,
		logger:     observability.Wrap(zaptest.NewLogger(t)),
		connString: "sqlite://" + dbPath,
		dbPath:     dbPath,
	}
}

func (e *testEnv) openStore(t *testing.T) *sqldb.Store {
	t.Helper()
	store, err := sqldb.Open(context.Background(), e.connString, 5*time.Second, e.logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateSchema(context.Background()))
	return store
}

// queryInts reads a single integer column through a separate connection.
func (e *testEnv) queryInts(t *testing.T, query string) []int {
	t.Helper()
	db, err := sql.Open("sqlite", e.dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(query)
	require.NoError(t, err)
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		require.NoError(t, rows.Scan(&v))
		out = append(out, v)
	}
	require.NoError(t, rows.Err())
	return out
}

// scrape runs ScrapeRange inside a fresh unit of work and commits it.
func (e *testEnv) scrape(t *testing.T, start, end int, progress observability.Progress) *RunStats {
	t.Helper()
	ctx := context.Background()
	store := e.openStore(t)

	f, err := fetcher.NewFetcher(e.cfg, e.logger)
	require.NoError(t, err)
	defer f.Close()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = storage.SeedFormats(ctx, uow)
	require.NoError(t, err)

	stats, err := NewOrchestrator(e.cfg, e.logger, f, scraper.NewScraper(nil), progress).ScrapeRange(ctx, uow, start, end)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
	return stats
}

type countingProgress struct {
	total      int
	increments int32
	done       bool
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Increment()      { atomic.AddInt32(&p.increments, 1) }
func (p *countingProgress) Done()           { p.done = true }

func TestScrapeRangeIsolatesMalformedEvent(t *testing.T) {
	env := newTestEnv(t, &fakeSite{newest: 18, malformed: map[int]bool{17: true}})
	progress := &countingProgress{}

	stats := env.scrape(t, 15, 18, progress)

	require.Equal(t, 4, stats.Attempted)
	require.Equal(t, 3, stats.Succeeded)
	require.Equal(t, 6, stats.Decks)
	require.Equal(t, 12, stats.Entries)
	require.Len(t, stats.Failures, 1)
	require.Equal(t, 17, stats.Failures[0].EventID)
	require.Empty(t, stats.Failures[0].DeckPath)
	require.ErrorIs(t, stats.Failures[0].Err, markup.ErrMalformed)
	require.Equal(t, []int{17}, stats.FailedEventIDs())

	require.Equal(t, 4, progress.total)
	require.Equal(t, int32(4), atomic.LoadInt32(&progress.increments))
	require.True(t, progress.done)

	require.Equal(t, []int{15, 16, 18}, env.queryInts(t, "SELECT external_id FROM events ORDER BY external_id"))
	require.Equal(t, []int{2}, env.queryInts(t, "SELECT COUNT(*) FROM players"))
	require.Equal(t, []int{0}, env.queryInts(t, "SELECT COUNT(*) FROM events WHERE format_id IS NULL"))
	require.Equal(t, []int{6}, env.queryInts(t, "SELECT COUNT(*) FROM deck_entries WHERE card_id = -1"))

	latest, err := env.openStore(t).LatestExternalID(context.Background())
	require.NoError(t, err)
	require.Equal(t, 18, latest)
}

func TestScrapeRangeDeckFailureAbortsEvent(t *testing.T) {
	env := newTestEnv(t, &fakeSite{newest: 15, failingDecks: map[string]bool{"151": true}})

	stats := env.scrape(t, 15, 15, nil)

	require.Equal(t, 1, stats.Attempted)
	require.Equal(t, 0, stats.Succeeded)
	require.Equal(t, 0, stats.Decks)
	require.Len(t, stats.Failures, 1)
	require.Equal(t, "?e=15&d=151&f=MO", stats.Failures[0].DeckPath)

	var statusErr *fetcher.StatusError
	require.True(t, errors.As(stats.Failures[0].Err, &statusErr))
	require.Equal(t, 500, statusErr.StatusCode)

	// the event row staged before the deck failed is kept
	require.Equal(t, []int{15}, env.queryInts(t, "SELECT external_id FROM events"))
	require.Equal(t, []int{0}, env.queryInts(t, "SELECT COUNT(*) FROM decks"))
}

func TestScrapeRangeIsolateDecks(t *testing.T) {
	env := newTestEnv(t, &fakeSite{newest: 15, failingDecks: map[string]bool{"151": true}})
	env.cfg.Scrape.IsolateDecks = true

	stats := env.scrape(t, 15, 15, nil)

	require.Equal(t, 1, stats.Succeeded)
	require.Equal(t, 1, stats.Decks)
	require.Equal(t, 2, stats.Entries)
	require.Len(t, stats.Failures, 1)
	require.Equal(t, "?e=15&d=151&f=MO", stats.Failures[0].DeckPath)
	require.Equal(t, []int{1}, env.queryInts(t, "SELECT COUNT(*) FROM decks"))
}

func TestScrapeRangeConstraintViolationKeepsSiblings(t *testing.T) {
	env := newTestEnv(t, &fakeSite{newest: 17})

	// event 16 is already stored, so inserting it again violates the unique key
	env.scrape(t, 16, 16, nil)
	stats := env.scrape(t, 15, 17, nil)

	require.Equal(t, 3, stats.Attempted)
	require.Equal(t, 2, stats.Succeeded)
	require.Equal(t, 4, stats.Decks)
	require.Equal(t, []int{16}, stats.FailedEventIDs())
	require.Empty(t, stats.Failures[0].DeckPath)

	require.Equal(t, []int{15, 16, 17}, env.queryInts(t, "SELECT external_id FROM events ORDER BY external_id"))
	require.Equal(t, []int{6}, env.queryInts(t, "SELECT COUNT(*) FROM decks"))
	require.Equal(t, []int{2}, env.queryInts(t, "SELECT COUNT(*) FROM players"))
}

func TestScrapeRangeEmpty(t *testing.T) {
	site := &fakeSite{newest: 18}
	env := newTestEnv(t, site)

	stats := env.scrape(t, 19, 18, nil)

	require.Equal(t, 0, stats.Attempted)
	require.Empty(t, stats.Failures)
	require.Equal(t, int32(0), atomic.LoadInt32(&site.requests))
}

func TestScrapeRangeReturnsOnCancel(t *testing.T) {
	env := newTestEnv(t, &fakeSite{newest: 18})
	store := env.openStore(t)

	f, err := fetcher.NewFetcher(env.cfg, env.logger)
	require.NoError(t, err)

	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewOrchestrator(env.cfg, env.logger, f, scraper.NewScraper(nil), nil).ScrapeRange(ctx, uow, 1, 5)
	require.ErrorIs(t, err, context.Canceled)
}
