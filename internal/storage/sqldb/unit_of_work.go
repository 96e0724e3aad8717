package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"top8scraper/internal/storage"
)

// deck entries per multi-row insert; keeps sqlserver under its 2100 parameter cap
const entryBatchSize = 500

// unitOfWork serializes every statement on one transaction, which also makes
// the read-then-write get-or-create helpers race-free.
type unitOfWork struct {
	mu             sync.Mutex
	tx             *sql.Tx
	dialect        *Dialect
	commandTimeout time.Duration

	formats map[string]*storage.Format
	players map[string]int64
}

var _ storage.UnitOfWork = (*unitOfWork)(nil)

func newUnitOfWork(tx *sql.Tx, dialect *Dialect, commandTimeout time.Duration) *unitOfWork {
	return &unitOfWork{
		tx:             tx,
		dialect:        dialect,
		commandTimeout: commandTimeout,
		formats:        make(map[string]*storage.Format),
		players:        make(map[string]int64),
	}
}

func (u *unitOfWork) GetOrCreateFormat(ctx context.Context, name string, code *string) (*storage.Format, error) {
	format := &storage.Format{Name: name, Code: code}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if f, ok := u.formats[name]; ok {
		return f, nil
	}

	err := u.staged(ctx, func() error {
		existing, err := u.findFormat(ctx, name)
		if err == nil {
			format = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
		defer cancel()

		var codeArg interface{}
		if code != nil {
			codeArg = *code
		}
		format.ID, err = u.dialect.insertReturningID(ctx, u.tx,
			u.dialect.InsertSQL("formats", []string{"name", "code"}), name, codeArg)
		if err != nil {
			return fmt.Errorf("failed to insert format %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.formats[name] = format
	return format, nil
}

func (u *unitOfWork) FindFormat(ctx context.Context, name string) (*storage.Format, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if f, ok := u.formats[name]; ok {
		return f, nil
	}

	var format *storage.Format
	err := u.staged(ctx, func() error {
		var err error
		format, err = u.findFormat(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return format, nil
}

// findFormat queries the formats table and caches a hit. Callers hold u.mu.
func (u *unitOfWork) findFormat(ctx context.Context, name string) (*storage.Format, error) {
	ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
	defer cancel()

	var (
		format = &storage.Format{Name: name}
		code   sql.NullString
	)
	err := u.tx.QueryRowContext(ctx,
		u.dialect.Rebind("SELECT id, code FROM formats WHERE name = ?"), name).
		Scan(&format.ID, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("format %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query format %q: %w", name, err)
	}
	if code.Valid {
		format.Code = &code.String
	}

	u.formats[name] = format
	return format, nil
}

func (u *unitOfWork) GetOrCreatePlayer(ctx context.Context, name string) (*storage.Player, error) {
	player := &storage.Player{Name: name}
	if err := player.Validate(); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if id, ok := u.players[name]; ok {
		player.ID = id
		return player, nil
	}

	err := u.staged(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
		defer cancel()

		err := u.tx.QueryRowContext(ctx,
			u.dialect.Rebind("SELECT id FROM players WHERE name = ?"), name).
			Scan(&player.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			player.ID, err = u.dialect.insertReturningID(ctx, u.tx,
				u.dialect.InsertSQL("players", []string{"name"}), name)
			if err != nil {
				return fmt.Errorf("failed to insert player %q: %w", name, err)
			}
		case err != nil:
			return fmt.Errorf("failed to query player %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.players[name] = player.ID
	return player, nil
}

func (u *unitOfWork) InsertEvent(ctx context.Context, event *storage.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.staged(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
		defer cancel()

		id, err := u.dialect.insertReturningID(ctx, u.tx,
			u.dialect.InsertSQL("events", []string{
				"external_id", "name", "event_date", "player_count", "event_ranking", "format_id",
			}),
			event.ExternalID,
			event.Name,
			event.Date,
			nullableInt(event.PlayerCount),
			nullableInt(event.EventRanking),
			nullableInt64(event.FormatID),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %d: %w", event.ExternalID, err)
		}

		event.ID = id
		return nil
	})
}

func (u *unitOfWork) InsertDeck(ctx context.Context, deck *storage.Deck) error {
	if err := deck.Validate(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.staged(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
		defer cancel()

		id, err := u.dialect.insertReturningID(ctx, u.tx,
			u.dialect.InsertSQL("decks", []string{"player_id", "event_id", "deck_rank"}),
			deck.PlayerID, deck.EventID, deck.Rank)
		if err != nil {
			return fmt.Errorf("failed to insert deck for event %d: %w", deck.EventID, err)
		}

		deck.ID = id
		return nil
	})
}

func (u *unitOfWork) InsertDeckEntries(ctx context.Context, entries []storage.DeckEntry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// one savepoint for all batches so a deck never keeps a partial card list
	return u.staged(ctx, func() error {
		for start := 0; start < len(entries); start += entryBatchSize {
			end := start + entryBatchSize
			if end > len(entries) {
				end = len(entries)
			}
			if err := u.insertEntryBatch(ctx, entries[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (u *unitOfWork) insertEntryBatch(ctx context.Context, batch []storage.DeckEntry) error {
	ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
	defer cancel()

	rows := strings.TrimSuffix(strings.Repeat("(?, ?), ", len(batch)), ", ")
	args := make([]interface{}, 0, len(batch)*2)
	for _, e := range batch {
		args = append(args, e.DeckID, e.CardID)
	}

	query := u.dialect.Rebind("INSERT INTO deck_entries (deck_id, card_id) VALUES " + rows)
	if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d deck entries: %w", len(batch), err)
	}
	return nil
}

// staged runs fn inside a savepoint. When fn fails only its own statements are
// undone and the transaction stays usable for the other tasks. Callers hold u.mu.
func (u *unitOfWork) staged(ctx context.Context, fn func() error) error {
	sp := u.dialect.savepoint
	if err := u.exec(ctx, sp.create); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		// the statement timeout may have fired; the parent ctx decides
		if rbErr := u.exec(context.WithoutCancel(ctx), sp.rollback); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back to savepoint: %w", rbErr))
		}
		return err
	}

	if sp.release == "" {
		return nil
	}
	if err := u.exec(ctx, sp.release); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func (u *unitOfWork) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, u.commandTimeout)
	defer cancel()

	_, err := u.tx.ExecContext(ctx, query)
	return err
}

func (u *unitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback is a no-op returning sql.ErrTxDone after Commit.
func (u *unitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.tx.Rollback()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
