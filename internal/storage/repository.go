package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type Format struct {
	ID   int64
	Name string
	// Code is the site's short format code, nil for formats without one.
	Code *string
}

type Event struct {
	ID           int64
	ExternalID   int
	Name         string
	Date         time.Time
	PlayerCount  *int
	EventRanking *int
	FormatID     *int64
}

type Player struct {
	ID   int64
	Name string
}

type Deck struct {
	ID       int64
	PlayerID int64
	EventID  int64
	Rank     string
}

type DeckEntry struct {
	ID     int64
	DeckID int64
	CardID int
}

func (f *Format) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("format name is required")
	}
	return nil
}

func (e *Event) Validate() error {
	if e.ExternalID <= 0 {
		return fmt.Errorf("event external id must be > 0, got %d", e.ExternalID)
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("event %d: name is required", e.ExternalID)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("event %d: date is required", e.ExternalID)
	}
	if e.PlayerCount != nil && *e.PlayerCount < 0 {
		return fmt.Errorf("event %d: player count must be >= 0", e.ExternalID)
	}
	return nil
}

func (p *Player) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("player name is required")
	}
	return nil
}

func (d *Deck) Validate() error {
	if d.EventID == 0 {
		return fmt.Errorf("deck event id is required")
	}
	if d.PlayerID == 0 {
		return fmt.Errorf("deck player id is required")
	}
	return nil
}

func (d *DeckEntry) Validate() error {
	if d.DeckID == 0 {
		return fmt.Errorf("deck entry deck id is required")
	}
	return nil
}

// Store owns the database connection and hands out units of work.
type Store interface {
	// CreateSchema creates missing tables; safe to call on every run.
	CreateSchema(ctx context.Context) error

	// LatestExternalID returns the highest committed event external id, 0 when empty.
	LatestExternalID(ctx context.Context) (int, error)

	Begin(ctx context.Context) (UnitOfWork, error)

	Close() error
}

// UnitOfWork stages writes in one transaction. Methods are safe for concurrent use.
type UnitOfWork interface {
	GetOrCreateFormat(ctx context.Context, name string, code *string) (*Format, error)

	// FindFormat returns ErrNotFound when no format has that name.
	FindFormat(ctx context.Context, name string) (*Format, error)

	GetOrCreatePlayer(ctx context.Context, name string) (*Player, error)

	InsertEvent(ctx context.Context, event *Event) error

	InsertDeck(ctx context.Context, deck *Deck) error

	InsertDeckEntries(ctx context.Context, entries []DeckEntry) error

	Commit() error

	Rollback() error
}
