package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"top8scraper/internal/observability"
	"top8scraper/internal/storage"
)

type Store struct {
	db             *sql.DB
	dialect        *Dialect
	commandTimeout time.Duration
	logger         *observability.Logger
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database named by connString and checks it answers.
func Open(ctx context.Context, connString string, commandTimeout time.Duration, logger *observability.Logger) (*Store, error) {
	dialect, dsn, err := ParseConnString(connString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect.maxOpenConns > 0 {
		db.SetMaxOpenConns(dialect.maxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connected", "dialect", dialect.Name)

	return &Store{
		db:             db,
		dialect:        dialect,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

func (s *Store) Dialect() *Dialect {
	return s.dialect
}

func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.SchemaStatements() {
		execCtx, cancel := context.WithTimeout(ctx, s.commandTimeout)
		_, err := s.db.ExecContext(execCtx, stmt)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	s.logger.Debug("Schema ready", "dialect", s.dialect.Name)
	return nil
}

// LatestExternalID must not be called while a unit of work is open on a
// single-connection dialect.
func (s *Store) LatestExternalID(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(external_id) FROM events").Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to query latest event: %w", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	return int(latest.Int64), nil
}

func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return newUnitOfWork(tx, s.dialect, s.commandTimeout), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
