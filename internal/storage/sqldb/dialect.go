package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota // ?, ?
	placeholderDollar                           // $1, $2
	placeholderAtP                              // @p1, @p2
)

type returningStyle int

const (
	returningClause   returningStyle = iota // ... RETURNING id
	returningOutput                         // ... OUTPUT INSERTED.id VALUES ...
	returningLastID                         // Result.LastInsertId
)

// Dialect captures what differs between the supported SQL backends.
type Dialect struct {
	Name        string
	Driver      string
	placeholder placeholderStyle
	returning   returningStyle

	idType   string
	nameType string
	codeType string

	savepoint savepointSQL

	// maxOpenConns of 0 leaves the pool unbounded.
	maxOpenConns int
}

// savepointSQL scopes a failing statement so the rest of the transaction stays
// usable. Postgres aborts the whole transaction on any error otherwise.
type savepointSQL struct {
	create   string
	rollback string
	// release is empty where savepoints cannot be released explicitly.
	release  string
}

var standardSavepoint = savepointSQL{
	create:   "SAVEPOINT stage",
	rollback: "ROLLBACK TO SAVEPOINT stage",
	release:  "RELEASE SAVEPOINT stage",
}

var (
	SQLite = &Dialect{
		Name: "sqlite", Driver: "sqlite",
		placeholder: placeholderQuestion, returning: returningClause,
		idType: "INTEGER PRIMARY KEY AUTOINCREMENT", nameType: "TEXT", codeType: "TEXT",
		savepoint: standardSavepoint,
		// one writer; also keeps a :memory: database alive on a single connection
		maxOpenConns: 1,
	}
	Postgres = &Dialect{
		Name: "postgres", Driver: "pgx",
		placeholder: placeholderDollar, returning: returningClause,
		idType: "BIGSERIAL PRIMARY KEY", nameType: "VARCHAR(255)", codeType: "VARCHAR(16)",
		savepoint: standardSavepoint,
	}
	MySQL = &Dialect{
		Name: "mysql", Driver: "mysql",
		placeholder: placeholderQuestion, returning: returningLastID,
		idType: "BIGINT AUTO_INCREMENT PRIMARY KEY", nameType: "VARCHAR(255)", codeType: "VARCHAR(16)",
		savepoint: standardSavepoint,
	}
	SQLServer = &Dialect{
		Name: "sqlserver", Driver: "sqlserver",
		placeholder: placeholderAtP, returning: returningOutput,
		idType: "BIGINT IDENTITY(1,1) PRIMARY KEY", nameType: "NVARCHAR(255)", codeType: "NVARCHAR(16)",
		savepoint: savepointSQL{
			create:   "SAVE TRANSACTION stage",
			rollback: "ROLLBACK TRANSACTION stage",
		},
	}
)

const sqliteForeignKeys = "_pragma=foreign_keys(1)"

// ParseConnString picks the dialect from the connection string and returns the
// DSN to hand to its driver.
func ParseConnString(connString string) (*Dialect, string, error) {
	s := strings.TrimSpace(connString)
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres, s, nil

	case strings.HasPrefix(lower, "sqlserver://"):
		return SQLServer, s, nil

	case strings.HasPrefix(lower, "mysql://"):
		cfg, err := mysql.ParseDSN(s[len("mysql://"):])
		if err != nil {
			return nil, "", fmt.Errorf("invalid mysql DSN: %w", err)
		}
		cfg.ParseTime = true
		return MySQL, cfg.FormatDSN(), nil

	case lower == "sqlite::memory:":
		return SQLite, withSQLitePragmas(":memory:"), nil

	case strings.HasPrefix(lower, "sqlite://"):
		path := s[len("sqlite://"):]
		if path == "" {
			return nil, "", fmt.Errorf("sqlite connection string has no path")
		}
		return SQLite, withSQLitePragmas(path), nil

	case strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return SQLite, withSQLitePragmas(s), nil
	}

	return nil, "", fmt.Errorf("unsupported connection string %q", redact(s))
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteForeignKeys
	}
	return dsn + "?" + sqliteForeignKeys
}

// redact drops everything after the scheme so credentials never reach a log line.
func redact(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		return s[:i+3] + "..."
	}
	return s
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (d *Dialect) Rebind(query string) string {
	if d.placeholder == placeholderQuestion {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		if d.placeholder == placeholderDollar {
			b.WriteByte('$')
		} else {
			b.WriteString("@p")
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// InsertSQL builds a single-row insert that reports the new id in the
// dialect's way.
func (d *Dialect) InsertSQL(table string, columns []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	cols := strings.Join(columns, ", ")

	var q string
	switch d.returning {
	case returningOutput:
		q = fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)", table, cols, marks)
	case returningClause:
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, cols, marks)
	default:
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, marks)
	}
	return d.Rebind(q)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// insertReturningID runs a query built by InsertSQL and returns the new row id.
func (d *Dialect) insertReturningID(ctx context.Context, q execQuerier, query string, args ...interface{}) (int64, error) {
	if d.returning == returningLastID {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	var id int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
