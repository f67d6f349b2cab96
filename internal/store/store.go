package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// PostgreSQL driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store owns the database handle and the ent SQL driver. Repository
// methods run directly against the database; use Begin for a unit of work.
type Store struct {
	*queries
	db  *sql.DB
	drv *entsql.Driver
}

// Tx is a database transaction. It exposes the same repository methods as
// Store. The caller owns Commit and Rollback.
type Tx struct {
	*queries
	tx dialect.Tx
}

// Open connects to the database named by dsn and migrates the schema.
// A dsn starting with postgres:// or postgresql:// selects PostgreSQL;
// anything else is treated as a SQLite path or URI.
func Open(dsn string) (*Store, error) {
	driverName, dialectName := detectDialect(dsn)
	if dialectName == dialect.SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialectName == dialect.SQLite {
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	drv := entsql.OpenDB(dialectName, db)
	if err := migrate(context.Background(), drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{
		queries: &queries{conn: drv, dialect: dialectName},
		db:      db,
		drv:     drv,
	}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect name ("sqlite3" or "postgres").
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{queries: &queries{conn: tx, dialect: s.dialect}, tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func detectDialect(dsn string) (driverName, dialectName string) {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "pgx", dialect.Postgres
	}
	return "sqlite", dialect.SQLite
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL backend.
func IsPostgresDSN(dsn string) bool {
	_, d := detectDialect(dsn)
	return d == dialect.Postgres
}

// connPragmas are per-connection settings. They ride on the DSN so the
// driver applies them to every connection the pool opens.
var connPragmas = []struct{ name, value string }{
	{"busy_timeout", "5000"},
	{"foreign_keys", "1"},
	{"synchronous", "NORMAL"},
}

// sqliteDSN appends a _pragma parameter for each entry of connPragmas the
// dsn does not already set.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range connPragmas {
		if strings.Contains(dsn, "_pragma="+p.name+"(") {
			continue
		}
		b.WriteString(sep)
		b.WriteString("_pragma=" + p.name + "(" + p.value + ")")
		sep = "&"
	}
	return b.String()
}

// applyPragmas switches the database file to WAL. The journal mode is
// stored in the file, so one connection is enough.
func applyPragmas(db *sql.DB) error {
	const p = "PRAGMA journal_mode = WAL"
	if _, err := db.Exec(p); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. FLEECE_DB environment variable
// 2. $XDG_DATA_HOME/fleeceqa/fleeceqa.db
// 3. ~/.local/share/fleeceqa/fleeceqa.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("FLEECE_DB"); p != "" {
		if IsPostgresDSN(p) {
			return p, nil
		}
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "fleeceqa", "fleeceqa.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	if IsPostgresDSN(path) || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// MemoryDSN returns the DSN of a named in-memory SQLite database. All
// connections of one Store share it; different names are isolated.
func MemoryDSN(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
	return "file:" + clean + "?mode=memory&cache=shared"
}
