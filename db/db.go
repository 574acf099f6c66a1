package db

import (
	"embed"
	"fmt"

	_ "github.com/rankdesk/rankdesk/db/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql migrations/*.go
var embedMigrations embed.FS

// Repository is the rankdesk store: the session token, the notification history and
// the processor rankings table all live behind one SQLite connection.
type Repository struct {
	conn *sqlx.DB
}

// NewRepo wraps an already migrated connection.
func NewRepo(conn *sqlx.DB) *Repository {
	return &Repository{conn: conn}
}

func (repo *Repository) Close() error {
	if err := repo.conn.Close(); err != nil {
		return fmt.Errorf("closing rankdesk store : %w", err)
	}
	return nil
}

// New opens the rankdesk database at path and brings its schema up to date.
// The pool is pinned to a single connection since SQLite serialises writers anyway.
func New(path string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_journal=WAL&_timeout=5000&_fk=true", path))
	if err != nil {
		return nil, fmt.Errorf("opening rankdesk store %s : %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// migrate enables foreign keys and runs the embedded schema migrations.
func migrate(conn *sqlx.DB) error {
	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enabling foreign keys : %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return fmt.Errorf("selecting migration dialect : %w", err)
	}
	if err := goose.Up(conn.DB, "migrations"); err != nil {
		return fmt.Errorf("migrating rankdesk schema : %w", err)
	}
	return nil
}

// Open returns a Repository for the database file at path, creating and migrating it
// when needed.
func Open(path string) (*Repository, error) {
	conn, err := New(path)
	if err != nil {
		return nil, err
	}
	return NewRepo(conn), nil
}
