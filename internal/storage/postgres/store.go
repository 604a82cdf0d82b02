package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/scrypster/rollcall/internal/storage"
)

// Store bundles the PostgreSQL-backed stores over a shared connection pool.
type Store struct {
	db          *sql.DB
	identities  *IdentityStore
	mentions    *MentionStore
	reviewTasks *TaskStore
}

// Ensure *Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL, verifies the connection, and applies the
// schema. Unlike the sqlite backend, multiple engine instances may share
// the database; optimistic versioning keeps their writes consistent.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:          db,
		identities:  &IdentityStore{db: db},
		mentions:    &MentionStore{db: db},
		reviewTasks: &TaskStore{db: db},
	}, nil
}

// Identities returns the identity store.
func (s *Store) Identities() storage.IdentityStore { return s.identities }

// Mentions returns the mention store.
func (s *Store) Mentions() storage.MentionStore { return s.mentions }

// ReviewTasks returns the review task store.
func (s *Store) ReviewTasks() storage.ReviewTaskStore { return s.reviewTasks }

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
