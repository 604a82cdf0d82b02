package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/rollcall/internal/storage"
)

// Store bundles the SQLite-backed stores over a single database handle.
type Store struct {
	db          *sql.DB
	identities  *IdentityStore
	mentions    *MentionStore
	reviewTasks *TaskStore
}

// Ensure *Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// Open opens a SQLite database with WAL self-healing. If the initial open
// fails due to stale WAL files (left behind by a crashed process), it
// verifies no other process holds them and retries once after removing the
// stale -shm/-wal files.
func Open(dsn string) (*Store, error) {
	store, err := open(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// open opens a SQLite database, configures WAL mode, and creates the schema.
func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors under
	// concurrent load. WAL mode allows concurrent readers to proceed
	// without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout so that callers wait instead of getting an immediate
	// SQLITE_BUSY error when the connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
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

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// isRecoverableWALError reports whether an open failure looks like stale WAL
// state rather than a corrupt or locked database.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to open database") ||
		strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// dbPathFromDSN extracts the filesystem path from a sqlite DSN, handling
// both plain paths and file: URIs with query parameters.
func dbPathFromDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:")
		}
		if u.Opaque != "" {
			return u.Opaque
		}
		return u.Path
	}
	return strings.SplitN(dsn, "?", 2)[0]
}

// isWALStale reports whether -wal/-shm files exist without the database
// being held open. A zero-size -shm alongside an existing -wal is the
// signature of an unclean shutdown.
func isWALStale(dbPath string) bool {
	if _, err := os.Stat(dbPath + "-wal"); err != nil {
		return false
	}
	info, err := os.Stat(dbPath + "-shm")
	if err != nil {
		return false
	}
	return info.Size() == 0
}

// removeStaleWAL deletes leftover WAL files; errors are logged, not fatal,
// since the retry will surface any real problem.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: could not remove %s%s: %v", dbPath, suffix, err)
		}
	}
}
