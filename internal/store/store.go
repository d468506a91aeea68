// Package store persists session values and the apply journal in SQLite.
//
// Two drivers are supported: the pure-Go modernc.org/sqlite ("sqlite", the
// default) and the cgo github.com/mattn/go-sqlite3 ("sqlite3").
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"greenpath/internal/logging"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver names registered by the imported SQLite packages.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("not found")

// Store is the local SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *zap.Logger
}

// Open creates or opens the database at path with the given driver.
// An empty driver selects modernc.
func Open(path, driver string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	log := logging.Get(logging.CategoryStore)
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, errors.Newf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create directory")
		}
	}

	db, err := sql.Open(driver, dsn(path, driver))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dbPath: path, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	log.Debug("store opened", zap.String("path", path), zap.String("driver", driver))
	return s, nil
}

// dsn adds WAL and busy-timeout settings in each driver's own syntax.
func dsn(path, driver string) string {
	if path == ":memory:" {
		return path
	}
	if driver == DriverCGO {
		return path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS apply_journal (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		intervention_ids TEXT NOT NULL,
		applied_count INTEGER,
		outcome TEXT NOT NULL,
		message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_apply_journal_project ON apply_journal(project_id, created_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}
