// Package storage persists observations, forecast days and tracked locations in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Driver names accepted by Open.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

const memoryPath = ":memory:"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Options configures Open.
type Options struct {
	Driver       string
	Path         string // file path, "file:" URI, or ":memory:"
	MaxOpenConns int
	Logger       *zap.Logger
}

// Store is the SQLite-backed repository used by the HTTP handlers, the
// dashboard service and the MQTT ingest subscriber.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens the database, applies pending migrations and returns a Store.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn, err := buildDSN(opts.Driver, opts.Path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if opts.Path == memoryPath {
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func buildDSN(driver, path string) (string, error) {
	var params []string
	switch driver {
	case DriverCGO:
		params = []string{"_foreign_keys=on", "_busy_timeout=5000"}
		if path != memoryPath {
			params = append(params, "_journal_mode=WAL")
		}
	case DriverPureGo:
		params = []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
		if path != memoryPath {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	query := strings.Join(params, "&")

	if path == "" {
		return "", errors.New("sqlite path is empty")
	}
	if path == memoryPath {
		return "file::memory:?" + query, nil
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + query, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, query), nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// fail records a storage error metric and wraps err with the operation name.
func fail(op string, err error) error {
	observability.StorageErrorsTotal.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: %w", op, err)
}

// timeLayout is fixed width so created_at columns sort lexically in time order.
// RFC3339Nano trims trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const defaultListLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}
