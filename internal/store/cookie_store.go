// Package store persists captured cookies in a local SQLite database so a
// capture can be exported or replayed after the extraction host is gone.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sessionops/internal/cookie"
	"sessionops/internal/logging"
)

// ErrCookieNotFound is returned when a record id is unknown.
var ErrCookieNotFound = errors.New("cookie not found")

// Record is a stored cookie plus its capture metadata.
type Record struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	CapturedAt time.Time     `json:"captured_at"`
	Cookie     cookie.Cookie `json:"cookie"`
}

// Cookies strips capture metadata.
func Cookies(records []Record) []cookie.Cookie {
	out := make([]cookie.Cookie, 0, len(records))
	for _, r := range records {
		out = append(out, r.Cookie)
	}
	return out
}

// CookieStore is a SQLite-backed capture log.
type CookieStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	now    func() time.Time
}

// Open creates or opens the database at path. ":memory:" is accepted.
func Open(path string) (*CookieStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	s := &CookieStore{db: db, dbPath: path, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("CookieStore opened at %s", path)
	return s, nil
}

func (s *CookieStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cookies (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '/',
		expires TEXT,
		secure INTEGER NOT NULL DEFAULT 0,
		http_only INTEGER NOT NULL DEFAULT 0,
		same_site TEXT,
		captured_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cookies_domain ON cookies(domain);
	CREATE INDEX IF NOT EXISTS idx_cookies_captured ON cookies(captured_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create cookies table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *CookieStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save stores cookies under one source label in a single transaction and
// returns the new record ids in input order.
func (s *CookieStore) Save(ctx context.Context, source string, cookies []cookie.Cookie) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cookies
		(id, source, domain, name, value, path, expires, secure, http_only, same_site, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	at := s.now().UnixNano()
	ids := make([]string, 0, len(cookies))
	for _, c := range cookies {
		id := uuid.NewString()
		path := c.Path
		if path == "" {
			path = cookie.DefaultPath
		}
		if _, err := stmt.ExecContext(ctx, id, source, c.Domain, c.Name, c.Value, path,
			nullString(c.Expires), c.Secure, c.HTTPOnly, nullString(c.SameSite), at); err != nil {
			return nil, fmt.Errorf("insert %s for %s: %w", c.Name, c.Domain, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	logging.Store("Saved %d cookies from %q", len(ids), source)
	return ids, nil
}

const selectColumns = `SELECT id, source, domain, name, value, path, expires, secure, http_only, same_site, captured_at FROM cookies`

// Get returns one record.
func (s *CookieStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrCookieNotFound, id)
	}
	return r, err
}

// List returns records whose domain contains domainFilter, matched like
// cookie.FilterDomain, oldest capture first. An empty filter lists everything.
func (s *CookieStore) List(ctx context.Context, domainFilter string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// SQLite lower() folds ASCII only, so the domain filter runs here.
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY captured_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query cookies: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if cookie.DomainMatches(r.Cookie.Domain, domainFilter) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

// Delete removes records by id and reports how many existed.
func (s *CookieStore) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete cookies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	logging.StoreDebug("Deleted %d of %d requested cookies", n, len(ids))
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r                 Record
		expires, sameSite sql.NullString
		captured          int64
	)
	err := sc.Scan(&r.ID, &r.Source, &r.Cookie.Domain, &r.Cookie.Name, &r.Cookie.Value,
		&r.Cookie.Path, &expires, &r.Cookie.Secure, &r.Cookie.HTTPOnly, &sameSite, &captured)
	if err != nil {
		return Record{}, err
	}
	if expires.Valid {
		r.Cookie.Expires = &expires.String
	}
	if sameSite.Valid {
		r.Cookie.SameSite = &sameSite.String
	}
	r.CapturedAt = time.Unix(0, captured).UTC()
	return r, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
