// Package pagecache is the persistent content-addressed store for fetched
// pages. Large page bodies live here so the LLM context only carries short
// [cached:<id>] references.
package pagecache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Freshness horizons consumed (not enforced) by callers.
const (
	FreshnessNews    = 1 * time.Hour
	FreshnessArticle = 24 * time.Hour
	FreshnessSearch  = 30 * time.Minute
)

// DefaultPruneAge is the startup prune horizon.
const DefaultPruneAge = 7 * 24 * time.Hour

// ErrUnavailable reports a cache that failed initialization and degraded to
// no-ops. Callers fall back to inline content.
var ErrUnavailable = errors.New("pagecache: store unavailable")

// ErrNotFound reports a missing page or search row.
var ErrNotFound = errors.New("pagecache: not found")

// Config configures the store.
type Config struct {
	Path        string        `json:"path"`
	MaxRetries  int           `json:"max_retries,omitempty"`
	PruneAge    time.Duration `json:"prune_age,omitempty"`
	SummaryLen  int           `json:"summary_len,omitempty"`
	SectionSize int           `json:"section_size,omitempty"`
}

// DefaultConfig returns the default store configuration
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		MaxRetries:  3,
		PruneAge:    DefaultPruneAge,
		SummaryLen:  200,
		SectionSize: 5000,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.PruneAge <= 0 {
		c.PruneAge = DefaultPruneAge
	}
	if c.SummaryLen <= 0 {
		c.SummaryLen = 200
	}
	if c.SectionSize <= 0 {
		c.SectionSize = 5000
	}
	return c
}

// PageID derives the content address for a URL: the first 12 hex characters
// of sha256(url). Storing the same URL twice always lands on the same row.
func PageID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}

// Store owns the SQLite page cache. One connection in WAL mode; writes
// serialize at the engine layer.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	config    Config
	available bool
}

// Open initializes the store, retrying the whole open/configure/migrate
// sequence up to MaxRetries times. After the last failure the store stays
// permanently unavailable and every operation degrades to a no-op error;
// Open itself never fails.
func Open(config Config) *Store {
	config = config.withDefaults()
	s := &Store{config: config}

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		db, err := s.tryOpen()
		if err == nil {
			s.db = db
			s.available = true
			log.Printf("[PageCache] initialized at %s", config.Path)
			return s
		}
		lastErr = err
		log.Printf("[PageCache] WARNING: init attempt %d/%d failed: %v", attempt, config.MaxRetries, err)
	}
	log.Printf("[PageCache] WARNING: store unavailable, falling back to inline content: %v", lastErr)
	return s
}

func (s *Store) tryOpen() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.config.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Available reports whether the store accepted initialization.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available && s.db != nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.available = false
	return err
}

// conn returns the live connection or ErrUnavailable.
func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available || s.db == nil {
		return nil, ErrUnavailable
	}
	return s.db, nil
}

// Stats summarizes the store for status surfaces.
type Stats struct {
	Pages     int    `json:"pages"`
	Searches  int    `json:"searches"`
	SizeBytes int    `json:"size_bytes"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
}

// GetStats returns row counts and the approximate file size.
func (s *Store) GetStats() (Stats, error) {
	stats := Stats{Path: s.config.Path, Available: s.Available()}
	db, err := s.conn()
	if err != nil {
		return stats, nil
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&stats.Pages); err != nil {
		return stats, err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM searches").Scan(&stats.Searches); err != nil {
		return stats, err
	}

	var pageCount, pageSize int
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.SizeBytes = pageCount * pageSize
		}
	}
	return stats, nil
}

// PruneOlderThan deletes pages and searches fetched before now-age.
func (s *Store) PruneOlderThan(age time.Duration) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-age).UnixMilli()

	pagesRes, err := db.Exec("DELETE FROM pages WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune pages: %w", err)
	}
	searchesRes, err := db.Exec("DELETE FROM searches WHERE searched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune searches: %w", err)
	}

	pages, _ := pagesRes.RowsAffected()
	searches, _ := searchesRes.RowsAffected()
	if pages+searches > 0 {
		log.Printf("[PageCache] pruned %d pages, %d searches older than %s", pages, searches, age)
	}
	return pages + searches, nil
}

// Vacuum reclaims space after large prunes.
func (s *Store) Vacuum() error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.Exec("VACUUM")
	return err
}
