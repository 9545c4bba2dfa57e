package pagecache

import (
	"encoding/json"
	"fmt"
	"time"
)

// SearchRecord is one persisted search with its serialized results.
type SearchRecord struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	Results    string    `json:"results_json"`
	SearchedAt time.Time `json:"searched_at"`
	Source     string    `json:"source"`
}

// StoreSearch persists one search and its results for later recall.
func (s *Store) StoreSearch(query string, results any, source string) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return 0, fmt.Errorf("encode search results: %w", err)
	}

	res, err := db.Exec(`
		INSERT INTO searches (query, results_json, searched_at, source)
		VALUES (?, ?, ?, ?)
	`, query, string(encoded), time.Now().UnixMilli(), source)
	if err != nil {
		return 0, fmt.Errorf("store search %q: %w", query, err)
	}
	return res.LastInsertId()
}

// RecentSearches returns the most recent persisted searches, newest first.
func (s *Store) RecentSearches(limit int) ([]SearchRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, query, results_json, searched_at, source
		FROM searches
		ORDER BY searched_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	var records []SearchRecord
	for rows.Next() {
		var r SearchRecord
		var searchedAt int64
		if err := rows.Scan(&r.ID, &r.Query, &r.Results, &searchedAt, &r.Source); err != nil {
			return nil, err
		}
		r.SearchedAt = time.UnixMilli(searchedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}
