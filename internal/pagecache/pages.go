package pagecache

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Page is one cached fetched page.
type Page struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	Summary          string    `json:"summary"`
	FetchedAt        time.Time `json:"fetched_at"`
	ContentLength    int       `json:"content_length"`
	CompressedLength int       `json:"compressed_length"`
	ContentType      string    `json:"content_type"`
}

// PageMeta carries optional metadata for StorePage.
type PageMeta struct {
	Summary          string
	ContentType      string
	ContentLength    int // pre-compression length; 0 means len(content)
	CompressedLength int // 0 means len(content)
}

// StorePage upserts a page under its content address and returns the id.
// The id is a pure function of the URL, so the same URL never creates a
// second row; the newer write wins.
func (s *Store) StorePage(pageURL, title, content string, meta PageMeta) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}

	id := PageID(pageURL)
	if meta.ContentLength == 0 {
		meta.ContentLength = len(content)
	}
	if meta.CompressedLength == 0 {
		meta.CompressedLength = len(content)
	}

	_, err = db.Exec(`
		INSERT INTO pages (id, url, title, content, summary, fetched_at, content_length, compressed_length, content_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			fetched_at = excluded.fetched_at,
			content_length = excluded.content_length,
			compressed_length = excluded.compressed_length,
			content_type = excluded.content_type
	`, id, pageURL, title, content, meta.Summary, time.Now().UnixMilli(),
		meta.ContentLength, meta.CompressedLength, meta.ContentType)
	if err != nil {
		return "", fmt.Errorf("store page %s: %w", pageURL, err)
	}
	return id, nil
}

// GetPage returns a cached page by id.
func (s *Store) GetPage(id string) (*Page, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	return scanPage(db.QueryRow(`
		SELECT id, url, title, content, summary, fetched_at, content_length, compressed_length, content_type
		FROM pages WHERE id = ?
	`, id))
}

// GetPageByURL returns a cached page by URL. A positive maxAge rejects
// entries fetched longer ago than that.
func (s *Store) GetPageByURL(pageURL string, maxAge time.Duration) (*Page, error) {
	page, err := s.GetPage(PageID(pageURL))
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(page.FetchedAt) > maxAge {
		return nil, ErrNotFound
	}
	return page, nil
}

func scanPage(row *sql.Row) (*Page, error) {
	var p Page
	var fetchedAt int64
	err := row.Scan(&p.ID, &p.URL, &p.Title, &p.Content, &p.Summary, &fetchedAt,
		&p.ContentLength, &p.CompressedLength, &p.ContentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	p.FetchedAt = time.UnixMilli(fetchedAt)
	return &p, nil
}

const sectionSnapRange = 500
const ellipsis = "[…]"

// GetPageSection returns a window of up to maxChars around the first
// case-insensitive occurrence of keyword, snapped to paragraph boundaries
// when one falls within 500 characters. Truncated edges carry […] markers.
// An absent keyword yields the leading window.
func (s *Store) GetPageSection(id, keyword string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = s.config.SectionSize
	}
	page, err := s.GetPage(id)
	if err != nil {
		return "", err
	}
	return sectionOf(page.Content, keyword, maxChars), nil
}

func sectionOf(content, keyword string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}

	idx := -1
	if keyword != "" {
		idx = strings.Index(strings.ToLower(content), strings.ToLower(keyword))
	}
	if idx < 0 {
		// Leading window.
		end := snapDown(content, maxChars)
		return content[:end] + "\n\n" + ellipsis
	}

	start := idx - maxChars/2
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(content) {
		end = len(content)
		start = end - maxChars
		if start < 0 {
			start = 0
		}
	}

	if start > 0 {
		// Snap forward to the next paragraph break when one is close.
		window := content[start:min(start+sectionSnapRange, end)]
		if p := strings.Index(window, "\n\n"); p >= 0 {
			start += p + 2
		}
	}
	if end < len(content) {
		end = snapDown(content[:end], end-start) + start
	}

	out := content[start:end]
	if start > 0 {
		out = ellipsis + "\n\n" + out
	}
	if end < len(content) {
		out = out + "\n\n" + ellipsis
	}
	return out
}

// snapDown moves a cut at limit back to the previous paragraph break when
// one lies within the snap range.
func snapDown(content string, limit int) int {
	if limit >= len(content) {
		return len(content)
	}
	from := limit - sectionSnapRange
	if from < 0 {
		from = 0
	}
	if p := strings.LastIndex(content[from:limit], "\n\n"); p >= 0 {
		return from + p
	}
	return limit
}

// Reference returns the short string that crosses the LLM boundary in place
// of the page body: [cached:<id>] "title" (host) — summary. The summary
// falls back to the leading content characters.
func (s *Store) Reference(id string) (string, error) {
	page, err := s.GetPage(id)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(page.Summary)
	if summary == "" {
		summary = strings.TrimSpace(page.Content)
		if len(summary) > s.config.SummaryLen {
			summary = summary[:s.config.SummaryLen]
		}
	}

	host := ""
	if u, err := url.Parse(page.URL); err == nil {
		host = u.Hostname()
	}
	return fmt.Sprintf("[cached:%s] %q (%s) — %s", page.ID, page.Title, host, summary), nil
}

// FTSResult is one full-text hit over cached pages.
type FTSResult struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchPages runs an FTS5 match over cached page bodies, best matches
// first.
func (s *Store) SearchPages(query string, limit int) ([]FTSResult, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT p.id, p.url, p.title, snippet(pages_fts, 1, '[', ']', '…', 12)
		FROM pages_fts
		JOIN pages p ON p.rowid = pages_fts.rowid
		WHERE pages_fts MATCH ?
		ORDER BY bm25(pages_fts)
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var results []FTSResult
	for rows.Next() {
		var r FTSResult
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
