package pagecache

import (
	"database/sql"
	"fmt"
	"strings"
)

// migration is one versioned schema step, applied in its own transaction.
type migration struct {
	Version int
	Name    string
	SQL     string
}

func migrations() []migration {
	return []migration{
		{
			Version: 1,
			Name:    "create_pages_and_searches",
			SQL: `
				CREATE TABLE IF NOT EXISTS pages (
					id TEXT PRIMARY KEY,
					url TEXT NOT NULL,
					title TEXT NOT NULL DEFAULT '',
					content TEXT NOT NULL DEFAULT '',
					summary TEXT NOT NULL DEFAULT '',
					fetched_at INTEGER NOT NULL,
					content_length INTEGER NOT NULL DEFAULT 0,
					compressed_length INTEGER NOT NULL DEFAULT 0,
					content_type TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
				CREATE INDEX IF NOT EXISTS idx_pages_fetched_at ON pages(fetched_at);

				CREATE TABLE IF NOT EXISTS searches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					query TEXT NOT NULL,
					results_json TEXT NOT NULL DEFAULT '[]',
					searched_at INTEGER NOT NULL,
					source TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_searches_searched_at ON searches(searched_at);
			`,
		},
		{
			Version: 2,
			Name:    "create_pages_fts",
			SQL: `
				CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
					title,
					content,
					content=pages,
					content_rowid=rowid,
					tokenize='porter unicode61'
				);

				CREATE TRIGGER IF NOT EXISTS pages_fts_ai AFTER INSERT ON pages BEGIN
					INSERT INTO pages_fts(rowid, title, content)
					VALUES (new.rowid, new.title, new.content);
				END;

				CREATE TRIGGER IF NOT EXISTS pages_fts_ad AFTER DELETE ON pages BEGIN
					INSERT INTO pages_fts(pages_fts, rowid, title, content)
					VALUES ('delete', old.rowid, old.title, old.content);
				END;

				CREATE TRIGGER IF NOT EXISTS pages_fts_au AFTER UPDATE ON pages BEGIN
					INSERT INTO pages_fts(pages_fts, rowid, title, content)
					VALUES ('delete', old.rowid, old.title, old.content);
					INSERT INTO pages_fts(rowid, title, content)
					VALUES (new.rowid, new.title, new.content);
				END;
			`,
		},
	}
}

// runMigrations applies all pending migrations inside transactions.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		if !strings.Contains(err.Error(), "no such table") {
			return fmt.Errorf("read schema version: %w", err)
		}
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}
		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
