//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			id UNINDEXED,
			location UNINDEXED,
			section UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, location string, rows []TaskRow) error {
	if _, err := tx.Exec(`DELETE FROM tasks_fts WHERE location = ?`, location); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	for _, r := range rows {
		_, err := tx.Exec(`INSERT INTO tasks_fts (id, location, section, title, body, tags) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.Location, r.Section, r.Title, r.Body, strings.Join(r.Tags, " "))
		if err != nil {
			return fmt.Errorf("index: insert fts %s: %w", r.ID, err)
		}
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       location,
		       section,
		       title,
		       snippet(tasks_fts, 4, '<b>', '</b>', '...', 32)
		FROM tasks_fts
		WHERE tasks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Location, &r.Section, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
