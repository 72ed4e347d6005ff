package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// historyLimit caps how many distinct queries are retained.
const historyLimit = 20

// HistoryRepository persists recent search queries. The table is bounded:
// once historyLimit distinct queries exist, recording a new one evicts the
// oldest.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record stores a search query. Re-recording a known query is a no-op, so a
// repeated search does not refresh its position in the retention window.
func (r *HistoryRepository) Record(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if _, err := r.db.Exec(
		"INSERT OR IGNORE INTO search_history (query, searched_at) VALUES (?, ?)",
		query, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	if _, err := r.db.Exec(`
		DELETE FROM search_history
		WHERE id NOT IN (SELECT id FROM search_history ORDER BY id DESC LIMIT ?)
	`, historyLimit); err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return nil
}

// Recent returns up to limit stored queries, newest first.
func (r *HistoryRepository) Recent(limit int) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT query FROM search_history ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	queries := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return queries, nil
}
