package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Query represents query parameters for retrieving journal entries
type Query struct {
	Limit  int
	Offset int
	Since  *time.Time
	Kind   string
	Source string
	VFO    string
}

// Stats represents journal statistics
type Stats struct {
	TotalEvents int       `json:"total_events"`
	TotalSaves  int       `json:"total_saves"`
	Stored      int       `json:"stored"`
	LastCleanup time.Time `json:"last_cleanup"`
}

// Entries retrieves entries matching query, newest first
func (j *Journal) Entries(query Query) ([]Entry, error) {
	var args []interface{}

	sqlQuery := `
		SELECT id, timestamp, kind, source, vfo, frequency, sideband, step, band
		FROM events
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, query.Since.UTC())
	}
	if query.Kind != "" {
		sqlQuery += " AND kind = ?"
		args = append(args, query.Kind)
	}
	if query.Source != "" {
		sqlQuery += " AND source = ?"
		args = append(args, query.Source)
	}
	if query.VFO != "" {
		sqlQuery += " AND vfo = ?"
		args = append(args, query.VFO)
	}

	sqlQuery += " ORDER BY id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := j.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Kind,
			&e.Source,
			&e.VFO,
			&e.Frequency,
			&e.Sideband,
			&e.Step,
			&e.Band,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Recent retrieves the most recent entries
func (j *Journal) Recent(limit int) ([]Entry, error) {
	return j.Entries(Query{Limit: limit})
}

// LastSaved returns the newest save entry, or nil if nothing was saved
func (j *Journal) LastSaved() (*Entry, error) {
	entries, err := j.Entries(Query{Kind: "save", Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Count returns the number of stored entries
func (j *Journal) Count() (int, error) {
	var count int
	err := j.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// Stats retrieves journal statistics
func (j *Journal) Stats() (*Stats, error) {
	var stats Stats
	var lastCleanup sql.NullTime

	err := j.db.QueryRow(`
		SELECT total_events, total_saves, last_cleanup
		FROM journal_stats WHERE id = 1
	`).Scan(&stats.TotalEvents, &stats.TotalSaves, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	if stats.Stored, err = j.Count(); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return &stats, nil
}
