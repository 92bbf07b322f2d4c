package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/ddstune/pkg/logging"
)

// Entry is one applied change of the tuning state
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	VFO       string    `json:"vfo"`
	Frequency int64     `json:"frequency"`
	Sideband  string    `json:"sideband"`
	Step      int       `json:"step"`
	Band      string    `json:"band"`
}

// Journal handles persistent storage of tuning changes
type Journal struct {
	db        *sql.DB
	dbPath    string
	maxEvents int
}

// NewJournal opens or creates the journal database at dbPath, keeping at
// most maxEvents entries (0 keeps everything)
func NewJournal(dbPath string, maxEvents int) (*Journal, error) {
	if dbPath == "" {
		dbPath = "./ddstune.db"
	}
	j := &Journal{
		dbPath:    dbPath,
		maxEvents: maxEvents,
	}

	if err := j.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	return j, nil
}

// NewMemoryJournal creates a journal that lives only as long as the process
func NewMemoryJournal(maxEvents int) (*Journal, error) {
	j := &Journal{dbPath: ":memory:", maxEvents: maxEvents}
	if err := j.open(":memory:"); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	if err := os.MkdirAll(filepath.Dir(j.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := j.open(j.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"); err != nil {
		return err
	}

	logging.Info("storage", "Tuning journal opened", map[string]interface{}{
		"path":       j.dbPath,
		"max_events": j.maxEvents,
	})
	return nil
}

func (j *Journal) open(dsn string) error {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	j.db = db
	if dsn == ":memory:" {
		// each connection of an in-memory database is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := j.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := j.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		kind TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		vfo TEXT NOT NULL CHECK (vfo IN ('A', 'B')),
		frequency INTEGER NOT NULL,
		sideband TEXT NOT NULL CHECK (sideband IN ('LSB', 'USB')),
		step INTEGER NOT NULL DEFAULT 0,
		band TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS journal_stats (
		id INTEGER PRIMARY KEY,
		total_events INTEGER NOT NULL DEFAULT 0,
		total_saves INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO journal_stats (id, total_events, total_saves)
	VALUES (1, 0, 0);
	`

	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)",
		"CREATE INDEX IF NOT EXISTS idx_events_source ON events(source)",
	}

	for _, indexSQL := range indexes {
		if _, err := j.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Record stores an entry. A zero Timestamp is replaced with the current
// time.
func (j *Journal) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO events (timestamp, kind, source, vfo, frequency, sideband, step, band)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Timestamp.UTC(), e.Kind, e.Source, e.VFO, e.Frequency, e.Sideband, e.Step, e.Band)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE journal_stats SET
			total_events = total_events + 1,
			total_saves = CASE WHEN ? = 'save' THEN total_saves + 1 ELSE total_saves END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, e.Kind)
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if err := j.prune(tx); err != nil {
		logging.Warnf("storage", "Failed to prune journal: %v", err)
	}

	return tx.Commit()
}

// Prune removes entries beyond the configured maximum
func (j *Journal) Prune() error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := j.prune(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (j *Journal) prune(tx *sql.Tx) error {
	if j.maxEvents <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return err
	}
	if count <= j.maxEvents {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			ORDER BY id ASC
			LIMIT ?
		)
	`, count-j.maxEvents)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE journal_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
