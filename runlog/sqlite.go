package runlog

import (
	"database/sql"
	"fmt"
	"time"
)

const logSchema = `
CREATE TABLE IF NOT EXISTS training_log(
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	slot       TEXT    NOT NULL,
	epoch      INTEGER NOT NULL,
	loss       REAL    NOT NULL,
	created_at INTEGER NOT NULL,
	snapshot   TEXT    NOT NULL
)`

const logIndex = `CREATE INDEX IF NOT EXISTS training_log_run ON training_log(run_id, epoch)`

// SQLiteLog stores entries in a training_log table. The database handle is
// usually the one the checkpoint store uses.
type SQLiteLog struct {
	db *sql.DB
}

func NewSQLiteLog(db *sql.DB) (*SQLiteLog, error) {
	for _, stmt := range []string{logSchema, logIndex} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating training_log table: %w", err)
		}
	}
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Record(e Entry) error {
	_, err := l.db.Exec(
		"INSERT INTO training_log(run_id, slot, epoch, loss, created_at, snapshot) VALUES(?, ?, ?, ?, ?, ?)",
		e.RunID, e.Slot, e.Epoch, e.Loss, e.Timestamp.UnixNano(), e.Snapshot)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// Close leaves the shared database open.
func (l *SQLiteLog) Close() error { return nil }

// Entries lists the entries of runID in epoch order.
func (l *SQLiteLog) Entries(runID string) ([]Entry, error) {
	rows, err := l.db.Query(
		"SELECT run_id, slot, epoch, loss, created_at, snapshot FROM training_log WHERE run_id = ? ORDER BY epoch, id",
		runID)
	if err != nil {
		return nil, fmt.Errorf("querying log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.RunID, &e.Slot, &e.Epoch, &e.Loss, &ts, &e.Snapshot); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
