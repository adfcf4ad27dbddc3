package checkpoint

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shapenet/ann"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS checkpoints(
	slot       TEXT    NOT NULL,
	epoch      INTEGER NOT NULL,
	topology   TEXT    NOT NULL,
	snapshot   BLOB    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY(slot, epoch)
)`

// SQLiteStore keeps checkpoints as rows of a checkpoints table. Each Save is
// a single upsert, so readers see whole snapshots only.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a database file and prepares the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	return db, nil
}

// NewSQLiteStore uses db, which may be shared with other tables.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(checkpointSchema); err != nil {
		return nil, fmt.Errorf("creating checkpoints table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(slot string, epoch int, net *ann.Network) error {
	if err := validate(slot, epoch); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, net); err != nil {
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}
	_, err := s.db.Exec(`
		INSERT INTO checkpoints(slot, epoch, topology, snapshot, created_at) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(slot, epoch) DO UPDATE SET
			topology = excluded.topology,
			snapshot = excluded.snapshot,
			created_at = excluded.created_at`,
		slot, epoch, net.Topology().String(), buf.Bytes(), time.Now().Unix())
	if err != nil {
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Load(slot string, epoch int) (*ann.Network, error) {
	if err := validate(slot, epoch); err != nil {
		return nil, err
	}
	var blob []byte
	err := s.db.QueryRow("SELECT snapshot FROM checkpoints WHERE slot = ? AND epoch = ?", slot, epoch).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(slot, epoch)
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Slot: slot, Epoch: epoch, Err: err}
	}
	net, err := Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, &StorageError{Op: "load", Slot: slot, Epoch: epoch, Err: err}
	}
	return net, nil
}

func (s *SQLiteStore) List(slot string) ([]int, error) {
	if err := validate(slot, 0); err != nil {
		return nil, err
	}
	rows, err := s.db.Query("SELECT epoch FROM checkpoints WHERE slot = ? ORDER BY epoch ASC", slot)
	if err != nil {
		return nil, &StorageError{Op: "list", Slot: slot, Epoch: -1, Err: err}
	}
	defer rows.Close()

	var epochs []int
	for rows.Next() {
		var epoch int
		if err := rows.Scan(&epoch); err != nil {
			return nil, &StorageError{Op: "list", Slot: slot, Epoch: -1, Err: err}
		}
		epochs = append(epochs, epoch)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Slot: slot, Epoch: -1, Err: err}
	}
	return epochs, nil
}

// Slots lists every slot with at least one checkpoint, in name order.
func (s *SQLiteStore) Slots() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT slot FROM checkpoints ORDER BY slot")
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("listing slots: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
