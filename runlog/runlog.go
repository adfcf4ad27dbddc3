// Package runlog keeps the history of a training run: one entry per saved
// checkpoint with the loss of the epoch that produced it.
package runlog

import "time"

// Entry records one checkpoint of one run.
type Entry struct {
	RunID     string
	Slot      string
	Epoch     int
	Loss      float64
	Timestamp time.Time
	Snapshot  string
}

// Recorder is where a run writes its entries.
type Recorder interface {
	Record(e Entry) error
	Close() error
}

// Memory keeps entries in memory. It is not safe for concurrent use.
type Memory struct {
	Entries []Entry
}

func (m *Memory) Record(e Entry) error {
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *Memory) Close() error { return nil }
