package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeaders = []string{"RunID", "Slot", "Epoch", "Loss", "Timestamp", "Snapshot"}

// CSVLog appends entries to a CSV file, writing the headers when it creates
// the file.
type CSVLog struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func OpenCSV(path string) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
	}
	var needsHeaders bool
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		needsHeaders = true
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &CSVLog{file: file, w: csv.NewWriter(file)}
	if needsHeaders {
		if err := l.w.Write(csvHeaders); err != nil {
			file.Close()
			return nil, fmt.Errorf("writing csv headers: %w", err)
		}
		l.w.Flush()
	}
	return l, nil
}

func (l *CSVLog) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := []string{
		e.RunID,
		e.Slot,
		strconv.Itoa(e.Epoch),
		strconv.FormatFloat(e.Loss, 'g', -1, 64),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Snapshot,
	}
	if err := l.w.Write(record); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

// ReadCSV reads back every entry of runID from a log written by CSVLog.
// An empty runID selects all runs.
func ReadCSV(path, runID string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	var entries []Entry
	for i := 0; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		if len(record) != len(csvHeaders) {
			return nil, fmt.Errorf("record %d has %d values, expected %d", i, len(record), len(csvHeaders))
		}
		if i == 0 {
			continue
		}
		if runID != "" && record[0] != runID {
			continue
		}
		e := Entry{RunID: record[0], Slot: record[1], Snapshot: record[5]}
		if e.Epoch, err = strconv.Atoi(record[2]); err != nil {
			return nil, fmt.Errorf("record %d epoch: %w", i, err)
		}
		if e.Loss, err = strconv.ParseFloat(record[3], 64); err != nil {
			return nil, fmt.Errorf("record %d loss: %w", i, err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, record[4]); err != nil {
			return nil, fmt.Errorf("record %d timestamp: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
