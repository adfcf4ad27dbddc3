package run

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"shapenet/checkpoint"
	"shapenet/runlog"
)

var ErrUnknownRun = errors.New("unknown run")

// Handle identifies a run started by a Manager.
type Handle string

// Manager starts runs in the background and answers progress queries.
// Runs share nothing but the store and recorder they are given.
type Manager struct {
	mu   sync.Mutex
	runs map[Handle]*Run
}

func NewManager() *Manager {
	return &Manager{runs: make(map[Handle]*Run)}
}

// StartRun validates cfg, starts the run and returns without waiting for it.
func (m *Manager) StartRun(cfg Config, source Source, store checkpoint.Store, sink Sink, rec runlog.Recorder) (Handle, error) {
	r, err := New(cfg, source, store, sink, rec)
	if err != nil {
		return "", err
	}
	h := Handle(r.ID())

	m.mu.Lock()
	m.runs[h] = r
	m.mu.Unlock()

	if err := r.Start(); err != nil {
		return "", err
	}
	return h, nil
}

func (m *Manager) get(h Handle) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, h)
	}
	return r, nil
}

func (m *Manager) QueryState(h Handle) (Status, error) {
	r, err := m.get(h)
	if err != nil {
		return Status{}, err
	}
	return r.Status(), nil
}

// Losses returns the per-epoch loss of run h so far.
func (m *Manager) Losses(h Handle) ([]EpochLoss, error) {
	r, err := m.get(h)
	if err != nil {
		return nil, err
	}
	return r.Losses(), nil
}

// Wait blocks until run h finishes.
func (m *Manager) Wait(h Handle) error {
	r, err := m.get(h)
	if err != nil {
		return err
	}
	return r.Wait()
}

// Handles lists every run started so far.
func (m *Manager) Handles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := make([]Handle, 0, len(m.runs))
	for h := range m.runs {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}
