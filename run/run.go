// Package run drives a training run: it builds the network, trains it epoch
// by epoch, saves checkpoints at fixed intervals and finally replays every
// checkpoint against the training inputs.
package run

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"shapenet/ann"
	"shapenet/checkpoint"
	"shapenet/dataset"
	"shapenet/runlog"
	"shapenet/utils"
)

var (
	ErrAlreadyStarted = errors.New("run already started")
	ErrNoSamples      = errors.New("no usable samples")
)

// Source produces the dataset of a run, once.
type Source interface {
	Generate() ([]dataset.Sample, error)
}

// Sink receives replayed predictions, in ascending epoch order per sample.
type Sink interface {
	RenderPrediction(sampleID string, epoch int, prediction []float64) error
}

// SampleFinisher is implemented by sinks that act once every epoch of a
// sample has been rendered.
type SampleFinisher interface {
	FinishSample(sampleID string) error
}

// Config fixes everything about a run except its collaborators.
type Config struct {
	Topology           ann.Topology
	Epochs             int
	CheckpointInterval int
	LearningRate       float64
	// Slot names the checkpoint namespace; the run ID when empty.
	Slot string
	// Seed drives weight initialization.
	Seed uint64
	// ReplayStride replays only checkpoints whose epoch is a multiple of
	// it, plus the last one. Zero replays all of them.
	ReplayStride int
}

func (c Config) validate() error {
	if err := c.Topology.Validate(); err != nil {
		return err
	}
	switch {
	case c.Epochs < 0:
		return fmt.Errorf("negative epoch count %d", c.Epochs)
	case c.CheckpointInterval <= 0:
		return fmt.Errorf("checkpoint interval must be positive, got %d", c.CheckpointInterval)
	case c.ReplayStride < 0:
		return fmt.Errorf("negative replay stride %d", c.ReplayStride)
	}
	return nil
}

// RecentEntries is how many run log entries a Status carries.
const RecentEntries = 5

// Status is a snapshot of a run's progress. CurrentEpoch counts fully
// applied epochs.
type Status struct {
	ID           string
	Slot         string
	State        State
	CurrentEpoch int
	TotalEpochs  int
	Loss         float64
	Err          error
	// FailedIn is the phase the run was in when it failed.
	FailedIn State
	// Recent holds the last checkpoint entries, oldest first.
	Recent []runlog.Entry
	Timing utils.TimingStats
}

// Progress is the share of epochs applied, in percent. A finished run is
// at 100.
func (s Status) Progress() float64 {
	switch {
	case s.State == Done:
		return 100
	case s.TotalEpochs <= 0:
		return 0
	}
	return 100 * float64(s.CurrentEpoch) / float64(s.TotalEpochs)
}

// EpochLoss is the mean squared error of one epoch's samples, measured
// before each sample's update. Epoch 0 is the untrained network.
type EpochLoss struct {
	Epoch int
	Loss  float64
}

// Run is a single training run. It is used once: Start, then Wait.
type Run struct {
	id     string
	cfg    Config
	source Source
	store  checkpoint.Store
	sink   Sink
	log    runlog.Recorder

	mu      sync.Mutex
	status  Status
	losses  []EpochLoss
	started bool
	done    chan struct{}

	// owned by the run goroutine
	net     *ann.Network
	samples []dataset.Sample
	skipped map[string]bool
	saved   []int
}

// New prepares a run. rec may be nil.
func New(cfg Config, source Source, store checkpoint.Store, sink Sink, rec runlog.Recorder) (*Run, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if source == nil || store == nil || sink == nil {
		return nil, errors.New("run needs a source, a store and a sink")
	}
	id := uuid.NewString()
	if cfg.Slot == "" {
		cfg.Slot = id
	}
	return &Run{
		id:     id,
		cfg:    cfg,
		source: source,
		store:  store,
		sink:   sink,
		log:    rec,
		status: Status{ID: id, Slot: cfg.Slot, State: Idle, TotalEpochs: cfg.Epochs},
		done:   make(chan struct{}),
	}, nil
}

func (r *Run) ID() string { return r.id }

// Start runs the whole pipeline on a new goroutine and returns immediately.
func (r *Run) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	go r.execute()
	return nil
}

// Wait blocks until the run is Done or Failed and returns its error.
func (r *Run) Wait() error {
	<-r.done
	return r.Status().Err
}

func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	st.Recent = append([]runlog.Entry(nil), r.status.Recent...)
	return st
}

// Losses returns the loss of every epoch trained so far.
func (r *Run) Losses() []EpochLoss {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EpochLoss(nil), r.losses...)
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.status.State = s
	r.mu.Unlock()
}

func (r *Run) execute() {
	defer close(r.done)
	start := time.Now()

	err := r.pipeline()

	r.mu.Lock()
	r.status.Timing.TotalTime = time.Since(start)
	if err != nil {
		r.status.FailedIn = r.status.State
		r.status.State = Failed
		r.status.Err = err
	} else {
		r.status.State = Done
	}
	r.mu.Unlock()

	if err != nil {
		utils.Logf("run", "%s failed: %v", r.id, err)
		return
	}
	utils.Logf("run", "%s done", r.id)
}

func (r *Run) pipeline() error {
	if err := r.prepare(); err != nil {
		return err
	}
	if err := r.train(); err != nil {
		return err
	}
	return r.replay()
}

func (r *Run) prepare() error {
	r.setState(Preparing)
	start := time.Now()

	samples, err := r.source.Generate()
	if err != nil {
		return fmt.Errorf("generating dataset: %w", err)
	}
	net, err := ann.New(r.cfg.Topology, rand.NewSource(r.cfg.Seed))
	if err != nil {
		return fmt.Errorf("building network: %w", err)
	}
	r.net = net
	r.samples = samples
	r.skipped = make(map[string]bool)

	r.mu.Lock()
	r.status.Timing.GenerationTime = time.Since(start)
	r.mu.Unlock()

	utils.Logf("run", "%s: %d samples, topology %v, slot %q", r.id, len(samples), r.cfg.Topology, r.cfg.Slot)
	return nil
}

func (r *Run) train() error {
	r.setState(Training)

	baseline, err := r.evaluate()
	if err != nil {
		return err
	}
	if err := r.checkpoint(0, baseline); err != nil {
		return err
	}

	for epoch := 1; epoch <= r.cfg.Epochs; epoch++ {
		start := time.Now()
		loss := r.epoch()
		elapsed := time.Since(start)

		r.mu.Lock()
		r.status.Timing.TrainingTime += elapsed
		r.losses = append(r.losses, EpochLoss{Epoch: epoch, Loss: loss})
		r.mu.Unlock()

		if epoch%r.cfg.CheckpointInterval == 0 || epoch == r.cfg.Epochs {
			utils.Logf("run", "Epoch %d/%d | Loss: %.6f | Time: %.2fs", epoch, r.cfg.Epochs, loss, elapsed.Seconds())
			if err := r.checkpoint(epoch, loss); err != nil {
				return err
			}
			continue
		}
		r.advance(epoch, loss)
	}
	return nil
}

// evaluate measures the untrained network and drops samples that do not
// fit the topology. It fails when none is left.
func (r *Run) evaluate() (float64, error) {
	var errs []float64
	for _, s := range r.samples {
		out, err := r.net.Forward(s.Input)
		if err == nil && len(s.Target) != len(out) {
			err = ann.DimensionError{What: "target", Got: len(s.Target), Expected: len(out)}
		}
		if err != nil {
			r.skip(s.ID, err)
			continue
		}
		errs = append(errs, meanSquaredError(s.Target, out))
	}
	if len(errs) == 0 {
		return 0, ErrNoSamples
	}
	loss := stat.Mean(errs, nil)
	r.mu.Lock()
	r.losses = append(r.losses, EpochLoss{Epoch: 0, Loss: loss})
	r.mu.Unlock()
	return loss, nil
}

func (r *Run) epoch() float64 {
	errs := make([]float64, 0, len(r.samples))
	for _, s := range r.samples {
		if r.skipped[s.ID] {
			continue
		}
		loss, err := ann.Train(r.net, s.Input, s.Target, r.cfg.LearningRate)
		if err != nil {
			r.skip(s.ID, err)
			continue
		}
		errs = append(errs, loss)
	}
	return stat.Mean(errs, nil)
}

func (r *Run) skip(id string, err error) {
	if r.skipped[id] {
		return
	}
	r.skipped[id] = true
	utils.Logf("run", "%s: skipping sample %s: %v", r.id, id, err)
}

func (r *Run) checkpoint(epoch int, loss float64) error {
	r.setState(Checkpointing)
	start := time.Now()

	if err := r.store.Save(r.cfg.Slot, epoch, r.net); err != nil {
		return fmt.Errorf("saving epoch %d: %w", epoch, err)
	}
	r.saved = append(r.saved, epoch)

	entry := runlog.Entry{
		RunID:     r.id,
		Slot:      r.cfg.Slot,
		Epoch:     epoch,
		Loss:      loss,
		Timestamp: time.Now(),
		Snapshot:  checkpoint.SnapshotName(r.cfg.Slot, epoch),
	}
	if r.log != nil {
		if err := r.log.Record(entry); err != nil {
			return fmt.Errorf("logging epoch %d: %w", epoch, err)
		}
	}

	r.mu.Lock()
	r.status.Recent = append(r.status.Recent, entry)
	if n := len(r.status.Recent); n > RecentEntries {
		r.status.Recent = append([]runlog.Entry(nil), r.status.Recent[n-RecentEntries:]...)
	}
	r.status.Timing.CheckpointTime += time.Since(start)
	r.status.State = Training
	r.status.CurrentEpoch = epoch
	r.status.Loss = loss
	r.mu.Unlock()
	return nil
}

func (r *Run) advance(epoch int, loss float64) {
	r.mu.Lock()
	r.status.CurrentEpoch = epoch
	r.status.Loss = loss
	r.mu.Unlock()
}

func (r *Run) replay() error {
	r.setState(Replaying)
	start := time.Now()

	var samples []dataset.Sample
	for _, s := range r.samples {
		if !r.skipped[s.ID] {
			samples = append(samples, s)
		}
	}
	err := Replay(r.store, r.cfg.Slot, Select(r.saved, r.cfg.ReplayStride), samples, r.sink)

	r.mu.Lock()
	r.status.Timing.ReplayTime = time.Since(start)
	r.mu.Unlock()
	return err
}

func meanSquaredError(target, out []float64) float64 {
	if len(out) == 0 {
		return 0
	}
	sum := 0.0
	for j := range out {
		e := target[j] - out[j]
		sum += e * e
	}
	return sum / float64(len(out))
}
