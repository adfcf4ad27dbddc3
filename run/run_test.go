package run

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"shapenet/ann"
	"shapenet/checkpoint"
	"shapenet/dataset"
	"shapenet/runlog"
	"shapenet/utils"
)

func TestMain(m *testing.M) {
	utils.Verbose = false
	os.Exit(m.Run())
}

var small = ann.Topology{Inputs: 4, HiddenLayers: 1, Hidden: 3, Outputs: 2}

type sliceSource struct {
	samples []dataset.Sample
	err     error
	gate    chan struct{}
}

func (s *sliceSource) Generate() ([]dataset.Sample, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.samples, s.err
}

func samples(n int, tp ann.Topology) []dataset.Sample {
	r := rand.New(rand.NewSource(99))
	out := make([]dataset.Sample, n)
	for i := range out {
		in := make([]float64, tp.Inputs)
		for j := range in {
			in[j] = r.Float64()
		}
		target := make([]float64, tp.Outputs)
		for j := range target {
			target[j] = 0.2 + 0.6*r.Float64()
		}
		out[i] = dataset.Sample{ID: dataset.SampleID(i), Input: in, Target: target}
	}
	return out
}

type call struct {
	id    string
	epoch int
	pred  []float64
}

type recordingSink struct {
	calls    []call
	finished []string
	failAt   int
}

func (s *recordingSink) RenderPrediction(id string, epoch int, pred []float64) error {
	if s.failAt > 0 && epoch == s.failAt {
		return errors.New("disk full")
	}
	s.calls = append(s.calls, call{id, epoch, pred})
	return nil
}

func (s *recordingSink) FinishSample(id string) error {
	s.finished = append(s.finished, id)
	return nil
}

func (s *recordingSink) order() [][2]interface{} {
	var out [][2]interface{}
	for _, c := range s.calls {
		out = append(out, [2]interface{}{c.id, c.epoch})
	}
	return out
}

// faultyStore fails saves or hides checkpoints of selected epochs.
type faultyStore struct {
	checkpoint.Store
	failSave int
	hide     int
}

func (s *faultyStore) Save(slot string, epoch int, net *ann.Network) error {
	if s.failSave > 0 && epoch == s.failSave {
		return &checkpoint.StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: errors.New("no space left")}
	}
	return s.Store.Save(slot, epoch, net)
}

func (s *faultyStore) Load(slot string, epoch int) (*ann.Network, error) {
	if s.hide > 0 && epoch == s.hide {
		return nil, checkpoint.ErrNotFound
	}
	return s.Store.Load(slot, epoch)
}

func config(epochs, interval int) Config {
	return Config{
		Topology:           small,
		Epochs:             epochs,
		CheckpointInterval: interval,
		LearningRate:       0.5,
		Slot:               "test",
		Seed:               3,
	}
}

func execute(t *testing.T, cfg Config, src Source, store checkpoint.Store, sink Sink, rec runlog.Recorder) (*Run, error) {
	t.Helper()
	r, err := New(cfg, src, store, sink, rec)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	return r, r.Wait()
}

func TestRunCheckpointsAndReplayOrder(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	sink := &recordingSink{}
	var rec runlog.Memory

	r, err := execute(t, config(20, 10), &sliceSource{samples: samples(2, small)}, store, sink, &rec)
	require.NoError(t, err)

	epochs, err := store.List("test")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20}, epochs)

	assert.Equal(t, [][2]interface{}{
		{"001", 0}, {"001", 10}, {"001", 20},
		{"002", 0}, {"002", 10}, {"002", 20},
	}, sink.order())
	assert.Equal(t, []string{"001", "002"}, sink.finished)

	st := r.Status()
	assert.Equal(t, Done, st.State)
	assert.Equal(t, 20, st.CurrentEpoch)
	assert.Equal(t, 20, st.TotalEpochs)
	assert.NoError(t, st.Err)
	assert.Greater(t, st.Timing.TotalTime, time.Duration(0))

	losses := r.Losses()
	require.Len(t, losses, 21)
	for i, l := range losses {
		assert.Equal(t, i, l.Epoch)
	}

	require.Len(t, rec.Entries, 3)
	for i, epoch := range []int{0, 10, 20} {
		e := rec.Entries[i]
		assert.Equal(t, r.ID(), e.RunID)
		assert.Equal(t, epoch, e.Epoch)
		assert.Equal(t, checkpoint.SnapshotName("test", epoch), e.Snapshot)
		assert.Equal(t, losses[epoch].Loss, e.Loss)
	}
}

func TestRunCheckpointsFinalEpoch(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	_, err := execute(t, config(25, 10), &sliceSource{samples: samples(1, small)}, store, &recordingSink{}, nil)
	require.NoError(t, err)

	epochs, err := store.List("test")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20, 25}, epochs)
}

func TestRunZeroEpochs(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	sink := &recordingSink{}
	r, err := execute(t, config(0, 10), &sliceSource{samples: samples(1, small)}, store, sink, nil)
	require.NoError(t, err)

	assert.Equal(t, [][2]interface{}{{"001", 0}}, sink.order())
	assert.Equal(t, 0, r.Status().CurrentEpoch)
}

func TestRunEpochZeroIsUntrained(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	cfg := config(10, 5)
	_, err := execute(t, cfg, &sliceSource{samples: samples(2, small)}, store, &recordingSink{}, nil)
	require.NoError(t, err)

	fresh, err := ann.New(small, rand.NewSource(cfg.Seed))
	require.NoError(t, err)
	baseline, err := store.Load("test", 0)
	require.NoError(t, err)
	assert.Equal(t, fresh.Weights(), baseline.Weights())

	trained, err := store.Load("test", 10)
	require.NoError(t, err)
	assert.NotEqual(t, fresh.Weights(), trained.Weights())
}

func TestReplayMatchesCheckpoints(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	sink := &recordingSink{}
	data := samples(3, small)
	_, err := execute(t, config(30, 10), &sliceSource{samples: data}, store, sink, nil)
	require.NoError(t, err)

	require.Len(t, sink.calls, 12)
	inputs := map[string][]float64{}
	for _, s := range data {
		inputs[s.ID] = s.Input
	}
	for _, c := range sink.calls {
		net, err := store.Load("test", c.epoch)
		require.NoError(t, err)
		want, err := net.Forward(inputs[c.id])
		require.NoError(t, err)
		assert.Equal(t, want, c.pred, "sample %s epoch %d", c.id, c.epoch)
	}
}

func TestRunReplayStride(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	sink := &recordingSink{}
	cfg := config(35, 5)
	cfg.ReplayStride = 20
	_, err := execute(t, cfg, &sliceSource{samples: samples(1, small)}, store, sink, nil)
	require.NoError(t, err)

	assert.Equal(t, [][2]interface{}{{"001", 0}, {"001", 20}, {"001", 35}}, sink.order())
}

func TestRunLossDecreases(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	cfg := config(300, 100)
	cfg.LearningRate = 1.0
	r, err := execute(t, cfg, &sliceSource{samples: samples(3, small)}, store, &recordingSink{}, nil)
	require.NoError(t, err)

	losses := r.Losses()
	assert.Less(t, losses[len(losses)-1].Loss, losses[0].Loss)
}

func TestRunSkipsMismatchedSamples(t *testing.T) {
	data := samples(3, small)
	data[1].Input = data[1].Input[:2]
	data[2].Target = append(data[2].Target, 0.5)

	store := checkpoint.NewFileStore(t.TempDir())
	sink := &recordingSink{}
	r, err := execute(t, config(10, 10), &sliceSource{samples: data}, store, sink, nil)
	require.NoError(t, err)

	assert.Equal(t, Done, r.Status().State)
	assert.Equal(t, [][2]interface{}{{"001", 0}, {"001", 10}}, sink.order())
}

func TestRunFailsWithoutUsableSamples(t *testing.T) {
	data := samples(1, small)
	data[0].Input = nil

	r, err := execute(t, config(10, 10), &sliceSource{samples: data}, checkpoint.NewFileStore(t.TempDir()), &recordingSink{}, nil)
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.Equal(t, Failed, r.Status().State)
	assert.Equal(t, Training, r.Status().FailedIn)
}

func TestRunFailsOnSourceError(t *testing.T) {
	r, err := execute(t, config(10, 10), &sliceSource{err: errors.New("no renderer")}, checkpoint.NewFileStore(t.TempDir()), &recordingSink{}, nil)
	assert.ErrorContains(t, err, "no renderer")
	assert.Equal(t, Failed, r.Status().State)
	assert.Equal(t, Preparing, r.Status().FailedIn)
}

func TestRunFailsOnStorageError(t *testing.T) {
	inner := checkpoint.NewFileStore(t.TempDir())
	store := &faultyStore{Store: inner, failSave: 20}
	sink := &recordingSink{}

	r, err := execute(t, config(30, 10), &sliceSource{samples: samples(1, small)}, store, sink, nil)
	assert.ErrorIs(t, err, checkpoint.ErrStorage)

	st := r.Status()
	assert.Equal(t, Failed, st.State)
	assert.Equal(t, Checkpointing, st.FailedIn)
	assert.Equal(t, 19, st.CurrentEpoch)
	assert.Empty(t, sink.calls)

	// earlier checkpoints are left in place
	epochs, err := inner.List("test")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10}, epochs)
}

func TestRunFailsOnMissingCheckpoint(t *testing.T) {
	store := &faultyStore{Store: checkpoint.NewFileStore(t.TempDir()), hide: 10}
	sink := &recordingSink{}

	r, err := execute(t, config(20, 10), &sliceSource{samples: samples(2, small)}, store, sink, nil)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	assert.Equal(t, Failed, r.Status().State)
	assert.Equal(t, [][2]interface{}{{"001", 0}}, sink.order())
	assert.Empty(t, sink.finished)
}

func TestRunFailsOnSinkError(t *testing.T) {
	sink := &recordingSink{failAt: 10}
	r, err := execute(t, config(20, 10), &sliceSource{samples: samples(1, small)}, checkpoint.NewFileStore(t.TempDir()), sink, nil)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, Failed, r.Status().State)
	assert.Equal(t, Replaying, r.Status().FailedIn)
}

func TestStatusProgress(t *testing.T) {
	assert.Equal(t, 0.0, Status{State: Idle, TotalEpochs: 100}.Progress())
	assert.Equal(t, 25.0, Status{State: Training, CurrentEpoch: 25, TotalEpochs: 100}.Progress())
	assert.Equal(t, 100.0, Status{State: Replaying, CurrentEpoch: 100, TotalEpochs: 100}.Progress())
	assert.Equal(t, 0.0, Status{State: Training}.Progress())
	assert.Equal(t, 100.0, Status{State: Done}.Progress())
}

func TestStatusRecentEntries(t *testing.T) {
	rec := &runlog.Memory{}
	r, err := execute(t, config(100, 10), &sliceSource{samples: samples(1, small)}, checkpoint.NewFileStore(t.TempDir()), &recordingSink{}, rec)
	require.NoError(t, err)

	st := r.Status()
	assert.Equal(t, Idle, st.FailedIn)
	require.Len(t, st.Recent, RecentEntries)
	var epochs []int
	for _, e := range st.Recent {
		epochs = append(epochs, e.Epoch)
		assert.Equal(t, "test", e.Slot)
	}
	assert.Equal(t, []int{60, 70, 80, 90, 100}, epochs)
	assert.Equal(t, rec.Entries[len(rec.Entries)-RecentEntries:], st.Recent)

	// snapshots do not share the run's slice
	st.Recent[0].Epoch = -1
	assert.Equal(t, 60, r.Status().Recent[0].Epoch)
}

func TestRunStartTwice(t *testing.T) {
	r, err := New(config(1, 1), &sliceSource{samples: samples(1, small)}, checkpoint.NewFileStore(t.TempDir()), &recordingSink{}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.Start(), ErrAlreadyStarted)
	require.NoError(t, r.Wait())
}

func TestNewRejectsBadConfig(t *testing.T) {
	store := checkpoint.NewFileStore(t.TempDir())
	src := &sliceSource{}
	for name, cfg := range map[string]Config{
		"topology": {Topology: ann.Topology{Inputs: 1, HiddenLayers: 1, Outputs: 1}, CheckpointInterval: 1},
		"epochs":   {Topology: small, Epochs: -1, CheckpointInterval: 1},
		"interval": {Topology: small, Epochs: 1},
		"stride":   {Topology: small, Epochs: 1, CheckpointInterval: 1, ReplayStride: -1},
	} {
		_, err := New(cfg, src, store, &recordingSink{}, nil)
		assert.Error(t, err, name)
	}
	_, err := New(config(1, 1), nil, store, &recordingSink{}, nil)
	assert.Error(t, err)
}

func TestNewDefaultsSlotToID(t *testing.T) {
	cfg := config(1, 1)
	cfg.Slot = ""
	r, err := New(cfg, &sliceSource{}, checkpoint.NewFileStore(t.TempDir()), &recordingSink{}, nil)
	require.NoError(t, err)
	assert.Equal(t, r.ID(), r.Status().Slot)
	assert.Equal(t, Idle, r.Status().State)
}

func TestManager(t *testing.T) {
	m := NewManager()
	gate := make(chan struct{})
	src := &sliceSource{samples: samples(2, small), gate: gate}

	h, err := m.StartRun(config(20, 10), src, checkpoint.NewFileStore(t.TempDir()), &recordingSink{}, nil)
	require.NoError(t, err)

	// the run is parked in its dataset source
	st, err := m.QueryState(h)
	require.NoError(t, err)
	assert.Equal(t, 20, st.TotalEpochs)
	assert.Equal(t, 0, st.CurrentEpoch)
	assert.False(t, st.State.Terminal())

	close(gate)
	require.NoError(t, m.Wait(h))

	st, err = m.QueryState(h)
	require.NoError(t, err)
	assert.Equal(t, Done, st.State)
	assert.Equal(t, 20, st.CurrentEpoch)

	losses, err := m.Losses(h)
	require.NoError(t, err)
	assert.Len(t, losses, 21)
	assert.Equal(t, []Handle{h}, m.Handles())

	_, err = m.QueryState("nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
	assert.ErrorIs(t, m.Wait("nope"), ErrUnknownRun)
}

func TestManagerParallelRuns(t *testing.T) {
	m := NewManager()
	store := checkpoint.NewFileStore(t.TempDir())

	var handles []Handle
	for i := 0; i < 3; i++ {
		cfg := config(10, 5)
		cfg.Slot = ""
		h, err := m.StartRun(cfg, &sliceSource{samples: samples(2, small)}, store, &recordingSink{}, nil)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		require.NoError(t, m.Wait(h))
		epochs, err := store.List(string(h))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 5, 10}, epochs)
	}
}

func TestSelect(t *testing.T) {
	epochs := []int{0, 10, 20, 30, 40, 45}
	assert.Equal(t, epochs, Select(epochs, 0))
	assert.Equal(t, epochs, Select(epochs, 1))
	assert.Equal(t, []int{0, 20, 40, 45}, Select(epochs, 20))
	assert.Equal(t, []int{0, 30}, Select([]int{0, 10, 20, 30}, 30))
	assert.Empty(t, Select(nil, 10))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "checkpointing", Checkpointing.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Done.Terminal())
	assert.False(t, Replaying.Terminal())
}
