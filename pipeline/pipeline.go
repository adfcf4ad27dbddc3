// Package pipeline wires configuration to concrete collaborators: checkpoint
// store, run log, dataset source and frame decoder.
package pipeline

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"shapenet/checkpoint"
	"shapenet/control"
	"shapenet/dataset"
	"shapenet/render"
	"shapenet/run"
	"shapenet/runlog"
	"shapenet/utils"
)

// Resources holds what Open created and Close releases.
type Resources struct {
	Store    checkpoint.Store
	Recorder runlog.Recorder
	db       *sql.DB
	logDB    *sql.DB
}

// Open builds the checkpoint store and run log named by cfg. With the
// sqlite store both share one database file.
func Open(cfg *utils.Config) (*Resources, error) {
	res := &Resources{}
	switch cfg.StoreKind {
	case "file":
		res.Store = checkpoint.NewFileStore(cfg.StorePath)
	case "sqlite":
		db, err := checkpoint.OpenSQLite(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		res.db = db
		store, err := checkpoint.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		res.Store = store
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.StoreKind)
	}

	rec, err := res.openLog(cfg)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Recorder = rec
	return res, nil
}

// openLog returns a nil Recorder interface, never a nil pointer in one,
// when no log is configured or opening fails.
func (r *Resources) openLog(cfg *utils.Config) (runlog.Recorder, error) {
	switch cfg.LogKind {
	case "":
		return nil, nil
	case "csv":
		path := cfg.LogPath
		if path == "" {
			path = filepath.Join(cfg.OutputDir, "training_log.csv")
		}
		l, err := runlog.OpenCSV(path)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "sqlite":
		db := r.db
		if db == nil || (cfg.LogPath != "" && cfg.LogPath != cfg.StorePath) {
			path := cfg.LogPath
			if path == "" {
				path = filepath.Join(cfg.OutputDir, "training_log.db")
			}
			var err error
			if db, err = checkpoint.OpenSQLite(path); err != nil {
				return nil, err
			}
			r.logDB = db
		}
		l, err := runlog.NewSQLiteLog(db)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("unknown log %q", cfg.LogKind)
}

func (r *Resources) Close() error {
	var first error
	if r.Recorder != nil {
		first = r.Recorder.Close()
	}
	for _, db := range []*sql.DB{r.logDB, r.db} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Source returns the dataset generator named by cfg. Ground-truth images
// go to dir when it is not empty.
func Source(cfg *utils.Config, dir string) (run.Source, error) {
	switch cfg.DatasetKind {
	case "arc":
		return &dataset.ArcSource{Count: cfg.Samples, Src: rand.NewSource(cfg.Seed), Dir: dir}, nil
	case "polygon":
		g := dataset.Polygon{Points: make([]dataset.Point, len(cfg.Points))}
		for i, p := range cfg.Points {
			g.Points[i] = dataset.Point{X: p[0], Y: p[1]}
		}
		return &dataset.PolygonSource{Count: cfg.Samples, Polygon: g, Dir: dir}, nil
	case "csv":
		return &dataset.CSVSource{Path: cfg.DatasetPath, Inputs: cfg.Topology.Inputs, Outputs: cfg.Topology.Outputs}, nil
	}
	return nil, fmt.Errorf("unknown dataset %q", cfg.DatasetKind)
}

// Decoder returns the frame decoder matching the dataset kind. A csv
// dataset is drawn as arcs when it has arc-sized targets, as polygons
// otherwise.
func Decoder(kind string, outputs int) (render.Decoder, error) {
	switch kind {
	case "arc":
		return render.ArcDecoder, nil
	case "polygon":
		return render.PolygonDecoder, nil
	case "csv":
		if outputs == dataset.ArcOutputs {
			return render.ArcDecoder, nil
		}
		return render.PolygonDecoder, nil
	}
	return nil, fmt.Errorf("unknown dataset %q", kind)
}

type dumpSource struct {
	run.Source
	path string
}

func (s dumpSource) Generate() ([]dataset.Sample, error) {
	samples, err := s.Source.Generate()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(s.path)
	if err != nil {
		return nil, fmt.Errorf("creating dataset dump: %w", err)
	}
	if err := dataset.WriteCSV(f, samples); err != nil {
		f.Close()
		return nil, err
	}
	return samples, f.Close()
}

// Dump wraps src so that the generated dataset is also written to path as
// CSV, for later runs with the csv dataset.
func Dump(src run.Source, path string) run.Source {
	return dumpSource{Source: src, path: path}
}

// RunConfig extracts the orchestrator settings from cfg.
func RunConfig(cfg *utils.Config) run.Config {
	return run.Config{
		Topology:           cfg.Topology,
		Epochs:             cfg.Epochs,
		CheckpointInterval: cfg.CheckpointInterval,
		LearningRate:       cfg.LearningRate,
		Slot:               cfg.Slot,
		Seed:               cfg.Seed,
		ReplayStride:       cfg.ReplayStride,
	}
}

// Factory serves remote run requests from shared resources. Each run gets
// its own output directory named after its slot, or a fresh one per
// request when no slot is given.
func Factory(base utils.Config, res *Resources) control.Factory {
	return func(req control.RunRequest) (control.Setup, error) {
		cfg := base
		cfg.Topology = req.Topology
		cfg.Epochs = req.Epochs
		cfg.CheckpointInterval = req.CheckpointInterval
		cfg.LearningRate = req.LearningRate
		cfg.Slot = req.Slot
		cfg.Seed = req.Seed
		cfg.ReplayStride = req.ReplayStride
		cfg.DatasetKind = req.Dataset
		if cfg.DatasetKind == "csv" {
			return control.Setup{}, fmt.Errorf("csv datasets are not served remotely")
		}
		cfg.Samples = req.Samples
		cfg.Points = req.Points
		if err := utils.ValidateConfig(&cfg); err != nil {
			return control.Setup{}, err
		}

		name := cfg.Slot
		if name == "" {
			name = "run-" + uuid.NewString()
		}
		dir := filepath.Join(cfg.OutputDir, name)
		src, err := Source(&cfg, dir)
		if err != nil {
			return control.Setup{}, err
		}
		decode, err := Decoder(cfg.DatasetKind, cfg.Topology.Outputs)
		if err != nil {
			return control.Setup{}, err
		}
		sink, err := render.NewFrameSink(dir, decode)
		if err != nil {
			return control.Setup{}, err
		}
		return control.Setup{Source: src, Store: res.Store, Sink: sink, Recorder: res.Recorder}, nil
	}
}
