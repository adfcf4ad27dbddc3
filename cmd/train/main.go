// shapenet-train: trains a network on rendered shapes, checkpoints it and
// replays every checkpoint into frames and GIFs.
//
// Usage:
//
//	shapenet-train --dataset=arc --epochs=1000 --interval=10 --lr=3.0 --out=Output
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shapenet/pipeline"
	"shapenet/render"
	"shapenet/run"
	"shapenet/utils"
)

var defaults = utils.Defaults()

var (
	topology     = flag.String("topology", "1024 1 64 5", "Topology: inputs hiddenLayers hidden outputs")
	epochs       = flag.Int("epochs", defaults.Epochs, "Number of training epochs")
	interval     = flag.Int("interval", defaults.CheckpointInterval, "Checkpoint every N epochs")
	learningRate = flag.Float64("lr", defaults.LearningRate, "Learning rate")
	slot         = flag.String("slot", "", "Checkpoint slot (default: run ID)")
	storeKind    = flag.String("store", defaults.StoreKind, "Checkpoint store: file, sqlite")
	storePath    = flag.String("store-path", defaults.StorePath, "Checkpoint directory or database file")
	datasetKind  = flag.String("dataset", defaults.DatasetKind, "Dataset: arc, polygon, csv")
	datasetPath  = flag.String("dataset-path", "", "CSV dataset file (with --dataset=csv)")
	dump         = flag.String("dump", "", "Also write the generated dataset to this CSV file")
	samples      = flag.Int("samples", defaults.Samples, "Number of samples")
	seed         = flag.Uint64("seed", defaults.Seed, "Random seed for dataset and weights")
	points       = flag.String("points", utils.DefaultPolygon, "Polygon vertices as x,y pairs in [0,1]")
	outDir       = flag.String("out", defaults.OutputDir, "Directory for images, frames and GIFs")
	stride       = flag.Int("stride", defaults.ReplayStride, "Replay checkpoints every N epochs (0: all)")
	logKind      = flag.String("log", "csv", "Training log: csv, sqlite, or empty for none")
	logPath      = flag.String("log-path", "", "Training log file (default: under --out)")
	verbose      = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      shapenet Trainer                        ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Topology:      %v\n", cfg.Topology)
	fmt.Printf("  Dataset:       %s (%d samples)\n", cfg.DatasetKind, cfg.Samples)
	fmt.Printf("  Epochs:        %d (checkpoint every %d)\n", cfg.Epochs, cfg.CheckpointInterval)
	fmt.Printf("  Learning Rate: %.4f\n", cfg.LearningRate)
	fmt.Printf("  Store:         %s (%s)\n", cfg.StoreKind, cfg.StorePath)
	fmt.Printf("  Output:        %s\n", cfg.OutputDir)
	fmt.Println()

	if err := train(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig() (*utils.Config, error) {
	cfg := defaults
	t, err := utils.ParseTopology(*topology)
	if err != nil {
		return nil, err
	}
	pts, err := utils.ParsePoints(*points)
	if err != nil {
		return nil, err
	}
	cfg.Topology = t
	cfg.Epochs = *epochs
	cfg.CheckpointInterval = *interval
	cfg.LearningRate = *learningRate
	cfg.Slot = *slot
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	cfg.DatasetKind = *datasetKind
	cfg.DatasetPath = *datasetPath
	cfg.Samples = *samples
	cfg.Seed = *seed
	cfg.Points = pts
	cfg.OutputDir = *outDir
	cfg.ReplayStride = *stride
	cfg.LogKind = *logKind
	cfg.LogPath = *logPath
	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func train(cfg *utils.Config) error {
	res, err := pipeline.Open(cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	src, err := pipeline.Source(cfg, cfg.OutputDir)
	if err != nil {
		return err
	}
	if *dump != "" {
		src = pipeline.Dump(src, *dump)
	}
	decode, err := pipeline.Decoder(cfg.DatasetKind, cfg.Topology.Outputs)
	if err != nil {
		return err
	}
	sink, err := render.NewFrameSink(cfg.OutputDir, decode)
	if err != nil {
		return err
	}

	r, err := run.New(pipeline.RunConfig(cfg), src, res.Store, sink, res.Recorder)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s (slot %s)\n", r.ID(), r.Status().Slot)
	if err := r.Start(); err != nil {
		return err
	}
	err = r.Wait()
	st := r.Status()
	if err != nil {
		return fmt.Errorf("run %s failed while %s at epoch %d: %w", r.ID(), st.FailedIn, st.CurrentEpoch, err)
	}

	fmt.Printf("\nTraining complete! Final loss %.6f, total time: %.2fs\n", st.Loss, st.Timing.TotalTime.Seconds())
	utils.PrintTimingStats(&st.Timing, st.CurrentEpoch)

	curve := filepath.Join(cfg.OutputDir, "loss.png")
	start := time.Now()
	if err := render.LossCurve(curve, r.Losses()); err != nil {
		return err
	}
	fmt.Printf("Loss curve written to %s (%.2fs)\n", curve, time.Since(start).Seconds())
	return nil
}
