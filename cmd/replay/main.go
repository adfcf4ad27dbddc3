// shapenet-replay: replays the checkpoints of an existing slot against the
// dataset and writes the prediction frames and GIFs again.
//
// Usage:
//
//	shapenet-replay --slot=<slot> --store-path=checkpoints --out=Output
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shapenet/checkpoint"
	"shapenet/dataset"
	"shapenet/pipeline"
	"shapenet/render"
	"shapenet/run"
	"shapenet/utils"
)

var defaults = utils.Defaults()

var (
	slot        = flag.String("slot", "", "Checkpoint slot to replay (required)")
	storeKind   = flag.String("store", defaults.StoreKind, "Checkpoint store: file, sqlite")
	storePath   = flag.String("store-path", defaults.StorePath, "Checkpoint directory or database file")
	datasetKind = flag.String("dataset", defaults.DatasetKind, "Dataset: arc, polygon, csv")
	datasetPath = flag.String("dataset-path", "", "CSV dataset file (with --dataset=csv)")
	samples     = flag.Int("samples", defaults.Samples, "Number of samples to regenerate")
	seed        = flag.Uint64("seed", defaults.Seed, "Seed the dataset was generated with")
	points      = flag.String("points", utils.DefaultPolygon, "Polygon vertices as x,y pairs in [0,1]")
	inputs      = flag.String("inputs", "", "Directory of output_<id>.png images to replay instead of regenerating")
	outDir      = flag.String("out", defaults.OutputDir, "Directory for frames and GIFs")
	stride      = flag.Int("stride", defaults.ReplayStride, "Replay checkpoints every N epochs (0: all)")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *slot == "" {
		fmt.Fprintln(os.Stderr, "Error: --slot is required")
		if err := listSlots(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	}
	if err := replay(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// listSlots prints the slots of the store named by the flags.
func listSlots() error {
	cfg := defaults
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	res, err := pipeline.Open(&cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	lister, ok := res.Store.(checkpoint.SlotLister)
	if !ok {
		return nil
	}
	slots, err := lister.Slots()
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintf(os.Stderr, "No slots in %s\n", cfg.StorePath)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Slots in %s:\n", cfg.StorePath)
	for _, s := range slots {
		fmt.Fprintf(os.Stderr, "  %s\n", s)
	}
	return nil
}

func replay() error {
	cfg := defaults
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	cfg.DatasetKind = *datasetKind
	cfg.DatasetPath = *datasetPath
	cfg.Samples = *samples
	cfg.Seed = *seed
	pts, err := utils.ParsePoints(*points)
	if err != nil {
		return err
	}
	cfg.Points = pts

	res, err := pipeline.Open(&cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	epochs, err := res.Store.List(*slot)
	if err != nil {
		return err
	}
	if len(epochs) == 0 {
		return fmt.Errorf("slot %q has no checkpoints", *slot)
	}
	selected := run.Select(epochs, *stride)
	log("%d checkpoints in %q, replaying %v", len(epochs), *slot, selected)

	// the slot's own topology sizes csv rows and picks the decoder
	first, err := res.Store.Load(*slot, selected[0])
	if err != nil {
		return err
	}
	cfg.Topology = first.Topology()

	var data []dataset.Sample
	if *inputs != "" {
		data, err = loadInputs(*inputs)
	} else {
		var src run.Source
		if src, err = pipeline.Source(&cfg, ""); err == nil {
			data, err = src.Generate()
		}
	}
	if err != nil {
		return err
	}

	decode, err := pipeline.Decoder(cfg.DatasetKind, cfg.Topology.Outputs)
	if err != nil {
		return err
	}
	sink, err := render.NewFrameSink(*outDir, decode)
	if err != nil {
		return err
	}
	if err := run.Replay(res.Store, *slot, selected, data, sink); err != nil {
		return err
	}
	fmt.Printf("Replayed %d samples over %d checkpoints into %s\n", len(data), len(selected), *outDir)
	return nil
}

// loadInputs reads ground-truth images written by a training run.
func loadInputs(dir string) ([]dataset.Sample, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "output_*.png"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no output_*.png images in %s", dir)
	}
	sort.Strings(paths)

	data := make([]dataset.Sample, 0, len(paths))
	for _, p := range paths {
		img, err := dataset.LoadPNG(p)
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "output_"), ".png")
		data = append(data, dataset.Sample{
			ID:    id,
			Input: dataset.Downsample(img, dataset.InputSide).Flatten().Data,
		})
	}
	return data, nil
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[REPLAY] "+format+"\n", args...)
	}
}
