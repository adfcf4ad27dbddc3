// shapenet-infer: runs one checkpoint (or exported weights) on an image and
// prints the predicted shape.
//
// Usage:
//
//	shapenet-infer --slot=<slot> --epoch=-1 --image=Output/output_001.png
//	shapenet-infer --weights=weights.json --image=shape.png --frame=pred.png
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"shapenet/ann"
	"shapenet/dataset"
	"shapenet/pipeline"
	"shapenet/render"
	"shapenet/utils"
)

var defaults = utils.Defaults()

var (
	slot        = flag.String("slot", "", "Checkpoint slot")
	epoch       = flag.Int("epoch", -1, "Checkpoint epoch (-1: latest)")
	storeKind   = flag.String("store", defaults.StoreKind, "Checkpoint store: file, sqlite")
	storePath   = flag.String("store-path", defaults.StorePath, "Checkpoint directory or database file")
	weightsFile = flag.String("weights", "", "Exported weights JSON file, instead of a checkpoint")
	topology    = flag.String("topology", "1024 1 64 5", "Topology of --weights")
	imageFile   = flag.String("image", "", "PNG image to run (required)")
	datasetKind = flag.String("dataset", defaults.DatasetKind, "How to read the prediction: arc, polygon")
	frameFile   = flag.String("frame", "", "Write the predicted shape to this PNG")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *imageFile == "" {
		fmt.Fprintln(os.Stderr, "Error: --image is required")
		os.Exit(2)
	}
	if err := infer(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func infer() error {
	net, err := loadNetwork()
	if err != nil {
		return err
	}

	img, err := dataset.LoadPNG(*imageFile)
	if err != nil {
		return err
	}
	input := dataset.Downsample(img, dataset.InputSide)
	if input.Len() != net.Topology().Inputs {
		return fmt.Errorf("image gives %d inputs, network %v takes %d", input.Len(), net.Topology(), net.Topology().Inputs)
	}
	if *verbose {
		fmt.Fprint(os.Stderr, dataset.Sketch(input))
	}

	start := time.Now()
	pred, err := net.Forward(input.Flatten().Data)
	if err != nil {
		return err
	}
	log("forward pass: %.1f µs", utils.DurationUS(time.Since(start)))

	fmt.Printf("Prediction (%d values):\n", len(pred))
	for i, v := range pred {
		fmt.Printf("  [%d] %.6f\n", i, v)
	}

	decode, err := pipeline.Decoder(*datasetKind, len(pred))
	if err != nil {
		return err
	}
	shape, err := decode(pred)
	if err != nil {
		return err
	}
	fmt.Printf("Shape: %+v\n", shape)

	if *frameFile != "" {
		if err := dataset.WritePNG(*frameFile, dataset.Render(shape, render.PredictionColor)); err != nil {
			return err
		}
		fmt.Printf("Frame written to %s\n", *frameFile)
	}
	return nil
}

func loadNetwork() (*ann.Network, error) {
	if *weightsFile != "" {
		t, err := utils.ParseTopology(*topology)
		if err != nil {
			return nil, err
		}
		mw, err := utils.LoadWeights(*weightsFile)
		if err != nil {
			return nil, err
		}
		log("weights of %s epoch %d", mw.Topology, mw.Epoch)
		return utils.ImportWeights(t, mw)
	}

	if *slot == "" {
		return nil, fmt.Errorf("--slot or --weights is required")
	}
	cfg := defaults
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	res, err := pipeline.Open(&cfg)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	e := *epoch
	if e < 0 {
		epochs, err := res.Store.List(*slot)
		if err != nil {
			return nil, err
		}
		if len(epochs) == 0 {
			return nil, fmt.Errorf("slot %q has no checkpoints", *slot)
		}
		e = epochs[len(epochs)-1]
	}
	log("loading %s epoch %d", *slot, e)
	return res.Store.Load(*slot, e)
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[INFER] "+format+"\n", args...)
	}
}
