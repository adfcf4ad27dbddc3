// shapenet-export: writes a checkpoint as per-layer JSON weights.
//
// Usage:
//
//	shapenet-export --slot=<slot> --epoch=1000 --output=weights.json
package main

import (
	"flag"
	"fmt"
	"os"

	"shapenet/pipeline"
	"shapenet/utils"
)

var defaults = utils.Defaults()

var (
	slot       = flag.String("slot", "", "Checkpoint slot (required)")
	epoch      = flag.Int("epoch", 0, "Checkpoint epoch")
	storeKind  = flag.String("store", defaults.StoreKind, "Checkpoint store: file, sqlite")
	storePath  = flag.String("store-path", defaults.StorePath, "Checkpoint directory or database file")
	outputFile = flag.String("output", "weights.json", "Output weights file (JSON)")
)

func main() {
	flag.Parse()

	if *slot == "" {
		fmt.Fprintln(os.Stderr, "Error: --slot is required")
		os.Exit(2)
	}

	cfg := defaults
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	res, err := pipeline.Open(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer res.Close()

	net, err := res.Store.Load(*slot, *epoch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading checkpoint: %v\n", err)
		os.Exit(1)
	}

	weights := utils.ExportWeights(net, *epoch)
	if err := utils.SaveWeights(*outputFile, weights); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d layers of %s (epoch %d) to %s\n", len(weights.Layers), weights.Topology, *epoch, *outputFile)
}
