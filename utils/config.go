package utils

import (
	"fmt"
	"strconv"
	"strings"

	"shapenet/ann"
)

// Config holds the settings of one training run as read from the command line.
type Config struct {
	Topology           ann.Topology
	Epochs             int
	CheckpointInterval int
	LearningRate       float64
	Slot               string

	StoreKind string // file or sqlite
	StorePath string

	DatasetKind string // arc, polygon or csv
	DatasetPath string // csv file
	Samples     int
	Seed        uint64
	Points      [][2]float64 // polygon vertices in [0,1]

	OutputDir    string
	ReplayStride int

	LogKind string // csv, sqlite or empty
	LogPath string
}

// DefaultPolygon is the square the polygon dataset draws unless told otherwise.
const DefaultPolygon = "0.2,0.2 0.2,0.8 0.8,0.8 0.8,0.2"

// Defaults returns the configuration of the reference arc experiment:
// 32×32 inputs, one hidden layer of 64 and five arc parameters.
func Defaults() Config {
	return Config{
		Topology:           ann.Topology{Inputs: 32 * 32, HiddenLayers: 1, Hidden: 64, Outputs: 5},
		Epochs:             1000,
		CheckpointInterval: 10,
		LearningRate:       3.0,
		StoreKind:          "file",
		StorePath:          "checkpoints",
		DatasetKind:        "arc",
		Samples:            10,
		Seed:               1,
		OutputDir:          "out",
		ReplayStride:       100,
	}
}

// ParseTopology parses "inputs hiddenLayers hidden outputs".
func ParseTopology(s string) (ann.Topology, error) {
	parts := strings.Fields(s)
	if len(parts) != 4 {
		return ann.Topology{}, fmt.Errorf("topology %q: want 4 numbers (inputs hiddenLayers hidden outputs), got %d", s, len(parts))
	}
	n := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return ann.Topology{}, fmt.Errorf("topology %q: %w", s, err)
		}
		n[i] = v
	}
	return ann.Topology{Inputs: n[0], HiddenLayers: n[1], Hidden: n[2], Outputs: n[3]}, nil
}

// ParsePoints parses space-separated "x,y" pairs.
func ParsePoints(s string) ([][2]float64, error) {
	var points [][2]float64
	for _, pair := range strings.Fields(s) {
		xy := strings.Split(pair, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("point %q: want x,y", pair)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", pair, err)
		}
		points = append(points, [2]float64{x, y})
	}
	return points, nil
}

// ValidateConfig checks a run configuration before anything is built from it.
func ValidateConfig(config *Config) error {
	if err := config.Topology.Validate(); err != nil {
		return err
	}

	if config.Epochs < 0 {
		return fmt.Errorf("epochs must not be negative")
	}

	if config.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Samples <= 0 {
		return fmt.Errorf("sample count must be positive")
	}

	if config.ReplayStride < 0 {
		return fmt.Errorf("replay stride must not be negative")
	}

	switch config.StoreKind {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store must be 'file' or 'sqlite', got %q", config.StoreKind)
	}

	switch config.LogKind {
	case "", "csv", "sqlite":
	default:
		return fmt.Errorf("log must be 'csv' or 'sqlite', got %q", config.LogKind)
	}

	switch config.DatasetKind {
	case "arc":
		if config.Topology.Outputs != 5 {
			return fmt.Errorf("arc dataset needs 5 outputs, topology has %d", config.Topology.Outputs)
		}
	case "polygon":
		if len(config.Points) < 2 {
			return fmt.Errorf("polygon needs at least 2 points")
		}
		if want := 2 * len(config.Points); config.Topology.Outputs != want {
			return fmt.Errorf("polygon with %d points needs %d outputs, topology has %d",
				len(config.Points), want, config.Topology.Outputs)
		}
	case "csv":
		if config.DatasetPath == "" {
			return fmt.Errorf("csv dataset needs a file")
		}
	default:
		return fmt.Errorf("dataset must be 'arc', 'polygon' or 'csv', got %q", config.DatasetKind)
	}

	return nil
}
