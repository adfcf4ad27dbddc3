package ann

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTopology   = errors.New("invalid topology")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// TopologyError describes why a topology was rejected.
type TopologyError struct {
	Topology Topology
	Reason   string
}

func (e TopologyError) Error() string {
	return fmt.Sprintf("invalid topology %d/%d/%d/%d: %s",
		e.Topology.Inputs, e.Topology.HiddenLayers, e.Topology.Hidden, e.Topology.Outputs, e.Reason)
}

func (e TopologyError) Is(target error) bool {
	return target == ErrInvalidTopology
}

// DimensionError reports a vector whose length does not match the topology.
type DimensionError struct {
	What     string
	Got      int
	Expected int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("%s has %d values, expected %d", e.What, e.Got, e.Expected)
}

func (e DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
