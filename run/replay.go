package run

import (
	"errors"
	"fmt"

	"shapenet/ann"
	"shapenet/checkpoint"
	"shapenet/dataset"
	"shapenet/utils"
)

// Select keeps the epochs that are multiples of stride, plus the last one.
// epochs must be ascending. A stride of zero or one keeps everything.
func Select(epochs []int, stride int) []int {
	if stride <= 1 {
		return append([]int(nil), epochs...)
	}
	var out []int
	for i, e := range epochs {
		if e%stride == 0 || i == len(epochs)-1 {
			out = append(out, e)
		}
	}
	return out
}

// Replay loads each listed checkpoint of slot, runs every sample through it
// and hands the predictions to sink: samples in order, and for each sample
// the epochs in ascending order. Checkpoints are only read. A sample that
// does not fit a checkpoint's topology is skipped; a missing checkpoint
// ends the replay.
func Replay(store checkpoint.Store, slot string, epochs []int, samples []dataset.Sample, sink Sink) error {
	nets := make(map[int]*ann.Network, len(epochs))
	load := func(epoch int) (*ann.Network, error) {
		if net, ok := nets[epoch]; ok {
			return net, nil
		}
		net, err := store.Load(slot, epoch)
		if err != nil {
			return nil, fmt.Errorf("loading epoch %d: %w", epoch, err)
		}
		nets[epoch] = net
		return net, nil
	}

	finisher, _ := sink.(SampleFinisher)
	for _, s := range samples {
		rendered := false
		for _, epoch := range epochs {
			net, err := load(epoch)
			if err != nil {
				return err
			}
			pred, err := net.Forward(s.Input)
			if errors.Is(err, ann.ErrDimensionMismatch) {
				utils.Logf("replay", "skipping sample %s at epoch %d: %v", s.ID, epoch, err)
				continue
			}
			if err != nil {
				return err
			}
			if err := sink.RenderPrediction(s.ID, epoch, pred); err != nil {
				return fmt.Errorf("rendering sample %s epoch %d: %w", s.ID, epoch, err)
			}
			rendered = true
		}
		if finisher != nil && rendered {
			if err := finisher.FinishSample(s.ID); err != nil {
				return fmt.Errorf("finishing sample %s: %w", s.ID, err)
			}
		}
	}
	return nil
}
