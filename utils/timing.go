package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether progress and timing lines are printed.
var Verbose = true

// Output is where progress and timing lines go. Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds wall-clock durations of the phases of one run.
type TimingStats struct {
	TotalTime      time.Duration
	GenerationTime time.Duration
	TrainingTime   time.Duration
	CheckpointTime time.Duration
	ReplayTime     time.Duration
}

// PrintTimingStats prints the breakdown of a finished run.
// Respects the Verbose flag.
func PrintTimingStats(stats *TimingStats, epochs int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Epochs completed: %d\n", epochs)
	if epochs > 0 {
		fmt.Fprintf(Output, "Average time per epoch: %v\n", stats.TrainingTime/time.Duration(epochs))
	}
	fmt.Fprintln(Output, "\nBreakdown by phase:")
	fmt.Fprintf(Output, "  Data generation: %v (%.1f%%)\n", stats.GenerationTime, percent(stats.GenerationTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Training: %v (%.1f%%)\n", stats.TrainingTime, percent(stats.TrainingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Checkpointing: %v (%.1f%%)\n", stats.CheckpointTime, percent(stats.CheckpointTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Replay: %v (%.1f%%)\n", stats.ReplayTime, percent(stats.ReplayTime, stats.TotalTime))
}

func percent(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DurationUS is d in microseconds.
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
