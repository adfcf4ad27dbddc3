package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func withOutput(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	Output, Verbose = &buf, verbose
	t.Cleanup(func() { Output, Verbose = oldOut, oldVerbose })
	return &buf
}

func TestPrintTimingStats(t *testing.T) {
	buf := withOutput(t, true)
	PrintTimingStats(&TimingStats{
		TotalTime:    10 * time.Second,
		TrainingTime: 5 * time.Second,
	}, 10)

	out := buf.String()
	if !strings.Contains(out, "Training: 5s (50.0%)") {
		t.Errorf("missing training share in:\n%s", out)
	}
	if !strings.Contains(out, "Average time per epoch: 500ms") {
		t.Errorf("missing per-epoch average in:\n%s", out)
	}
}

func TestPrintTimingStatsZeroTotals(t *testing.T) {
	buf := withOutput(t, true)
	PrintTimingStats(&TimingStats{}, 0)
	if strings.Contains(buf.String(), "NaN") {
		t.Errorf("unexpected NaN in:\n%s", buf.String())
	}
}

func TestLogfRespectsVerbose(t *testing.T) {
	buf := withOutput(t, false)
	Logf("run", "epoch %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	Verbose = true
	Logf("run", "epoch %d", 2)
	if got := buf.String(); got != "[RUN] epoch 2\n" {
		t.Fatalf("got %q", got)
	}
}
