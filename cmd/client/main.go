// shapenet-client: asks a shapenet server to train and follows the run
// until it is done.
//
// Usage:
//
//	shapenet-client --connect=localhost:7000 --dataset=polygon --points="0.2,0.2 0.2,0.8 0.8,0.8"
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"shapenet/control"
	"shapenet/dataset"
	"shapenet/utils"
)

var defaults = utils.Defaults()

var (
	connect      = flag.String("connect", "", "Server address (default: stdin/stdout)")
	topology     = flag.String("topology", "", "Topology: inputs hiddenLayers hidden outputs (default: fits the dataset)")
	epochs       = flag.Int("epochs", defaults.Epochs, "Training epochs")
	interval     = flag.Int("interval", defaults.CheckpointInterval, "Checkpoint every N epochs")
	learningRate = flag.Float64("lr", defaults.LearningRate, "Learning rate")
	slot         = flag.String("slot", "", "Checkpoint slot")
	datasetKind  = flag.String("dataset", defaults.DatasetKind, "Dataset: arc, polygon")
	samples      = flag.Int("samples", defaults.Samples, "Number of samples")
	seed         = flag.Uint64("seed", defaults.Seed, "Random seed")
	points       = flag.String("points", utils.DefaultPolygon, "Polygon vertices as x,y pairs in [0,1]")
	stride       = flag.Int("stride", defaults.ReplayStride, "Replay checkpoints every N epochs (0: all)")
	poll         = flag.Duration("poll", time.Second, "Progress polling interval")
	verbose      = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	req, err := buildRequest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// progress goes to stderr while stdout carries the protocol
	var r io.Reader = os.Stdin
	var w io.Writer = os.Stdout
	report = os.Stderr
	if *connect != "" {
		conn, err := net.Dial("tcp", *connect)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		r, w = conn, conn
		report = os.Stdout
	}
	protocol := control.NewProtocol(r, w)

	err = follow(protocol, req)
	protocol.SendDone()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRequest() (control.RunRequest, error) {
	pts, err := utils.ParsePoints(*points)
	if err != nil {
		return control.RunRequest{}, err
	}
	t := defaults.Topology
	if *datasetKind == "polygon" {
		t.Outputs = 2 * len(pts)
	}
	if *topology != "" {
		if t, err = utils.ParseTopology(*topology); err != nil {
			return control.RunRequest{}, err
		}
	}
	if t.Inputs != dataset.InputSide*dataset.InputSide {
		return control.RunRequest{}, fmt.Errorf("topology needs %d inputs", dataset.InputSide*dataset.InputSide)
	}
	return control.RunRequest{
		Topology:           t,
		Epochs:             *epochs,
		CheckpointInterval: *interval,
		LearningRate:       *learningRate,
		Slot:               *slot,
		Seed:               *seed,
		ReplayStride:       *stride,
		Dataset:            *datasetKind,
		Samples:            *samples,
		Points:             pts,
	}, nil
}

var report io.Writer = os.Stdout

func follow(p *control.Protocol, req control.RunRequest) error {
	handle, err := p.StartRun(req)
	if err != nil {
		return err
	}
	log("Run %s started", handle)

	last := ""
	for {
		st, err := p.QueryState(handle)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%-13s %5.1f%% epoch %d/%d | Loss: %.6f", st.State, st.Progress, st.CurrentEpoch, st.TotalEpochs, st.Loss)
		if line != last {
			fmt.Fprintln(report, line)
			last = line
		}
		if st.Terminal {
			if st.Err != "" {
				return fmt.Errorf("run %s failed while %s: %s", handle, st.FailedIn, st.Err)
			}
			for _, e := range st.Recent {
				log("epoch %d loss %.6f (%s)", e.Epoch, e.Loss, e.Snapshot)
			}
			fmt.Fprintf(report, "Run %s done in %.2fs (train %.2fs, checkpoint %.2fs, replay %.2fs), slot %s\n",
				handle, st.TotalTime.Seconds(), st.TrainingTime.Seconds(), st.CheckpointTime.Seconds(),
				st.ReplayTime.Seconds(), st.Slot)
			return nil
		}
		time.Sleep(*poll)
	}
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[CLIENT] "+format+"\n", args...)
	}
}
