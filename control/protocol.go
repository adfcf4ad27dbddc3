// Package control is the wire protocol between a run server and its
// clients: gob-encoded messages over any reader/writer pair.
package control

import (
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"shapenet/ann"
	"shapenet/run"
	"shapenet/runlog"
)

func init() {
	gob.Register(RunRequest{})
	gob.Register(HandlePayload{})
	gob.Register(StatePayload{})
}

// MessageType defines message types for the control protocol
type MessageType int

const (
	MsgStartRun MessageType = iota
	MsgRunStarted
	MsgQueryState
	MsgState
	MsgDone
	MsgError
)

// Message represents a message in the control protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// RunRequest asks the server to start a run.
type RunRequest struct {
	Topology           ann.Topology
	Epochs             int
	CheckpointInterval int
	LearningRate       float64
	Slot               string
	Seed               uint64
	ReplayStride       int

	Dataset string // arc or polygon
	Samples int
	Points  [][2]float64
}

// Config is the run configuration the request describes.
func (r RunRequest) Config() run.Config {
	return run.Config{
		Topology:           r.Topology,
		Epochs:             r.Epochs,
		CheckpointInterval: r.CheckpointInterval,
		LearningRate:       r.LearningRate,
		Slot:               r.Slot,
		Seed:               r.Seed,
		ReplayStride:       r.ReplayStride,
	}
}

// HandlePayload names a run, in MsgRunStarted and MsgQueryState.
type HandlePayload struct {
	Handle string
}

// StatePayload is the wire form of run.Status.
type StatePayload struct {
	Handle       string
	Slot         string
	State        string
	Terminal     bool
	CurrentEpoch int
	TotalEpochs  int
	Loss         float64
	Progress     float64
	Err          string
	FailedIn     string
	Recent       []runlog.Entry

	GenerationTime time.Duration
	TrainingTime   time.Duration
	CheckpointTime time.Duration
	ReplayTime     time.Duration
	TotalTime      time.Duration
}

func statePayload(h run.Handle, st run.Status) StatePayload {
	p := StatePayload{
		Handle:         string(h),
		Slot:           st.Slot,
		State:          st.State.String(),
		Terminal:       st.State.Terminal(),
		CurrentEpoch:   st.CurrentEpoch,
		TotalEpochs:    st.TotalEpochs,
		Loss:           st.Loss,
		Progress:       st.Progress(),
		Recent:         st.Recent,
		GenerationTime: st.Timing.GenerationTime,
		TrainingTime:   st.Timing.TrainingTime,
		CheckpointTime: st.Timing.CheckpointTime,
		ReplayTime:     st.Timing.ReplayTime,
		TotalTime:      st.Timing.TotalTime,
	}
	if st.Err != nil {
		p.Err = st.Err.Error()
		p.FailedIn = st.FailedIn.String()
	}
	return p
}

// Protocol handles control communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// receive reads the next message and checks it is of type want. A remote
// error becomes an error, MsgDone becomes io.EOF.
func (p *Protocol) receive(want MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	case want:
		return msg, nil
	}
	return nil, fmt.Errorf("expected message %d, got %d", want, msg.Type)
}

// StartRun sends req and waits for the handle of the new run.
func (p *Protocol) StartRun(req RunRequest) (string, error) {
	if err := p.Send(&Message{Type: MsgStartRun, Payload: req}); err != nil {
		return "", err
	}
	msg, err := p.receive(MsgRunStarted)
	if err != nil {
		return "", err
	}
	payload, ok := msg.Payload.(HandlePayload)
	if !ok {
		return "", fmt.Errorf("invalid run started payload type")
	}
	return payload.Handle, nil
}

// QueryState asks for the progress of run handle.
func (p *Protocol) QueryState(handle string) (*StatePayload, error) {
	if err := p.Send(&Message{Type: MsgQueryState, Payload: HandlePayload{Handle: handle}}); err != nil {
		return nil, err
	}
	msg, err := p.receive(MsgState)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(StatePayload)
	if !ok {
		return nil, fmt.Errorf("invalid state payload type")
	}
	return &payload, nil
}
