package control

import (
	"fmt"
	"io"

	"shapenet/checkpoint"
	"shapenet/run"
	"shapenet/runlog"
	"shapenet/utils"
)

// Setup is everything a run needs besides its configuration.
type Setup struct {
	Source   run.Source
	Store    checkpoint.Store
	Sink     run.Sink
	Recorder runlog.Recorder
}

// Factory builds the collaborators of a requested run.
type Factory func(req RunRequest) (Setup, error)

// Serve answers requests on p until the peer sends MsgDone or goes away.
// Runs outlive the connection that started them.
func Serve(p *Protocol, m *run.Manager, factory Factory) error {
	for {
		msg, err := p.Receive()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch msg.Type {
		case MsgDone:
			return nil
		case MsgStartRun:
			err = startRun(p, m, factory, msg)
		case MsgQueryState:
			err = queryState(p, m, msg)
		default:
			err = p.SendError(fmt.Errorf("unexpected message %d", msg.Type))
		}
		if err != nil {
			return err
		}
	}
}

func startRun(p *Protocol, m *run.Manager, factory Factory, msg *Message) error {
	req, ok := msg.Payload.(RunRequest)
	if !ok {
		return p.SendError(fmt.Errorf("invalid run request payload type"))
	}
	setup, err := factory(req)
	if err != nil {
		return p.SendError(err)
	}
	h, err := m.StartRun(req.Config(), setup.Source, setup.Store, setup.Sink, setup.Recorder)
	if err != nil {
		return p.SendError(err)
	}
	utils.Logf("control", "run %s started (%d epochs)", h, req.Epochs)
	return p.Send(&Message{Type: MsgRunStarted, Payload: HandlePayload{Handle: string(h)}})
}

func queryState(p *Protocol, m *run.Manager, msg *Message) error {
	q, ok := msg.Payload.(HandlePayload)
	if !ok {
		return p.SendError(fmt.Errorf("invalid query payload type"))
	}
	h := run.Handle(q.Handle)
	st, err := m.QueryState(h)
	if err != nil {
		return p.SendError(err)
	}
	return p.Send(&Message{Type: MsgState, Payload: statePayload(h, st)})
}
