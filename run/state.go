package run

// State is the phase a run is in.
type State int

const (
	Idle State = iota
	Preparing
	Training
	Checkpointing
	Replaying
	Done
	Failed
)

var stateNames = [...]string{
	Idle:          "idle",
	Preparing:     "preparing",
	Training:      "training",
	Checkpointing: "checkpointing",
	Replaying:     "replaying",
	Done:          "done",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
