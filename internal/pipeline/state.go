package pipeline

import (
	"fmt"
)

// State is a stage of a run.
//
//	Idle -> Validating -> ReferenceLoading -> Extracting -> Generating -> Complete
//
// Any state may move to Failed. A run never retries a stage.
type State int

const (
	Idle State = iota
	Validating
	ReferenceLoading
	Extracting
	Generating
	Complete
	Failed
)

var stateNames = map[State]string{
	Idle:             "idle",
	Validating:       "validating",
	ReferenceLoading: "reference_loading",
	Extracting:       "extracting",
	Generating:       "joining_generating",
	Complete:         "complete",
	Failed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Complete || s == Failed
}

// RunError is returned by Run for every in-pipeline failure. State is the
// stage that was executing.
type RunError struct {
	State State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed while %s: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
