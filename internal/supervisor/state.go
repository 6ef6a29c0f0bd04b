// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"errors"
	"fmt"
)

const (
	// StateIdle indicates the supervisor was created but Start() not called.
	StateIdle State = iota
	// StateRunning indicates the worker has been started.
	StateRunning
	// StateCompleted indicates the process exited with status 0.
	StateCompleted
	// StateAborted indicates the process failed and a Failure is pending.
	StateAborted
	// StateStopped is terminal: Stop() released the process and the worker.
	StateStopped
)

var (
	// ErrInvalidState is returned when a State value is not one of the defined states.
	ErrInvalidState = errors.New("invalid supervisor state")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("supervisor already started")
)

type (
	// State represents the lifecycle state of a Supervisor.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	InvalidStateError struct {
		Value State
	}

	// AlreadyStartedError is returned by Start when the supervisor has left
	// the Idle state.
	AlreadyStartedError struct {
		State State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Validate returns nil if the State is one of the defined states.
func (s State) Validate() error {
	switch s {
	case StateIdle, StateRunning, StateCompleted, StateAborted, StateStopped:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsFinished reports whether the worker has reached an outcome.
func (s State) IsFinished() bool {
	return s == StateCompleted || s == StateAborted || s == StateStopped
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=idle, 1=running, 2=completed, 3=aborted, 4=stopped)", e.Value)
}

// Unwrap returns ErrInvalidState for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Error implements the error interface.
func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("cannot start supervisor in state %s", e.State)
}

// Unwrap returns ErrAlreadyStarted for errors.Is() compatibility.
func (e *AlreadyStartedError) Unwrap() error { return ErrAlreadyStarted }
