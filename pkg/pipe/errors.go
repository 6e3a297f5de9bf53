package pipe

import (
	"errors"
	"fmt"
)

// Construction errors.
var (
	ErrInvalidTitle    = errors.New("work unit requires a title")
	ErrInvalidKey      = errors.New("routine key must be a valid unique string")
	ErrDuplicateKey    = errors.New("routine key already used by a sibling")
	ErrNilUnit         = errors.New("work unit is nil")
	ErrCycle           = errors.New("routine cannot contain itself or an ancestor")
	ErrAlreadyOwned    = errors.New("work unit already belongs to another routine")
	ErrFrozen          = errors.New("routine children cannot change once it has run")
	ErrNotChild        = errors.New("selection is not an ordered subset of the routine's children")
	ErrUnknownStrategy = errors.New("unknown execution strategy")
)

// Run errors.
var (
	ErrAlreadyRunning = errors.New("work unit is already running")
	ErrAlreadySettled = errors.New("work unit has already passed or failed")

	ErrInvalidTransition = errors.New("work unit status transition not allowed")
)

// PanicError is the failure recorded when an action panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work unit panicked: %v", e.Value)
}

// TypeError is returned by typed actions that receive a value of the wrong type.
type TypeError struct {
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected value of type %s, got %T", e.Want, e.Got)
}
