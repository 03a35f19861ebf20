package expreplay

import "errors"

// Error reports a failed operation on a replay buffer
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "expreplay: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrEmpty is returned when sampling from a buffer holding no
	// transitions
	ErrEmpty = errors.New("buffer empty")

	// ErrInsufficientSamples is returned when sampling from a buffer
	// holding fewer transitions than its minimum capacity
	ErrInsufficientSamples = errors.New("minimum capacity not yet reached")
)

// IsInsufficientSamples reports whether err was caused by sampling
// before the buffer reached its minimum capacity
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, ErrInsufficientSamples)
}

// IsEmptyBuffer reports whether err was caused by sampling an empty
// buffer
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, ErrEmpty)
}
