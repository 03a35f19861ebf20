package environment

import "github.com/samuelfneumann/goforce/timestep"

// StepLimit is an Ender which cuts episodes off once they reach a
// fixed number of timesteps. Episodes ended this way are marked as
// timeouts so that the final state is still bootstrapped.
type StepLimit int

// NewStepLimit returns an Ender which ends episodes after steps
// timesteps
func NewStepLimit(steps int) StepLimit {
	return StepLimit(steps)
}

// End marks t as the Last step of a timed-out episode if t has reached
// the step limit and reports whether it did so
func (s StepLimit) End(t *timestep.TimeStep) bool {
	if t.Number < int(s) {
		return false
	}
	t.StepType = timestep.Last
	t.SetEnd(timestep.Timeout)
	return true
}
