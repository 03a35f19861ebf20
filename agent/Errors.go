package agent

import (
	"errors"
	"fmt"
)

// ErrTemporarilyBroken is returned when constructing an agent in a
// configuration which is not currently supported
var ErrTemporarilyBroken = errors.New("temporarily broken")

// DeprecatedError reports the use of a deprecated configuration
// argument
type DeprecatedError struct {
	Name        string // Name of the agent or module
	Argument    string // Deprecated argument
	Replacement string // Argument to use instead
}

// Error satisfies the error interface
func (d *DeprecatedError) Error() string {
	return fmt.Sprintf("%v argument %v is deprecated, use %v instead",
		d.Name, d.Argument, d.Replacement)
}

// Deprecated returns a new error reporting that argument of agent or
// module name is deprecated and should be replaced by replacement
func Deprecated(name, argument, replacement string) error {
	return &DeprecatedError{
		Name:        name,
		Argument:    argument,
		Replacement: replacement,
	}
}

// IsDeprecated returns whether err reports a deprecated argument
func IsDeprecated(err error) bool {
	var d *DeprecatedError
	return errors.As(err, &d)
}
