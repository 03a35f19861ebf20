// Package intutils provides utilities for working with ints
package intutils

// Prod multiplies together the given ints. The product of no ints
// is 1, so Prod() is the size of a scalar shape.
func Prod(ints ...int) int {
	p := 1
	for _, v := range ints {
		p *= v
	}
	return p
}
