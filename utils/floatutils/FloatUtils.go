// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r1"
)

// Clip restricts value to the closed interval [lo, hi]
func Clip(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(value, hi))
}

// ClipInterval restricts value to the closed interval i
func ClipInterval(value float64, i r1.Interval) float64 {
	return Clip(value, i.Min, i.Max)
}

// DiscountedSum returns Σₖ discountᵏ rewards[k]
func DiscountedSum(rewards []float64, discount float64) float64 {
	var sum float64
	for k := len(rewards) - 1; k >= 0; k-- {
		sum = rewards[k] + discount*sum
	}
	return sum
}
