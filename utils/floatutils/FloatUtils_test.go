package floatutils

import (
	"math"
	"testing"
)

func TestClip(t *testing.T) {
	cases := []struct{ in, min, max, want float64 }{
		{0.5, 0, 1, 0.5},
		{-2, -1, 1, -1},
		{3, -1, 1, 1},
	}
	for _, c := range cases {
		if have := Clip(c.in, c.min, c.max); have != c.want {
			t.Errorf("clip(%v, %v, %v): want(%v) have(%v)", c.in, c.min,
				c.max, c.want, have)
		}
	}
}

func TestDiscountedSum(t *testing.T) {
	have := DiscountedSum([]float64{1, 2, 3}, 0.5)
	want := 1 + 0.5*2 + 0.25*3
	if math.Abs(have-want) > 1e-12 {
		t.Errorf("discountedSum: want(%v) have(%v)", want, have)
	}
	if DiscountedSum(nil, 0.9) != 0 {
		t.Error("discountedSum: empty rewards should sum to 0")
	}
}
