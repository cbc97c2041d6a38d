package metadata

import "golang.org/x/exp/constraints"

// GetAligned rounds operand up to the next multiple of granularity, which must be a power of two.
func GetAligned[T constraints.Unsigned](operand, granularity T) T {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}

// Product multiplies all values; an empty list yields 1.
func Product[T constraints.Integer](values ...T) T {
	p := T(1)
	for _, v := range values {
		p *= v
	}
	return p
}
