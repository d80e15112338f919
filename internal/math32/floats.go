// Package math32 provides float32 vector kernels used by the distance package.
// This is an internal package - external users should use the distance package.
package math32

import "math"

// SquaredL2 calculates the squared L2 distance between two vectors.
// Assumes len(a) == len(b); the caller validates lengths.
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		distance += d * d
	}
	return distance
}

// Sqrt returns the square root of x as a float32.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// SubInto stores a[i]-b[i] into dst.
// Assumes all three slices share the same length.
func SubInto(dst, a, b []float32) {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}
