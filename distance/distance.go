package distance

import (
	"errors"

	"github.com/hupe1980/trajgo/internal/math32"
)

// ErrLengthMismatch is returned when two vectors have different lengths.
var ErrLengthMismatch = errors.New("vector lengths do not match")

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// Euclidean calculates the exact Euclidean (Minkowski p=2) distance between
// two vectors. It is a pure function with no shared state.
func Euclidean(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	return math32.Sqrt(math32.SquaredL2(a, b)), nil
}
