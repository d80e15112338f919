package classifier

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// probabilities converts per-model mean neighbor distances into a
// probability vector: softmax over -d/tau, computed in float64 through
// log-sum-exp so very large or very uneven distances cannot underflow the
// normalization. Models without indexed data (active[i] == false) receive
// probability zero; if no model is active the vector is all zeros.
func probabilities(dists []float64, active []bool, tau float64) []float32 {
	out := make([]float32, len(dists))

	logits := make([]float64, 0, len(dists))
	for i, d := range dists {
		if active[i] {
			logits = append(logits, -d/tau)
		}
	}
	if len(logits) == 0 {
		return out
	}

	lse := floats.LogSumExp(logits)

	j := 0
	for i := range dists {
		if !active[i] {
			continue
		}
		out[i] = float32(math.Exp(logits[j] - lse))
		j++
	}
	return out
}
