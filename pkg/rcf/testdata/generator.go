// Package testdata holds synthetic stream generators used by the rcf
// package's own tests. It is not part of the public API.
package testdata

import (
	"math"
	"math/rand"
)

// MultiDimDataWithKey is a generated multi-dimensional stream plus the
// indices and magnitudes of any injected anomalies, mirroring the original
// implementation's test fixture of the same name.
type MultiDimDataWithKey struct {
	Data          [][]float32
	ChangeIndices []int
	Changes       [][]float32
}

// MultiCosine generates num samples of a base_dimension-wide signal, one
// cosine per dimension with its own period and amplitude plus additive
// noise, occasionally injecting a one-step spike on a random subset of
// dimensions (flagged with probability 0.01 per row, each flagged
// dimension perturbed with probability 0.3).
func MultiCosine(num int, period []int, amplitude []float32, noise float32, seed uint64) MultiDimDataWithKey {
	baseDimension := len(period)
	rng := rand.New(rand.NewSource(int64(seed)))
	noiseRng := rand.New(rand.NewSource(int64(seed) + 1))

	phase := make([]int, baseDimension)
	for i := range phase {
		phase[i] = int(rng.Int63()) % period[i]
	}

	out := MultiDimDataWithKey{}
	for i := 0; i < num; i++ {
		elem := make([]float32, baseDimension)
		flag := noiseRng.Float32() < 0.01
		change := make([]float32, baseDimension)
		used := false

		for j := 0; j < baseDimension; j++ {
			elem[j] = amplitude[j]*float32(math.Cos(2*math.Pi*float64(i+phase[j])/float64(period[j]))) +
				noise*noiseRng.Float32()
			if flag && noiseRng.Float64() < 0.3 {
				factor := 5.0 * (1.0 + noiseRng.Float32())
				delta := factor * noise
				if noiseRng.Float32() < 0.5 {
					delta = -delta
				}
				elem[j] += delta
				change[j] = delta
				used = true
			}
		}

		out.Data = append(out.Data, elem)
		if used {
			out.ChangeIndices = append(out.ChangeIndices, i)
			out.Changes = append(out.Changes, change)
		}
	}

	return out
}
