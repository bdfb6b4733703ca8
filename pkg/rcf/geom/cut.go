package geom

import "math/rand"

// Cut is a (dimension, threshold) pair partitioning a bounding box into two
// sub-boxes: every point with point[Dim] <= Value falls left, else right
// (see Tree insertion for the exact convention).
type Cut struct {
	Dim   int
	Value float32
}

// ChooseCut draws a random cut that separates point from box with
// probability box.ProbabilityOfCut(point), and otherwise lies within box.
// It returns the cut together with whether it actually separates point from
// the box's interior. A box degenerated to a single point distinct from
// point always yields a separating cut — the recursion-termination
// guarantee insertion depends on. When point equals a single-point box there
// is nothing to cut and the returned Cut has Dim -1.
func ChooseCut(box *BoundingBox, point []float32, rng *rand.Rand) (Cut, bool) {
	n := len(point)
	firstGap, lastGap := n, 0

	var extendedRange float64
	for i := 0; i < n; i++ {
		if gap := box.Min[i] - point[i]; gap > 0 {
			extendedRange += float64(gap)
		}
		if gap := point[i] - box.Max[i]; gap > 0 {
			extendedRange += float64(gap)
		}
	}
	extendedRange += box.RangeSum
	if extendedRange == 0 {
		return Cut{Dim: -1}, false
	}
	r := extendedRange * rng.Float64()

	dim := n
	var newCut float32
	for d := 0; d < n; d++ {
		minv := minf32(box.Min[d], point[d])
		maxv := maxf32(box.Max[d], point[d])
		gap := maxv - minv
		if gap <= 0 {
			continue
		}
		lastGap = d
		if firstGap == n {
			firstGap = d
		}
		newR := r - float64(gap)
		if newR <= 0 {
			newCut = minv + float32(r)
			if newCut <= minv || newCut >= maxv {
				newCut = minv
			}
			dim = d
			break
		}
		r = newR
	}

	if dim != n {
		minValue, maxValue := box.Min[dim], box.Max[dim]
		separates := (point[dim] <= newCut && newCut < minValue) || (maxValue <= newCut && newCut < point[dim])
		if box.RangeSum != 0 || separates {
			return Cut{Dim: dim, Value: newCut}, separates
		}
	}

	index := lastGap
	if rng.Float32() < 0.5 {
		index = firstGap
	}
	newCut = minf32(box.Min[index], point[index])
	separates := (point[index] == newCut && newCut < box.Min[index]) ||
		(box.Min[index] == newCut && newCut < point[index])
	return Cut{Dim: index, Value: newCut}, separates
}

func minf32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
