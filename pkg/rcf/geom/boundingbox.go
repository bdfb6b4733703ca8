// Package geom implements the axis-aligned bounding box, random cut
// selection, and the directional/range vector primitives used throughout
// tree construction and traversal.
package geom

import "github.com/elee1766/rcforest/pkg/rcf/rcferr"

// BoundingBox is an axis-aligned hyper-rectangle with a cached L1 range
// sum: RangeSum == sum(Max[i]-Min[i]), recomputed after every mutation.
type BoundingBox struct {
	Min      []float32
	Max      []float32
	RangeSum float64
}

// NewBoundingBox builds the box spanning two points (order doesn't matter).
func NewBoundingBox(a, b []float32) (*BoundingBox, error) {
	if err := rcferr.CheckArgument(len(a) == len(b), "mismatched lengths"); err != nil {
		return nil, err
	}
	box := &BoundingBox{
		Min: make([]float32, len(a)),
		Max: make([]float32, len(a)),
	}
	for i := range a {
		if a[i] < b[i] {
			box.Min[i], box.Max[i] = a[i], b[i]
		} else {
			box.Min[i], box.Max[i] = b[i], a[i]
		}
		box.RangeSum += float64(box.Max[i] - box.Min[i])
	}
	return box, nil
}

// Contains reports whether point lies within the box on every dimension.
func (b *BoundingBox) Contains(point []float32) bool {
	for i, v := range point {
		if v < b.Min[i] || v > b.Max[i] {
			return false
		}
	}
	return true
}

// ExpandToInclude grows the box to cover point, recomputing RangeSum, and
// reports whether the box actually grew.
func (b *BoundingBox) ExpandToInclude(point []float32) bool {
	return b.expand(point, point)
}

// UnionWith grows the box to cover other, recomputing RangeSum, and reports
// whether the box actually grew.
func (b *BoundingBox) UnionWith(other *BoundingBox) bool {
	return b.expand(other.Min, other.Max)
}

func (b *BoundingBox) expand(minValues, maxValues []float32) bool {
	grew := false
	for i := range b.Min {
		if minValues[i] < b.Min[i] {
			b.Min[i] = minValues[i]
			grew = true
		}
		if maxValues[i] > b.Max[i] {
			b.Max[i] = maxValues[i]
			grew = true
		}
	}
	if grew {
		b.RangeSum = 0
		for i := range b.Min {
			b.RangeSum += float64(b.Max[i] - b.Min[i])
		}
	}
	return grew
}

// Overshoot returns sum(max(0, Min[i]-p[i]) + max(0, p[i]-Max[i])).
func (b *BoundingBox) Overshoot(point []float32) float64 {
	return b.overshoot(point, nil)
}

func (b *BoundingBox) overshoot(point []float32, missing []bool) float64 {
	var sum float64
	for i, v := range point {
		if missing != nil && missing[i] {
			continue
		}
		if gap := b.Min[i] - v; gap > 0 {
			sum += float64(gap)
		}
		if gap := v - b.Max[i]; gap > 0 {
			sum += float64(gap)
		}
	}
	return sum
}

// ProbabilityOfCut is Overshoot(point) / (RangeSum + Overshoot(point)): the
// probability that a uniformly random cut of the extended box separates
// point from the box. It is 0 when point is inside the box, and 1 when the
// box is a single point distinct from point.
func (b *BoundingBox) ProbabilityOfCut(point []float32) float64 {
	return b.probabilityOfCut(b.overshoot(point, nil))
}

// ProbabilityOfCutWithMissing skips dimensions flagged in missing.
func (b *BoundingBox) ProbabilityOfCutWithMissing(point []float32, missing []bool) float64 {
	return b.probabilityOfCut(b.overshoot(point, missing))
}

func (b *BoundingBox) probabilityOfCut(overshoot float64) float64 {
	if overshoot == 0 {
		return 0
	}
	if b.RangeSum == 0 {
		return 1
	}
	return overshoot / (b.RangeSum + overshoot)
}
