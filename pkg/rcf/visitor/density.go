package visitor

import (
	"math"

	"github.com/elee1766/rcforest/pkg/rcf/geom"
	"github.com/elee1766/rcforest/pkg/rcf/tree"
)

// InterpolationMeasure accumulates, per dimension and direction, how much of
// a tree's sample mass lies beyond the query on that side, weighted by the
// visitor's running score at the node where the mass was observed.
type InterpolationMeasure struct {
	Measure         *geom.DiVector
	Distance        *geom.DiVector
	ProbabilityMass *geom.DiVector
	SampleSize      float64
}

// NewInterpolationMeasure returns a zeroed measure for a tree of the given
// sample size and dimension.
func NewInterpolationMeasure(dimension int, sampleSize float64) *InterpolationMeasure {
	return &InterpolationMeasure{
		Measure:         geom.NewDiVector(dimension),
		Distance:        geom.NewDiVector(dimension),
		ProbabilityMass: geom.NewDiVector(dimension),
		SampleSize:      sampleSize,
	}
}

// Clone returns a deep copy.
func (m *InterpolationMeasure) Clone() *InterpolationMeasure {
	return &InterpolationMeasure{
		Measure:         m.Measure.Clone(),
		Distance:        m.Distance.Clone(),
		ProbabilityMass: m.ProbabilityMass.Clone(),
		SampleSize:      m.SampleSize,
	}
}

// AddTo accumulates m into other (used to average across trees in a
// forest).
func (m *InterpolationMeasure) AddTo(other *InterpolationMeasure) {
	other.ProbabilityMass.AddFrom(m.ProbabilityMass, 1)
	other.Distance.AddFrom(m.Distance, 1)
	other.Measure.AddFrom(m.Measure, 1)
	other.SampleSize += m.SampleSize
}

// Scale multiplies every component (including sample size) by factor.
func (m *InterpolationMeasure) Scale(factor float64) {
	m.Distance.Scale(factor)
	m.ProbabilityMass.Scale(factor)
	m.Measure.Scale(factor)
	m.SampleSize *= factor
}

// Update folds one node's bounding box into the measure: the overshoot of
// point past box is split across whichever dimensions it escapes on,
// weighted by measure, and returns the node's scalar cut probability so the
// caller can blend its own running score the same way.
func (m *InterpolationMeasure) Update(point []float32, box *geom.BoundingBox, measure float64) float64 {
	minValues, maxValues := box.Min, box.Max
	var minSum, maxSum float64
	for i, p := range point {
		if gap := minValues[i] - p; gap > 0 {
			minSum += float64(gap)
		}
		if gap := p - maxValues[i]; gap > 0 {
			maxSum += float64(gap)
		}
	}
	sum := minSum + maxSum
	newRange := sum + box.RangeSum
	if newRange == 0 {
		return 0
	}
	prob := sum / newRange
	if prob > 0 {
		m.Scale(1 - prob)
		for i, p := range point {
			if p > maxValues[i] {
				t := float64(p-maxValues[i]) / newRange
				m.Distance.High[i] += t * float64(p-minValues[i])
				m.ProbabilityMass.High[i] += t
				m.Measure.High[i] += measure * t
			} else if p < minValues[i] {
				t := float64(minValues[i]-p) / newRange
				m.Distance.Low[i] += t * float64(maxValues[i]-p)
				m.ProbabilityMass.Low[i] += t
				m.Measure.Low[i] += measure * t
			}
		}
	}
	return prob
}

// DirectionalDensity turns the accumulated measure into a per-dimension
// density estimate: each dimension's average distance-per-unit-probability
// is raised to the manifold dimension's power and multiplied by that
// dimension's probability mass; the whole measure is then divided by the
// sum of these factors plus a small threshold (§4.7's kernel density
// estimate).
func (m *InterpolationMeasure) DirectionalDensity() *geom.DiVector {
	const threshold = 1e-3
	dims := m.Measure.Dimensions()
	if m.SampleSize == 0 || m.Measure.Total() == 0 {
		return geom.NewDiVector(dims)
	}
	manifoldDimension := float64(dims)
	var sumOfFactors float64
	for i := 0; i < dims; i++ {
		t := 0.0
		if pm := m.ProbabilityMass.HighLowSum(i); pm > 0 {
			t = m.Distance.HighLowSum(i) / pm
		}
		if t > 0 {
			t = math.Exp(math.Log(t)*manifoldDimension) * m.ProbabilityMass.HighLowSum(i)
		}
		sumOfFactors += t
	}
	densityFactor := 1.0 / (threshold + sumOfFactors)
	answer := m.Measure.Clone()
	answer.Scale(densityFactor)
	return answer
}

// Density collapses DirectionalDensity to a single scalar.
func (m *InterpolationMeasure) Density() float64 {
	return m.DirectionalDensity().Total()
}

// Interpolation is the §4.7 density/interpolation visitor: the same
// recurrence as ScalarScore, but instead of collapsing each ancestor's cut
// probability into a scalar score it folds it into an InterpolationMeasure
// that tracks, per dimension and direction, how much sample mass lies
// beyond the query.
type Interpolation struct {
	kernels      Kernels
	treeMass     int
	ignoreMass   int
	converged    bool
	useShadowBox bool
	hitDuplicate bool
	score        float64
	measure      *InterpolationMeasure
}

// NewInterpolation returns a fresh density accumulator for one tree
// traversal over vectors of the given dimension.
func NewInterpolation(kernels Kernels, treeMass, ignoreMass, dimension int) *Interpolation {
	return &Interpolation{
		kernels:    kernels,
		treeMass:   treeMass,
		ignoreMass: ignoreMass,
		measure:    NewInterpolationMeasure(dimension, float64(treeMass)),
	}
}

var _ tree.Visitor = (*Interpolation)(nil)

func (v *Interpolation) AcceptLeaf(point []float32, view *tree.NodeView) {
	mass := view.Mass
	if mass <= v.ignoreMass {
		v.score = v.kernels.ScoreUnseen(view.Depth, mass)
		v.useShadowBox = true
		return
	}
	if view.LeafIsExact {
		v.score = v.kernels.Damp(mass, v.treeMass) * v.kernels.ScoreSeen(view.Depth, mass)
		v.hitDuplicate = true
		v.useShadowBox = true
		return
	}
	v.score = v.kernels.ScoreUnseen(view.Depth, mass)
	leafBox, _ := geom.NewBoundingBox(view.LeafPoint, view.LeafPoint)
	v.measure.Update(point, leafBox, v.score)
}

func (v *Interpolation) Accept(point []float32, view *tree.NodeView) {
	if v.converged {
		return
	}
	box := view.Box
	if v.useShadowBox {
		box = view.ShadowBox
	}
	newValue := v.kernels.ScoreUnseen(view.Depth, view.Mass)
	prob := v.measure.Update(point, box, newValue)
	if prob == 0 {
		v.converged = true
		return
	}
	if !v.hitDuplicate {
		v.score = (1-prob)*v.score + prob*newValue
	}
}

func (v *Interpolation) IsConverged() bool { return v.converged }

func (v *Interpolation) Descriptor() tree.Descriptor {
	return tree.Descriptor{NeedsShadowBox: true}
}

// Result returns the accumulated interpolation measure, with its Measure
// component rescaled so its Total() equals the tree's scalar anomaly score.
func (v *Interpolation) Result() *InterpolationMeasure {
	normalized := v.kernels.Normalize(v.score, v.treeMass)
	answer := v.measure.Clone()
	answer.Measure.Normalize(normalized)
	return answer
}
