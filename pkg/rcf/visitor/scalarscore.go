package visitor

import "github.com/elee1766/rcforest/pkg/rcf/tree"

// ScalarScore implements the §4.7 scalar anomaly score: the expected number
// of levels the tree would need, past the query's position, to isolate an
// arbitrary point from the sample, averaged across the random cuts that
// make up this tree.
type ScalarScore struct {
	kernels      Kernels
	treeMass     int
	ignoreMass   int
	converged    bool
	useShadowBox bool
	score        float64
}

// NewScalarScore returns a fresh scorer for one tree traversal. ignoreMass
// suppresses a leaf's own mass (falling back to its shadow box) when that
// mass does not exceed ignoreMass, preventing a just-inserted point from
// trivially scoring itself as non-anomalous.
func NewScalarScore(kernels Kernels, treeMass, ignoreMass int) *ScalarScore {
	return &ScalarScore{kernels: kernels, treeMass: treeMass, ignoreMass: ignoreMass}
}

var _ tree.Visitor = (*ScalarScore)(nil)

func (v *ScalarScore) AcceptLeaf(point []float32, view *tree.NodeView) {
	mass := view.Mass
	if mass <= v.ignoreMass {
		v.score = v.kernels.ScoreUnseen(view.Depth, mass)
		v.useShadowBox = true
		return
	}
	if view.LeafIsExact {
		v.score = v.kernels.Damp(mass, v.treeMass) * v.kernels.ScoreSeen(view.Depth, mass)
		v.converged = true
		return
	}
	v.score = v.kernels.ScoreUnseen(view.Depth, mass)
}

func (v *ScalarScore) Accept(point []float32, view *tree.NodeView) {
	if v.converged {
		return
	}
	box := view.Box
	if v.useShadowBox {
		box = view.ShadowBox
	}
	prob := box.ProbabilityOfCut(point)
	if prob == 0 {
		v.converged = true
		return
	}
	v.score = (1-prob)*v.score + prob*v.kernels.ScoreUnseen(view.Depth, view.Mass)
}

func (v *ScalarScore) IsConverged() bool { return v.converged }

func (v *ScalarScore) Descriptor() tree.Descriptor {
	return tree.Descriptor{NeedsShadowBox: v.ignoreMass > 0}
}

// Result returns the normalized anomaly score for this tree.
func (v *ScalarScore) Result() float64 {
	return v.kernels.Normalize(v.score, v.treeMass)
}
