package visitor

import (
	"github.com/elee1766/rcforest/pkg/rcf/geom"
	"github.com/elee1766/rcforest/pkg/rcf/tree"
)

// Attribution implements the §4.7 directional attribution visitor: the same
// recurrence as ScalarScore, but splitting the accumulated score across
// dimensions and high/low direction instead of collapsing it to one number.
// Result().Total() equals ScalarScore's Result() to within 1e-6 (§8).
type Attribution struct {
	kernels      Kernels
	treeMass     int
	ignoreMass   int
	dimension    int
	converged    bool
	useShadowBox bool
	hitDuplicate bool
	score        float64
	attribution  *geom.DiVector
	probability  *geom.DiVector // scratch, overwritten every Accept/AcceptLeaf
}

// NewAttribution returns a fresh attribution accumulator for one tree
// traversal over vectors of the given dimension.
func NewAttribution(kernels Kernels, treeMass, ignoreMass, dimension int) *Attribution {
	return &Attribution{
		kernels:     kernels,
		treeMass:    treeMass,
		ignoreMass:  ignoreMass,
		dimension:   dimension,
		attribution: geom.NewDiVector(dimension),
		probability: geom.NewDiVector(dimension),
	}
}

var _ tree.Visitor = (*Attribution)(nil)

func (v *Attribution) AcceptLeaf(point []float32, view *tree.NodeView) {
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
	v.probability.AssignAsProbabilityOfCut(leafBox, point)
	v.attribution.AddFrom(v.probability, v.score)
}

func (v *Attribution) Accept(point []float32, view *tree.NodeView) {
	if v.converged {
		return
	}
	box := view.Box
	if v.useShadowBox {
		box = view.ShadowBox
	}
	v.probability.AssignAsProbabilityOfCut(box, point)
	prob := v.probability.Total()
	if prob == 0 {
		v.converged = true
		return
	}
	newValue := v.kernels.ScoreUnseen(view.Depth, view.Mass)
	if !v.hitDuplicate {
		v.score = (1-prob)*v.score + prob*newValue
	}
	v.attribution.Scale(1 - prob)
	v.attribution.AddFrom(v.probability, newValue)
}

func (v *Attribution) IsConverged() bool { return v.converged }

func (v *Attribution) Descriptor() tree.Descriptor {
	// An exact-duplicate leaf switches to the shadow box without
	// converging, so whether shadow boxes are needed can't be decided
	// before traversal starts; always compute them.
	return tree.Descriptor{NeedsShadowBox: true}
}

// Result returns the per-dimension high/low attribution, rescaled so its
// Total() equals the tree's scalar anomaly score.
func (v *Attribution) Result() *geom.DiVector {
	normalized := v.kernels.Normalize(v.score, v.treeMass)
	answer := v.attribution.Clone()
	answer.Normalize(normalized)
	return answer
}
