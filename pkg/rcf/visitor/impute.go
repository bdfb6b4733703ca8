package visitor

import "github.com/elee1766/rcforest/pkg/rcf/tree"

// imputeEntry is one stack frame of an in-progress imputation descent: the
// best candidate completion found so far on this branch, its running score,
// the leaf it came from, and whether further ancestors can still change it.
type imputeEntry struct {
	converged bool
	score     float64
	leafKey   int
	candidate []float32
}

// ImputationResult is the outcome of one tree's imputation traversal: the
// lowest-scoring completed point found, its score, and the leaf it copied
// missing coordinates from.
type ImputationResult struct {
	Score   float64
	Point   []float32
	LeafKey int
}

// Imputation is the §4.6/§4.7 multi-visitor used to fill in unknown
// coordinates: every ancestor whose cut dimension is among the missing
// indices also descends into its sibling subtree, and the two branches'
// candidates are merged by keeping whichever scores lower.
type Imputation struct {
	kernels    Kernels
	treeMass   int
	ignoreMass int
	missing    map[int]bool
	stack      []imputeEntry
}

// NewImputation returns a fresh imputation visitor for one tree traversal,
// given the set of coordinate indices the query is missing.
func NewImputation(kernels Kernels, treeMass, ignoreMass int, missing []int) *Imputation {
	m := make(map[int]bool, len(missing))
	for _, d := range missing {
		m[d] = true
	}
	return &Imputation{kernels: kernels, treeMass: treeMass, ignoreMass: ignoreMass, missing: m}
}

var _ tree.MultiVisitor = (*Imputation)(nil)

func (v *Imputation) AcceptLeaf(point []float32, view *tree.NodeView) {
	candidate := append([]float32(nil), point...)
	for d := range v.missing {
		candidate[d] = view.LeafPoint[d]
	}

	var score float64
	var converged bool
	if view.Mass > v.ignoreMass && equalPoint(candidate, point) {
		score = v.kernels.Damp(view.Mass, v.treeMass) * v.kernels.ScoreSeen(view.Depth, view.Mass)
		converged = true
	} else {
		score = v.kernels.ScoreUnseen(view.Depth, view.Mass)
	}
	v.stack = append(v.stack, imputeEntry{converged: converged, score: score, leafKey: view.LeafKey, candidate: candidate})
}

// equalPoint reports whether a and b hold identical values; used to detect
// when a leaf's stored coordinates already agree with the query on every
// missing dimension.
func equalPoint(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v *Imputation) Accept(point []float32, view *tree.NodeView) {
	i := len(v.stack) - 1
	e := v.stack[i]
	if e.converged {
		return
	}
	prob := view.Box.ProbabilityOfCut(e.candidate)
	if prob == 0 {
		e.converged = true
		v.stack[i] = e
		return
	}
	e.score = (1-prob)*e.score + prob*v.kernels.ScoreUnseen(view.Depth, view.Mass)
	v.stack[i] = e
}

func (v *Imputation) Trigger(view *tree.NodeView) bool {
	return v.missing[view.Cut.Dim]
}

func (v *Imputation) CombineBranches(point []float32, view *tree.NodeView) {
	n := len(v.stack)
	a, b := v.stack[n-1], v.stack[n-2]
	keep := a
	if b.score < a.score {
		keep = b
	}
	keep.converged = a.converged || b.converged
	v.stack = append(v.stack[:n-2], keep)
}

func (v *Imputation) IsConverged() bool {
	if len(v.stack) == 0 {
		return false
	}
	return v.stack[len(v.stack)-1].converged
}

func (v *Imputation) Descriptor() tree.Descriptor {
	// Unconditionally false: unlike scoring, imputation always tests
	// ancestors against their real box rather than a shadow box.
	return tree.Descriptor{NeedsShadowBox: false}
}

// Result returns the lowest-scoring completion found across the whole
// traversal.
func (v *Imputation) Result() ImputationResult {
	top := v.stack[len(v.stack)-1]
	return ImputationResult{Score: top.score, Point: top.candidate, LeafKey: top.leafKey}
}
