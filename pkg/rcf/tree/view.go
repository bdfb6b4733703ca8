package tree

import "github.com/elee1766/rcforest/pkg/rcf/geom"

// NodeView is the read-only snapshot of one tree node passed to a visitor
// during traversal. Ancestor views additionally carry a bounding box and,
// when the traversal is ignoring a duplicate leaf, a shadow box excluding
// that leaf's contribution.
type NodeView struct {
	Depth       int
	Mass        int
	IsLeaf      bool
	LeafKey     int       // point-store key; only meaningful when IsLeaf
	LeafPoint   []float32 // the leaf's stored vector; only meaningful when IsLeaf
	LeafIsExact bool
	Box         *geom.BoundingBox
	ShadowBox   *geom.BoundingBox
	Cut         geom.Cut
}

// Descriptor advertises which optional NodeView fields a visitor actually
// reads, so Traverse can skip the (comparatively expensive) shadow-box
// computation for visitors that never ignore duplicates.
type Descriptor struct {
	NeedsShadowBox bool
}

// Visitor is a traversal strategy invoked at each node on the path from a
// chosen leaf up to the root.
type Visitor interface {
	AcceptLeaf(point []float32, view *NodeView)
	Accept(point []float32, view *NodeView)
	IsConverged() bool
	Descriptor() Descriptor
}

// MultiVisitor additionally triggers a descent into the sibling subtree at
// ancestors whose cut dimension is "interesting" (e.g. a missing
// coordinate for imputation), combining the two branches' results instead
// of the single-branch Accept.
type MultiVisitor interface {
	Visitor
	Trigger(view *NodeView) bool
	CombineBranches(point []float32, view *NodeView)
}
