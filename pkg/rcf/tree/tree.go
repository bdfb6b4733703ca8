package tree

import (
	"math/rand"

	"github.com/elee1766/rcforest/pkg/rcf/geom"
	"github.com/elee1766/rcforest/pkg/rcf/pointstore"
	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// Tree is one random cut tree: a binary tree of internal nodes and leaves
// over a shared PointStore, built and maintained through online Insert and
// Delete. See package geom for BoundingBox/Cut and package sampler for the
// reservoir that decides what Insert/Delete this tree.
type Tree struct {
	store  *NodeStore
	points pointstore.Interface
	root   ref
	rng    *rand.Rand
}

// New returns an empty tree of the given dimension, backed by points and
// seeded deterministically from seed (per-tree, never a shared global
// source, so a (seed, treeIndex) pair reproduces the same model).
func New(dimension, capacity int, boxCacheFraction float64, seed uint64, points pointstore.Interface) *Tree {
	return &Tree{
		store:  NewNodeStore(dimension, capacity, boxCacheFraction, seed),
		points: points,
		root:   nullRef,
		rng:    rand.New(rand.NewSource(int64(seed))),
	}
}

// Mass returns the number of leaf-point occurrences in the tree (the sample
// count, with multiplicities), i.e. the mass of the root.
func (t *Tree) Mass() int {
	if t.root.isNull() {
		return 0
	}
	return int(t.massOf(t.root))
}

// LeafCount returns the number of distinct leaves (without multiplicity).
func (t *Tree) LeafCount() int {
	return t.store.LeafCount()
}

func (t *Tree) massOf(r ref) int32 {
	if r.isLeaf() {
		return t.store.leafMass[r.index()]
	}
	return t.store.mass[r.index()]
}

func (t *Tree) parentOf(r ref) ref {
	if r.isLeaf() {
		return t.store.leafParent[r.index()]
	}
	return t.store.parent[r.index()]
}

func (t *Tree) setParent(r, p ref) {
	if r.isLeaf() {
		t.store.leafParent[r.index()] = p
	} else {
		t.store.parent[r.index()] = p
	}
}

// boxOf returns the bounding box of the subtree rooted at r: a degenerate
// point-box for a leaf, the cached box when present for an internal node,
// otherwise the freshly recomputed union of its children's boxes.
func (t *Tree) boxOf(r ref) *geom.BoundingBox {
	if r.isLeaf() {
		p := t.points.Get(int(t.store.leafKey[r.index()]))
		box, _ := geom.NewBoundingBox(p, p)
		return box
	}
	i := r.index()
	if t.store.cached[i] && t.store.box[i] != nil {
		return t.store.box[i]
	}
	box := t.boxOf(t.store.left[i])
	box = cloneBox(box)
	box.UnionWith(t.boxOf(t.store.right[i]))
	if t.store.cached[i] {
		t.store.box[i] = box
	}
	return box
}

func cloneBox(b *geom.BoundingBox) *geom.BoundingBox {
	min := append([]float32(nil), b.Min...)
	max := append([]float32(nil), b.Max...)
	return &geom.BoundingBox{Min: min, Max: max, RangeSum: b.RangeSum}
}

func (t *Tree) otherChild(parent, child ref) ref {
	i := parent.index()
	if t.store.left[i] == child {
		return t.store.right[i]
	}
	return t.store.left[i]
}

// chooseChild applies the tree's partitioning convention: point[dim] <=
// value descends left, everything else descends right (invariant I2).
func (t *Tree) chooseChild(r ref, point []float32) (primary, sibling ref) {
	i := r.index()
	cut := t.store.cutOf(r)
	if point[cut.Dim] <= cut.Value {
		return t.store.left[i], t.store.right[i]
	}
	return t.store.right[i], t.store.left[i]
}

// Insert admits a point already stored under key (the forest inserts into
// PointStore first) at sequence index seq. A point identical to an
// existing leaf's stored point increments that leaf's mass instead of
// allocating a new internal node (§4.6).
func (t *Tree) Insert(key int, seq int64) error {
	point := t.points.Get(key)
	if err := rcferrGuard(t.store.dimension, point); err != nil {
		return err
	}

	if t.root.isNull() {
		t.root = t.store.allocLeaf(int32(key))
		return nil
	}

	path := t.descendPath(point)
	leaf := path[len(path)-1]
	leafKey := t.store.leafKey[leaf.index()]
	leafPoint := t.points.Get(int(leafKey))

	if equalPoint(leafPoint, point) {
		t.store.leafMass[leaf.index()]++
		for _, a := range path[:len(path)-1] {
			t.store.mass[a.index()]++
		}
		return nil
	}

	t.spliceIn(path, int32(key), point)
	return nil
}

// descendPath follows existing cuts from the root to the leaf point's
// greedy-cut destination, returning every node visited along the way
// (root first, leaf last). Insert needs the full path, in root-to-leaf
// order, because spliceIn attempts the randomized splice trial
// shallowest-first: ancestors whose box contains the new point are skipped,
// and the subtrees the point escapes are tried in the order a top-down
// insertion would visit them.
func (t *Tree) descendPath(point []float32) []ref {
	path := []ref{t.root}
	cur := t.root
	for !cur.isLeaf() {
		primary, _ := t.chooseChild(cur, point)
		path = append(path, primary)
		cur = primary
	}
	return path
}

// spliceIn scans path (root to leaf) for the shallowest subtree whose
// bounding box the new point escapes and whose randomized cut separates
// it (§4.4); it replaces that subtree with a fresh internal node holding
// the old subtree and the new leaf, updating mass/box bookkeeping for
// every node above. A subtree whose box already contains the point is
// skipped without a trial, since its box can only be a superset of
// everything below it. If no ancestor separates, the leaf itself always
// does (a single-point box is guaranteed to separate from a distinct
// query point), so the loop is guaranteed to terminate there.
func (t *Tree) spliceIn(path []ref, key int32, point []float32) {
	for i := 0; i < len(path)-1; i++ {
		node := path[i]
		box := t.boxOf(node)
		if box.Contains(point) {
			continue
		}
		cut, separates := geom.ChooseCut(box, point, t.rng)
		if !separates {
			continue
		}
		var parentRef ref = nullRef
		if i > 0 {
			parentRef = path[i-1]
		}
		t.spliceAt(node, parentRef, cut, key, point)
		return
	}

	leaf := path[len(path)-1]
	box := t.boxOf(leaf)
	cut, separates := geom.ChooseCut(box, point, t.rng)
	if !separates {
		panic("rcforest: a single-point bounding box failed to separate from a distinct point")
	}
	var parentRef ref = nullRef
	if len(path) > 1 {
		parentRef = path[len(path)-2]
	}
	t.spliceAt(leaf, parentRef, cut, key, point)
}

// spliceAt replaces subtree (whose parent is parentRef, or nullRef if it is
// the tree root) with a new internal node holding subtree and a freshly
// allocated leaf for key, then fixes up mass/box bookkeeping above it.
func (t *Tree) spliceAt(subtree, parentRef ref, cut geom.Cut, key int32, point []float32) {
	box := t.boxOf(subtree)
	newLeaf := t.store.allocLeaf(key)
	newInternal := t.store.allocInternal()
	ni := newInternal.index()

	if point[cut.Dim] <= cut.Value {
		t.store.left[ni] = newLeaf
		t.store.right[ni] = subtree
	} else {
		t.store.left[ni] = subtree
		t.store.right[ni] = newLeaf
	}
	t.store.cutDim[ni] = int32(cut.Dim)
	t.store.cutValue[ni] = cut.Value
	t.store.mass[ni] = t.massOf(subtree) + 1
	t.setParent(newLeaf, newInternal)
	t.setParent(subtree, newInternal)

	combined := cloneBox(box)
	combined.ExpandToInclude(point)
	if t.store.cached[ni] {
		t.store.box[ni] = combined
	}

	if parentRef.isNull() {
		t.root = newInternal
		t.setParent(newInternal, nullRef)
		return
	}
	pi := parentRef.index()
	if t.store.left[pi] == subtree {
		t.store.left[pi] = newInternal
	} else {
		t.store.right[pi] = newInternal
	}
	t.setParent(newInternal, parentRef)

	for a := parentRef; !a.isNull(); a = t.parentOf(a) {
		i := a.index()
		t.store.mass[i]++
		if t.store.cached[i] && t.store.box[i] != nil {
			t.store.box[i].ExpandToInclude(point)
		}
	}
}

// descend follows existing cuts from r to the leaf the tree's partitioning
// convention sends point to (invariant I2); used as the primary path of
// Traverse. descendPath is the equivalent used by Insert, which also needs
// the intermediate nodes.
func (t *Tree) descend(r ref, point []float32) ref {
	for !r.isLeaf() {
		primary, _ := t.chooseChild(r, point)
		r = primary
	}
	return r
}

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

// Delete removes one occurrence of key from the tree (§4.6): if its leaf's
// mass exceeds 1 it is merely decremented, otherwise the leaf and its
// parent are removed and the sibling is promoted into the parent's place.
func (t *Tree) Delete(key int) error {
	leaf, ok := t.store.leafByKey(int32(key))
	if !ok {
		return rcferr.InvalidArgument("key %d not present in tree", key)
	}

	if t.store.leafMass[leaf.index()] > 1 {
		t.store.leafMass[leaf.index()]--
		for a := t.parentOf(leaf); !a.isNull(); a = t.parentOf(a) {
			t.store.mass[a.index()]--
		}
		return nil
	}

	parent := t.parentOf(leaf)
	t.store.freeLeaf(leaf)

	if parent.isNull() {
		t.root = nullRef
		return nil
	}

	sibling := t.otherChild(parent, leaf)
	grandparent := t.parentOf(parent)
	t.setParent(sibling, grandparent)
	t.store.freeInternal(parent)

	if grandparent.isNull() {
		t.root = sibling
		return nil
	}
	gi := grandparent.index()
	if t.store.left[gi] == parent {
		t.store.left[gi] = sibling
	} else {
		t.store.right[gi] = sibling
	}

	for a := grandparent; !a.isNull(); a = t.parentOf(a) {
		i := a.index()
		t.store.mass[i]--
		if t.store.cached[i] {
			t.store.box[i] = nil
			t.store.box[i] = t.recomputeBox(a)
		}
	}
	return nil
}

func (t *Tree) recomputeBox(r ref) *geom.BoundingBox {
	i := r.index()
	box := cloneBox(t.boxOf(t.store.left[i]))
	box.UnionWith(t.boxOf(t.store.right[i]))
	return box
}

// Traverse descends to the leaf point's greedy-cut destination, invokes
// AcceptLeaf, then ascends to the root invoking Accept at each ancestor
// until the visitor converges (§4.6).
func (t *Tree) Traverse(point []float32, v Visitor) error {
	if err := rcferrGuard(t.store.dimension, point); err != nil {
		return err
	}
	if t.root.isNull() {
		return nil
	}
	needShadow := v.Descriptor().NeedsShadowBox

	cur := t.descend(t.root, point)
	depth := 0
	for a := t.parentOf(cur); !a.isNull(); a = t.parentOf(a) {
		depth++
	}

	leafKey := t.store.leafKey[cur.index()]
	leafPoint := t.points.Get(int(leafKey))
	v.AcceptLeaf(point, &NodeView{
		Depth:       depth,
		Mass:        int(t.store.leafMass[cur.index()]),
		IsLeaf:      true,
		LeafKey:     int(leafKey),
		LeafPoint:   leafPoint,
		LeafIsExact: equalPoint(leafPoint, point),
	})
	if v.IsConverged() {
		return nil
	}

	var shadow *geom.BoundingBox
	for !cur.isNull() {
		parent := t.parentOf(cur)
		if parent.isNull() {
			break
		}
		sibling := t.otherChild(parent, cur)
		depth--
		if needShadow {
			sibBox := t.boxOf(sibling)
			if shadow == nil {
				shadow = cloneBox(sibBox)
			} else {
				shadow.UnionWith(sibBox)
			}
		}
		view := &NodeView{
			Depth:     depth,
			Mass:      int(t.massOf(parent)),
			Box:       t.boxOf(parent),
			ShadowBox: shadow,
			Cut:       t.store.cutOf(parent),
		}
		v.Accept(point, view)
		if v.IsConverged() {
			return nil
		}
		cur = parent
	}
	return nil
}

// MultiTraverse is like Traverse but at every ancestor where
// mv.Trigger reports true (typically: the cut dimension is a missing
// coordinate in an imputation query) it additionally descends into the
// sibling subtree and merges the two branches with CombineBranches instead
// of the single-branch Accept (§4.6).
func (t *Tree) MultiTraverse(point []float32, mv MultiVisitor) error {
	if err := rcferrGuard(t.store.dimension, point); err != nil {
		return err
	}
	if t.root.isNull() {
		return nil
	}
	t.multiTraverse(t.root, point, mv, 0)
	return nil
}

func (t *Tree) multiTraverse(r ref, point []float32, mv MultiVisitor, depth int) {
	if r.isLeaf() {
		leafKey := t.store.leafKey[r.index()]
		leafPoint := t.points.Get(int(leafKey))
		mv.AcceptLeaf(point, &NodeView{
			Depth:       depth,
			Mass:        int(t.store.leafMass[r.index()]),
			IsLeaf:      true,
			LeafKey:     int(leafKey),
			LeafPoint:   leafPoint,
			LeafIsExact: equalPoint(leafPoint, point),
		})
		return
	}
	primary, sibling := t.chooseChild(r, point)
	t.multiTraverse(primary, point, mv, depth+1)

	view := &NodeView{
		Depth: depth,
		Mass:  int(t.massOf(r)),
		Box:   t.boxOf(r),
		Cut:   t.store.cutOf(r),
	}
	if mv.Trigger(view) {
		t.multiTraverse(sibling, point, mv, depth+1)
		mv.CombineBranches(point, view)
	} else {
		mv.Accept(point, view)
	}
}
