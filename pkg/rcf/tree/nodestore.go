// Package tree implements the per-tree node arena, insertion/deletion, and
// the visitor-driven traversal used by every scoring and imputation
// algorithm. Nodes are stored in index arenas (parallel slices addressed by
// int32, not owning pointers) because every node carries a parent
// back-reference, which would otherwise force cyclic ownership.
package tree

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/elee1766/rcforest/pkg/rcf/geom"
	"github.com/elee1766/rcforest/pkg/rcf/pointstore"
	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// ref addresses a node in either arena. The top bit flags a leaf; the
// remaining bits are the index into the relevant arena. nullRef denotes the
// absence of a node (an empty tree, or a non-existent parent at the root).
type ref int32

const (
	nullRef ref = -1
	leafBit ref = 1 << 30
)

func internalRef(idx int32) ref { return ref(idx) }
func leafRef(idx int32) ref     { return ref(idx) | leafBit }

func (r ref) isNull() bool { return r == nullRef }
func (r ref) isLeaf() bool { return r&leafBit != 0 }
func (r ref) index() int32 { return int32(r &^ leafBit) }

// NodeStore is the index arena backing one tree: a set of parallel slices
// for internal nodes and another for leaves, each recycled through its own
// pointstore.IntervalStoreManager as nodes are freed.
type NodeStore struct {
	dimension        int
	boxCacheFraction float64
	seed             uint64

	// internal node arena, one slot per internal node.
	cutDim   []int32
	cutValue []float32
	left     []ref
	right    []ref
	parent   []ref
	mass     []int32
	box      []*geom.BoundingBox // nil unless this node was chosen to cache its box
	cached   []bool
	intFree  *pointstore.IntervalStoreManager

	// leaf arena, one slot per leaf.
	leafKey    []int32
	leafParent []ref
	leafMass   []int32
	leafFree   *pointstore.IntervalStoreManager

	keyToLeaf map[int32]ref
}

// NewNodeStore returns an empty arena sized for capacity leaves and
// capacity internal nodes (one more than the L-1 internal nodes a binary
// tree of L leaves needs), for vectors of the given dimension. boxCacheFraction
// controls what share of internal nodes are chosen, at allocation time, to
// carry a persistently cached bounding box; the rest recompute their box on
// demand from their children. seed makes that choice reproducible.
func NewNodeStore(dimension, capacity int, boxCacheFraction float64, seed uint64) *NodeStore {
	if capacity < 1 {
		capacity = 1
	}
	internalCap := capacity
	return &NodeStore{
		dimension:        dimension,
		boxCacheFraction: boxCacheFraction,
		seed:             seed,

		cutDim:   make([]int32, internalCap),
		cutValue: make([]float32, internalCap),
		left:     make([]ref, internalCap),
		right:    make([]ref, internalCap),
		parent:   make([]ref, internalCap),
		mass:     make([]int32, internalCap),
		box:      make([]*geom.BoundingBox, internalCap),
		cached:   make([]bool, internalCap),
		intFree:  pointstore.NewIntervalStoreManager(internalCap),

		leafKey:    make([]int32, capacity),
		leafParent: make([]ref, capacity),
		leafMass:   make([]int32, capacity),
		leafFree:   pointstore.NewIntervalStoreManager(capacity),

		keyToLeaf: make(map[int32]ref, capacity),
	}
}

// shouldCache deterministically decides, from the node's arena index and
// the tree's seed, whether it is one of the boxCacheFraction of nodes that
// carries a persistent cached box.
func (s *NodeStore) shouldCache(idx int32) bool {
	if s.boxCacheFraction <= 0 {
		return false
	}
	if s.boxCacheFraction >= 1 {
		return true
	}
	h := fnv.New64a()
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], s.seed)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(idx))
	h.Write(buf[:])
	frac := float64(h.Sum64()%1_000_000) / 1_000_000.0
	return frac < s.boxCacheFraction
}

func (s *NodeStore) growInternal() {
	newCap := len(s.cutDim)*2 + 1
	grow := newCap - len(s.cutDim)
	s.cutDim = append(s.cutDim, make([]int32, grow)...)
	s.cutValue = append(s.cutValue, make([]float32, grow)...)
	s.left = append(s.left, make([]ref, grow)...)
	s.right = append(s.right, make([]ref, grow)...)
	s.parent = append(s.parent, make([]ref, grow)...)
	s.mass = append(s.mass, make([]int32, grow)...)
	s.box = append(s.box, make([]*geom.BoundingBox, grow)...)
	s.cached = append(s.cached, make([]bool, grow)...)
	s.intFree.Grow(newCap)
}

func (s *NodeStore) growLeaf() {
	newCap := len(s.leafKey)*2 + 1
	grow := newCap - len(s.leafKey)
	s.leafKey = append(s.leafKey, make([]int32, grow)...)
	s.leafParent = append(s.leafParent, make([]ref, grow)...)
	s.leafMass = append(s.leafMass, make([]int32, grow)...)
	s.leafFree.Grow(newCap)
}

func (s *NodeStore) allocInternal() ref {
	if s.intFree.IsEmpty() {
		s.growInternal()
	}
	idx, err := s.intFree.Acquire()
	if err != nil {
		panic(err) // unreachable: grow is called above when empty
	}
	i := int32(idx)
	s.left[i] = nullRef
	s.right[i] = nullRef
	s.parent[i] = nullRef
	s.mass[i] = 0
	s.box[i] = nil
	s.cached[i] = s.shouldCache(i)
	return internalRef(i)
}

func (s *NodeStore) freeInternal(r ref) {
	i := r.index()
	s.box[i] = nil
	s.intFree.Release(int(i))
}

func (s *NodeStore) allocLeaf(key int32) ref {
	if s.leafFree.IsEmpty() {
		s.growLeaf()
	}
	idx, err := s.leafFree.Acquire()
	if err != nil {
		panic(err)
	}
	i := int32(idx)
	s.leafKey[i] = key
	s.leafParent[i] = nullRef
	s.leafMass[i] = 1
	r := leafRef(i)
	s.keyToLeaf[key] = r
	return r
}

func (s *NodeStore) freeLeaf(r ref) {
	i := r.index()
	delete(s.keyToLeaf, s.leafKey[i])
	s.leafFree.Release(int(i))
}

// leafByKey returns the ref of the leaf holding key, if any tree in this
// arena currently holds it.
func (s *NodeStore) leafByKey(key int32) (ref, bool) {
	r, ok := s.keyToLeaf[key]
	return r, ok
}

// InternalNodeCount returns the number of live internal nodes.
func (s *NodeStore) InternalNodeCount() int {
	return s.intFree.Used()
}

// LeafCount returns the number of live leaves.
func (s *NodeStore) LeafCount() int {
	return s.leafFree.Used()
}

// cutOf returns the (dim, value) cut stored at an internal node.
func (s *NodeStore) cutOf(r ref) geom.Cut {
	i := r.index()
	return geom.Cut{Dim: int(s.cutDim[i]), Value: s.cutValue[i]}
}

func rcferrGuard(dimension int, point []float32) error {
	return rcferr.CheckArgument(len(point) == dimension, "point has wrong dimension: got %d want %d", len(point), dimension)
}
