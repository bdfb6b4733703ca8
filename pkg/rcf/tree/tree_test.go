package tree

import (
	"testing"

	"github.com/elee1766/rcforest/pkg/rcf/pointstore"
)

func mustAdd(t *testing.T, ps *pointstore.Store, vec []float32) int {
	t.Helper()
	key, err := ps.Add(vec)
	if err != nil {
		t.Fatalf("Add(%v): %v", vec, err)
	}
	return key
}

func TestTreeSinglePointIsRootLeaf(t *testing.T) {
	ps := pointstore.New(2, 8)
	tr := New(2, 8, 1.0, 1, ps)

	key := mustAdd(t, ps, []float32{1, 2})
	if err := tr.Insert(key, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if got := tr.Mass(); got != 1 {
		t.Fatalf("Mass() = %d, want 1", got)
	}
	if got := tr.LeafCount(); got != 1 {
		t.Fatalf("LeafCount() = %d, want 1", got)
	}
}

func TestTreeDuplicateInsertIncrementsMassWithoutNewLeaf(t *testing.T) {
	ps := pointstore.New(2, 8)
	tr := New(2, 8, 1.0, 2, ps)

	key := mustAdd(t, ps, []float32{3, 4})
	if err := tr.Insert(key, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(key, 1); err != nil {
		t.Fatalf("Insert (duplicate): %v", err)
	}

	if got := tr.Mass(); got != 2 {
		t.Fatalf("Mass() = %d, want 2", got)
	}
	if got := tr.LeafCount(); got != 1 {
		t.Fatalf("LeafCount() = %d, want 1 (duplicates must not allocate a new leaf)", got)
	}
}

func TestTreeInsertManyPointsMassAndLeafCountAgree(t *testing.T) {
	ps := pointstore.New(3, 64)
	tr := New(3, 64, 0.5, 3, ps)

	points := [][]float32{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{5, 5, 5}, {-3, 2, 1}, {2, -2, 2}, {9, 9, -9},
	}
	for i, p := range points {
		key := mustAdd(t, ps, p)
		if err := tr.Insert(key, int64(i)); err != nil {
			t.Fatalf("Insert(%v): %v", p, err)
		}
	}

	if got := tr.Mass(); got != len(points) {
		t.Fatalf("Mass() = %d, want %d", got, len(points))
	}
	if got := tr.LeafCount(); got != len(points) {
		t.Fatalf("LeafCount() = %d, want %d", got, len(points))
	}
}

func TestTreeRootBoxContainsEveryInsertedPoint(t *testing.T) {
	ps := pointstore.New(2, 64)
	tr := New(2, 64, 1.0, 4, ps)

	points := [][]float32{
		{1, 1}, {-4, 3}, {2, -5}, {0, 0}, {10, 10}, {-10, -10},
	}
	for i, p := range points {
		key := mustAdd(t, ps, p)
		if err := tr.Insert(key, int64(i)); err != nil {
			t.Fatalf("Insert(%v): %v", p, err)
		}
	}

	box := tr.boxOf(tr.root)
	for _, p := range points {
		if !box.Contains(p) {
			t.Fatalf("root box %+v does not contain inserted point %v", box, p)
		}
	}
}

func TestTreeInsertThenDeleteAllEmptiesTree(t *testing.T) {
	ps := pointstore.New(2, 64)
	tr := New(2, 64, 0.25, 5, ps)

	points := [][]float32{
		{1, 2}, {3, 4}, {5, 6}, {-1, -2}, {7, -3}, {0, 9},
	}
	keys := make([]int, len(points))
	for i, p := range points {
		key := mustAdd(t, ps, p)
		keys[i] = key
		if err := tr.Insert(key, int64(i)); err != nil {
			t.Fatalf("Insert(%v): %v", p, err)
		}
	}

	for i := len(keys) - 1; i >= 0; i-- {
		if err := tr.Delete(keys[i]); err != nil {
			t.Fatalf("Delete(%d): %v", keys[i], err)
		}
		if got, want := tr.Mass(), i; got != want {
			t.Fatalf("after deleting point %d, Mass() = %d, want %d", i, got, want)
		}
	}

	if got := tr.Mass(); got != 0 {
		t.Fatalf("Mass() after deleting every point = %d, want 0", got)
	}
	if got := tr.LeafCount(); got != 0 {
		t.Fatalf("LeafCount() after deleting every point = %d, want 0", got)
	}
	if !tr.root.isNull() {
		t.Fatalf("root should be nullRef once the tree is empty")
	}
}

func TestTreeDeleteDecrementsDuplicateMassWithoutRemovingLeaf(t *testing.T) {
	ps := pointstore.New(2, 8)
	tr := New(2, 8, 1.0, 6, ps)

	key := mustAdd(t, ps, []float32{1, 1})
	if err := tr.Insert(key, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(key, 1); err != nil {
		t.Fatalf("Insert (duplicate): %v", err)
	}

	if err := tr.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := tr.Mass(); got != 1 {
		t.Fatalf("Mass() after one delete of a mass-2 leaf = %d, want 1", got)
	}
	if got := tr.LeafCount(); got != 1 {
		t.Fatalf("LeafCount() = %d, want 1 (leaf should survive while mass > 0)", got)
	}

	if err := tr.Delete(key); err != nil {
		t.Fatalf("Delete (final occurrence): %v", err)
	}
	if got := tr.Mass(); got != 0 {
		t.Fatalf("Mass() after removing the final occurrence = %d, want 0", got)
	}
}

func TestTreeDeleteUnknownKeyErrors(t *testing.T) {
	ps := pointstore.New(2, 8)
	tr := New(2, 8, 1.0, 7, ps)
	key := mustAdd(t, ps, []float32{1, 1})
	if err := tr.Insert(key, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Delete(key + 1); err == nil {
		t.Fatalf("expected an error deleting a key never inserted into this tree")
	}
}

// countingVisitor records the leaf it lands on and the number of ancestors
// visited, without ever reporting convergence, so Traverse always walks all
// the way to the root.
type countingVisitor struct {
	leafKey     int
	leafIsExact bool
	ancestors   int
	lastDepth   int
}

func (v *countingVisitor) AcceptLeaf(point []float32, view *NodeView) {
	v.leafKey = view.LeafKey
	v.leafIsExact = view.LeafIsExact
	v.lastDepth = view.Depth
}
func (v *countingVisitor) Accept(point []float32, view *NodeView) {
	v.ancestors++
	v.lastDepth = view.Depth
}
func (v *countingVisitor) IsConverged() bool      { return false }
func (v *countingVisitor) Descriptor() Descriptor { return Descriptor{} }

func TestTreeTraverseVisitsEveryAncestorToRoot(t *testing.T) {
	ps := pointstore.New(2, 64)
	tr := New(2, 64, 1.0, 8, ps)

	points := [][]float32{
		{1, 1}, {-4, 3}, {2, -5}, {0, 0}, {10, 10}, {-10, -10}, {4, 4},
	}
	for i, p := range points {
		key := mustAdd(t, ps, p)
		if err := tr.Insert(key, int64(i)); err != nil {
			t.Fatalf("Insert(%v): %v", p, err)
		}
	}

	v := &countingVisitor{}
	if err := tr.Traverse([]float32{4, 4}, v); err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if !v.leafIsExact {
		t.Fatalf("traversing an exact existing point should land on an exact leaf")
	}
	if v.lastDepth != 0 {
		t.Fatalf("traversal should finish at the root (depth 0), got depth %d", v.lastDepth)
	}
}

func TestTreeTraverseOnEmptyTreeIsNoop(t *testing.T) {
	ps := pointstore.New(2, 8)
	tr := New(2, 8, 1.0, 9, ps)
	v := &countingVisitor{}
	if err := tr.Traverse([]float32{0, 0}, v); err != nil {
		t.Fatalf("Traverse on empty tree: %v", err)
	}
	if v.ancestors != 0 {
		t.Fatalf("Traverse on an empty tree should never call Accept")
	}
}

func TestTreeInsertRejectsWrongDimension(t *testing.T) {
	ps := pointstore.New(3, 8)
	tr := New(2, 8, 1.0, 10, ps)
	key := mustAdd(t, ps, []float32{1, 2, 3})
	if err := tr.Insert(key, 0); err == nil {
		t.Fatalf("expected a dimension-mismatch error")
	}
}
