package visitor

import (
	"math"
	"testing"

	"github.com/elee1766/rcforest/pkg/rcf/pointstore"
	"github.com/elee1766/rcforest/pkg/rcf/tree"
)

func buildTree(t *testing.T, points [][]float32) (*tree.Tree, pointstore.Interface) {
	t.Helper()
	store := pointstore.New(len(points[0]), len(points))
	tr := tree.New(len(points[0]), len(points), 1.0, 42, store)
	for i, p := range points {
		key, err := store.Add(p)
		if err != nil {
			t.Fatalf("store.Add: %v", err)
		}
		if err := tr.Insert(key, int64(i)); err != nil {
			t.Fatalf("tr.Insert: %v", err)
		}
	}
	return tr, store
}

func samplePoints() [][]float32 {
	return [][]float32{
		{0, 0}, {1, 0}, {0, 1}, {1, 1},
		{2, 2}, {2, 3}, {3, 2}, {3, 3},
	}
}

func TestScalarScoreOfStoredPointIsLowerThanFarOutlier(t *testing.T) {
	tr, _ := buildTree(t, samplePoints())

	near := NewScalarScore(DefaultKernels(), tr.Mass(), 0)
	if err := tr.Traverse([]float32{1, 1}, near); err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	far := NewScalarScore(DefaultKernels(), tr.Mass(), 0)
	if err := tr.Traverse([]float32{1000, 1000}, far); err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	if !(near.Result() < far.Result()) {
		t.Fatalf("expected stored point to score lower than a far outlier: near=%f far=%f", near.Result(), far.Result())
	}
}

func TestScalarScoreConvergesImmediatelyOnDuplicateLeaf(t *testing.T) {
	tr, _ := buildTree(t, samplePoints())
	v := NewScalarScore(DefaultKernels(), tr.Mass(), 0)
	if err := tr.Traverse([]float32{1, 1}, v); err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if !v.IsConverged() {
		t.Fatalf("expected an exact duplicate match to converge at the leaf")
	}
}

func TestAttributionTotalMatchesScalarScore(t *testing.T) {
	points := samplePoints()
	tr, _ := buildTree(t, points)
	query := []float32{5, 5}

	scalar := NewScalarScore(DefaultKernels(), tr.Mass(), 0)
	if err := tr.Traverse(query, scalar); err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	attr := NewAttribution(DefaultKernels(), tr.Mass(), 0, 2)
	if err := tr.Traverse(query, attr); err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	got := attr.Result().Total()
	want := scalar.Result()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("attribution total %f does not match scalar score %f", got, want)
	}
}

func TestAttributionDuplicateLeafDoesNotConvergeButFreezesScore(t *testing.T) {
	tr, _ := buildTree(t, samplePoints())
	query := []float32{1, 1}

	// Convergence is checked right after the leaf: higher up, the shadow box
	// eventually contains the query and the visitor converges as usual.
	v := NewAttribution(DefaultKernels(), tr.Mass(), 0, 2)
	v.AcceptLeaf(query, &tree.NodeView{Depth: 2, Mass: 1, IsLeaf: true, LeafPoint: query, LeafIsExact: true})
	if v.IsConverged() {
		t.Fatalf("attribution must keep ascending past a duplicate leaf to accumulate directional mass")
	}

	v = NewAttribution(DefaultKernels(), tr.Mass(), 0, 2)
	if err := tr.Traverse(query, v); err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if v.Result().Total() <= 0 {
		t.Fatalf("expected a positive accumulated attribution total, got %f", v.Result().Total())
	}

	scalar := NewScalarScore(DefaultKernels(), tr.Mass(), 0)
	if err := tr.Traverse(query, scalar); err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if math.Abs(v.Result().Total()-scalar.Result()) > 1e-6 {
		t.Fatalf("score must stay frozen at the duplicate leaf's seen score: attribution total %f, scalar score %f", v.Result().Total(), scalar.Result())
	}
}

func TestImputationFillsMissingCoordinateFromNearestLeaf(t *testing.T) {
	tr, _ := buildTree(t, samplePoints())
	v := NewImputation(DefaultKernels(), tr.Mass(), 0, []int{1})
	// coordinate 1 is missing; the stored value is a placeholder that must
	// be replaced by some leaf's own value for that dimension.
	query := []float32{1, -999}
	if err := tr.MultiTraverse(query, v); err != nil {
		t.Fatalf("MultiTraverse: %v", err)
	}
	result := v.Result()
	if result.Point[0] != 1 {
		t.Fatalf("non-missing coordinate must be preserved, got %v", result.Point)
	}
	if result.Point[1] == -999 {
		t.Fatalf("missing coordinate must be replaced by a leaf value, got %v", result.Point)
	}
}

func TestImputationLeavesNonMissingCoordinatesUntouched(t *testing.T) {
	tr, _ := buildTree(t, samplePoints())
	v := NewImputation(DefaultKernels(), tr.Mass(), 0, []int{0})
	query := []float32{-999, 2}
	if err := tr.MultiTraverse(query, v); err != nil {
		t.Fatalf("MultiTraverse: %v", err)
	}
	result := v.Result()
	if result.Point[1] != 2 {
		t.Fatalf("non-missing coordinate must be preserved, got %v", result.Point)
	}
}

func TestInterpolationMeasureTotalsTrackScore(t *testing.T) {
	points := samplePoints()
	tr, _ := buildTree(t, points)
	query := []float32{5, 5}

	scalar := NewScalarScore(DefaultKernels(), tr.Mass(), 0)
	if err := tr.Traverse(query, scalar); err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	interp := NewInterpolation(DefaultKernels(), tr.Mass(), 0, 2)
	if err := tr.Traverse(query, interp); err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	got := interp.Result().Measure.Total()
	want := scalar.Result()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("interpolation measure total %f does not match scalar score %f", got, want)
	}
}

func TestInterpolationDensityIsPositiveForNonEmptyTree(t *testing.T) {
	tr, _ := buildTree(t, samplePoints())
	interp := NewInterpolation(DefaultKernels(), tr.Mass(), 0, 2)
	if err := tr.Traverse([]float32{1, 1}, interp); err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if interp.Result().Density() < 0 {
		t.Fatalf("density must be non-negative, got %f", interp.Result().Density())
	}
}

func TestFieldSummarizerReturnsWeightedStatistics(t *testing.T) {
	store := pointstore.New(2, 8)
	var points []WeightedPoint
	for i, p := range samplePoints() {
		key, err := store.Add(p)
		if err != nil {
			t.Fatalf("store.Add: %v", err)
		}
		points = append(points, WeightedPoint{Key: key, Distance: float32(i)})
	}

	summary := FieldSummarizer(store, points, nil, 0.5, false, 4)
	if len(summary.Mean) != 2 {
		t.Fatalf("expected a 2-dimensional mean, got %d", len(summary.Mean))
	}
	if len(summary.SummaryPoints) > 4 {
		t.Fatalf("expected at most 4 summary points, got %d", len(summary.SummaryPoints))
	}
	var totalRelative float64
	for _, w := range summary.RelativeWeight {
		totalRelative += w
	}
	if math.Abs(totalRelative-1.0) > 1e-9 {
		t.Fatalf("relative weights must sum to 1, got %f", totalRelative)
	}
}

func TestDistanceKernelsScoreSeenMatchesScoreUnseen(t *testing.T) {
	// The distance kernel ties score_seen and score_unseen to the same
	// distance function, unlike the height-based kernel.
	k := DistanceKernels(func(depth int) float64 { return 2.0 })
	if k.ScoreSeen(3, 10) != k.ScoreUnseen(3, 10) {
		t.Fatalf("expected score_seen and score_unseen to agree for the same distance")
	}
	if k.ScoreSeen(3, 10) != 1.0/3.0 {
		t.Fatalf("expected 1/(1+distance), got %f", k.ScoreSeen(3, 10))
	}
}
