package rcf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/elee1766/rcforest/pkg/rcf/config"
	"github.com/elee1766/rcforest/pkg/rcf/testdata"
)

func TestNewForestValidatesConfig(t *testing.T) {
	cfg := config.New()
	cfg.Dimension = 0
	if _, err := NewForest(cfg); err == nil {
		t.Fatal("expected an error for an invalid config")
	}
}

func TestScoreIsZeroBeforeOutputAfter(t *testing.T) {
	cfg := config.New()
	cfg.Dimension = 3
	cfg.NumTrees = 4
	cfg.SampleSize = 32
	cfg.OutputAfter = 10
	cfg.ParallelEnabled = false

	f, err := NewForest(cfg)
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}

	score, err := f.Score([]float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 0 {
		t.Fatalf("score = %f, want 0 before output_after entries seen", score)
	}
}

// TestAttributionTotalMatchesScore mirrors
// anomalydetectionattributionupdate.rs: at every step, attribution.Total()
// must equal Score to within float error, and the running average score
// must stay under 1.
func TestAttributionTotalMatchesScore(t *testing.T) {
	const (
		shingleSize   = 8
		baseDimension = 5
		dataSize      = 2000 // reduced from the original's 100000 for test runtime
		numberOfTrees = 30
		capacity      = 256
		noise         = 5.0
		randomSeed    = 17
	)

	cfg := config.New()
	cfg.Dimension = shingleSize * baseDimension
	cfg.ShingleSize = shingleSize
	cfg.InternalShingling = true
	cfg.InternalRotation = false
	cfg.NumTrees = numberOfTrees
	cfg.SampleSize = capacity
	cfg.InitialAcceptFraction = 0.1
	cfg.TimeDecay = 0.1 / float64(capacity)
	cfg.BoundingBoxCacheFraction = 1.0
	cfg.RandomSeed = randomSeed
	cfg.ParallelEnabled = false
	cfg.StoreAttributes = false
	cfg.OutputAfter = 0

	f, err := NewForest(cfg)
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	amplitude := make([]float32, baseDimension)
	for i := range amplitude {
		amplitude[i] = (1.0 + 0.2*rng.Float32()) * 100.0
	}
	period := make([]int, baseDimension)
	for i := range period {
		period[i] = 60
	}

	stream := testdata.MultiCosine(dataSize, period, amplitude, noise, 0)

	var score float64
	for i, point := range stream.Data {
		attribution, err := f.Attribution(point)
		if err != nil {
			t.Fatalf("Attribution at %d: %v", i, err)
		}
		newScore, err := f.Score(point)
		if err != nil {
			t.Fatalf("Score at %d: %v", i, err)
		}
		if math.Abs(newScore-attribution.Total()) > 1e-6 {
			t.Fatalf("at %d: score %f != attribution total %f", i, newScore, attribution.Total())
		}
		score += attribution.Total()

		if err := f.Update(point, 0); err != nil {
			t.Fatalf("Update at %d: %v", i, err)
		}
	}

	if avg := score / float64(len(stream.Data)); avg >= 1.0 {
		t.Fatalf("average score %f is above 1", avg)
	}
}

// TestUpdateInsertDeleteLeavesNoKeyLeaks mirrors scenario 5: repeatedly
// updating with more points than the sampler capacity must never grow the
// point store past its capacity, and after the stream ends every live tree
// mass must equal its sampler's size.
func TestUpdateInsertDeleteLeavesNoKeyLeaks(t *testing.T) {
	cfg := config.New()
	cfg.Dimension = 4
	cfg.NumTrees = 6
	cfg.SampleSize = 32
	cfg.InitialAcceptFraction = 1.0
	cfg.ParallelEnabled = false
	cfg.OutputAfter = 0

	f, err := NewForest(cfg)
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		point := make([]float32, cfg.Dimension)
		for d := range point {
			point[d] = rng.Float32() * 100
		}
		if err := f.Update(point, int64(i)); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	for i, tr := range f.trees {
		if got, want := tr.Mass(), f.samplers[i].Size(); got != want {
			t.Fatalf("tree %d mass = %d, want %d (sampler size)", i, got, want)
		}
	}

	if size := f.PointStoreSize(); size > cfg.Capacity() {
		t.Fatalf("point store size %d exceeds capacity %d", size, cfg.Capacity())
	}
}

// TestExtrapolateOneStepRMSE mirrors imputedifferentperiod.rs: after warming
// up on a periodic stream, one-step-ahead extrapolation should stay within
// a small multiple of the injected noise.
func TestExtrapolateOneStepRMSE(t *testing.T) {
	const (
		shingleSize   = 10
		baseDimension = 3
		dataSize      = 1500 // reduced from the original's 100000 for test runtime
		numberOfTrees = 20
		capacity      = 256
		noise         = 5.0
		randomSeed    = 17
		warmup        = 200
	)

	cfg := config.New()
	cfg.Dimension = shingleSize * baseDimension
	cfg.ShingleSize = shingleSize
	cfg.InternalShingling = true
	cfg.NumTrees = numberOfTrees
	cfg.SampleSize = capacity
	cfg.InitialAcceptFraction = 0.1
	cfg.TimeDecay = 0.1 / float64(capacity)
	cfg.RandomSeed = randomSeed
	cfg.ParallelEnabled = true
	cfg.OutputAfter = 0

	f, err := NewForest(cfg)
	if err != nil {
		t.Fatalf("NewForest: %v", err)
	}

	ampRng := rand.New(rand.NewSource(42))
	amplitude := make([]float32, baseDimension)
	for i := range amplitude {
		amplitude[i] = (1.0 + 0.2*ampRng.Float32()) * 100.0
	}
	periodRng := rand.New(rand.NewSource(7))
	period := make([]int, baseDimension)
	for i := range period {
		period[i] = int((1.0 + 0.2*periodRng.Float32()) * 60.0)
	}

	stream := testdata.MultiCosine(dataSize, period, amplitude, noise, 0)

	var errSum float64
	var count int
	for i, point := range stream.Data {
		if i > warmup {
			predicted, err := f.Extrapolate(1)
			if err != nil {
				t.Fatalf("Extrapolate at %d: %v", i, err)
			}
			if len(predicted.Values) != baseDimension {
				t.Fatalf("Extrapolate returned %d values, want %d", len(predicted.Values), baseDimension)
			}
			for d := 0; d < baseDimension; d++ {
				diff := float64(predicted.Values[d] - point[d])
				errSum += diff * diff
				count++
			}
		}
		if err := f.Update(point, 0); err != nil {
			t.Fatalf("Update at %d: %v", i, err)
		}
	}

	rmse := math.Sqrt(errSum / float64(count))
	if rmse >= 2*noise {
		t.Fatalf("one-step RMSE %f exceeds 2x noise (%f)", rmse, 2*noise)
	}
}
