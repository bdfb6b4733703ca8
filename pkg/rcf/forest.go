// Package rcf is the Random Cut Forest coordinator: an ensemble of random
// cut trees sharing one PointStore, each fed by its own time-decayed
// reservoir sampler, exposing mean score/attribution across trees plus
// shingled update/impute/extrapolate operations (§4.8).
package rcf

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elee1766/rcforest/pkg/rcf/config"
	"github.com/elee1766/rcforest/pkg/rcf/geom"
	"github.com/elee1766/rcforest/pkg/rcf/metrics"
	"github.com/elee1766/rcforest/pkg/rcf/pointstore"
	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
	"github.com/elee1766/rcforest/pkg/rcf/sampler"
	"github.com/elee1766/rcforest/pkg/rcf/tree"
	"github.com/elee1766/rcforest/pkg/rcf/visitor"
)

// Forest is the RCF coordinator described in §4.8. The zero value is not
// usable; build one with NewForest.
//
// Concurrency (§5): score/attribution/impute/extrapolate are read-only and
// may run with one task per tree when Config.ParallelEnabled; update is a
// single logical mutation the caller must not interleave with other
// operations without external synchronization. Forest's own mutex enforces
// single-writer/multi-reader at the operation granularity described there.
type Forest struct {
	mu sync.RWMutex

	id      uuid.UUID
	cfg     *config.Config
	kernels visitor.Kernels

	store    pointstore.Interface
	trees    []*tree.Tree
	samplers []*sampler.Sampler

	shingle  []float32 // InternalShingling only: raw storage, rotated in place when InternalRotation
	rotation int       // InternalRotation only: index of the oldest slot
	shingled int       // number of base vectors folded in so far, capped at ShingleSize

	entriesSeen int64
	metrics     *metrics.Metrics
}

// NewForest validates cfg and builds a Forest backed by the default
// in-memory PointStore.
func NewForest(cfg *config.Config) (*Forest, error) {
	return NewForestWithStore(cfg, pointstore.New(cfg.Dimension, cfg.Capacity()))
}

// NewForestWithStore is NewForest with an explicit PointStore backend (for
// example pointstore.PebbleStore), so callers can trade the default
// in-memory store for disk-backed storage without touching tree or sampler
// code.
func NewForestWithStore(cfg *config.Config, store pointstore.Interface) (*Forest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Forest{
		id:      uuid.New(),
		cfg:     cfg,
		kernels: ScoringExpectedInverseHeight.kernels(),
		store:   store,
		metrics: metrics.New(),
	}
	if cfg.InternalShingling {
		f.shingle = make([]float32, cfg.Dimension)
	}

	f.trees = make([]*tree.Tree, cfg.NumTrees)
	f.samplers = make([]*sampler.Sampler, cfg.NumTrees)
	for i := 0; i < cfg.NumTrees; i++ {
		seed := deriveSeed(cfg.RandomSeed, i)
		f.trees[i] = tree.New(cfg.Dimension, cfg.Capacity(), cfg.BoundingBoxCacheFraction, seed, store)

		s, err := sampler.New(cfg.SampleSize, cfg.TimeDecay, cfg.InitialAcceptFraction, rand.New(rand.NewSource(int64(seed))))
		if err != nil {
			return nil, err
		}
		f.samplers[i] = s
	}

	return f, nil
}

// deriveSeed derives a per-tree seed from the forest's random seed and tree
// index so a (seed, num_trees) pair reproduces the same model, without any
// tree ever sharing a rand source with another (§5 "Random reproducibility").
func deriveSeed(base uint64, index int) uint64 {
	z := base + uint64(index)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// SetScoringStrategy changes which visitor kernel subsequent Score,
// Attribution, Impute, and Extrapolate calls use.
func (f *Forest) SetScoringStrategy(s ScoringStrategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kernels = s.kernels()
}

// ID returns the forest's identifier, for log and metric correlation.
func (f *Forest) ID() string { return f.id.String() }

// EntriesSeen returns the number of points passed to Update.
func (f *Forest) EntriesSeen() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.entriesSeen
}

// PointStoreSize returns the number of distinct points currently retained
// by the shared point store.
func (f *Forest) PointStoreSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.store.Size()
}

// TotalSizeBytes returns the point store's estimated memory footprint.
func (f *Forest) TotalSizeBytes() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.store.TotalSizeBytes()
}

// Metrics returns the forest's Prometheus collectors, for a caller to
// register its own /metrics endpoint against.
func (f *Forest) Metrics() *metrics.Metrics { return f.metrics }

// forEachTree runs fn once per tree, fanned out across one errgroup task
// per tree when Config.ParallelEnabled, or sequentially otherwise. Both
// paths call the identical per-tree function, so results are
// distributionally but not bit-for-bit equivalent between the two modes
// (§1 Non-goals).
func forEachTree[T any](f *Forest, fn func(i int) (T, error)) ([]T, error) {
	n := len(f.trees)
	results := make([]T, n)

	if !f.cfg.ParallelEnabled {
		for i := 0; i < n; i++ {
			r, err := fn(i)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			r, err := fn(i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Score returns the mean anomaly score over every tree (§4.8). It is 0
// until Config.OutputAfter entries have been seen. With internal shingling
// enabled, point is the raw base-dimension vector and is folded into the
// current shingle without mutating forest state, mirroring what Update
// would produce for the same point.
func (f *Forest) Score(point []float32) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	start := time.Now()
	defer func() { f.metrics.ScoreSeconds.Observe(time.Since(start).Seconds()) }()

	full, ready, err := f.peekShingle(point)
	if err != nil {
		return 0, err
	}
	if !ready || f.entriesSeen < int64(f.cfg.OutputAfter) {
		return 0, nil
	}

	results, err := forEachTree(f, func(i int) (float64, error) {
		v := visitor.NewScalarScore(f.kernels, f.trees[i].Mass(), 0)
		if err := f.trees[i].Traverse(full, v); err != nil {
			return 0, err
		}
		return v.Result(), nil
	})
	if err != nil {
		return 0, err
	}

	mean := meanOf(results)
	f.metrics.Score.Observe(mean)
	return mean, nil
}

// Attribution returns the mean per-dimension directional attribution over
// every tree (§4.8, §4.7). Accepts the same point shape as Score.
func (f *Forest) Attribution(point []float32) (*geom.DiVector, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	full, ready, err := f.peekShingle(point)
	if err != nil {
		return nil, err
	}
	if !ready {
		return geom.NewDiVector(f.cfg.Dimension), nil
	}

	results, err := forEachTree(f, func(i int) (*geom.DiVector, error) {
		v := visitor.NewAttribution(f.kernels, f.trees[i].Mass(), 0, f.cfg.Dimension)
		if err := f.trees[i].Traverse(full, v); err != nil {
			return nil, err
		}
		return v.Result(), nil
	})
	if err != nil {
		return nil, err
	}

	mean := geom.NewDiVector(f.cfg.Dimension)
	factor := 1.0 / float64(len(results))
	for _, r := range results {
		mean.AddFrom(r, factor)
	}
	return mean, nil
}

// Update admits point at sequence index timestamp (§4.8): folds it into the
// shingle when internal shingling is enabled (returning early once the
// shingle isn't yet full), then offers the resulting full-dimension point
// to every tree's sampler, inserting into the tree and releasing any
// evicted key on acceptance.
func (f *Forest) Update(point []float32, timestamp int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.Now()
	defer func() { f.metrics.UpdateSeconds.Observe(time.Since(start).Seconds()) }()

	full, ready, err := f.foldShingle(point)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	key, err := f.store.Add(full)
	if err != nil {
		return err
	}

	_, err = forEachTree(f, func(i int) (struct{}, error) {
		_, evictedKey, evicted, accepted := f.samplers[i].Accept(key, timestamp)
		if !accepted {
			return struct{}{}, nil
		}
		if evicted {
			if err := f.trees[i].Delete(evictedKey); err != nil {
				return struct{}{}, err
			}
			f.store.Dec(evictedKey)
		}
		f.store.Inc(key)
		if err := f.trees[i].Insert(key, timestamp); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	// Add's own reference was transient bookkeeping for this call; every
	// tree that accepted took its own via Inc above.
	f.store.Dec(key)
	if err != nil {
		return err
	}

	f.entriesSeen++
	f.metrics.EntriesSeen.Inc()
	f.metrics.PointStoreSize.Set(float64(f.store.Size()))
	f.metrics.TotalSizeBytes.Set(float64(f.store.TotalSizeBytes()))
	return nil
}

// Impute fills the coordinates named by missing: per tree, runs the
// imputation visitor, then returns the median completion per coordinate
// across trees (§4.8).
func (f *Forest) Impute(point []float32, missing []int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := rcferr.CheckArgument(len(point) == f.cfg.Dimension, "point has wrong dimension: got %d want %d", len(point), f.cfg.Dimension); err != nil {
		return nil, err
	}
	for _, d := range missing {
		if err := rcferr.CheckArgument(d >= 0 && d < f.cfg.Dimension, "missing coordinate index %d out of range", d); err != nil {
			return nil, err
		}
	}

	results, err := forEachTree(f, func(i int) (visitor.ImputationResult, error) {
		v := visitor.NewImputation(f.kernels, f.trees[i].Mass(), 0, missing)
		if err := f.trees[i].MultiTraverse(point, v); err != nil {
			return visitor.ImputationResult{}, err
		}
		return v.Result(), nil
	})
	if err != nil {
		return nil, err
	}

	return medianPoint(results, f.cfg.Dimension), nil
}

// Extrapolate predicts horizon future base vectors: at each step it slides
// the working shingle forward by one base vector (dropping the oldest,
// leaving the newest slot open), imputes that open slot from the trees,
// and commits the imputed vector as the newest slot before repeating.
// Returns the concatenated predicted slots (§4.8). Requires internal
// shingling.
func (f *Forest) Extrapolate(horizon int) (*geom.RangeVector, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := rcferr.CheckArgument(f.cfg.InternalShingling, "extrapolate requires internal shingling"); err != nil {
		return nil, err
	}
	if err := rcferr.CheckArgument(horizon > 0, "horizon must be positive, got %d", horizon); err != nil {
		return nil, err
	}

	baseDim := f.cfg.Dimension / f.cfg.ShingleSize
	missing := make([]int, baseDim)
	for i := range missing {
		missing[i] = f.cfg.Dimension - baseDim + i
	}

	working := f.unrotatedShingle()
	predicted := make([]float32, 0, horizon*baseDim)

	for step := 0; step < horizon; step++ {
		// Slide the window forward one base vector: the oldest slot is
		// dropped and the newest slot is the step being predicted, left
		// zeroed so the imputation visitor is the sole source for it.
		next := make([]float32, f.cfg.Dimension)
		copy(next, working[baseDim:])
		working = next

		results, err := forEachTree(f, func(i int) (visitor.ImputationResult, error) {
			v := visitor.NewImputation(f.kernels, f.trees[i].Mass(), 0, missing)
			if err := f.trees[i].MultiTraverse(working, v); err != nil {
				return visitor.ImputationResult{}, err
			}
			return v.Result(), nil
		})
		if err != nil {
			return nil, err
		}
		full := medianPoint(results, f.cfg.Dimension)
		predicted = append(predicted, full[f.cfg.Dimension-baseDim:]...)
		working = full
	}

	return geom.FromValues(predicted), nil
}

// foldShingle folds a newly arriving point into the shingle buffer when
// internal shingling is enabled, returning the full logical point once
// ShingleSize base vectors have been seen (ready=false until then). When
// internal shingling is disabled, point is the full logical point already
// and is returned unchanged.
func (f *Forest) foldShingle(point []float32) (full []float32, ready bool, err error) {
	if !f.cfg.InternalShingling {
		if err := rcferr.CheckArgument(len(point) == f.cfg.Dimension, "point has wrong dimension: got %d want %d", len(point), f.cfg.Dimension); err != nil {
			return nil, false, err
		}
		return point, true, nil
	}

	baseDim := f.cfg.Dimension / f.cfg.ShingleSize
	if err := rcferr.CheckArgument(len(point) == baseDim, "base point has wrong dimension: got %d want %d", len(point), baseDim); err != nil {
		return nil, false, err
	}

	if f.cfg.InternalRotation {
		slot := f.rotation
		copy(f.shingle[slot*baseDim:(slot+1)*baseDim], point)
		f.rotation = (f.rotation + 1) % f.cfg.ShingleSize
	} else {
		copy(f.shingle, f.shingle[baseDim:])
		copy(f.shingle[len(f.shingle)-baseDim:], point)
	}

	if f.shingled < f.cfg.ShingleSize {
		f.shingled++
	}
	if f.shingled < f.cfg.ShingleSize {
		return nil, false, nil
	}

	return f.unrotatedShingle(), true, nil
}

// peekShingle computes what the logical full-dimension point would be if
// point were folded into the current shingle, without mutating any forest
// state. Used by Score/Attribution so they can be handed the same raw
// per-step vector Update is about to be called with. When internal
// shingling is disabled, point must already be the full logical point.
func (f *Forest) peekShingle(point []float32) (full []float32, ready bool, err error) {
	if !f.cfg.InternalShingling {
		if err := rcferr.CheckArgument(len(point) == f.cfg.Dimension, "point has wrong dimension: got %d want %d", len(point), f.cfg.Dimension); err != nil {
			return nil, false, err
		}
		return point, true, nil
	}

	baseDim := f.cfg.Dimension / f.cfg.ShingleSize
	if err := rcferr.CheckArgument(len(point) == baseDim, "base point has wrong dimension: got %d want %d", len(point), baseDim); err != nil {
		return nil, false, err
	}
	if f.shingled < f.cfg.ShingleSize-1 {
		// folding point in would still leave the shingle short.
		return nil, false, nil
	}

	ordered := f.unrotatedShingle()
	full = make([]float32, f.cfg.Dimension)
	copy(full, ordered[baseDim:])
	copy(full[f.cfg.Dimension-baseDim:], point)
	return full, true, nil
}

// unrotatedShingle returns the shingle buffer in logical (oldest-first)
// order, unwinding the rotation offset when internal rotation is enabled.
func (f *Forest) unrotatedShingle() []float32 {
	if !f.cfg.InternalRotation {
		return append([]float32(nil), f.shingle...)
	}
	baseDim := f.cfg.Dimension / f.cfg.ShingleSize
	ordered := make([]float32, len(f.shingle))
	for s := 0; s < f.cfg.ShingleSize; s++ {
		src := (f.rotation + s) % f.cfg.ShingleSize
		copy(ordered[s*baseDim:(s+1)*baseDim], f.shingle[src*baseDim:(src+1)*baseDim])
	}
	return ordered
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianPoint(results []visitor.ImputationResult, dimension int) []float32 {
	out := make([]float32, dimension)
	column := make([]float32, len(results))
	for d := 0; d < dimension; d++ {
		for i, r := range results {
			column[i] = r.Point[d]
		}
		sort.Slice(column, func(a, b int) bool { return column[a] < column[b] })
		out[d] = column[len(column)/2]
	}
	return out
}
