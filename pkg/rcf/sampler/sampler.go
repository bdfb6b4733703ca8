// Package sampler implements the time-decayed reservoir sampler each tree
// uses to decide, on every incoming point, whether to admit it and which
// currently-held point (if any) to evict.
package sampler

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// entry is one reservoir slot: the point-store key it references, the
// priority it was admitted with, and the sequence index it arrived at
// (used only to break priority ties deterministically).
type entry struct {
	key      int
	priority float64
	seq      int64
}

// entryHeap is a min-heap on priority: its root is always the
// currently-weakest reservoir occupant, the one a higher-priority
// candidate will evict.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Sampler is a fixed-capacity, weighted reservoir sampler with exponential
// time decay: the priority of a candidate admitted at sequence index seq is
// drawn as ln(-ln(u))+λ·seq for u~Uniform(0,1), computed in log-space to
// avoid underflow for large seq. The reservoir keeps the sample_size
// largest-priority entries.
type Sampler struct {
	sampleSize            int
	timeDecay             float64
	initialAcceptFraction float64
	rng                   *rand.Rand
	heap                  entryHeap
	accepted              int64
}

// New returns a Sampler of the given capacity and time-decay rate, drawing
// its random priorities from rng. initialAcceptFraction, in (0,1], sets a
// bootstrap count of initialAcceptFraction*sampleSize candidates admitted
// without the priority test. Every candidate is also admitted while the
// reservoir has room, and the bootstrap count never exceeds sampleSize, so
// the fraction does not change which candidates are admitted.
func New(sampleSize int, timeDecay, initialAcceptFraction float64, rng *rand.Rand) (*Sampler, error) {
	if err := rcferr.CheckArgument(sampleSize > 0, "sample size must be positive"); err != nil {
		return nil, err
	}
	if err := rcferr.CheckArgument(timeDecay >= 0, "time decay must be non-negative"); err != nil {
		return nil, err
	}
	if err := rcferr.CheckArgument(initialAcceptFraction > 0 && initialAcceptFraction <= 1, "initial accept fraction must be in (0,1]"); err != nil {
		return nil, err
	}
	return &Sampler{
		sampleSize:            sampleSize,
		timeDecay:             timeDecay,
		initialAcceptFraction: initialAcceptFraction,
		rng:                   rng,
		heap:                  make(entryHeap, 0, sampleSize),
	}, nil
}

// Size returns the number of entries currently held.
func (s *Sampler) Size() int {
	return len(s.heap)
}

// Capacity returns sample_size.
func (s *Sampler) Capacity() int {
	return s.sampleSize
}

// nextPriority draws ln(-ln(u)) + λ·seq. u is drawn from (0,1), excluding
// the endpoints where the logs would diverge.
func (s *Sampler) nextPriority(seq int64) float64 {
	u := s.rng.Float64()
	for u <= 0 || u >= 1 {
		u = s.rng.Float64()
	}
	return math.Log(-math.Log(u)) + s.timeDecay*float64(seq)
}

// Accept offers a candidate point at sequence index seq to the reservoir.
// It returns accepted=false if the candidate is rejected outright (the
// reservoir is full and the candidate's priority does not exceed the
// current minimum). On acceptance, evicted reports whether an existing
// entry was displaced, and evictedKey is its point-store key.
func (s *Sampler) Accept(key int, seq int64) (weight float64, evictedKey int, evicted bool, accepted bool) {
	bootstrapCutoff := int64(s.initialAcceptFraction * float64(s.sampleSize))
	priority := s.nextPriority(seq)

	if len(s.heap) < s.sampleSize || s.accepted < bootstrapCutoff {
		s.accepted++
		heap.Push(&s.heap, entry{key: key, priority: priority, seq: seq})
		if len(s.heap) > s.sampleSize {
			evictedEntry := heap.Pop(&s.heap).(entry)
			return priority, evictedEntry.key, true, true
		}
		return priority, 0, false, true
	}

	s.accepted++
	if priority <= s.heap[0].priority {
		return 0, 0, false, false
	}
	evictedEntry := s.heap[0]
	s.heap[0] = entry{key: key, priority: priority, seq: seq}
	heap.Fix(&s.heap, 0)
	return priority, evictedEntry.key, true, true
}

// Keys returns the point-store keys of every entry currently held, in no
// particular order.
func (s *Sampler) Keys() []int {
	keys := make([]int, len(s.heap))
	for i, e := range s.heap {
		keys[i] = e.key
	}
	return keys
}
