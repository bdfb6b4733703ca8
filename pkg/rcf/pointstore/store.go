package pointstore

import (
	"math"
	"sync"

	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// Store is a content-addressed, reference-counted store of fixed-dimension
// float32 vectors shared across every tree in a forest. Keys are stable
// until their reference count reaches zero, at which point the slot is
// reclaimed through an IntervalStoreManager.
//
// Dedup strategy: a fast path checks the most-recently-inserted point (the
// common case for a slowly drifting stream), falling back to a hash-keyed
// index of every live point for exact-match reuse regardless of insertion
// order.
type Store struct {
	mu sync.RWMutex

	dimension int
	slots     [][]float32
	refs      []uint32
	intervals *IntervalStoreManager

	lastKey int
	index   map[string]int // content hash -> key, for live points only
}

// New returns an empty store for vectors of the given dimension, with room
// for capacity live points.
func New(dimension, capacity int) *Store {
	return &Store{
		dimension: dimension,
		slots:     make([][]float32, capacity),
		refs:      make([]uint32, capacity),
		intervals: NewIntervalStoreManager(capacity),
		lastKey:   -1,
		index:     make(map[string]int, capacity),
	}
}

// Add stores vector, reusing an existing key (and incrementing its
// refcount) when an identical point is already live; otherwise it allocates
// a new key, growing capacity if necessary.
func (s *Store) Add(vector []float32) (int, error) {
	if err := rcferr.CheckArgument(len(vector) == s.dimension, "point has wrong dimension: got %d want %d", len(vector), s.dimension); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastKey >= 0 && equalVec(s.slots[s.lastKey], vector) {
		s.refs[s.lastKey]++
		return s.lastKey, nil
	}

	h := hashVec(vector)
	if key, ok := s.index[h]; ok && equalVec(s.slots[key], vector) {
		s.refs[key]++
		s.lastKey = key
		return key, nil
	}

	if s.intervals.IsEmpty() {
		s.grow()
	}
	key, err := s.intervals.Acquire()
	if err != nil {
		return 0, err
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)
	s.slots[key] = stored
	s.refs[key] = 1
	s.index[h] = key
	s.lastKey = key
	return key, nil
}

func (s *Store) grow() {
	newCap := len(s.slots)*2 + 1
	s.slots = append(s.slots, make([][]float32, newCap-len(s.slots))...)
	s.refs = append(s.refs, make([]uint32, newCap-len(s.refs))...)
	s.intervals.Grow(newCap)
}

// Inc increments the reference count for key.
func (s *Store) Inc(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[key]++
}

// Dec decrements the reference count for key, reclaiming the slot when it
// reaches zero.
func (s *Store) Dec(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[key]--
	if s.refs[key] == 0 {
		delete(s.index, hashVec(s.slots[key]))
		s.slots[key] = nil
		if s.lastKey == key {
			s.lastKey = -1
		}
		s.intervals.Release(key)
	}
}

// Get returns the vector stored at key. Behavior is undefined for a
// released key, per the PointStore contract.
func (s *Store) Get(key int) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[key]
}

// RefCount returns the current reference count for key.
func (s *Store) RefCount(key int) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refs[key]
}

// Size returns the number of distinct live points in the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intervals.Used()
}

// TotalSizeBytes estimates the store's memory footprint: one float32 per
// coordinate per live point, plus refcount/index bookkeeping.
func (s *Store) TotalSizeBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live := s.intervals.Used()
	perPoint := s.dimension*4 + 4 + 32 // vector + refcount + map overhead estimate
	return live * perPoint
}

func equalVec(a, b []float32) bool {
	if a == nil || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hashVec computes a cheap content hash (FNV-1a over the raw float32 bits)
// used only to bucket candidates for exact-match dedup; equalVec performs
// the authoritative comparison.
func hashVec(v []float32) string {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, f := range v {
		bits := math.Float32bits(f)
		h ^= uint64(bits)
		h *= prime64
	}
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (8 * i))
	}
	return string(buf)
}
