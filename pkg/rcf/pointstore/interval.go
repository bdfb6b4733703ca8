// Package pointstore provides the content-addressed, reference-counted
// point store shared across a forest's trees, plus the free-index
// allocator (IntervalStoreManager) it and the tree node arenas build on.
package pointstore

import "github.com/elee1766/rcforest/pkg/rcf/rcferr"

// IntervalStoreManager tracks free integer indices over [0, capacity) as a
// set of disjoint intervals, avoiding per-index bookkeeping for the
// long contiguous runs of freed ids that FIFO-style sampling produces.
//
// Coalescing only inspects the most recently opened interval, mirroring the
// upstream implementation; used() stays correct regardless (see DESIGN.md).
type IntervalStoreManager struct {
	capacity int
	starts   []int
	ends     []int
}

// NewIntervalStoreManager returns a manager with every index in
// [0, capacity) free.
func NewIntervalStoreManager(capacity int) *IntervalStoreManager {
	if capacity <= 0 {
		return &IntervalStoreManager{capacity: capacity}
	}
	return &IntervalStoreManager{
		capacity: capacity,
		starts:   []int{0},
		ends:     []int{capacity - 1},
	}
}

// IsEmpty reports whether no free indices remain.
func (m *IntervalStoreManager) IsEmpty() bool {
	return len(m.starts) == 0
}

// Capacity returns the current capacity.
func (m *IntervalStoreManager) Capacity() int {
	return m.capacity
}

// Acquire returns a free index, shrinking the interval it came from. It
// returns an error if no free indices remain.
func (m *IntervalStoreManager) Acquire() (int, error) {
	if m.IsEmpty() {
		return 0, rcferr.InvalidArgument("no more indices left")
	}
	last := len(m.starts) - 1
	id := m.starts[last]
	if id == m.ends[last] {
		m.starts = m.starts[:last]
		m.ends = m.ends[:last]
	} else {
		m.starts[last] = id + 1
	}
	return id, nil
}

// Release returns id to the free set, coalescing with the most recently
// opened interval when id is adjacent to either end of it; otherwise it
// opens a new interval.
func (m *IntervalStoreManager) Release(id int) {
	if len(m.starts) > 0 {
		last := len(m.starts) - 1
		if m.starts[last] == id+1 {
			m.starts[last] = id
			return
		}
		if m.ends[last]+1 == id {
			m.ends[last] = id
			return
		}
	}
	m.starts = append(m.starts, id)
	m.ends = append(m.ends, id)
}

// Grow extends the managed range to [0, newCapacity), opening a new free
// interval over the added indices. It is a no-op if newCapacity is not
// larger than the current capacity.
func (m *IntervalStoreManager) Grow(newCapacity int) {
	if newCapacity <= m.capacity {
		return
	}
	m.starts = append(m.starts, m.capacity)
	m.ends = append(m.ends, newCapacity-1)
	m.capacity = newCapacity
}

// Used returns the number of indices currently allocated (not free).
func (m *IntervalStoreManager) Used() int {
	free := 0
	for i := range m.starts {
		free += m.ends[i] - m.starts[i] + 1
	}
	return m.capacity - free
}
