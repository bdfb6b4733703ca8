package sampler

import (
	"math/rand"
	"testing"
)

func TestSamplerBootstrapFillsCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s, err := New(4, 0, 1.0, rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		_, _, evicted, accepted := s.Accept(i, int64(i))
		if !accepted {
			t.Fatalf("candidate %d should be accepted during bootstrap", i)
		}
		if evicted {
			t.Fatalf("candidate %d should not evict anything while filling", i)
		}
	}
	if s.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", s.Size())
	}
}

func TestSamplerRejectsCandidates(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	s, err := New(2, 0, 0.01, rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	accepted, rejected := 0, 0
	for i := 0; i < 500; i++ {
		_, _, _, ok := s.Accept(i, int64(i))
		if ok {
			accepted++
		} else {
			rejected++
		}
	}
	if s.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", s.Size())
	}
	if rejected == 0 {
		t.Fatalf("expected at least one rejection once the reservoir is full")
	}
}

func TestSamplerRejectsInvalidConfig(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	if _, err := New(0, 0, 1, rng); err == nil {
		t.Fatalf("expected error for zero sample size")
	}
	if _, err := New(4, -1, 1, rng); err == nil {
		t.Fatalf("expected error for negative time decay")
	}
	if _, err := New(4, 0, 0, rng); err == nil {
		t.Fatalf("expected error for zero initial accept fraction")
	}
	if _, err := New(4, 0, 1.5, rng); err == nil {
		t.Fatalf("expected error for initial accept fraction above 1")
	}
}

func TestSamplerEvictionReturnsDisplacedKey(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	s, _ := New(1, 0, 1.0, rng)
	_, _, evicted, accepted := s.Accept(100, 0)
	if !accepted || evicted {
		t.Fatalf("first candidate should fill the lone slot without eviction")
	}
	for seq := int64(1); seq < 10000; seq++ {
		_, evictedKey, ev, ok := s.Accept(int(seq), seq)
		if ok && ev {
			if evictedKey == 0 {
				t.Fatalf("evicted key should identify a real reservoir occupant")
			}
			return
		}
	}
	t.Fatalf("expected an eviction within 10000 candidates")
}
