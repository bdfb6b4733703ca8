package pointstore

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// PebbleStore is an alternate PointStore backend keyed by the content hash
// of each vector and backed by a single pebble.DB, the way the teacher's
// btdu.PebbleStore keys sessions by a hash of the filesystem path. It
// implements the same narrow Interface as the default in-memory Store, so a
// caller can swap storage backends without touching tree or sampler code.
//
// PebbleStore is not used for model persistence across restarts — nothing
// in this package loads prior state back from the database on open — it is
// offered purely as an interchangeable PointStore implementation.
type PebbleStore struct {
	mu        sync.Mutex
	db        *pebble.DB
	dimension int
	refs      map[string]uint32
	nextID    uint64
	keyToHash map[int]string
}

type silentLogger struct{}

func (silentLogger) Infof(string, ...interface{})  {}
func (silentLogger) Errorf(string, ...interface{}) {}
func (silentLogger) Fatalf(string, ...interface{}) {}

// NewPebbleStore opens (or creates) a pebble-backed point store rooted at
// dir, for vectors of the given dimension.
func NewPebbleStore(dir string, dimension int) (*PebbleStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create point store directory: %w", err)
	}
	db, err := pebble.Open(filepath.Join(dir, "points.db"), &pebble.Options{
		Logger: silentLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{
		db:        db,
		dimension: dimension,
		refs:      make(map[string]uint32),
		keyToHash: make(map[int]string),
	}, nil
}

// Close releases the underlying pebble database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func contentHash(vector []float32) string {
	buf := make([]byte, 4*len(vector))
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	h := sha256.Sum256(buf)
	return string(h[:])
}

// Add stores vector, reusing its content-hash key and bumping the refcount
// if an identical vector is already live.
func (s *PebbleStore) Add(vector []float32) (int, error) {
	if err := rcferr.CheckArgument(len(vector) == s.dimension, "point has wrong dimension: got %d want %d", len(vector), s.dimension); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := contentHash(vector)
	if count, ok := s.refs[hash]; ok {
		s.refs[hash] = count + 1
		for k, h := range s.keyToHash {
			if h == hash {
				return k, nil
			}
		}
	}

	buf := make([]byte, 4*len(vector))
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	if err := s.db.Set([]byte(hash), buf, pebble.Sync); err != nil {
		return 0, fmt.Errorf("pebble set: %w", err)
	}
	key := int(s.nextID)
	s.nextID++
	s.keyToHash[key] = hash
	s.refs[hash] = 1
	return key, nil
}

// Get returns the vector stored at key.
func (s *PebbleStore) Get(key int) []float32 {
	s.mu.Lock()
	hash, ok := s.keyToHash[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	val, closer, err := s.db.Get([]byte(hash))
	if err != nil {
		return nil
	}
	defer closer.Close()
	out := make([]float32, s.dimension)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(val[4*i:]))
	}
	return out
}

// Inc increments the reference count for key.
func (s *PebbleStore) Inc(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hash, ok := s.keyToHash[key]; ok {
		s.refs[hash]++
	}
}

// Dec decrements the reference count for key, deleting the underlying
// pebble entry when it reaches zero.
func (s *PebbleStore) Dec(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.keyToHash[key]
	if !ok {
		return
	}
	s.refs[hash]--
	if s.refs[hash] == 0 {
		delete(s.refs, hash)
		delete(s.keyToHash, key)
		_ = s.db.Delete([]byte(hash), pebble.Sync)
	}
}

// Size returns the number of distinct live points in the store.
func (s *PebbleStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// TotalSizeBytes estimates the store's on-disk footprint.
func (s *PebbleStore) TotalSizeBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs) * (s.dimension*4 + 32)
}
