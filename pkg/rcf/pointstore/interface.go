package pointstore

// Interface is the contract a tree's point storage must satisfy, exposed so
// an alternate backend (see PebbleStore) can stand in for the default
// in-memory Store. The façade consumes this interface rather than the
// concrete Store type for everything except construction.
type Interface interface {
	Add(vector []float32) (int, error)
	Get(key int) []float32
	Inc(key int)
	Dec(key int)
	Size() int
	TotalSizeBytes() int
}

var (
	_ Interface = (*Store)(nil)
	_ Interface = (*PebbleStore)(nil)
)
