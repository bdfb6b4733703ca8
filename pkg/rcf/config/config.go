// Package config holds the option set a Forest is constructed from, plus
// validation of the invariants spec'd for those options.
package config

import (
	"os"
	"strconv"

	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// Config is the full set of options for a Forest (§4.8).
type Config struct {
	Dimension int // full (shingled) dimension of each point the trees hold; with InternalShingling, incoming points have Dimension/ShingleSize coordinates

	ShingleSize       int
	InternalShingling bool
	InternalRotation  bool

	NumTrees   int
	SampleSize int

	TimeDecay                float64
	InitialAcceptFraction    float64
	BoundingBoxCacheFraction float64

	RandomSeed uint64

	ParallelEnabled bool
	StoreAttributes bool

	// OutputAfter is the minimum number of entries seen before Score
	// returns a non-zero value.
	OutputAfter int
}

// New returns a Config populated with the defaults documented for the CLI
// front end, overridable from the environment the way pkg/config reads
// XDG_* variables.
func New() *Config {
	return &Config{
		Dimension:                envOrDefaultInt("RCF_DIMENSION", 1),
		ShingleSize:              envOrDefaultInt("RCF_SHINGLE_SIZE", 1),
		InternalShingling:        false,
		InternalRotation:         false,
		NumTrees:                 envOrDefaultInt("RCF_NUM_TREES", 50),
		SampleSize:               envOrDefaultInt("RCF_SAMPLE_SIZE", 256),
		TimeDecay:                envOrDefaultFloat("RCF_TIME_DECAY", 1.0/2560),
		InitialAcceptFraction:    1.0,
		BoundingBoxCacheFraction: 1.0,
		RandomSeed:               0,
		ParallelEnabled:          true,
		StoreAttributes:          false,
		OutputAfter:              envOrDefaultInt("RCF_OUTPUT_AFTER", 256),
	}
}

// Capacity returns the point-store capacity implied by NumTrees and
// SampleSize (§4.8: capacity = num_trees*sample_size + 1).
func (c *Config) Capacity() int {
	return c.NumTrees*c.SampleSize + 1
}

// Validate checks the invariants spec.md §4.8 places on these fields.
func (c *Config) Validate() error {
	if err := rcferr.CheckArgument(c.Dimension > 0, "dimension must be positive, got %d", c.Dimension); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.ShingleSize >= 1, "shingle_size must be >= 1, got %d", c.ShingleSize); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.NumTrees > 0, "num_trees must be positive, got %d", c.NumTrees); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.SampleSize > 0, "sample_size must be positive, got %d", c.SampleSize); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.TimeDecay >= 0, "time_decay must be >= 0, got %f", c.TimeDecay); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.InitialAcceptFraction > 0 && c.InitialAcceptFraction <= 1, "initial_accept_fraction must be in (0,1], got %f", c.InitialAcceptFraction); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.BoundingBoxCacheFraction >= 0 && c.BoundingBoxCacheFraction <= 1, "bounding_box_cache_fraction must be in [0,1], got %f", c.BoundingBoxCacheFraction); err != nil {
		return err
	}
	if err := rcferr.CheckArgument(c.OutputAfter >= 0, "output_after must be >= 0, got %d", c.OutputAfter); err != nil {
		return err
	}
	return nil
}

func envOrDefaultInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
