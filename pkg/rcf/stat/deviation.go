// Package stat implements the discounted-moment accumulator (Deviation)
// used to track running mean/variance of a decaying stream, such as the
// forecast error accumulated by an external collaborator consuming scores
// from this package.
package stat

import (
	"math"

	"github.com/elee1766/rcforest/pkg/rcf/rcferr"
)

// Deviation maintains discounted first and second moments of a stream.
// Every Update multiplies the running sums by a factor that blends a fixed
// discount rate with a count-dependent ramp, so early samples are not
// overweighted before the discount has had a chance to act.
type Deviation struct {
	Discount   float64
	Weight     float64
	Sum        float64
	SumSquared float64
	Count      int
}

// NewDeviation returns a Deviation with the given discount, which must lie
// in [0, 1).
func NewDeviation(discount float64) (*Deviation, error) {
	if err := rcferr.CheckArgument(discount >= 0 && discount < 1, "incorrect discount value"); err != nil {
		return nil, err
	}
	return &Deviation{Discount: discount}, nil
}

// Reset clears the accumulated moments while keeping the discount rate.
func (d *Deviation) Reset() {
	d.Weight = 0
	d.Sum = 0
	d.SumSquared = 0
	d.Count = 0
}

// IsEmpty reports whether no sample has been folded in yet.
func (d *Deviation) IsEmpty() bool {
	return d.Weight <= 0
}

// Update folds x into the running discounted moments.
func (d *Deviation) Update(x float64) {
	factor := 1.0
	if d.Discount != 0 {
		a := 1 - d.Discount
		b := 1 - 1/float64(d.Count+2)
		factor = math.Min(a, b)
	}
	d.Sum = d.Sum*factor + x
	d.SumSquared = d.SumSquared*factor + x*x
	d.Weight = d.Weight*factor + 1
	d.Count++
}

// Mean returns Sum/Weight, or 0 before any sample has arrived.
func (d *Deviation) Mean() float64 {
	if d.IsEmpty() {
		return 0
	}
	return d.Sum / d.Weight
}

// Variance returns max(0, Sum²/Weight − Mean²).
func (d *Deviation) Variance() float64 {
	if d.IsEmpty() {
		return 0
	}
	mean := d.Sum / d.Weight
	v := d.SumSquared/d.Weight - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// StdDev returns sqrt(Variance()).
func (d *Deviation) StdDev() float64 {
	return math.Sqrt(d.Variance())
}
