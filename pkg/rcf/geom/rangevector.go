package geom

import "github.com/elee1766/rcforest/pkg/rcf/rcferr"

// RangeVector tracks a predicted quantity together with its upper and lower
// bounds, one triple per dimension. Used by extrapolation to report a
// predicted shingle suffix with a confidence band.
type RangeVector struct {
	Values []float32
	Upper  []float32
	Lower  []float32
}

// NewRangeVector returns a zeroed RangeVector of the given dimension.
func NewRangeVector(dimension int) *RangeVector {
	return &RangeVector{
		Values: make([]float32, dimension),
		Upper:  make([]float32, dimension),
		Lower:  make([]float32, dimension),
	}
}

// FromValues builds a degenerate RangeVector whose bounds equal the values.
func FromValues(values []float32) *RangeVector {
	rv := &RangeVector{
		Values: append([]float32(nil), values...),
		Upper:  append([]float32(nil), values...),
		Lower:  append([]float32(nil), values...),
	}
	return rv
}

// NewRangeVectorFrom validates and builds a RangeVector from explicit
// values/upper/lower triples.
func NewRangeVectorFrom(values, upper, lower []float32) (*RangeVector, error) {
	if err := rcferr.CheckArgument(len(values) == len(upper) && len(upper) == len(lower), "mismatched lengths"); err != nil {
		return nil, err
	}
	for i := range values {
		if err := rcferr.CheckArgument(values[i] <= upper[i], "incorrect upper bound"); err != nil {
			return nil, err
		}
		if err := rcferr.CheckArgument(lower[i] <= values[i], "incorrect lower bound"); err != nil {
			return nil, err
		}
	}
	return &RangeVector{
		Values: append([]float32(nil), values...),
		Upper:  append([]float32(nil), upper...),
		Lower:  append([]float32(nil), lower...),
	}, nil
}

// Shift adds shift to index i in all three vectors, clamping the bounds so
// they never cross the shifted value (precision-loss guard, as floating
// point can otherwise push a bound past the point it's meant to bracket).
func (r *RangeVector) Shift(i int, shift float32) {
	r.Values[i] += shift
	r.Upper[i] += shift
	r.Lower[i] += shift
	if r.Upper[i] < r.Values[i] {
		r.Upper[i] = r.Values[i]
	}
	if r.Lower[i] > r.Values[i] {
		r.Lower[i] = r.Values[i]
	}
}

// Scale multiplies index i by scale in all three vectors, applying the same
// clamp as Shift.
func (r *RangeVector) Scale(i int, scale float32) {
	r.Values[i] *= scale
	r.Upper[i] *= scale
	r.Lower[i] *= scale
	if r.Upper[i] < r.Values[i] {
		r.Upper[i] = r.Values[i]
	}
	if r.Lower[i] > r.Values[i] {
		r.Lower[i] = r.Values[i]
	}
}

// CascadedAdd treats r as `horizon` repeated blocks of len(base) and adds
// base into the first block, then each subsequent block into the next,
// propagating a running baseline forward the way a repeated one-step
// forecast accumulates drift across a multi-step horizon.
func (r *RangeVector) CascadedAdd(base []float32) error {
	if err := rcferr.CheckArgument(len(base) > 0, "must be of positive length"); err != nil {
		return err
	}
	horizon := len(r.Values) / len(base)
	if err := rcferr.CheckArgument(horizon*len(base) == len(r.Values), "incorrect function call"); err != nil {
		return err
	}
	for j := range base {
		r.Shift(j, base[j])
	}
	for i := 1; i < horizon; i++ {
		for j := range base {
			r.Shift(i*len(base)+j, r.Values[(i-1)*len(base)+j])
		}
	}
	return nil
}
