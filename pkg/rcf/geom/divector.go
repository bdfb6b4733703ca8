package geom

// DiVector accumulates directional, per-dimension attributions as paired
// high/low components: high[i] is the contribution from the query exceeding
// the box on dimension i, low[i] the contribution from falling short of it.
type DiVector struct {
	High []float64
	Low  []float64
}

// NewDiVector returns a zeroed DiVector of the given dimension.
func NewDiVector(dimension int) *DiVector {
	return &DiVector{
		High: make([]float64, dimension),
		Low:  make([]float64, dimension),
	}
}

// Dimensions returns the per-side vector length.
func (d *DiVector) Dimensions() int {
	return len(d.High)
}

// Clone returns a deep copy.
func (d *DiVector) Clone() *DiVector {
	c := &DiVector{
		High: make([]float64, len(d.High)),
		Low:  make([]float64, len(d.Low)),
	}
	copy(c.High, d.High)
	copy(c.Low, d.Low)
	return c
}

// Assign copies other's contents into d in place.
func (d *DiVector) Assign(other *DiVector) {
	copy(d.High, other.High)
	copy(d.Low, other.Low)
}

// AddFrom adds other scaled by factor into d.
func (d *DiVector) AddFrom(other *DiVector, factor float64) {
	for i := range d.High {
		d.High[i] += other.High[i] * factor
		d.Low[i] += other.Low[i] * factor
	}
}

// Scale multiplies every component by factor.
func (d *DiVector) Scale(factor float64) {
	for i := range d.High {
		d.High[i] *= factor
		d.Low[i] *= factor
	}
}

// Total sums every component across both sides.
func (d *DiVector) Total() float64 {
	var sum float64
	for i := range d.High {
		sum += d.High[i] + d.Low[i]
	}
	return sum
}

// HighLowSum returns High[i]+Low[i].
func (d *DiVector) HighLowSum(i int) float64 {
	return d.High[i] + d.Low[i]
}

// Normalize rescales d so that Total() equals value. When the current total
// is non-positive (no attribution accumulated yet), the value is spread
// evenly across all 2*dimensions slots.
func (d *DiVector) Normalize(value float64) {
	current := d.Total()
	if current <= 0 {
		v := value / float64(2*len(d.High))
		for i := range d.High {
			d.High[i] = v
			d.Low[i] = v
		}
		return
	}
	d.Scale(value / current)
}

// AssignAsProbabilityOfCut sets d to the directional (componentwise) cut
// probability of point against box, then rescales it to the box's scalar
// ProbabilityOfCut so that d.Total() equals that scalar.
func (d *DiVector) AssignAsProbabilityOfCut(box *BoundingBox, point []float32) {
	d.assignCutMass(box, point, nil)
}

// AssignAsProbabilityOfCutWithMissing is the masked variant of
// AssignAsProbabilityOfCut: dimensions with missing[i] set do not
// contribute overshoot.
func (d *DiVector) AssignAsProbabilityOfCutWithMissing(box *BoundingBox, point []float32, missing []bool) {
	d.assignCutMass(box, point, missing)
}

func (d *DiVector) assignCutMass(box *BoundingBox, point []float32, missing []bool) {
	var minSum, maxSum float64
	for i := range point {
		if missing != nil && missing[i] {
			d.Low[i] = 0
			d.High[i] = 0
			continue
		}
		if gap := box.Min[i] - point[i]; gap > 0 {
			d.Low[i] = float64(gap)
			minSum += float64(gap)
		} else {
			d.Low[i] = 0
		}
		if gap := point[i] - box.Max[i]; gap > 0 {
			d.High[i] = float64(gap)
			maxSum += float64(gap)
		} else {
			d.High[i] = 0
		}
	}
	sum := minSum + maxSum
	if sum != 0 {
		d.Scale(1.0 / (box.RangeSum + sum))
	}
}
