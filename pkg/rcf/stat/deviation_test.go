package stat

import (
	"math"
	"testing"
)

func TestDeviationZeroDiscount(t *testing.T) {
	d, err := NewDeviation(0)
	if err != nil {
		t.Fatalf("NewDeviation: %v", err)
	}
	for _, x := range []float64{1, 2, 3, 4, 5} {
		d.Update(x)
	}
	if got := d.Mean(); math.Abs(got-3) > 1e-9 {
		t.Errorf("Mean() = %v, want 3", got)
	}
	if got := d.StdDev(); math.Abs(got-math.Sqrt(2)) > 1e-9 {
		t.Errorf("StdDev() = %v, want sqrt(2)", got)
	}
}

func TestDeviationRejectsBadDiscount(t *testing.T) {
	tests := []struct {
		name     string
		discount float64
	}{
		{"negative", -0.1},
		{"one", 1.0},
		{"above one", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDeviation(tt.discount); err == nil {
				t.Fatalf("expected error for discount %v", tt.discount)
			}
		})
	}
}

func TestDeviationEmpty(t *testing.T) {
	d, _ := NewDeviation(0.1)
	if !d.IsEmpty() {
		t.Fatalf("fresh Deviation should be empty")
	}
	if d.Mean() != 0 || d.StdDev() != 0 {
		t.Fatalf("empty Deviation should report zero mean/deviation")
	}
}

func TestDeviationReset(t *testing.T) {
	d, _ := NewDeviation(0.05)
	d.Update(10)
	d.Update(20)
	d.Reset()
	if !d.IsEmpty() {
		t.Fatalf("Reset should clear accumulated moments")
	}
	if d.Discount != 0.05 {
		t.Fatalf("Reset should preserve discount, got %v", d.Discount)
	}
}
