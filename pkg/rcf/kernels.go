package rcf

import "github.com/elee1766/rcforest/pkg/rcf/visitor"

// kernels returns the visitor.Kernels a Forest scores with under this
// strategy. DISTANCE has no geometric distance threaded through the
// height-based visitor plumbing (Kernels' functions only ever receive
// depth and mass), so it reuses depth itself as the distance proxy; this is
// recorded as a resolved ambiguity rather than a faithful distance metric.
func (s ScoringStrategy) kernels() visitor.Kernels {
	if s == ScoringDistance {
		return visitor.DistanceKernels(func(depth int) float64 { return float64(depth) })
	}
	return visitor.DefaultKernels()
}
