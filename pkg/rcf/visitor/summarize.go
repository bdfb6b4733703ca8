package visitor

import (
	"math"
	"sort"
)

// SampleSummary is a weighted summary of a neighborhood of points: a small
// set of representative points with relative weights, plus the
// neighborhood's per-dimension mean, median, and deviation.
type SampleSummary struct {
	SummaryPoints  [][]float32
	RelativeWeight []float64
	TotalWeight    float64
	Mean           []float32
	Median         []float32
	Deviation      []float32
}

// PointStore is the minimal point lookup FieldSummarizer needs; satisfied by
// pointstore.Store.
type PointStore interface {
	Get(key int) []float32
}

// WeightedPoint pairs a point-store key with a distance used to weight its
// contribution to a summary.
type WeightedPoint struct {
	Key      int
	Distance float32
}

// FieldSummarizer computes a weighted summary of the neighborhood named by
// pointsWithDistance, typically the imputation candidates gathered across a
// forest's trees for one query. Points further than a centrality-scaled
// threshold are down-weighted rather than dropped. When project is true and
// missing is non-empty, only the coordinates named in missing are
// summarized (the completed/imputed coordinates); otherwise the full stored
// point contributes. maxNumber caps how many representative points the
// returned summary keeps.
func FieldSummarizer(store PointStore, pointsWithDistance []WeightedPoint, missing []int, centrality float64, project bool, maxNumber int) SampleSummary {
	sortedDistances := make([]float32, len(pointsWithDistance))
	for i, p := range pointsWithDistance {
		sortedDistances[i] = p.Distance
	}
	sort.Slice(sortedDistances, func(i, j int) bool { return sortedDistances[i] < sortedDistances[j] })

	threshold := 0.0
	if centrality > 0 {
		alwaysInclude := 0
		for alwaysInclude < len(sortedDistances) && sortedDistances[alwaysInclude] == 0 {
			alwaysInclude++
		}
		rest := len(sortedDistances) - alwaysInclude
		threshold = centrality * float64(sortedDistances[alwaysInclude+rest/3]+sortedDistances[alwaysInclude+rest/2])
	}
	threshold += (1 - centrality) * float64(sortedDistances[len(sortedDistances)-1])

	totalWeight := float64(len(pointsWithDistance))
	dimensions := len(store.Get(pointsWithDistance[0].Key))
	if project && len(missing) != 0 {
		dimensions = len(missing)
	}

	sumValues := make([]float64, dimensions)
	sumValuesSq := make([]float64, dimensions)
	points := make([][]float32, len(pointsWithDistance))
	weights := make([]float64, len(pointsWithDistance))

	for i, p := range pointsWithDistance {
		full := store.Get(p.Key)
		point := full
		if project && len(missing) != 0 {
			projected := make([]float32, len(missing))
			for j, idx := range missing {
				projected[j] = full[idx]
			}
			point = projected
		}
		for j := 0; j < dimensions; j++ {
			sumValues[j] += float64(point[j])
			sumValuesSq[j] += float64(point[j]) * float64(point[j])
		}
		weight := 1.0
		if float64(p.Distance) > threshold {
			weight = threshold / float64(p.Distance)
		}
		points[i] = point
		weights[i] = weight
	}

	mean := make([]float32, dimensions)
	deviation := make([]float32, dimensions)
	for j := 0; j < dimensions; j++ {
		mean[j] = float32(sumValues[j] / totalWeight)
		t := sumValuesSq[j]/totalWeight - sumValues[j]*sumValues[j]/(totalWeight*totalWeight)
		if t < 0 {
			t = 0
		}
		deviation[j] = float32(math.Sqrt(t))
	}

	median := make([]float32, dimensions)
	column := make([]float32, len(points))
	for j := 0; j < dimensions; j++ {
		for i, p := range points {
			column[i] = p[j]
		}
		sort.Slice(column, func(a, b int) bool { return column[a] < column[b] })
		median[j] = column[len(column)/2]
	}

	summaryPoints, relativeWeight, summaryTotal := summarizeByWeight(points, weights, maxNumber)

	return SampleSummary{
		SummaryPoints:  summaryPoints,
		RelativeWeight: relativeWeight,
		TotalWeight:    summaryTotal,
		Mean:           mean,
		Median:         median,
		Deviation:      deviation,
	}
}

// summarizeByWeight reduces a weighted point set to at most maxNumber
// representatives, keeping the highest-weighted points and reporting each
// kept point's share of the kept points' combined weight. The returned
// total is the weight of every input point.
func summarizeByWeight(points [][]float32, weights []float64, maxNumber int) ([][]float32, []float64, float64) {
	type indexed struct {
		point  []float32
		weight float64
	}
	ranked := make([]indexed, len(points))
	var total float64
	for i := range points {
		ranked[i] = indexed{points[i], weights[i]}
		total += weights[i]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].weight > ranked[j].weight })
	if maxNumber > 0 && len(ranked) > maxNumber {
		ranked = ranked[:maxNumber]
	}
	var keptTotal float64
	for _, r := range ranked {
		keptTotal += r.weight
	}
	summaryPoints := make([][]float32, len(ranked))
	relativeWeight := make([]float64, len(ranked))
	for i, r := range ranked {
		summaryPoints[i] = r.point
		if keptTotal > 0 {
			relativeWeight[i] = r.weight / keptTotal
		}
	}
	return summaryPoints, relativeWeight, total
}
