package oracle

import (
	"context"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/G-Research/timingscan/internal/timingscan/comparison"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// InProcessOracle applies a two-sample Kolmogorov-Smirnov test to the request's sample snapshots.
// Series shorter than MinSamples are inconclusive.
type InProcessOracle struct {
	SignificanceLevel float64
	MinSamples        int
}

func NewInProcessOracle(significanceLevel float64, minSamples int) *InProcessOracle {
	return &InProcessOracle{
		SignificanceLevel: significanceLevel,
		MinSamples:        minSamples,
	}
}

func (o *InProcessOracle) Evaluate(_ context.Context, req *comparison.Request, _ int) domain.Decision {
	n, m := len(req.SamplesA), len(req.SamplesB)
	if n == 0 || m == 0 || n < o.MinSamples || m < o.MinSamples {
		return domain.InconclusiveContinue
	}
	d := ksStatistic(req.SamplesA, req.SamplesB)
	if d > criticalValue(o.SignificanceLevel, n, m) {
		return domain.Significant
	}
	return domain.NoDifferenceContinue
}

// ksStatistic returns the largest distance between the empirical distribution functions of a and b.
func ksStatistic(a []int64, b []int64) float64 {
	return stat.KolmogorovSmirnov(sortedFloats(a), nil, sortedFloats(b), nil)
}

// criticalValue is the asymptotic rejection threshold c(alpha) * sqrt((n+m)/(n*m)).
func criticalValue(alpha float64, n int, m int) float64 {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	c := math.Sqrt(-math.Log(alpha/2) / 2)
	return c * math.Sqrt(float64(n+m)/float64(n*m))
}

func sortedFloats(samples []int64) []float64 {
	s := make([]float64, len(samples))
	for i, v := range samples {
		s[i] = float64(v)
	}
	slices.Sort(s)
	return s
}
