// Package stats summarizes repeated estimates of the same probability, e.g.
// finish probabilities from several sampled engine runs.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Estimate accumulates observations with Welford's algorithm.
type Estimate struct {
	n    int
	last float64
	mean float64
	m2   float64
}

func (e *Estimate) Push(val float64) {
	e.last = val
	e.n++
	delta := val - e.mean
	e.mean += delta / float64(e.n)
	e.m2 += delta * (val - e.mean)
}

func (e *Estimate) Mean() float64 {
	return e.mean
}

func (e *Estimate) Variance() float64 {
	if e.n <= 1 {
		return 0.0
	}
	return e.m2 / float64(e.n-1)
}

func (e *Estimate) Stdev() float64 {
	return math.Sqrt(e.Variance())
}

func (e *Estimate) Last() float64 {
	return e.last
}

func (e *Estimate) StandardError() float64 {
	if e.n == 0 {
		return 0.0
	}
	return math.Sqrt(e.Variance() / float64(e.n))
}

func (e *Estimate) Count() int {
	return e.n
}

// ZVal is the two-sided critical value of the standard normal for a
// confidence level in percent, e.g. 1.96 for 95.
func ZVal(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + confidence/200)
}

// Interval is the normal-approximation confidence interval around the mean.
// confidence is in percent.
func (e *Estimate) Interval(confidence float64) (lo, hi float64) {
	half := ZVal(confidence) * e.StandardError()
	return e.mean - half, e.mean + half
}

// Percent formats a probability estimate, e.g. "41.10% ± 0.35".
func (e *Estimate) Percent(confidence float64) string {
	if e.n <= 1 {
		return fmt.Sprintf("%.2f%%", 100*e.mean)
	}
	return fmt.Sprintf("%.2f%% ± %.2f", 100*e.mean, 100*ZVal(confidence)*e.StandardError())
}
