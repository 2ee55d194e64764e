// Package bound converts empirical statistics into confidence radii.
//
// Every estimator is configured with a target error rate δ in (0, 1). Its
// ConfidenceInterval returns a radius Δ such that the true mean lies within
// Δ of the sample mean with probability at least 1-δ under the estimator's
// assumption; NSamples approximates the inverse, the sample count needed for
// a target Δ.
//
// Rewards are assumed to be normalized into [0, 1].
//
//	est, _ := bound.NewHoeffding(0.05)
//	delta, err := est.ConfidenceInterval(bound.Summary{N: 1000})
package bound

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidErrorRate is returned by constructors when δ is outside (0, 1).
	ErrInvalidErrorRate = errors.New("error rate must be in (0, 1)")
	// ErrInvalidInput is returned for summaries or intervals outside an
	// estimator's domain.
	ErrInvalidInput = errors.New("invalid estimator input")
	// ErrConvergence wraps root-finding failures.
	ErrConvergence = errors.New("confidence bound did not converge")
	// ErrUnsupported is returned by operations an estimator cannot provide.
	ErrUnsupported = errors.New("operation not supported by estimator")
)

// Summary is the per-system statistic an estimator consumes.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Estimator is a concentration-inequality based confidence bound.
type Estimator interface {
	Name() string
	ErrorRate() float64
	ConfidenceInterval(s Summary) (float64, error)
	NSamples(interval float64, s Summary) (float64, error)
}

// Estimator names, in report column order.
const (
	NameHoeffding                 = "hoeffding"
	NameBernoulliChernoff         = "bernoulli_chernoff"
	NameBernoulliExactAsymptotics = "bernoulli_exact_asymptotics"
	NameCentralLimitTheorem       = "clt"
	NameCentralLimitTheoremT      = "clt_t"
)

// All returns the five estimators in report column order.
func All(errorRate float64) ([]Estimator, error) {
	if err := checkErrorRate(errorRate); err != nil {
		return nil, err
	}
	return []Estimator{
		&Hoeffding{errorRate: errorRate},
		&BernoulliChernoff{errorRate: errorRate},
		&BernoulliExactAsymptotics{errorRate: errorRate},
		&CentralLimitTheorem{errorRate: errorRate},
		&CentralLimitTheoremT{errorRate: errorRate},
	}, nil
}

func checkErrorRate(errorRate float64) error {
	if !(errorRate > 0 && errorRate < 1) {
		return fmt.Errorf("%w: %g", ErrInvalidErrorRate, errorRate)
	}
	return nil
}

// logTwoOverDelta is ln(2/δ), the two-sided tail budget.
func logTwoOverDelta(errorRate float64) float64 {
	return math.Log(2.0 / errorRate)
}

const klClip = 1e-7

// clip keeps probability-like arguments inside [1e-7, 1-1e-7] so the
// logarithms in KL stay finite.
func clip(p float64) float64 {
	return math.Min(math.Max(p, klClip), 1-klClip)
}

// BernoulliKL is the Kullback-Leibler divergence between Bernoulli(p) and
// Bernoulli(q), with both arguments clipped away from 0 and 1.
func BernoulliKL(p, q float64) float64 {
	p = clip(p)
	q = clip(q)
	return p*math.Log(p/q) + (1.0-p)*math.Log((1.0-p)/(1.0-q))
}

// finite rejects NaN and Inf results.
func finite(name string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s produced %g", ErrConvergence, name, v)
	}
	return v, nil
}
