package bound

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// CentralLimitTheorem is the large-n normal approximation
// Δ = z_{1-δ/2}·σ/√n.
type CentralLimitTheorem struct {
	errorRate float64
}

// NewCentralLimitTheorem creates a normal-approximation estimator.
func NewCentralLimitTheorem(errorRate float64) (*CentralLimitTheorem, error) {
	if err := checkErrorRate(errorRate); err != nil {
		return nil, err
	}
	return &CentralLimitTheorem{errorRate: errorRate}, nil
}

func (c *CentralLimitTheorem) Name() string { return NameCentralLimitTheorem }

func (c *CentralLimitTheorem) ErrorRate() float64 { return c.errorRate }

func (c *CentralLimitTheorem) z() float64 {
	return distuv.UnitNormal.Quantile(1.0 - c.errorRate/2)
}

// P is Φ(√n·(x̄-μ)/σ).
func (c *CentralLimitTheorem) P(n int, sampleMean, mean, stddev float64) float64 {
	y := math.Sqrt(float64(n)) * (sampleMean - mean) / stddev
	return distuv.UnitNormal.CDF(y)
}

// ConfidenceInterval uses s.N and s.StdDev.
func (c *CentralLimitTheorem) ConfidenceInterval(s Summary) (float64, error) {
	if s.N <= 0 {
		return 0, fmt.Errorf("%w: clt needs n > 0, got %d", ErrInvalidInput, s.N)
	}
	if s.StdDev < 0 {
		return 0, fmt.Errorf("%w: negative stddev %g", ErrInvalidInput, s.StdDev)
	}
	return c.z() * s.StdDev / math.Sqrt(float64(s.N)), nil
}

// NSamples is the exact inverse (σ·z/Δ)².
func (c *CentralLimitTheorem) NSamples(interval float64, s Summary) (float64, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %g", ErrInvalidInput, interval)
	}
	a := s.StdDev / interval * c.z()
	return a * a, nil
}

// CentralLimitTheoremT replaces the normal quantile with the Student-t
// quantile at n-1 degrees of freedom, Δ = t_{1-δ/2,n-1}·σ/√n.
type CentralLimitTheoremT struct {
	errorRate float64
}

// NewCentralLimitTheoremT creates a t-corrected estimator.
func NewCentralLimitTheoremT(errorRate float64) (*CentralLimitTheoremT, error) {
	if err := checkErrorRate(errorRate); err != nil {
		return nil, err
	}
	return &CentralLimitTheoremT{errorRate: errorRate}, nil
}

func (c *CentralLimitTheoremT) Name() string { return NameCentralLimitTheoremT }

func (c *CentralLimitTheoremT) ErrorRate() float64 { return c.errorRate }

func studentsT(n int) distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
}

// P is the Student-t CDF at n-1 degrees of freedom of √n·(x̄-μ)/σ.
func (c *CentralLimitTheoremT) P(n int, sampleMean, mean, stddev float64) float64 {
	y := math.Sqrt(float64(n)) * (sampleMean - mean) / stddev
	return studentsT(n).CDF(y)
}

// ConfidenceInterval uses s.N (at least 2) and s.StdDev.
func (c *CentralLimitTheoremT) ConfidenceInterval(s Summary) (float64, error) {
	if s.N < 2 {
		return 0, fmt.Errorf("%w: clt_t needs n >= 2, got %d", ErrInvalidInput, s.N)
	}
	if s.StdDev < 0 {
		return 0, fmt.Errorf("%w: negative stddev %g", ErrInvalidInput, s.StdDev)
	}
	t := studentsT(s.N).Quantile(1.0 - c.errorRate/2)
	return finite(NameCentralLimitTheoremT, t*s.StdDev/math.Sqrt(float64(s.N)))
}

// NSamples always fails: the degrees of freedom depend on the unknown n.
// Use ConfidenceInterval over candidate n instead.
func (c *CentralLimitTheoremT) NSamples(float64, Summary) (float64, error) {
	return 0, fmt.Errorf("%w: %s n_samples depends on its own degrees of freedom", ErrUnsupported, NameCentralLimitTheoremT)
}
