package bound

import (
	"fmt"
	"math"

	"github.com/fractal-lba/bestarm/internal/rootfind"
)

const (
	radiusGuess   = 0.05
	nSamplesGuess = 1000
)

func solve(name string, f func(float64) float64, x0 float64) (float64, error) {
	x, err := rootfind.Secant(f, x0, rootfind.DefaultOptions())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrConvergence, name, err)
	}
	return finite(name, x)
}

func checkMean(name string, mu float64) error {
	if !(mu > 0 && mu < 1) {
		return fmt.Errorf("%w: %s needs a mean in (0, 1), got %g", ErrInvalidInput, name, mu)
	}
	return nil
}

// BernoulliChernoff is the Chernoff bound for a Bernoulli (or [0, 1]
// bounded) mean. The radius solves n·KL(μ∓Δ, μ) = ln(2/δ), taking the lower
// side while μ-Δ stays positive. A negative root is the upper-side solution
// n·KL(μ+|Δ|, μ) = ln(2/δ) and is reported by magnitude.
type BernoulliChernoff struct {
	errorRate float64
}

// NewBernoulliChernoff creates a Chernoff estimator.
func NewBernoulliChernoff(errorRate float64) (*BernoulliChernoff, error) {
	if err := checkErrorRate(errorRate); err != nil {
		return nil, err
	}
	return &BernoulliChernoff{errorRate: errorRate}, nil
}

func (b *BernoulliChernoff) Name() string { return NameBernoulliChernoff }

func (b *BernoulliChernoff) ErrorRate() float64 { return b.errorRate }

// P is the tail probability exp(-n·KL(x, μ)).
func (b *BernoulliChernoff) P(n int, x, mu float64) float64 {
	return math.Exp(-float64(n) * BernoulliKL(x, mu))
}

// ConfidenceInterval uses s.N and s.Mean.
func (b *BernoulliChernoff) ConfidenceInterval(s Summary) (float64, error) {
	if s.N <= 0 {
		return 0, fmt.Errorf("%w: chernoff needs n > 0, got %d", ErrInvalidInput, s.N)
	}
	mu := s.Mean
	n := float64(s.N)
	a := -logTwoOverDelta(b.errorRate)

	shift := func(delta float64) float64 {
		if mu-delta > 0 {
			return mu - delta
		}
		return mu + delta
	}
	f := func(delta float64) float64 {
		return n*BernoulliKL(shift(delta), mu) + a
	}

	delta, err := solve(NameBernoulliChernoff, f, radiusGuess)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, fmt.Errorf("%w: %s converged to a zero radius", ErrConvergence, NameBernoulliChernoff)
	}
	return math.Abs(delta), nil
}

// NSamples is ln(2/δ) / KL(μ-Δ, μ).
func (b *BernoulliChernoff) NSamples(interval float64, s Summary) (float64, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %g", ErrInvalidInput, interval)
	}
	kl := BernoulliKL(s.Mean-interval, s.Mean)
	if kl <= 0 {
		return 0, fmt.Errorf("%w: zero divergence at mean %g, interval %g", ErrInvalidInput, s.Mean, interval)
	}
	return finite(NameBernoulliChernoff, logTwoOverDelta(b.errorRate)/kl)
}

// BernoulliExactAsymptotics refines the Chernoff exponent with the
// sub-exponential prefactor of the binomial tail:
//
//	P(x) ≈ sqrt((1-x) / 2πxn) · μ/(μ-x) · exp(-n·KL(x, μ))
//
// and solves P(μ-Δ) = δ/2 in log space.
type BernoulliExactAsymptotics struct {
	errorRate float64
}

// NewBernoulliExactAsymptotics creates the refined Chernoff estimator.
func NewBernoulliExactAsymptotics(errorRate float64) (*BernoulliExactAsymptotics, error) {
	if err := checkErrorRate(errorRate); err != nil {
		return nil, err
	}
	return &BernoulliExactAsymptotics{errorRate: errorRate}, nil
}

func (b *BernoulliExactAsymptotics) Name() string { return NameBernoulliExactAsymptotics }

func (b *BernoulliExactAsymptotics) ErrorRate() float64 { return b.errorRate }

// P is the asymptotic lower-tail probability at x < μ.
func (b *BernoulliExactAsymptotics) P(n int, x, mu float64) float64 {
	nf := float64(n)
	pre := math.Sqrt((1 - x) / (2 * math.Pi * x * nf))
	return pre * mu / (mu - x) * math.Exp(-nf*BernoulliKL(x, mu))
}

// logEquation is ln(δ/2) - ln P(x) for sample count n.
func (b *BernoulliExactAsymptotics) logEquation(n, x, mu float64) float64 {
	a := -logTwoOverDelta(b.errorRate)
	c := -0.5 * math.Log(1-x)
	d := 0.5 * math.Log(2*math.Pi*x*n)
	e := -math.Log(mu) + math.Log(mu-x)
	return a + c + d + e + n*BernoulliKL(x, mu)
}

// ConfidenceInterval uses s.N and s.Mean, which must lie in (0, 1).
func (b *BernoulliExactAsymptotics) ConfidenceInterval(s Summary) (float64, error) {
	if s.N <= 0 {
		return 0, fmt.Errorf("%w: exact asymptotics needs n > 0, got %d", ErrInvalidInput, s.N)
	}
	if err := checkMean(NameBernoulliExactAsymptotics, s.Mean); err != nil {
		return 0, err
	}
	mu := s.Mean
	n := float64(s.N)

	f := func(delta float64) float64 {
		return b.logEquation(n, mu-delta, mu)
	}
	delta, err := solve(NameBernoulliExactAsymptotics, f, radiusGuess)
	if err != nil {
		return 0, err
	}
	if delta <= 0 {
		return 0, fmt.Errorf("%w: %s converged to non-positive radius %g", ErrConvergence, NameBernoulliExactAsymptotics, delta)
	}
	return delta, nil
}

// NSamples root-finds the sample count for a radius in (0, μ).
func (b *BernoulliExactAsymptotics) NSamples(interval float64, s Summary) (float64, error) {
	if err := checkMean(NameBernoulliExactAsymptotics, s.Mean); err != nil {
		return 0, err
	}
	if !(interval > 0 && interval < s.Mean) {
		return 0, fmt.Errorf("%w: interval must be in (0, %g), got %g", ErrInvalidInput, s.Mean, interval)
	}
	mu := s.Mean
	x := mu - interval

	f := func(n float64) float64 {
		return b.logEquation(n, x, mu)
	}
	return solve(NameBernoulliExactAsymptotics, f, nSamplesGuess)
}
