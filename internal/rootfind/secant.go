// Package rootfind solves scalar equations f(x) = 0 from an initial guess.
package rootfind

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotConverged is returned when the iteration fails to reach the
// tolerance, stalls, or produces a non-finite value.
var ErrNotConverged = errors.New("root finding did not converge")

// Options controls the secant iteration.
type Options struct {
	Tol     float64 // absolute step tolerance
	MaxIter int
}

// DefaultOptions matches the usual secant defaults: tol 1.48e-8, 50 iterations.
func DefaultOptions() Options {
	return Options{Tol: 1.48e-8, MaxIter: 50}
}

// Secant finds a root of f starting from x0. The second point is
// x0*(1+1e-4) ± 1e-4. It returns ErrNotConverged rather than an
// unconverged estimate.
func Secant(f func(float64) float64, x0 float64, opts Options) (float64, error) {
	if opts.Tol <= 0 {
		opts.Tol = DefaultOptions().Tol
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultOptions().MaxIter
	}

	const eps = 1e-4
	p0 := x0
	p1 := x0 * (1 + eps)
	if x0 >= 0 {
		p1 += eps
	} else {
		p1 -= eps
	}

	q0 := f(p0)
	q1 := f(p1)
	if math.Abs(q1) < math.Abs(q0) {
		p0, p1 = p1, p0
		q0, q1 = q1, q0
	}

	for iter := 0; iter < opts.MaxIter; iter++ {
		if q1 == q0 {
			return 0, fmt.Errorf("%w: flat secant at x=%g after %d iterations", ErrNotConverged, p1, iter)
		}

		var p float64
		if math.Abs(q1) > math.Abs(q0) {
			p = (-q0/q1*p1 + p0) / (1 - q0/q1)
		} else {
			p = (-q1/q0*p0 + p1) / (1 - q1/q0)
		}

		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, fmt.Errorf("%w: non-finite iterate after %d iterations", ErrNotConverged, iter)
		}
		if math.Abs(p-p1) < opts.Tol {
			return p, nil
		}

		p0, q0 = p1, q1
		p1 = p
		q1 = f(p1)
	}

	return 0, fmt.Errorf("%w: %d iterations, last x=%g", ErrNotConverged, opts.MaxIter, p1)
}
