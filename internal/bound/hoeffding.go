package bound

import (
	"fmt"
	"math"
)

// Hoeffding is the distribution-free bound for rewards in [0, 1]:
//
//	Δ = sqrt(ln(2/δ) / 2n)
type Hoeffding struct {
	errorRate float64
}

// NewHoeffding creates a Hoeffding estimator.
func NewHoeffding(errorRate float64) (*Hoeffding, error) {
	if err := checkErrorRate(errorRate); err != nil {
		return nil, err
	}
	return &Hoeffding{errorRate: errorRate}, nil
}

func (h *Hoeffding) Name() string       { return NameHoeffding }
func (h *Hoeffding) ErrorRate() float64 { return h.errorRate }

// P is the one-sided tail probability exp(-2nΔ²).
func (h *Hoeffding) P(n int, interval float64) float64 {
	return math.Exp(-2 * float64(n) * interval * interval)
}

// ConfidenceInterval only uses s.N.
func (h *Hoeffding) ConfidenceInterval(s Summary) (float64, error) {
	if s.N <= 0 {
		return 0, fmt.Errorf("%w: hoeffding needs n > 0, got %d", ErrInvalidInput, s.N)
	}
	return math.Sqrt(logTwoOverDelta(h.errorRate) / (2 * float64(s.N))), nil
}

// NSamples is the exact inverse of ConfidenceInterval.
func (h *Hoeffding) NSamples(interval float64, _ Summary) (float64, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %g", ErrInvalidInput, interval)
	}
	return logTwoOverDelta(h.errorRate) / (2.0 * interval * interval), nil
}
