package environment

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSystem is returned for a decision naming no system.
	ErrUnknownSystem = errors.New("unknown system")
	// ErrDuplicateSystem is returned when two systems share an id.
	ErrDuplicateSystem = errors.New("duplicate system id")
	// ErrTooFewSystems is returned by SampleComplexity with fewer than two systems.
	ErrTooFewSystems = errors.New("sample complexity needs at least two systems")
)

// Draw policies, used as the policy label of observed draws.
const (
	PolicyIndependent = "independent"
	PolicyPaired      = "paired"
)

// Observer receives draw outcomes. metrics.Metrics satisfies it.
type Observer interface {
	ObserveDraw(policy string, ok bool)
	ObservePop(system string)
}

// Stats is the frozen summary of one system.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	N      int     `json:"n"`
}

// Environment serves rewards from a fixed set of systems. Membership never
// changes after New; draws only deplete member pools. Environment is not safe
// for concurrent use.
type Environment struct {
	order    []string
	systems  map[string]*ArmSystem
	observer Observer
}

// Option configures an Environment.
type Option func(*Environment)

// WithObserver attaches an Observer notified of every draw.
func WithObserver(o Observer) Option {
	return func(e *Environment) {
		e.observer = o
	}
}

// New creates an environment over systems, keeping their order.
func New(systems []*ArmSystem, opts ...Option) (*Environment, error) {
	e := &Environment{
		order:   make([]string, 0, len(systems)),
		systems: make(map[string]*ArmSystem, len(systems)),
	}
	for _, s := range systems {
		if _, exists := e.systems[s.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSystem, s.ID)
		}
		e.order = append(e.order, s.ID)
		e.systems[s.ID] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// IDs returns system ids in registration order.
func (e *Environment) IDs() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Systems returns the member systems in registration order.
func (e *Environment) Systems() []*ArmSystem {
	out := make([]*ArmSystem, len(e.order))
	for i, id := range e.order {
		out[i] = e.systems[id]
	}
	return out
}

// System returns the member registered under id.
func (e *Environment) System(id string) (*ArmSystem, error) {
	s, ok := e.systems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, id)
	}
	return s, nil
}

func (e *Environment) lookup(decisions []string) ([]*ArmSystem, error) {
	out := make([]*ArmSystem, len(decisions))
	for i, d := range decisions {
		s, err := e.System(d)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (e *Environment) observe(policy string, ok bool) {
	if e.observer != nil {
		e.observer.ObserveDraw(policy, ok)
	}
}

func (e *Environment) pop(systems []*ArmSystem, probes []string) ([]float64, error) {
	rewards := make([]float64, len(systems))
	for i, s := range systems {
		r, err := s.PopSample(probes[i])
		if err != nil {
			return nil, err
		}
		rewards[i] = r
		if e.observer != nil {
			e.observer.ObservePop(s.ID)
		}
	}
	return rewards, nil
}

// RandomReward draws one probe per system independently, then pops one
// reward per system at its own probe. Every probe is drawn before any pop.
// ok is false, with nothing popped, when any system has run dry.
//
// decisions must not repeat an id.
func (e *Environment) RandomReward(decisions []string) ([]float64, bool, error) {
	systems, err := e.lookup(decisions)
	if err != nil {
		return nil, false, err
	}

	probes := make([]string, len(systems))
	for i, s := range systems {
		probe, ok := s.RandomSampleID()
		if !ok {
			e.observe(PolicyIndependent, false)
			return nil, false, nil
		}
		probes[i] = probe
	}

	rewards, err := e.pop(systems, probes)
	if err != nil {
		return nil, false, err
	}
	e.observe(PolicyIndependent, true)
	return rewards, true, nil
}

// RandomRewardFromSameSampleID pops one reward per system, all at the same
// probe. Each system proposes a candidate probe; a candidate scores the sum of
// remaining counts over the requested systems, or zero if any of them has
// nothing left at that probe. The highest scoring candidate wins, the
// earliest on ties. ok is false when every candidate scores zero.
//
// decisions must not repeat an id.
func (e *Environment) RandomRewardFromSameSampleID(decisions []string) ([]float64, bool, error) {
	systems, err := e.lookup(decisions)
	if err != nil {
		return nil, false, err
	}

	candidates := make([]string, 0, len(systems))
	for _, s := range systems {
		if probe, ok := s.RandomSampleID(); ok {
			candidates = append(candidates, probe)
		}
	}

	best := -1
	bestScore := 0
	totalScore := 0
	for i, probe := range candidates {
		score := pooledCount(systems, probe)
		totalScore += score
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	if totalScore == 0 {
		e.observe(PolicyPaired, false)
		return nil, false, nil
	}

	probes := make([]string, len(systems))
	for i := range probes {
		probes[i] = candidates[best]
	}
	rewards, err := e.pop(systems, probes)
	if err != nil {
		return nil, false, err
	}
	e.observe(PolicyPaired, true)
	return rewards, true, nil
}

// pooledCount sums the remaining counts at probe, or returns 0 if any
// system has none left there.
func pooledCount(systems []*ArmSystem, probe string) int {
	sum := 0
	for _, s := range systems {
		n := s.NSample(probe)
		if n == 0 {
			return 0
		}
		sum += n
	}
	return sum
}

// SampleComplexity returns the PAC lower-bound sample count for
// identifying the best system within epsilon, from the frozen means:
//
//	sum over m in others ∪ {second}: 1 / (2 (best + epsilon - m)^2)
//
// The second best mean appears twice in the sum.
func (e *Environment) SampleComplexity(epsilon float64) (float64, error) {
	if len(e.order) < 2 {
		return 0, fmt.Errorf("%w: have %d", ErrTooFewSystems, len(e.order))
	}

	means := make([]float64, len(e.order))
	for i, id := range e.order {
		means[i] = e.systems[id].SampleMean()
	}

	bestIdx := argmax(means)
	bestMean := means[bestIdx]

	withoutBest := make([]float64, 0, len(means))
	withoutBest = append(withoutBest, means[:bestIdx]...)
	withoutBest = append(withoutBest, means[bestIdx+1:]...)
	secondMean := withoutBest[argmax(withoutBest)]

	terms := append(withoutBest, secondMean)
	sc := 0.0
	for _, m := range terms {
		gap := bestMean + epsilon - m
		sc += 1.0 / (2.0 * gap * gap)
	}
	return sc, nil
}

// argmax returns the first index of the maximum value.
func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

// SampleStats returns the frozen summary of every system. Pops do not
// affect it.
func (e *Environment) SampleStats() map[string]Stats {
	out := make(map[string]Stats, len(e.systems))
	for id, s := range e.systems {
		out[id] = Stats{
			Mean:   s.SampleMean(),
			StdDev: s.SampleStdDev(),
			N:      s.TotalSamples(),
		}
	}
	return out
}
