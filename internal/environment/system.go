package environment

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidBounds is returned when max <= min.
	ErrInvalidBounds = errors.New("reward bounds must satisfy min < max")
	// ErrEmptyPool is returned when a system is built without any reward.
	ErrEmptyPool = errors.New("system has no rewards")
	// ErrUnknownProbe is returned for a probe id the system never held.
	ErrUnknownProbe = errors.New("unknown probe id")
	// ErrPoolExhausted is returned when popping from a probe with no
	// remaining rewards.
	ErrPoolExhausted = errors.New("probe pool exhausted")
)

// ArmSystem owns one competitor's finite pool of ratings, partitioned by
// probe id. Pools only shrink. The summary statistics are computed once at
// construction and never recomputed.
type ArmSystem struct {
	ID string

	minReward float64
	maxReward float64

	probeIDs  []string // sorted, fixes the categorical index of each probe
	probeIdx  map[string]int
	pools     map[string][]float64
	remaining map[string]int
	total     int // sum of remaining

	sampler distuv.Categorical

	// Frozen snapshot over normalized rewards
	sampleMean   float64
	sampleStdDev float64
	totalSamples int
}

// NewArmSystem builds a system from probe id -> raw rewards. Rewards are
// normalized into [0, 1] with (x - min) / (max - min). The pools are copied,
// the caller's slices are not mutated.
//
// src drives the probe draws. A nil src seeds a PCG source from the clock.
func NewArmSystem(id string, samples map[string][]float64, minReward, maxReward float64, src rand.Source) (*ArmSystem, error) {
	if !(maxReward > minReward) {
		return nil, fmt.Errorf("%w: system %s [%g, %g]", ErrInvalidBounds, id, minReward, maxReward)
	}
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1)
	}

	s := &ArmSystem{
		ID:        id,
		minReward: minReward,
		maxReward: maxReward,
		probeIDs:  make([]string, 0, len(samples)),
		probeIdx:  make(map[string]int, len(samples)),
		pools:     make(map[string][]float64, len(samples)),
		remaining: make(map[string]int, len(samples)),
	}

	for probe := range samples {
		s.probeIDs = append(s.probeIDs, probe)
	}
	sort.Strings(s.probeIDs)

	weights := make([]float64, len(s.probeIDs))
	normalized := make([]float64, 0)
	for i, probe := range s.probeIDs {
		raw := samples[probe]
		pool := make([]float64, len(raw))
		copy(pool, raw)

		s.probeIdx[probe] = i
		s.pools[probe] = pool
		s.remaining[probe] = len(pool)
		s.total += len(pool)
		weights[i] = float64(len(pool))

		for _, r := range pool {
			normalized = append(normalized, s.Normalize(r))
		}
	}

	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPool, id)
	}

	mean, variance := stat.PopMeanVariance(normalized, nil)
	s.sampleMean = mean
	s.sampleStdDev = math.Sqrt(variance)
	s.totalSamples = len(normalized)
	s.sampler = distuv.NewCategorical(weights, src)

	return s, nil
}

// Normalize maps a raw reward into [0, 1].
func (s *ArmSystem) Normalize(reward float64) float64 {
	return (reward - s.minReward) / (s.maxReward - s.minReward)
}

// Denormalize is the inverse of Normalize.
func (s *ArmSystem) Denormalize(reward float64) float64 {
	return reward*(s.maxReward-s.minReward) + s.minReward
}

// SampleMean returns the frozen normalized mean.
func (s *ArmSystem) SampleMean() float64 {
	return s.sampleMean
}

// SampleStdDev returns the frozen population standard deviation of the
// normalized rewards.
func (s *ArmSystem) SampleStdDev() float64 {
	return s.sampleStdDev
}

// TotalSamples returns the number of rewards held at construction.
func (s *ArmSystem) TotalSamples() int {
	return s.totalSamples
}

// DenormalizedSampleMean returns the frozen mean on the raw reward scale.
func (s *ArmSystem) DenormalizedSampleMean() float64 {
	return s.Denormalize(s.sampleMean)
}

// ProbeIDs returns the probe ids in draw order.
func (s *ArmSystem) ProbeIDs() []string {
	out := make([]string, len(s.probeIDs))
	copy(out, s.probeIDs)
	return out
}

// NSample returns the live remaining count for a probe. Unknown probes have
// nothing remaining.
func (s *ArmSystem) NSample(probe string) int {
	return s.remaining[probe]
}

// NSampleMap returns a copy of the live remaining counts.
func (s *ArmSystem) NSampleMap() map[string]int {
	out := make(map[string]int, len(s.remaining))
	for k, v := range s.remaining {
		out[k] = v
	}
	return out
}

// Remaining returns the total number of rewards still available.
func (s *ArmSystem) Remaining() int {
	return s.total
}

// RandomSampleID draws a probe id with probability proportional to its
// remaining count. ok is false iff nothing remains.
func (s *ArmSystem) RandomSampleID() (string, bool) {
	if s.total == 0 {
		return "", false
	}
	for {
		probe := s.probeIDs[int(s.sampler.Rand())]
		// A zero-weight index can only come back on an exact zero uniform.
		if s.remaining[probe] > 0 {
			return probe, true
		}
	}
}

// PopSample removes the most recently added reward of a probe and returns it
// normalized.
func (s *ArmSystem) PopSample(probe string) (float64, error) {
	i, ok := s.probeIdx[probe]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownProbe, s.ID, probe)
	}
	if s.remaining[probe] == 0 {
		return 0, fmt.Errorf("%w: %s/%s", ErrPoolExhausted, s.ID, probe)
	}

	s.remaining[probe]--
	s.total--
	// Categorical rejects an all-zero weight vector. Once the system is
	// empty RandomSampleID never consults the sampler again.
	if s.total > 0 {
		s.sampler.Reweight(i, float64(s.remaining[probe]))
	}

	pool := s.pools[probe]
	reward := pool[len(pool)-1]
	s.pools[probe] = pool[:len(pool)-1]

	return s.Normalize(reward), nil
}
