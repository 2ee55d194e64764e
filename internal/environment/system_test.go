package environment

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed+1)
}

func TestNewArmSystem_FrozenStats(t *testing.T) {
	s, err := NewArmSystem("sys", map[string][]float64{
		"p1": {1, 5},
		"p2": {3},
		"p3": {5, 1, 3},
	}, 1, 5, newSource(1))
	require.NoError(t, err)

	// normalized: 0, 1, 0.5, 1, 0, 0.5
	assert.Equal(t, 6, s.TotalSamples())
	assert.InDelta(t, 0.5, s.SampleMean(), 1e-12)
	assert.InDelta(t, math.Sqrt(1.0/6.0), s.SampleStdDev(), 1e-12) // population, divisor n
	assert.InDelta(t, 3.0, s.DenormalizedSampleMean(), 1e-12)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1, "p3": 3}, s.NSampleMap())
	assert.Equal(t, []string{"p1", "p2", "p3"}, s.ProbeIDs())

	// Pops never move the snapshot.
	_, err = s.PopSample("p3")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.SampleMean(), 1e-12)
	assert.Equal(t, 6, s.TotalSamples())
}

func TestNewArmSystem_Validation(t *testing.T) {
	_, err := NewArmSystem("sys", map[string][]float64{"p": {1}}, 5, 5, nil)
	assert.ErrorIs(t, err, ErrInvalidBounds)

	_, err = NewArmSystem("sys", map[string][]float64{"p": {}}, 1, 5, nil)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestNewArmSystem_CopiesPools(t *testing.T) {
	raw := map[string][]float64{"p": {1, 2, 3}}
	s, err := NewArmSystem("sys", raw, 0, 10, newSource(1))
	require.NoError(t, err)

	_, err = s.PopSample("p")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, raw["p"])
}

func TestArmSystem_PopSample(t *testing.T) {
	s, err := NewArmSystem("sys", map[string][]float64{"p": {1, 2, 5}}, 1, 5, newSource(1))
	require.NoError(t, err)

	r, err := s.PopSample("p")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12) // tail first: 5 -> 1.0
	assert.Equal(t, 2, s.NSample("p"))
	assert.Equal(t, 2, s.Remaining())

	r, err = s.PopSample("p")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, r, 1e-12)

	_, err = s.PopSample("p")
	require.NoError(t, err)
	assert.Equal(t, 0, s.NSample("p"))

	_, err = s.PopSample("p")
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, 0, s.NSample("p"))

	_, err = s.PopSample("missing")
	assert.ErrorIs(t, err, ErrUnknownProbe)
}

func TestArmSystem_RandomSampleIDDrainsExactly(t *testing.T) {
	s, err := NewArmSystem("sys", map[string][]float64{
		"a": {1, 2, 3, 4},
		"b": {2},
		"c": {},
		"d": {5, 5},
	}, 1, 5, newSource(7))
	require.NoError(t, err)

	draws := 0
	for {
		probe, ok := s.RandomSampleID()
		if !ok {
			break
		}
		require.Greater(t, s.NSample(probe), 0, "drew empty probe %s", probe)
		_, err := s.PopSample(probe)
		require.NoError(t, err)
		draws++
	}

	assert.Equal(t, 7, draws)
	assert.Equal(t, 0, s.Remaining())
	_, ok := s.RandomSampleID()
	assert.False(t, ok)
}

func TestArmSystem_RandomSampleIDProportional(t *testing.T) {
	pools := map[string][]float64{
		"heavy": make([]float64, 90),
		"light": make([]float64, 10),
	}
	s, err := NewArmSystem("sys", pools, 0, 1, newSource(42))
	require.NoError(t, err)

	const trials = 20000
	heavy := 0
	for i := 0; i < trials; i++ {
		probe, ok := s.RandomSampleID()
		require.True(t, ok)
		if probe == "heavy" {
			heavy++
		}
	}
	assert.InDelta(t, 0.9, float64(heavy)/trials, 0.02)
}

func TestArmSystem_SeededDrawsReproduce(t *testing.T) {
	pools := map[string][]float64{"a": {1, 2}, "b": {3, 4}, "c": {5}}

	run := func() []string {
		s, err := NewArmSystem("sys", pools, 1, 5, newSource(99))
		require.NoError(t, err)
		var seq []string
		for {
			probe, ok := s.RandomSampleID()
			if !ok {
				return seq
			}
			_, err := s.PopSample(probe)
			require.NoError(t, err)
			seq = append(seq, probe)
		}
	}

	assert.Equal(t, run(), run())
}

func TestArmSystem_LastRatingExhausts(t *testing.T) {
	s, err := NewArmSystem("sys", map[string][]float64{"only": {3}}, 1, 5, newSource(3))
	require.NoError(t, err)

	probe, ok := s.RandomSampleID()
	require.True(t, ok)
	assert.Equal(t, "only", probe)

	r, err := s.PopSample(probe)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, 1e-12)

	// exhaustion is terminal
	for i := 0; i < 3; i++ {
		_, ok = s.RandomSampleID()
		assert.False(t, ok)
	}
	assert.Equal(t, 0, s.Remaining())
	_, err = s.PopSample("only")
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestArmSystem_NoDrawWhileRemainingPositive(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		s, err := NewArmSystem("sys", map[string][]float64{
			"a": {1},
			"b": {},
			"c": {0, 1, 1},
		}, 0, 1, newSource(seed))
		require.NoError(t, err)

		draws := 0
		for {
			probe, ok := s.RandomSampleID()
			if !ok {
				break
			}
			require.Greater(t, s.NSample(probe), 0, "seed %d drew empty probe %s", seed, probe)
			_, err := s.PopSample(probe)
			require.NoError(t, err)
			draws++
		}
		assert.Equal(t, 4, draws, "seed %d", seed)
		assert.Equal(t, map[string]int{"a": 0, "b": 0, "c": 0}, s.NSampleMap())
	}
}
