package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fractal-lba/bestarm/internal/bound"
	"github.com/fractal-lba/bestarm/internal/environment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEstimator struct {
	name   string
	radius float64
	err    error
}

func (f fixedEstimator) Name() string       { return f.name }
func (f fixedEstimator) ErrorRate() float64 { return 0.05 }
func (f fixedEstimator) ConfidenceInterval(bound.Summary) (float64, error) {
	return f.radius, f.err
}
func (f fixedEstimator) NSamples(float64, bound.Summary) (float64, error) {
	return 0, bound.ErrUnsupported
}

type radiusLog struct {
	calls  int
	errors int
}

func (l *radiusLog) ObserveRadius(_, _ string, _ float64, err error) {
	l.calls++
	if err != nil {
		l.errors++
	}
}

func rows(radii ...[]float64) []Row {
	means := []float64{0.9, 0.7, 0.5}
	out := make([]Row, len(means))
	for i, m := range means {
		out[i] = Row{System: string(rune('A' + i)), Summary: bound.Summary{Mean: m, N: 10}}
		for _, r := range radii {
			out[i].Radii = append(out[i].Radii, r[i])
		}
	}
	return out
}

func TestCountCoverage(t *testing.T) {
	rs := rows(
		[]float64{0.05, 0.05, 0.05}, // disjoint
		[]float64{0.15, 0.15, 0.15}, // neighbours overlap
		[]float64{0.5, 0.01, 0.01},  // wide top interval swallows both
	)

	counts := CountCoverage(rs, 3)
	assert.Equal(t, []int{0, 0, 0}, counts[0])
	assert.Equal(t, []int{1, 2, 1}, counts[1])
	assert.Equal(t, []int{2, 1, 1}, counts[2])
}

func TestCompute(t *testing.T) {
	h, err := bound.NewHoeffding(0.05)
	require.NoError(t, err)
	stats := map[string]environment.Stats{
		"top": {Mean: 0.8, StdDev: 0.1, N: 100},
		"low": {Mean: 0.4, StdDev: 0.2, N: 400},
	}
	log := &radiusLog{}

	out, err := Compute([]string{"top", "low"}, stats, []bound.Estimator{h, fixedEstimator{name: "fixed", radius: 0.3}}, log)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "top", out[0].System)
	assert.Equal(t, bound.Summary{N: 100, Mean: 0.8, StdDev: 0.1}, out[0].Summary)
	assert.Greater(t, out[0].Radii[0], out[1].Radii[0])
	assert.Equal(t, 0.3, out[1].Radii[1])
	assert.Equal(t, 4, log.calls)

	boom := errors.New("boom")
	_, err = Compute([]string{"top"}, stats, []bound.Estimator{fixedEstimator{name: "bad", err: boom}}, log)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, log.errors)

	_, err = Compute([]string{"missing"}, stats, []bound.Estimator{h}, nil)
	assert.ErrorIs(t, err, environment.ErrUnknownSystem)
}

func TestWriters(t *testing.T) {
	ests := []bound.Estimator{fixedEstimator{name: "a"}, fixedEstimator{name: "b"}}
	rs := rows([]float64{0.05, 0.05, 0.05}, []float64{0.15, 0.15, 0.15})
	rep := New("digest", 0.05, 1, 5, ests, rs)

	assert.Equal(t, []string{"a", "b"}, rep.Estimators)
	assert.Equal(t, 1.0, rep.MinReward)
	assert.Equal(t, 5.0, rep.MaxReward)
	assert.Equal(t, [][]int{{0, 0, 0}, {1, 2, 1}}, rep.Coverage)

	var buf bytes.Buffer
	require.NoError(t, WriteIntervals(&buf, rep.Rows))
	assert.Equal(t, "A,0.900,0.050,0.150\nB,0.700,0.050,0.150\nC,0.500,0.050,0.150\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCoverage(&buf, rep))
	assert.Equal(t, "0.9,0,1\n0.7,0,2\n0.5,0,1\n", buf.String())
}
