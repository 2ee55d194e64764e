package arm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArm_SampleMean(t *testing.T) {
	a := New("sys1")
	assert.Equal(t, 0, a.N())
	assert.Equal(t, 0.0, a.SampleMean())

	a.AddSamples(0.25, 0.5, 1.0)
	a.AddSample(0.25)

	assert.Equal(t, 4, a.N())
	assert.InDelta(t, 0.5, a.SampleMean(), 1e-12)
	assert.Equal(t, []float64{0.25, 0.5, 1.0, 0.25}, a.Samples())
}

func TestRegistry_Sample(t *testing.T) {
	r := NewRegistryFromIDs([]string{"a", "b", "c"})

	err := r.Sample([]string{"a", "b"}, []float64{1})
	require.ErrorIs(t, err, ErrShapeMismatch)

	require.NoError(t, r.Sample([]string{"a", "b", "a"}, []float64{1, 0, 0.5}))
	counts := r.AllNSamples()
	assert.Equal(t, map[string]int{"a": 2, "b": 1, "c": 0}, counts)
	assert.Equal(t, 3, r.T())

	means := r.AllSampleMean()
	assert.InDelta(t, 0.75, means["a"], 1e-12)
	assert.InDelta(t, 0.0, means["b"], 1e-12)
}

func TestRegistry_SampleUnknownRecordsNothing(t *testing.T) {
	r := NewRegistryFromIDs([]string{"a"})

	err := r.Sample([]string{"a", "zzz"}, []float64{1, 1})
	require.ErrorIs(t, err, ErrUnknownArm)

	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 0, a.N())
}

func TestRegistry_BestAndSuboptimal(t *testing.T) {
	tests := []struct {
		name  string
		data  map[string][]float64
		order []string
		best  string
	}{
		{
			name:  "distinct means",
			order: []string{"a", "b", "c"},
			data:  map[string][]float64{"a": {0.2}, "b": {0.9}, "c": {0.5}},
			best:  "b",
		},
		{
			name:  "tie goes to first registered",
			order: []string{"a", "b", "c"},
			data:  map[string][]float64{"a": {0.1}, "b": {0.7}, "c": {0.7}},
			best:  "b",
		},
		{
			name:  "all empty",
			order: []string{"x", "y"},
			data:  map[string][]float64{},
			best:  "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistryFromIDs(tt.order)
			for id, xs := range tt.data {
				a, err := r.Get(id)
				require.NoError(t, err)
				a.AddSamples(xs...)
			}

			assert.Equal(t, tt.best, r.BestArm().ID)

			sub := r.SuboptimalArms()
			assert.Len(t, sub, len(tt.order)-1)
			for _, a := range sub {
				assert.NotEqual(t, tt.best, a.ID)
			}
		})
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistryFromIDs([]string{"a", "b", "c", "d"})

	require.NoError(t, r.Remove("b"))
	assert.Equal(t, []string{"a", "c", "d"}, r.IDs())
	assert.Equal(t, 3, r.K())

	_, err := r.Get("b")
	assert.ErrorIs(t, err, ErrUnknownArm)
	assert.ErrorIs(t, r.Remove("b"), ErrUnknownArm)

	require.NoError(t, r.RemoveAll([]string{"a", "d"}))
	assert.Equal(t, []string{"c"}, r.IDs())
	assert.NotContains(t, r.AllSampleMean(), "a")

	assert.ErrorIs(t, r.RemoveAll([]string{"c", "nope"}), ErrUnknownArm)
	assert.Equal(t, 0, r.K())
	assert.Nil(t, r.BestArm())
}

func TestNewRegistry_DropsDuplicateIDs(t *testing.T) {
	first := New("a")
	r := NewRegistry([]*Arm{first, New("b"), New("a")})

	assert.Equal(t, 2, r.K())
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, first, got)
}
