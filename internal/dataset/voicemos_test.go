package dataset

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `sysB,sysB-utt01.wav,4
sysA,sysA-utt01.wav,2
sysA,sysA-utt02.wav,3
sysB,sysB-utt02.wav,5
sysA,sysA-utt01.wav,1
sysC,sysC-utt01.wav,5
`

func TestLoadVoiceMOS(t *testing.T) {
	ds, err := LoadVoiceMOS(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"sysB", "sysA", "sysC"}, ds.Order)
	assert.Equal(t, []float64{2, 1}, ds.Pools["sysA"]["utt01"])
	assert.Equal(t, []float64{3}, ds.Pools["sysA"]["utt02"])
	assert.Equal(t, []float64{5}, ds.Pools["sysB"]["utt02"])
	assert.Equal(t, 6, ds.Ratings())
	assert.Len(t, ds.Digest, 64)

	again, err := LoadVoiceMOS(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, ds.Digest, again.Digest)
}

func TestLoadVoiceMOS_KeepsTrailingLetters(t *testing.T) {
	ds, err := LoadVoiceMOS(strings.NewReader("s,s-uttwav.wav,3\n"))
	require.NoError(t, err)
	assert.Contains(t, ds.Pools["s"], "uttwav")
}

func TestLoadVoiceMOS_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"too few fields", "sysA,sysA-utt01.wav\n"},
		{"no probe part", "sysA,utt01.wav,3\n"},
		{"bad score", "sysA,sysA-utt01.wav,great\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadVoiceMOS(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrMalformedRow)
		})
	}
}

func TestLoadVoiceMOSFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))

	ds, err := LoadVoiceMOSFile(path)
	require.NoError(t, err)
	assert.Len(t, ds.Order, 3)

	_, err = LoadVoiceMOSFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestBuild_OrdersByMean(t *testing.T) {
	ds, err := LoadVoiceMOS(strings.NewReader(sample))
	require.NoError(t, err)

	env, reg, err := Build(ds, DefaultMinReward, DefaultMaxReward, rand.NewPCG(1, 2))
	require.NoError(t, err)

	// sysC: 5 -> 1.0, sysB: 4.5 -> 0.875, sysA: 2 -> 0.25
	assert.Equal(t, []string{"sysC", "sysB", "sysA"}, env.IDs())
	assert.Equal(t, env.IDs(), reg.IDs())

	stats := env.SampleStats()
	assert.InDelta(t, 0.875, stats["sysB"].Mean, 1e-12)
	assert.Equal(t, 3, stats["sysA"].N)

	sysA, err := env.System("sysA")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sysA.DenormalizedSampleMean(), 1e-12)
}

func TestBuild_InvalidBounds(t *testing.T) {
	ds, err := LoadVoiceMOS(strings.NewReader(sample))
	require.NoError(t, err)

	_, _, err = Build(ds, 5, 1, nil)
	assert.Error(t, err)
}
