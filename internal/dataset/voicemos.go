package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fractal-lba/bestarm/internal/arm"
	"github.com/fractal-lba/bestarm/internal/environment"
)

// ErrMalformedRow is returned for rows that do not match the ratings layout.
var ErrMalformedRow = errors.New("malformed ratings row")

// Default MOS bounds.
const (
	DefaultMinReward = 1.0
	DefaultMaxReward = 5.0
)

// Dataset is the ratings grouped by system, then by probe.
type Dataset struct {
	// Order lists systems by first appearance.
	Order []string
	Pools map[string]map[string][]float64
	// Digest is the hex SHA-256 of the raw input.
	Digest string
}

// Ratings returns the total number of ratings.
func (d *Dataset) Ratings() int {
	n := 0
	for _, probes := range d.Pools {
		for _, xs := range probes {
			n += len(xs)
		}
	}
	return n
}

// LoadVoiceMOSFile opens and parses a ratings file.
func LoadVoiceMOSFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ratings: %w", err)
	}
	defer f.Close()
	return LoadVoiceMOS(f)
}

// LoadVoiceMOS parses headerless rows of system,utterance,score as
// distributed with the VoiceMOS 2022 challenge. The probe id is the part of
// the utterance file name after the first '-', without the .wav suffix, so
// "sys64e2f-utt491a713.wav" becomes "utt491a713". Ratings keep row order
// within a probe.
func LoadVoiceMOS(r io.Reader) (*Dataset, error) {
	h := sha256.New()
	reader := csv.NewReader(io.TeeReader(r, h))
	reader.FieldsPerRecord = -1

	ds := &Dataset{Pools: make(map[string]map[string][]float64)}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedRow, line, len(record))
		}

		system := strings.TrimSpace(record[0])
		probe, err := probeID(record[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: score %q", ErrMalformedRow, line, record[2])
		}

		probes, ok := ds.Pools[system]
		if !ok {
			probes = make(map[string][]float64)
			ds.Pools[system] = probes
			ds.Order = append(ds.Order, system)
		}
		probes[probe] = append(probes[probe], score)
	}

	ds.Digest = hex.EncodeToString(h.Sum(nil))
	return ds, nil
}

func probeID(file string) (string, error) {
	parts := strings.Split(strings.TrimSpace(file), "-")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("utterance %q has no probe part", file)
	}
	return strings.TrimSuffix(parts[1], ".wav"), nil
}

// Build turns a dataset into systems ordered by descending frozen mean, the
// environment over them, and a registry with one arm per system in the same
// order. Systems with equal means keep their first-appearance order.
func Build(ds *Dataset, minReward, maxReward float64, src rand.Source, opts ...environment.Option) (*environment.Environment, *arm.Registry, error) {
	systems := make([]*environment.ArmSystem, 0, len(ds.Order))
	for _, id := range ds.Order {
		s, err := environment.NewArmSystem(id, ds.Pools[id], minReward, maxReward, src)
		if err != nil {
			return nil, nil, err
		}
		systems = append(systems, s)
	}

	sort.SliceStable(systems, func(i, j int) bool {
		return systems[i].SampleMean() > systems[j].SampleMean()
	})

	env, err := environment.New(systems, opts...)
	if err != nil {
		return nil, nil, err
	}
	return env, arm.NewRegistryFromIDs(env.IDs()), nil
}
