// Package report turns per-system statistics into confidence intervals and
// counts, for each estimator, how many other systems each system cannot be
// separated from.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fractal-lba/bestarm/internal/bound"
	"github.com/fractal-lba/bestarm/internal/environment"
)

// RadiusObserver is told about every radius computation.
type RadiusObserver interface {
	ObserveRadius(estimator, system string, radius float64, err error)
}

// Row is one system's confidence radii, one per estimator.
type Row struct {
	System  string        `json:"system"`
	Summary bound.Summary `json:"summary"`
	Radii   []float64     `json:"radii"`
}

// Report is everything one confidence run produces.
type Report struct {
	Digest     string    `json:"digest"`
	ErrorRate  float64   `json:"error_rate"`
	MinReward  float64   `json:"min_reward"`
	MaxReward  float64   `json:"max_reward"`
	Estimators []string  `json:"estimators"`
	Rows       []Row     `json:"rows"`
	Coverage   [][]int   `json:"coverage"` // [estimator][row]
	CreatedAt  time.Time `json:"created_at"`
}

// Compute builds one row per system in order. The first failing radius
// aborts the computation.
func Compute(order []string, stats map[string]environment.Stats, estimators []bound.Estimator, obs RadiusObserver) ([]Row, error) {
	rows := make([]Row, 0, len(order))
	for _, id := range order {
		st, ok := stats[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", environment.ErrUnknownSystem, id)
		}
		s := bound.Summary{N: st.N, Mean: st.Mean, StdDev: st.StdDev}

		row := Row{System: id, Summary: s, Radii: make([]float64, len(estimators))}
		for i, est := range estimators {
			r, err := est.ConfidenceInterval(s)
			if obs != nil {
				obs.ObserveRadius(est.Name(), id, r, err)
			}
			if err != nil {
				return nil, fmt.Errorf("%s for system %s: %w", est.Name(), id, err)
			}
			row.Radii[i] = r
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CountCoverage returns, per estimator and per row, the number of other rows
// whose interval overlaps it. Against a lower mean the row's lower end is
// compared with the other's upper end; otherwise the other's lower end is
// compared with the row's upper end.
func CountCoverage(rows []Row, estimators int) [][]int {
	counts := make([][]int, estimators)
	for e := 0; e < estimators; e++ {
		counts[e] = make([]int, len(rows))
		for i, ri := range rows {
			mi, ci := ri.Summary.Mean, ri.Radii[e]
			lower, upper := mi-ci, mi+ci
			n := 0
			for j, rj := range rows {
				if i == j {
					continue
				}
				mj, cj := rj.Summary.Mean, rj.Radii[e]
				var covered bool
				if mi > mj {
					covered = lower <= mj+cj
				} else {
					covered = mj-cj <= upper
				}
				if covered {
					n++
				}
			}
			counts[e][i] = n
		}
	}
	return counts
}

// New assembles a report over rewards normalized from [minReward, maxReward].
func New(digest string, errorRate, minReward, maxReward float64, estimators []bound.Estimator, rows []Row) *Report {
	names := make([]string, len(estimators))
	for i, e := range estimators {
		names[i] = e.Name()
	}
	return &Report{
		Digest:     digest,
		ErrorRate:  errorRate,
		MinReward:  minReward,
		MaxReward:  maxReward,
		Estimators: names,
		Rows:       rows,
		Coverage:   CountCoverage(rows, len(estimators)),
		CreatedAt:  time.Now().UTC(),
	}
}

// WriteIntervals writes system,mean,radius... with three decimals.
func WriteIntervals(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	for _, r := range rows {
		rec := make([]string, 0, 2+len(r.Radii))
		rec = append(rec, r.System, strconv.FormatFloat(r.Summary.Mean, 'f', 3, 64))
		for _, c := range r.Radii {
			rec = append(rec, strconv.FormatFloat(c, 'f', 3, 64))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write interval row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCoverage writes mean,count... with one count per estimator.
func WriteCoverage(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	for i, r := range rep.Rows {
		rec := make([]string, 0, 1+len(rep.Coverage))
		rec = append(rec, strconv.FormatFloat(r.Summary.Mean, 'f', -1, 64))
		for e := range rep.Coverage {
			rec = append(rec, strconv.Itoa(rep.Coverage[e][i]))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write coverage row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
