package main

import (
	"fmt"
	"io"

	"github.com/fractal-lba/bestarm/internal/bound"
	"github.com/fractal-lba/bestarm/internal/config"
	"github.com/fractal-lba/bestarm/internal/dataset"
	"github.com/fractal-lba/bestarm/internal/metrics"
	"github.com/fractal-lba/bestarm/internal/report"
	"github.com/fractal-lba/bestarm/internal/store"
	"github.com/fractal-lba/bestarm/pkg/otel"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

// confidenceCmd computes every estimator's radius per system and the
// pairwise interval coverage counts.
func confidenceCmd(opts *rootOptions) *cobra.Command {
	var (
		errorRate    float64
		intervalsOut string
		coverageOut  string
	)

	cmd := &cobra.Command{
		Use:   "confidence",
		Short: "Compute confidence radii and coverage counts",
		Long: `Computes the Hoeffding, Bernoulli Chernoff, Bernoulli exact asymptotics,
CLT and Student-t radii for every system, then counts for each system how
many other systems' intervals overlap its own. Reports are reused from the
configured store when the same input, error rate and reward bounds were
seen before.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts, func(c *config.Config) {
				if cmd.Flags().Changed("delta") {
					c.ErrorRate = errorRate
				}
			})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			delta := a.cfg.ErrorRate

			ds, err := dataset.LoadVoiceMOSFile(opts.input)
			if err != nil {
				return err
			}
			a.log.Info("loaded ratings", "input", opts.input, "systems", len(ds.Order), "ratings", ds.Ratings(), "digest", ds.Digest)

			ctx, span := otel.StartSpan(ctx, "confidence", otel.RunAttributes(ds.Digest, delta, len(ds.Order))...)
			defer span.End()

			st, err := a.openStore()
			if err != nil {
				otel.RecordError(span, err, "open store")
				return err
			}
			if st != nil {
				defer st.Close()
			}
			key := store.Key(ds.Digest, delta, a.cfg.MinReward, a.cfg.MaxReward)

			var rep *report.Report
			if st != nil {
				rep, err = st.Get(ctx, key)
				if err != nil {
					otel.RecordError(span, err, "store get")
					return err
				}
				if rep != nil {
					a.metrics.ReportHits.Inc()
					otel.AddEvent(span, "store.hit", otel.AttrStoreHit.Bool(true))
					a.log.Info("report served from store", "key", key, "created_at", rep.CreatedAt)
				} else {
					a.metrics.ReportMisses.Inc()
				}
			}

			if rep == nil {
				rep, err = computeReport(a, span, ds, delta)
				if err != nil {
					otel.RecordError(span, err, "compute report")
					return err
				}
				if st != nil {
					if err := st.Put(ctx, key, rep, a.cfg.Store.TTL); err != nil {
						a.log.Warn("failed to store report", "key", key, "error", err)
					}
				}
			}

			if err := writeTo(intervalsOut, a.out, func(w io.Writer) error {
				return report.WriteIntervals(w, rep.Rows)
			}); err != nil {
				return fmt.Errorf("failed to write intervals: %w", err)
			}
			if coverageOut != "" {
				if err := writeTo(coverageOut, a.out, func(w io.Writer) error {
					return report.WriteCoverage(w, rep)
				}); err != nil {
					return fmt.Errorf("failed to write coverage: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64VarP(&errorRate, "delta", "d", 0.05, "Error rate δ in (0,1)")
	cmd.Flags().StringVarP(&intervalsOut, "out", "o", "", "Intervals CSV (default stdout)")
	cmd.Flags().StringVarP(&coverageOut, "coverage", "p", "", "Coverage counts CSV")

	return cmd
}

// tracedRadii records each radius in metrics and as an event on the run span.
type tracedRadii struct {
	metrics *metrics.Metrics
	span    trace.Span
}

func (t tracedRadii) ObserveRadius(estimator, system string, radius float64, err error) {
	t.metrics.ObserveRadius(estimator, system, radius, err)
	if err != nil {
		otel.RecordError(t.span, err, estimator+" radius for "+system)
		return
	}
	otel.AddEvent(t.span, "radius", otel.RadiusAttributes(system, estimator, radius)...)
}

func computeReport(a *app, span trace.Span, ds *dataset.Dataset, delta float64) (*report.Report, error) {
	env, _, err := dataset.Build(ds, a.cfg.MinReward, a.cfg.MaxReward, nil)
	if err != nil {
		return nil, err
	}

	ests, err := bound.All(delta)
	if err != nil {
		return nil, err
	}
	cached, memo, err := bound.NewCachedSet(ests, a.cfg.Cache.Size, a.cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	rows, err := report.Compute(env.IDs(), env.SampleStats(), cached, tracedRadii{metrics: a.metrics, span: span})
	if err != nil {
		return nil, err
	}

	ms := memo.Stats()
	a.log.Debug("radius memo", "hits", ms.Hits, "misses", ms.Misses, "size", ms.Size)

	return report.New(ds.Digest, delta, a.cfg.MinReward, a.cfg.MaxReward, cached, rows), nil
}
