package main

import (
	"encoding/csv"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/fractal-lba/bestarm/internal/dataset"
	"github.com/fractal-lba/bestarm/internal/environment"
	"github.com/fractal-lba/bestarm/pkg/otel"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// simulateCmd drives the environment uniformly: every round draws one reward
// for every arm and records it, until the pools run dry or the round limit
// is reached.
func simulateCmd(opts *rootOptions) *cobra.Command {
	var (
		rounds int
		paired bool
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay ratings round by round for every system",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			ds, err := dataset.LoadVoiceMOSFile(opts.input)
			if err != nil {
				return err
			}

			var src rand.Source
			if cmd.Flags().Changed("seed") {
				src = rand.NewPCG(seed, seed+1)
			}
			env, reg, err := dataset.Build(ds, a.cfg.MinReward, a.cfg.MaxReward, src, environment.WithObserver(a.metrics))
			if err != nil {
				return err
			}

			policy := environment.PolicyIndependent
			draw := env.RandomReward
			if paired {
				policy = environment.PolicyPaired
				draw = env.RandomRewardFromSameSampleID
			}

			ctx, span := otel.StartSpan(ctx, "simulate", otel.RunAttributes(ds.Digest, a.cfg.ErrorRate, len(ds.Order))...)
			span.SetAttributes(otel.AttrPolicy.String(policy))
			defer span.End()

			ids := reg.IDs()
			a.metrics.SimulateArms.Set(float64(reg.K()))
			progress := rate.Sometimes{First: 1, Interval: 2 * time.Second}

			done := 0
			for rounds <= 0 || done < rounds {
				if err := ctx.Err(); err != nil {
					return err
				}
				rewards, ok, err := draw(ids)
				if err != nil {
					otel.RecordError(span, err, "draw")
					return err
				}
				if !ok {
					a.log.Info("pools exhausted", "round", done)
					break
				}
				if err := reg.Sample(ids, rewards); err != nil {
					return err
				}
				done++
				a.metrics.SimulateRound.Inc()
				progress.Do(func() {
					a.log.Info("simulate progress", "round", done, "samples", reg.T())
				})
			}
			span.SetAttributes(otel.AttrRounds.Int(done))

			cw := csv.NewWriter(a.out)
			if err := cw.Write([]string{"system", "n", "mean", "rating"}); err != nil {
				return err
			}
			for _, arm := range reg.Arms() {
				sys, err := env.System(arm.ID)
				if err != nil {
					return err
				}
				if err := cw.Write([]string{
					arm.ID,
					strconv.Itoa(arm.N()),
					strconv.FormatFloat(arm.SampleMean(), 'f', 4, 64),
					strconv.FormatFloat(sys.Denormalize(arm.SampleMean()), 'f', 4, 64),
				}); err != nil {
					return err
				}
			}
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}

			if best := reg.BestArm(); best != nil {
				a.log.Info("simulation finished", "rounds", done, "best", best.ID, "mean", best.SampleMean())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 0, "Round limit (0 runs until a pool is exhausted)")
	cmd.Flags().BoolVar(&paired, "paired", false, "Draw every arm from the same probe")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible draws")

	return cmd
}
