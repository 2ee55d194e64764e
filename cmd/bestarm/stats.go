package main

import (
	"encoding/csv"
	"errors"
	"strconv"

	"github.com/fractal-lba/bestarm/internal/dataset"
	"github.com/fractal-lba/bestarm/internal/environment"
	"github.com/spf13/cobra"
)

// statsCmd prints each system's frozen statistics and the PAC sample
// complexity of the whole environment.
func statsCmd(opts *rootOptions) *cobra.Command {
	var epsilon float64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-system statistics and sample complexity",
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
			env, _, err := dataset.Build(ds, a.cfg.MinReward, a.cfg.MaxReward, nil)
			if err != nil {
				return err
			}

			cw := csv.NewWriter(a.out)
			if err := cw.Write([]string{"system", "mean", "rating", "stddev", "n"}); err != nil {
				return err
			}
			for _, s := range env.Systems() {
				if err := cw.Write([]string{
					s.ID,
					strconv.FormatFloat(s.SampleMean(), 'f', 4, 64),
					strconv.FormatFloat(s.DenormalizedSampleMean(), 'f', 4, 64),
					strconv.FormatFloat(s.SampleStdDev(), 'f', 4, 64),
					strconv.Itoa(s.TotalSamples()),
				}); err != nil {
					return err
				}
			}

			sc, err := env.SampleComplexity(epsilon)
			switch {
			case errors.Is(err, environment.ErrTooFewSystems):
				a.log.Warn("sample complexity skipped", "systems", len(env.IDs()))
			case err != nil:
				return err
			default:
				a.log.Info("sample complexity", "epsilon", epsilon, "samples", sc)
				if err := cw.Write([]string{"sample_complexity", strconv.FormatFloat(sc, 'f', 4, 64)}); err != nil {
					return err
				}
			}
			cw.Flush()
			return cw.Error()
		},
	}

	cmd.Flags().Float64Var(&epsilon, "epsilon", 0, "Tolerance ε added to the best mean")

	return cmd
}
