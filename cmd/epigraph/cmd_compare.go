package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/simulation"
)

// compareRow is one line of `epigraph compare` output.
type compareRow struct {
	Variant      string            `json:"variant"`
	Seed         uint64            `json:"seed"`
	Final        epidemic.Counters `json:"final"`
	DaysToClear  int               `json:"days_to_clear"`
	PeakInfected int               `json:"peak_infected"`
	PeakDay      int               `json:"peak_day"`
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [variant...]",
		Short: "Compare isolation and admission policies side by side",
		Long: `Run the same scenario under several policy combinations concurrently and
print the outcome of each. Without arguments all twelve combinations of
isolation (none, complete, partial, timely) and admission (none,
sequential, severity) are run. Variants are named isolation/admission.

Each variant gets its own seed derived from the base seed; --same-seed
gives every variant the base seed so they start from the same population.

Examples:
  epigraph compare
  epigraph compare timely/severity partial/none --seed 42 --same-seed
  epigraph compare --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sameSeed, _ := cmd.Flags().GetBool("same-seed")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			variants := simulation.AllVariants()
			if len(args) > 0 {
				variants = make([]simulation.Variant, 0, len(args))
				for _, name := range args {
					iso, adm, ok := strings.Cut(name, "/")
					if !ok {
						return fmt.Errorf("variant %q: want isolation/admission", name)
					}
					v, err := simulation.ParseVariant(iso, adm)
					if err != nil {
						return err
					}
					variants = append(variants, v)
				}
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger, trace := newLogger(cmd, settings)
			defer trace.Close()

			ctx, cancel := simulation.SignalContext(cmd.Context())
			defer cancel()

			ecfg, err := settings.EngineConfig()
			if err != nil {
				return err
			}
			seed := settings.ResolveSeed()
			outcomes, err := simulation.Compare(ctx, ecfg, variants, simulation.CompareOptions{
				Seed:          seed,
				MaxDays:       settings.MaxDays,
				StopWhenClear: settings.StopWhenClear,
				Concurrency:   concurrency,
				SameSeed:      sameSeed,
				Logger:        logger,
			})
			if err != nil {
				return fmt.Errorf("comparison failed: %w", err)
			}

			rows := make([]compareRow, 0, len(outcomes))
			for _, o := range outcomes {
				peak, peakDay := o.Result.PeakInfected()
				rows = append(rows, compareRow{
					Variant:      o.Variant.Name(),
					Seed:         o.Seed,
					Final:        o.Result.Summary(),
					DaysToClear:  o.Result.DaysToClear,
					PeakInfected: peak,
					PeakDay:      peakDay,
				})
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"seed":       seed,
					"population": settings.Population,
					"variants":   rows,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Population %d, base seed %d, up to %d days\n\n", settings.Population, seed, settings.MaxDays)
			return printCompareTable(cmd.OutOrStdout(), rows)
		},
	}

	addScenarioFlags(cmd)
	addLimitFlags(cmd)
	cmd.Flags().Bool("same-seed", false, "Run every variant with the base seed")
	cmd.Flags().Int("concurrency", 0, "Maximum variants run at once (0 = GOMAXPROCS)")

	return cmd
}

func printCompareTable(w io.Writer, rows []compareRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tHEALTHY\tRECOVERED\tDEAD\tPEAK\tPEAK DAY\tCLEARED")
	for _, r := range rows {
		cleared := "-"
		if r.DaysToClear >= 0 {
			cleared = fmt.Sprintf("day %d", r.DaysToClear)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Variant, r.Final.Healthy, r.Final.Recovered, r.Final.Dead,
			r.PeakInfected, r.PeakDay, cleared)
	}
	return tw.Flush()
}
