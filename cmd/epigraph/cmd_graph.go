package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/simulation"
	"github.com/nvandessel/epigraph/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the contact graph after N days",
		Long: `Simulate --days days and output the contact graph in DOT (Graphviz),
JSON, or as the one-line title. --days 0 renders the initial population.

Examples:
  epigraph graph --days 10 | dot -Tsvg > day10.svg
  epigraph graph --days 30 --format json -o day30.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			days, _ := cmd.Flags().GetInt("days")
			if days < 0 {
				return fmt.Errorf("--days must be non-negative, got %d", days)
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger, trace := newLogger(cmd, settings)
			defer trace.Close()

			ctx, cancel := simulation.SignalContext(cmd.Context())
			defer cancel()

			seed := settings.ResolveSeed()
			ecfg, err := settings.EngineConfig()
			if err != nil {
				return err
			}
			engine, err := epidemic.NewEngine(ecfg, epidemic.NewSeededRand(seed))
			if err != nil {
				return err
			}
			engine.SetLogger(logger, trace.With(map[string]any{"seed": seed}))

			state, err := engine.Initialize()
			if err != nil {
				return err
			}
			for state.Day < days {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := engine.Update(state); err != nil {
					return err
				}
			}

			rendered, err := visualization.Render(state.Snapshot(), visualization.Format(format))
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(rendered)
				return err
			}
			if err := os.WriteFile(output, rendered, 0644); err != nil {
				return fmt.Errorf("write graph file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Graph for day %d written to %s\n", state.Day, output)
			return nil
		},
	}

	addScenarioFlags(cmd)
	cmd.Flags().Int("days", 0, "Days to simulate before rendering")
	cmd.Flags().String("format", string(visualization.FormatDOT), "Output format: dot, json, or text")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	return cmd
}
