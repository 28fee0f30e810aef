package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/epigraph/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `List, show, export, import and delete runs recorded by 'epigraph run'.

Runs can be referred to by a unique prefix of their id.

Examples:
  epigraph history list --limit 5
  epigraph history show 3f2a
  epigraph history export 3f2a -o run.jsonl
  epigraph history import run.jsonl`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryExportCmd(),
		newHistoryImportCmd(),
		newHistoryDeleteCmd(),
	)

	return cmd
}

// withStore loads settings, opens the run store and hands it to fn.
func withStore(cmd *cobra.Command, fn func(rs store.RunStore) error) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	rs, err := openStore(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer rs.Close()
	return fn(rs)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			return withStore(cmd, func(rs store.RunStore) error {
				runs, err := rs.Runs(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("listing runs: %w", err)
				}

				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"runs":  runs,
						"count": len(runs),
					})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
					return nil
				}
				return printRunTable(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func printRunTable(w io.Writer, runs []store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPOLICY\tPOP\tDAYS\tHEALTHY\tRECOVERED\tDEAD")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%d\t%d\t%d\t%d\t%d\n",
			shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Isolation, r.Admission, r.Population, r.LastDay,
			r.Final.Healthy, r.Final.Recovered, r.Final.Dead)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the day-by-day trajectory of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(rs store.RunStore) error {
				run, err := rs.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				days, err := rs.Days(cmd.Context(), run.ID)
				if err != nil {
					return fmt.Errorf("loading trajectory: %w", err)
				}

				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"run":  run,
						"days": days,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s\n", run.ID)
				fmt.Fprintf(out, "  created:    %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  policy:     isolation=%s admission=%s\n", run.Isolation, run.Admission)
				fmt.Fprintf(out, "  population: %d\n", run.Population)
				fmt.Fprintf(out, "  seed:       %d\n", run.Seed)
				fmt.Fprintln(out)

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(tw, "DAY\tHEALTHY\tINFECTED\tRECOVERED\tDEAD\tIN HOSPITAL\tNEW CASES\t")
				for _, d := range days {
					fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
						d.Day, d.Counters.Healthy, d.Counters.Infected, d.Counters.Recovered,
						d.Counters.Dead, d.Occupied, d.Events.Infections)
				}
				return tw.Flush()
			})
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			return withStore(cmd, func(rs store.RunStore) error {
				if output == "" {
					return store.ExportJSONL(cmd.Context(), rs, args[0], cmd.OutOrStdout())
				}

				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := store.ExportJSONL(cmd.Context(), rs, args[0], f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Run exported to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	return cmd
}

func newHistoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a run exported with 'history export'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			return withStore(cmd, func(rs store.RunStore) error {
				run, err := store.ImportJSONL(cmd.Context(), rs, f)
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"status": "imported",
						"run_id": run.ID,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported run %s (%d days)\n", run.ID, run.LastDay+1)
				return nil
			})
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(rs store.RunStore) error {
				run, err := rs.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := rs.DeleteRun(cmd.Context(), run.ID); err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"status": "deleted",
						"run_id": run.ID,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
				return nil
			})
		},
	}
}
