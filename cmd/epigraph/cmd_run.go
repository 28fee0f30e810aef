package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/metrics"
	"github.com/nvandessel/epigraph/internal/simulation"
	"github.com/nvandessel/epigraph/internal/store"
	"github.com/nvandessel/epigraph/internal/visualization"
)

// runSummary is the --json output of `epigraph run`.
type runSummary struct {
	RunID        string                 `json:"run_id,omitempty"`
	Seed         uint64                 `json:"seed"`
	Isolation    string                 `json:"isolation"`
	Admission    string                 `json:"admission"`
	Population   int                    `json:"population"`
	Days         int                    `json:"days"`
	DaysToClear  int                    `json:"days_to_clear"`
	Final        epidemic.Counters      `json:"final"`
	PeakInfected int                    `json:"peak_infected"`
	PeakDay      int                    `json:"peak_day"`
	Beds         int                    `json:"beds"`
	Trajectory   []simulation.DayRecord `json:"trajectory,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one epidemic simulation",
		Long: `Simulate an epidemic day by day until no infected persons remain or the
day limit is reached. Flags override the loaded configuration.

The run is recorded in the run store unless --no-record is given, so its
trajectory can be inspected later with 'epigraph history show'.

Examples:
  epigraph run                                  # Reference scenario
  epigraph run --isolation timely --admission severity --seed 7
  epigraph run --every 10                       # Print a status line every 10 days
  epigraph run --serve localhost:8080 --delay 200ms --hold
  epigraph run --json --trajectory              # Full trajectory for agents`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noRecord, _ := cmd.Flags().GetBool("no-record")
			every, _ := cmd.Flags().GetInt("every")
			serve, _ := cmd.Flags().GetString("serve")
			hold, _ := cmd.Flags().GetBool("hold")
			delay, _ := cmd.Flags().GetDuration("delay")
			metricsOut, _ := cmd.Flags().GetString("metrics-out")
			withTrajectory, _ := cmd.Flags().GetBool("trajectory")

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

			m := metrics.New(nil)
			observers := []simulation.Observer{m}

			var runID string
			if !noRecord {
				rs, err := openStore(ctx, settings)
				if err != nil {
					return err
				}
				defer rs.Close()

				run, err := store.NewRun(settings.Isolation, settings.Admission, settings.Population, seed, settings)
				if err != nil {
					return err
				}
				run, err = rs.CreateRun(ctx, run)
				if err != nil {
					return fmt.Errorf("recording run: %w", err)
				}
				runID = run.ID
				observers = append(observers, store.NewRecorder(rs, run.ID))
			}
			engine.SetLogger(logger, trace.With(map[string]any{"run_id": runID, "seed": seed}))

			if every > 0 && !jsonOut {
				observers = append(observers, progressPrinter(cmd.OutOrStdout(), every))
			}

			if serve == "" {
				serve = settings.Metrics.Addr
			}
			var (
				srv    *visualization.Server
				srvErr chan error
			)
			srvCtx, stopServer := context.WithCancel(ctx)
			defer stopServer()
			if serve != "" {
				srv = visualization.NewServer()
				srv.Handle("/metrics", m.Handler())
				observers = append(observers, srv)

				srvErr = make(chan error, 1)
				go func() { srvErr <- srv.ListenAndServe(srvCtx, serve) }()
				logger.Info("serving snapshots", "addr", serve)
			}

			if delay > 0 {
				observers = append(observers, pacer(delay))
			}

			runner := simulation.NewRunner()
			runner.SetLogger(logger)
			res, runErr := runner.Run(ctx, engine, simulation.RunOptions{
				MaxDays:       settings.MaxDays,
				StopWhenClear: settings.StopWhenClear,
				Observers:     observers,
			})

			if srv != nil {
				if hold && runErr == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Simulation finished; serving %s until interrupted.\n", serve)
					<-ctx.Done()
				}
				stopServer()
				if err := <-srvErr; err != nil {
					logger.Warn("snapshot server failed", "error", err)
				}
			}
			if runErr != nil {
				return fmt.Errorf("simulation failed: %w", runErr)
			}

			if metricsOut != "" {
				if err := writeMetricsFile(m, metricsOut); err != nil {
					return err
				}
			}

			peak, peakDay := res.PeakInfected()
			summary := runSummary{
				RunID:        runID,
				Seed:         seed,
				Isolation:    settings.Isolation,
				Admission:    settings.Admission,
				Population:   settings.Population,
				Days:         res.Final.Day,
				DaysToClear:  res.DaysToClear,
				Final:        res.Final.Counters,
				PeakInfected: peak,
				PeakDay:      peakDay,
				Beds:         res.Final.Ward.Capacity,
			}
			if withTrajectory {
				summary.Trajectory = res.Trajectory
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printRunSummary(cmd.OutOrStdout(), summary, visualization.Title(res.Final.Snapshot()))
			return nil
		},
	}

	addScenarioFlags(cmd)
	addLimitFlags(cmd)
	cmd.Flags().Bool("no-record", false, "Do not store the run")
	cmd.Flags().Int("every", 0, "Print a status line every N days (0 = off)")
	cmd.Flags().String("serve", "", "Serve the live snapshot and /metrics on this address (default metrics.addr)")
	cmd.Flags().Bool("hold", false, "Keep serving after the run finishes until interrupted")
	cmd.Flags().Duration("delay", 0, "Pause between simulated days, e.g. 200ms")
	cmd.Flags().String("metrics-out", "", "Write final Prometheus metrics to this file")
	cmd.Flags().Bool("trajectory", false, "Include the day-by-day trajectory in JSON output")

	return cmd
}

// progressPrinter prints the title line every n days and on the last
// observed day of a cleared epidemic.
func progressPrinter(w io.Writer, n int) simulation.Observer {
	return simulation.ObserverFunc(func(_ context.Context, snap epidemic.Snapshot) error {
		if snap.Day%n == 0 || snap.Counters.Infected == 0 {
			fmt.Fprintln(w, visualization.Title(snap))
		}
		return nil
	})
}

// pacer slows a run down so a watcher can follow it.
func pacer(d time.Duration) simulation.Observer {
	return simulation.ObserverFunc(func(ctx context.Context, _ epidemic.Snapshot) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func writeMetricsFile(m *metrics.Metrics, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := m.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printRunSummary(w io.Writer, s runSummary, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Policy:        isolation=%s admission=%s\n", s.Isolation, s.Admission)
	fmt.Fprintf(w, "Seed:          %d\n", s.Seed)
	fmt.Fprintf(w, "Beds:          %d\n", s.Beds)
	fmt.Fprintf(w, "Peak infected: %d (day %d)\n", s.PeakInfected, s.PeakDay)
	if s.DaysToClear >= 0 {
		fmt.Fprintf(w, "Cleared:       day %d\n", s.DaysToClear)
	} else {
		fmt.Fprintf(w, "Cleared:       no (stopped on day %d)\n", s.Days)
	}
	fmt.Fprintf(w, "Final:         healthy=%d recovered=%d dead=%d\n", s.Final.Healthy, s.Final.Recovered, s.Final.Dead)
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:           %s\n", s.RunID)
	}
}
