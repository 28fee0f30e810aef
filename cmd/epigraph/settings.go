package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nvandessel/epigraph/internal/config"
	"github.com/nvandessel/epigraph/internal/logging"
	"github.com/nvandessel/epigraph/internal/store"
)

// configKeyAnnotation marks a flag as an override for a config key.
const configKeyAnnotation = "epigraph_config_key"

// bindFlag ties an already registered flag to a config key.
func bindFlag(cmd *cobra.Command, flag, key string) {
	_ = cmd.Flags().SetAnnotation(flag, configKeyAnnotation, []string{key})
}

// addScenarioFlags registers the flags that override the scenario
// settings. Defaults shown are the built-in ones; unset flags keep the
// loaded config.
func addScenarioFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.Int("population", d.Population, "Number of persons")
	f.Float64("density", d.Density, "Meetings per cluster member per day")
	f.Float64("patient-density", d.PatientDensity, "Initial share of symptomatic persons")
	f.Float64("carrier-density", d.CarrierDensity, "Initial share of asymptomatic carriers")
	f.String("clusters", fmt.Sprintf("%d,%d", d.ClusterRange[0], d.ClusterRange[1]), "Daily cluster count range lo,hi (hi exclusive)")
	f.Float64("bed-rate", d.BedRate, "Hospital beds as a share of the population")
	f.String("isolation", d.Isolation, "Isolation policy: none, complete, partial, timely")
	f.String("admission", d.Admission, "Admission policy: none, sequential, severity")
	f.Uint64("seed", d.Seed, "Random seed (0 = from the clock)")

	for flag, key := range map[string]string{
		"population":      "population",
		"density":         "density",
		"patient-density": "patient_density",
		"carrier-density": "carrier_density",
		"clusters":        "cluster_range",
		"bed-rate":        "bed_rate",
		"isolation":       "isolation",
		"admission":       "admission",
		"seed":            "seed",
	} {
		bindFlag(cmd, flag, key)
	}
}

// addLimitFlags registers the flags bounding how long a run lasts.
func addLimitFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().Int("days", d.MaxDays, "Maximum number of simulated days")
	cmd.Flags().Bool("stop-when-clear", d.StopWhenClear, "Stop once no infected persons remain")
	bindFlag(cmd, "days", "max_days")
	bindFlag(cmd, "stop-when-clear", "stop_when_clear")
}

// loadSettings loads the config file named by --config (or the default
// location plus EPIGRAPH_* variables) and applies changed scenario flags.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		settings *config.Config
		err      error
	)
	if path != "" {
		settings, err = config.LoadFromFile(path)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var setErr error
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		keys := fl.Annotations[configKeyAnnotation]
		if setErr != nil || len(keys) == 0 {
			return
		}
		if err := settings.Set(keys[0], fl.Value.String()); err != nil {
			setErr = fmt.Errorf("--%s: %w", fl.Name, err)
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if err := settings.Set("logging.level", level); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// newLogger builds the stderr logger and, at debug level, the JSONL trace
// under ~/.epigraph.
func newLogger(cmd *cobra.Command, settings *config.Config) (*slog.Logger, *logging.TraceLog) {
	logger := logging.NewLogger(settings.Logging.Level, settings.Logging.Format, cmd.ErrOrStderr())
	dir, err := config.Dir()
	if err != nil {
		return logger, nil
	}
	return logger, logging.NewTraceLog(dir, settings.Logging.Level)
}

// openStore opens the run store named by the settings.
func openStore(ctx context.Context, settings *config.Config) (store.RunStore, error) {
	path, err := settings.StorePath()
	if err != nil {
		return nil, err
	}
	if path == config.MemoryStore {
		return store.NewInMemoryRunStore(), nil
	}
	s, err := store.NewSQLiteRunStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return s, nil
}
