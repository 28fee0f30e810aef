// Package config provides unified configuration loading for epigraph.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/population"
	"github.com/nvandessel/epigraph/internal/virus"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// DirName is the per-user directory holding config, trace and run store.
const DirName = ".epigraph"

// MemoryStore selects the in-memory run store instead of SQLite.
const MemoryStore = ":memory:"

var validate = validator.New()

// Config contains all epigraph configuration settings.
type Config struct {
	// Population is the initial number of persons.
	Population int `json:"population" yaml:"population" validate:"gte=0"`

	// Density is the number of meetings per cluster member per day.
	Density float64 `json:"density" yaml:"density" validate:"gte=0"`

	// PatientDensity and CarrierDensity are the initial shares of
	// symptomatic and asymptomatic infections.
	PatientDensity float64 `json:"patient_density" yaml:"patient_density" validate:"gte=0,lte=1"`
	CarrierDensity float64 `json:"carrier_density" yaml:"carrier_density" validate:"gte=0,lte=1"`

	// ClusterRange is the half-open range the daily cluster count is drawn from.
	ClusterRange [2]int `json:"cluster_range" yaml:"cluster_range" validate:"dive,gte=1"`

	// BedRate sizes the hospital as a share of the population.
	BedRate float64 `json:"bed_rate" yaml:"bed_rate" validate:"gte=0,lte=1"`

	IncubationPeriod int            `json:"incubation_period" yaml:"incubation_period" validate:"gte=1"`
	Recovery         RecoveryConfig `json:"recovery" yaml:"recovery"`
	DeathCeiling     int            `json:"death_ceiling" yaml:"death_ceiling" validate:"gte=1"`
	InfectionCap     int            `json:"infection_cap" yaml:"infection_cap" validate:"gte=1"`

	// Isolation and Admission name the intervention policies.
	Isolation string `json:"isolation" yaml:"isolation" validate:"oneof=none complete partial timely"`
	Admission string `json:"admission" yaml:"admission" validate:"oneof=none sequential severity"`

	// Seed fixes the random source. 0 seeds from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`

	// MaxDays bounds a run. StopWhenClear ends it early once no infections remain.
	MaxDays       int  `json:"max_days" yaml:"max_days" validate:"gte=1"`
	StopWhenClear bool `json:"stop_when_clear" yaml:"stop_when_clear"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// RecoveryConfig parameterizes the normal curve recovery is drawn from.
type RecoveryConfig struct {
	Mean   float64 `json:"mean" yaml:"mean" validate:"gt=0"`
	StdDev float64 `json:"stddev" yaml:"stddev" validate:"gt=0"`
}

// LoggingConfig configures epigraph's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "warn", "error",
	// "debug" or "trace". "debug" enables the JSONL trace in .epigraph/trace.jsonl.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=error warn info debug trace"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// StoreConfig configures where finished runs are kept.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means ~/.epigraph/runs.db;
	// ":memory:" keeps runs for the life of the process only.
	Path string `json:"path" yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint of long-running commands.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns a Config describing the reference scenario.
func Default() *Config {
	return &Config{
		Population:       300,
		Density:          2,
		PatientDensity:   0.1,
		CarrierDensity:   0.1,
		ClusterRange:     [2]int{10, 20},
		BedRate:          0.05,
		IncubationPeriod: 14,
		Recovery: RecoveryConfig{
			Mean:   30,
			StdDev: 15,
		},
		DeathCeiling:  51,
		InfectionCap:  9,
		Isolation:     epidemic.IsolationNone,
		Admission:     epidemic.AdmissionNone,
		MaxDays:       200,
		StopWhenClear: true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns ~/.epigraph.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.epigraph/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	if path, err := Path(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Store.Path = expandPath(config.Store.Path)
	return config, nil
}

// Save writes the configuration as YAML to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks field ranges and the cross-field constraints the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.ClusterRange[1] <= c.ClusterRange[0] {
		return fmt.Errorf("%w: cluster_range [%d, %d) is empty", ErrInvalid, c.ClusterRange[0], c.ClusterRange[1])
	}
	return nil
}

// EngineConfig projects the settings onto the simulation engine's config,
// resolving policy names.
func (c *Config) EngineConfig() (epidemic.Config, error) {
	if err := c.Validate(); err != nil {
		return epidemic.Config{}, err
	}
	isolation, err := epidemic.ParseIsolation(c.Isolation)
	if err != nil {
		return epidemic.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	admission, err := epidemic.ParseAdmission(c.Admission)
	if err != nil {
		return epidemic.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return epidemic.Config{
		Population: population.Params{
			Size:           c.Population,
			PatientDensity: c.PatientDensity,
			CarrierDensity: c.CarrierDensity,
			ClusterRange:   c.ClusterRange,
		},
		Virus: virus.Params{
			IncubationPeriod: c.IncubationPeriod,
			RecoveryMean:     c.Recovery.Mean,
			RecoveryStdDev:   c.Recovery.StdDev,
			DeathCeiling:     c.DeathCeiling,
			InfectionCap:     c.InfectionCap,
		},
		Density:   c.Density,
		BedRate:   c.BedRate,
		Isolation: isolation,
		Admission: admission,
	}, nil
}

// ResolveSeed returns Seed, or a clock-derived seed when Seed is 0. The
// returned value is what a run should record to be reproducible.
func (c *Config) ResolveSeed() uint64 {
	if c.Seed != 0 {
		return c.Seed
	}
	if seed := uint64(time.Now().UnixNano()); seed != 0 {
		return seed
	}
	return 1
}

// StorePath resolves the run store location.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}

// applyEnvOverrides applies EPIGRAPH_* environment variables. Unparseable
// numbers are reported rather than ignored.
func applyEnvOverrides(config *Config) error {
	for _, k := range keys {
		if k.env == "" {
			continue
		}
		v := os.Getenv(k.env)
		if v == "" {
			continue
		}
		if err := k.set(config, v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, k.env, err)
		}
	}
	return nil
}

// expandPath expands ${VAR} patterns and a leading ~/.
func expandPath(s string) string {
	if strings.Contains(s, "${") {
		s = os.Expand(s, os.Getenv)
	}
	if rest, ok := strings.CutPrefix(s, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, rest)
		}
	}
	return s
}
