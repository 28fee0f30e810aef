package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// key binds a dot-notation name to a Config field.
type key struct {
	name string
	env  string
	get  func(c *Config) any
	set  func(c *Config, v string) error
}

var keys = []key{
	intKey("population", "EPIGRAPH_POPULATION", func(c *Config) *int { return &c.Population }),
	floatKey("density", "EPIGRAPH_DENSITY", func(c *Config) *float64 { return &c.Density }),
	floatKey("patient_density", "EPIGRAPH_PATIENT_DENSITY", func(c *Config) *float64 { return &c.PatientDensity }),
	floatKey("carrier_density", "EPIGRAPH_CARRIER_DENSITY", func(c *Config) *float64 { return &c.CarrierDensity }),
	{
		name: "cluster_range",
		env:  "EPIGRAPH_CLUSTER_RANGE",
		get:  func(c *Config) any { return fmt.Sprintf("%d,%d", c.ClusterRange[0], c.ClusterRange[1]) },
		set: func(c *Config, v string) error {
			lo, hi, ok := strings.Cut(v, ",")
			if !ok {
				return fmt.Errorf("want lo,hi, got %q", v)
			}
			a, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return err
			}
			b, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return err
			}
			c.ClusterRange = [2]int{a, b}
			return nil
		},
	},
	floatKey("bed_rate", "EPIGRAPH_BED_RATE", func(c *Config) *float64 { return &c.BedRate }),
	intKey("incubation_period", "EPIGRAPH_INCUBATION_PERIOD", func(c *Config) *int { return &c.IncubationPeriod }),
	floatKey("recovery.mean", "EPIGRAPH_RECOVERY_MEAN", func(c *Config) *float64 { return &c.Recovery.Mean }),
	floatKey("recovery.stddev", "EPIGRAPH_RECOVERY_STDDEV", func(c *Config) *float64 { return &c.Recovery.StdDev }),
	intKey("death_ceiling", "EPIGRAPH_DEATH_CEILING", func(c *Config) *int { return &c.DeathCeiling }),
	intKey("infection_cap", "EPIGRAPH_INFECTION_CAP", func(c *Config) *int { return &c.InfectionCap }),
	stringKey("isolation", "EPIGRAPH_ISOLATION", func(c *Config) *string { return &c.Isolation }),
	stringKey("admission", "EPIGRAPH_ADMISSION", func(c *Config) *string { return &c.Admission }),
	{
		name: "seed",
		env:  "EPIGRAPH_SEED",
		get:  func(c *Config) any { return c.Seed },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			c.Seed = n
			return nil
		},
	},
	intKey("max_days", "EPIGRAPH_MAX_DAYS", func(c *Config) *int { return &c.MaxDays }),
	{
		name: "stop_when_clear",
		env:  "EPIGRAPH_STOP_WHEN_CLEAR",
		get:  func(c *Config) any { return c.StopWhenClear },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.StopWhenClear = b
			return nil
		},
	},
	stringKey("logging.level", "EPIGRAPH_LOG_LEVEL", func(c *Config) *string { return &c.Logging.Level }),
	stringKey("logging.format", "EPIGRAPH_LOG_FORMAT", func(c *Config) *string { return &c.Logging.Format }),
	stringKey("store.path", "EPIGRAPH_STORE_PATH", func(c *Config) *string { return &c.Store.Path }),
	stringKey("metrics.addr", "EPIGRAPH_METRICS_ADDR", func(c *Config) *string { return &c.Metrics.Addr }),
}

func intKey(name, env string, field func(*Config) *int) key {
	return key{
		name: name,
		env:  env,
		get:  func(c *Config) any { return *field(c) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name, env string, field func(*Config) *float64) key {
	return key{
		name: name,
		env:  env,
		get:  func(c *Config) any { return *field(c) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
	}
}

func stringKey(name, env string, field func(*Config) *string) key {
	return key{
		name: name,
		env:  env,
		get:  func(c *Config) any { return *field(c) },
		set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func lookup(name string) (key, bool) {
	for _, k := range keys {
		if k.name == name {
			return k, true
		}
	}
	return key{}, false
}

// Keys lists every dot-notation key in sorted order.
func Keys() []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.name)
	}
	sort.Strings(names)
	return names
}

// Get returns the value stored under a dot-notation key.
func (c *Config) Get(name string) (any, bool) {
	k, ok := lookup(name)
	if !ok {
		return nil, false
	}
	return k.get(c), true
}

// Set parses value into the field under a dot-notation key and validates
// the result. On failure the config is left unchanged.
func (c *Config) Set(name, value string) error {
	k, ok := lookup(name)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", name)
	}
	next := *c
	if err := k.set(&next, value); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Env returns the environment variable that overrides a key.
func Env(name string) string {
	if k, ok := lookup(name); ok {
		return k.env
	}
	return ""
}
