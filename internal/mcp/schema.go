package mcp

import (
	"time"

	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/simulation"
	"github.com/nvandessel/epigraph/internal/store"
)

// scenario holds the knobs shared by the simulation tools. Zero values fall
// back to the server's configuration.
type scenario struct {
	Population int
	Days       int
	Isolation  string
	Admission  string
	Seed       uint64
	BedRate    *float64
}

// SimulateInput defines the input for the epigraph_simulate tool.
type SimulateInput struct {
	Population int      `json:"population,omitempty" jsonschema:"Number of persons (default from config)"`
	Days       int      `json:"days,omitempty" jsonschema:"Maximum number of simulated days (default from config)"`
	Isolation  string   `json:"isolation,omitempty" jsonschema:"Isolation policy: none, complete, partial or timely"`
	Admission  string   `json:"admission,omitempty" jsonschema:"Hospital admission policy: none, sequential or severity"`
	Seed       uint64   `json:"seed,omitempty" jsonschema:"Random seed; 0 picks one from the clock"`
	BedRate    *float64 `json:"bed_rate,omitempty" jsonschema:"Hospital beds as a share of the population (0 to 1)"`
	Record     bool     `json:"record,omitempty" jsonschema:"Store the run so it can be listed with epigraph_history"`
	Trajectory bool     `json:"trajectory,omitempty" jsonschema:"Include the per-day counters in the result"`
}

func (in SimulateInput) scenario() scenario {
	return scenario{in.Population, in.Days, in.Isolation, in.Admission, in.Seed, in.BedRate}
}

// SimulateOutput defines the output for the epigraph_simulate tool.
type SimulateOutput struct {
	RunID        string                 `json:"run_id,omitempty" jsonschema:"ID of the stored run (when recorded)"`
	Seed         uint64                 `json:"seed" jsonschema:"Seed the run used"`
	Title        string                 `json:"title" jsonschema:"Summary line of the final day"`
	Days         int                    `json:"days" jsonschema:"Number of days simulated"`
	DaysToClear  int                    `json:"days_to_clear" jsonschema:"First day without infected persons, -1 if never"`
	Final        epidemic.Counters      `json:"final" jsonschema:"Counters of the final day"`
	PeakInfected int                    `json:"peak_infected" jsonschema:"Highest number of infected persons on any day"`
	PeakDay      int                    `json:"peak_day" jsonschema:"Day of the infection peak"`
	Beds         int                    `json:"beds" jsonschema:"Hospital capacity"`
	Trajectory   []simulation.DayRecord `json:"trajectory,omitempty" jsonschema:"Per-day counters (when requested)"`
}

// CompareInput defines the input for the epigraph_compare tool.
type CompareInput struct {
	Population int    `json:"population,omitempty" jsonschema:"Number of persons (default from config)"`
	Days       int    `json:"days,omitempty" jsonschema:"Maximum number of simulated days (default from config)"`
	Seed       uint64 `json:"seed,omitempty" jsonschema:"Base seed; each policy combination derives its own"`
	SameSeed   bool   `json:"same_seed,omitempty" jsonschema:"Run every combination from the same population and contact draws"`
}

// VariantSummary is one row of a comparison.
type VariantSummary struct {
	Variant      string            `json:"variant" jsonschema:"isolation/admission"`
	Seed         uint64            `json:"seed"`
	Final        epidemic.Counters `json:"final"`
	DaysToClear  int               `json:"days_to_clear"`
	PeakInfected int               `json:"peak_infected"`
	PeakDay      int               `json:"peak_day"`
}

// CompareOutput defines the output for the epigraph_compare tool.
type CompareOutput struct {
	Seed     uint64           `json:"seed" jsonschema:"Base seed of the comparison"`
	Variants []VariantSummary `json:"variants" jsonschema:"One summary per policy combination"`
}

// GraphInput defines the input for the epigraph_graph tool.
type GraphInput struct {
	Population int      `json:"population,omitempty" jsonschema:"Number of persons (default from config)"`
	Days       int      `json:"days,omitempty" jsonschema:"Maximum number of simulated days (default from config)"`
	Isolation  string   `json:"isolation,omitempty" jsonschema:"Isolation policy: none, complete, partial or timely"`
	Admission  string   `json:"admission,omitempty" jsonschema:"Hospital admission policy: none, sequential or severity"`
	Seed       uint64   `json:"seed,omitempty" jsonschema:"Random seed; 0 picks one from the clock"`
	BedRate    *float64 `json:"bed_rate,omitempty" jsonschema:"Hospital beds as a share of the population (0 to 1)"`
	Format     string   `json:"format,omitempty" jsonschema:"Output format: dot (default), json or text"`
}

func (in GraphInput) scenario() scenario {
	return scenario{in.Population, in.Days, in.Isolation, in.Admission, in.Seed, in.BedRate}
}

// GraphOutput defines the output for the epigraph_graph tool.
type GraphOutput struct {
	Title     string `json:"title" jsonschema:"Summary line of the rendered day"`
	Day       int    `json:"day" jsonschema:"Rendered day"`
	Format    string `json:"format" jsonschema:"Format of graph"`
	Graph     string `json:"graph" jsonschema:"The rendered contact graph"`
	NodeCount int    `json:"node_count" jsonschema:"Living persons"`
	EdgeCount int    `json:"edge_count" jsonschema:"Contacts on the rendered day"`
}

// HistoryInput defines the input for the epigraph_history tool.
type HistoryInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"Run ID or unique prefix; empty lists recent runs"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 20)"`
}

// RunSummary describes a stored run.
type RunSummary struct {
	ID         string            `json:"id"`
	CreatedAt  string            `json:"created_at" jsonschema:"RFC 3339 creation time"`
	Isolation  string            `json:"isolation"`
	Admission  string            `json:"admission"`
	Population int               `json:"population"`
	Seed       uint64            `json:"seed"`
	LastDay    int               `json:"last_day" jsonschema:"Last recorded day, -1 if none"`
	Final      epidemic.Counters `json:"final" jsonschema:"Counters of the last recorded day"`
}

// HistoryOutput defines the output for the epigraph_history tool.
type HistoryOutput struct {
	Runs []RunSummary `json:"runs,omitempty" jsonschema:"Recent runs, newest first"`
	Run  *RunSummary  `json:"run,omitempty" jsonschema:"The requested run"`
	Days []store.Day  `json:"days,omitempty" jsonschema:"Trajectory of the requested run"`
}

func summarizeRun(r store.Run) RunSummary {
	return RunSummary{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		Isolation:  r.Isolation,
		Admission:  r.Admission,
		Population: r.Population,
		Seed:       r.Seed,
		LastDay:    r.LastDay,
		Final:      r.Final,
	}
}

// BackupInput defines the input for the epigraph_backup tool.
type BackupInput struct {
	OutputPath string `json:"output_path,omitempty" jsonschema:"Backup file inside ~/.epigraph/backups; empty generates a timestamped name"`
	Keep       int    `json:"keep,omitempty" jsonschema:"Keep only this many newest backups in the directory afterwards (0 keeps all)"`
}

// BackupOutput defines the output for the epigraph_backup tool.
type BackupOutput struct {
	Path      string `json:"path" jsonschema:"Written backup file"`
	RunCount  int    `json:"run_count"`
	DayCount  int    `json:"day_count"`
	SizeBytes int64  `json:"size_bytes"`
	Deleted   int    `json:"deleted" jsonschema:"Older backups removed by the keep limit"`
	Message   string `json:"message"`
}

// RestoreInput defines the input for the epigraph_restore tool.
type RestoreInput struct {
	InputPath string `json:"input_path" jsonschema:"Backup file inside ~/.epigraph/backups"`
	Mode      string `json:"mode,omitempty" jsonschema:"merge (default) skips runs that already exist; replace deletes all stored runs first"`
}

// RestoreOutput defines the output for the epigraph_restore tool.
type RestoreOutput struct {
	RunsRestored int    `json:"runs_restored"`
	RunsSkipped  int    `json:"runs_skipped"`
	RunsDeleted  int    `json:"runs_deleted"`
	DaysRestored int    `json:"days_restored"`
	Message      string `json:"message"`
}
