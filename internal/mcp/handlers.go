package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/epigraph/internal/backup"
	"github.com/nvandessel/epigraph/internal/config"
	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/pathutil"
	"github.com/nvandessel/epigraph/internal/ratelimit"
	"github.com/nvandessel/epigraph/internal/simulation"
	"github.com/nvandessel/epigraph/internal/store"
	"github.com/nvandessel/epigraph/internal/visualization"
)

const (
	configURI   = "epigraph://config"
	runURIStart = "epigraph://runs/"

	defaultHistoryLimit = 20
)

// registerTools registers all epigraph MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "epigraph_simulate",
		Description: "Run one epidemic simulation on a dynamic contact graph and summarize the outcome",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "epigraph_compare",
		Description: "Run every isolation and hospital admission policy combination side by side",
	}, s.handleCompare)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "epigraph_graph",
		Description: "Render the contact graph after a number of simulated days as DOT, JSON or text",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "epigraph_history",
		Description: "List recorded runs or show the day-by-day trajectory of one run",
	}, s.handleHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "epigraph_backup",
		Description: "Archive every recorded run into a compressed, checksummed backup file",
	}, s.handleBackup)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "epigraph_restore",
		Description: "Restore recorded runs from a backup file made by epigraph_backup",
	}, s.handleRestore)
}

// registerResources registers the settings and stored runs as resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         configURI,
		Name:        "epigraph-config",
		Description: "Default simulation settings used when a tool argument is omitted.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runURIStart + "{id}",
		Name:        "epigraph-run",
		Description: "A recorded run as JSON lines: the run header followed by one line per day.",
		MIMEType:    "application/x-ndjson",
	}, s.handleRunResource)
}

// scenarioConfig applies tool arguments on top of the server settings.
func (s *Server) scenarioConfig(sc scenario) (*config.Config, error) {
	c := *s.settings
	if sc.Population > 0 {
		c.Population = sc.Population
	}
	if sc.Days > 0 {
		c.MaxDays = sc.Days
	}
	if sc.Isolation != "" {
		c.Isolation = sc.Isolation
	}
	if sc.Admission != "" {
		c.Admission = sc.Admission
	}
	if sc.Seed != 0 {
		c.Seed = sc.Seed
	}
	if sc.BedRate != nil {
		c.BedRate = *sc.BedRate
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Server) newEngine(settings *config.Config, seed uint64) (*epidemic.Engine, error) {
	ecfg, err := settings.EngineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := epidemic.NewEngine(ecfg, epidemic.NewSeededRand(seed))
	if err != nil {
		return nil, err
	}
	engine.SetLogger(s.logger, s.trace.With(map[string]any{"seed": seed}))
	return engine, nil
}

func scenarioParams(sc scenario) map[string]any {
	return map[string]any{
		"population": sc.Population,
		"days":       sc.Days,
		"isolation":  sc.Isolation,
		"admission":  sc.Admission,
		"seed":       sc.Seed,
		"bed_rate":   sc.BedRate,
	}
}

// handleSimulate implements the epigraph_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	var runID string
	defer func() {
		params := scenarioParams(args.scenario())
		params["record"] = args.Record
		s.auditTool("epigraph_simulate", start, runID, retErr, sanitizeToolParams(params))
	}()

	settings, err := s.scenarioConfig(args.scenario())
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	if err := s.limiters.Check("epigraph_simulate", ratelimit.Cost(settings.Population, settings.MaxDays, 1)); err != nil {
		return nil, SimulateOutput{}, err
	}

	seed := settings.ResolveSeed()
	engine, err := s.newEngine(settings, seed)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	var observers []simulation.Observer
	if s.metrics != nil {
		observers = append(observers, s.metrics)
	}
	if args.Record {
		run, err := store.NewRun(settings.Isolation, settings.Admission, settings.Population, seed, settings)
		if err != nil {
			return nil, SimulateOutput{}, err
		}
		run, err = s.store.CreateRun(ctx, run)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("recording run: %w", err)
		}
		runID = run.ID
		observers = append(observers, store.NewRecorder(s.store, run.ID))
	}

	runner := simulation.NewRunner()
	runner.SetLogger(s.logger)
	res, err := runner.Run(ctx, engine, simulation.RunOptions{
		MaxDays:       settings.MaxDays,
		StopWhenClear: settings.StopWhenClear,
		Observers:     observers,
	})
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	peak, peakDay := res.PeakInfected()
	out := SimulateOutput{
		RunID:        runID,
		Seed:         seed,
		Title:        visualization.Title(res.Final.Snapshot()),
		Days:         res.Final.Day,
		DaysToClear:  res.DaysToClear,
		Final:        res.Final.Counters,
		PeakInfected: peak,
		PeakDay:      peakDay,
		Beds:         res.Final.Ward.Capacity,
	}
	if args.Trajectory {
		out.Trajectory = res.Trajectory
	}
	return nil, out, nil
}

// handleCompare implements the epigraph_compare tool.
func (s *Server) handleCompare(ctx context.Context, req *sdk.CallToolRequest, args CompareInput) (_ *sdk.CallToolResult, _ CompareOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("epigraph_compare", start, "", retErr, sanitizeToolParams(map[string]any{
			"population": args.Population,
			"days":       args.Days,
			"seed":       args.Seed,
			"same_seed":  args.SameSeed,
		}))
	}()

	settings, err := s.scenarioConfig(scenario{Population: args.Population, Days: args.Days, Seed: args.Seed})
	if err != nil {
		return nil, CompareOutput{}, err
	}
	variants := simulation.AllVariants()
	if err := s.limiters.Check("epigraph_compare", ratelimit.Cost(settings.Population, settings.MaxDays, len(variants))); err != nil {
		return nil, CompareOutput{}, err
	}

	ecfg, err := settings.EngineConfig()
	if err != nil {
		return nil, CompareOutput{}, err
	}
	seed := settings.ResolveSeed()
	outcomes, err := simulation.Compare(ctx, ecfg, variants, simulation.CompareOptions{
		Seed:          seed,
		MaxDays:       settings.MaxDays,
		StopWhenClear: settings.StopWhenClear,
		SameSeed:      args.SameSeed,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, CompareOutput{}, fmt.Errorf("comparison failed: %w", err)
	}

	out := CompareOutput{Seed: seed, Variants: make([]VariantSummary, 0, len(outcomes))}
	for _, o := range outcomes {
		peak, peakDay := o.Result.PeakInfected()
		out.Variants = append(out.Variants, VariantSummary{
			Variant:      o.Variant.Name(),
			Seed:         o.Seed,
			Final:        o.Result.Summary(),
			DaysToClear:  o.Result.DaysToClear,
			PeakInfected: peak,
			PeakDay:      peakDay,
		})
	}
	return nil, out, nil
}

// handleGraph implements the epigraph_graph tool. Days counts updates
// after day 0; zero renders the initial population.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := scenarioParams(args.scenario())
		params["format"] = args.Format
		s.auditTool("epigraph_graph", start, "", retErr, sanitizeToolParams(params))
	}()

	format := visualization.FormatDOT
	if args.Format != "" {
		format = visualization.Format(strings.ToLower(args.Format))
	}

	sc := args.scenario()
	days := sc.Days
	sc.Days = 0
	settings, err := s.scenarioConfig(sc)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	if days < 0 {
		return nil, GraphOutput{}, fmt.Errorf("days must be non-negative, got %d", days)
	}
	if err := s.limiters.Check("epigraph_graph", ratelimit.Cost(settings.Population, days, 1)); err != nil {
		return nil, GraphOutput{}, err
	}

	engine, err := s.newEngine(settings, settings.ResolveSeed())
	if err != nil {
		return nil, GraphOutput{}, err
	}
	state, err := engine.Initialize()
	if err != nil {
		return nil, GraphOutput{}, err
	}
	for state.Day < days {
		if err := ctx.Err(); err != nil {
			return nil, GraphOutput{}, err
		}
		if err := engine.Update(state); err != nil {
			return nil, GraphOutput{}, err
		}
	}

	snap := state.Snapshot()
	rendered, err := visualization.Render(snap, format)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	return nil, GraphOutput{
		Title:     visualization.Title(snap),
		Day:       snap.Day,
		Format:    string(format),
		Graph:     string(rendered),
		NodeCount: len(snap.Persons),
		EdgeCount: len(snap.Edges),
	}, nil
}

// handleHistory implements the epigraph_history tool.
func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("epigraph_history", start, args.RunID, retErr, sanitizeToolParams(map[string]any{
			"run_id": args.RunID,
			"limit":  args.Limit,
		}))
	}()

	if err := s.limiters.Check("epigraph_history", 1); err != nil {
		return nil, HistoryOutput{}, err
	}

	if args.RunID == "" {
		limit := args.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		runs, err := s.store.Runs(ctx, limit)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("listing runs: %w", err)
		}
		out := HistoryOutput{Runs: make([]RunSummary, 0, len(runs))}
		for _, r := range runs {
			out.Runs = append(out.Runs, summarizeRun(r))
		}
		return nil, out, nil
	}

	run, err := s.store.GetRun(ctx, args.RunID)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	days, err := s.store.Days(ctx, run.ID)
	if err != nil {
		return nil, HistoryOutput{}, fmt.Errorf("loading trajectory: %w", err)
	}
	summary := summarizeRun(*run)
	return nil, HistoryOutput{Run: &summary, Days: days}, nil
}

// handleBackup implements the epigraph_backup tool.
func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("epigraph_backup", start, "", retErr, sanitizeToolParams(map[string]any{
			"path": pathutil.RedactPath(args.OutputPath),
			"keep": args.Keep,
		}))
	}()

	if err := s.limiters.Check("epigraph_backup", 1); err != nil {
		return nil, BackupOutput{}, err
	}
	if args.Keep < 0 {
		return nil, BackupOutput{}, fmt.Errorf("keep must be non-negative, got %d", args.Keep)
	}

	outputPath := args.OutputPath
	if outputPath == "" {
		outputPath = backup.GeneratePath(s.backups)
	} else if err := pathutil.ValidatePath(outputPath, []string{s.backups}); err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup path rejected: %w", err)
	}

	header, err := backup.Backup(ctx, s.store, outputPath)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}

	var deleted []string
	if args.Keep > 0 {
		deleted, err = backup.ApplyRetention(filepath.Dir(outputPath), &backup.CountPolicy{MaxCount: args.Keep})
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to apply backup retention", "error", err)
		}
	}

	var size int64
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}
	return nil, BackupOutput{
		Path:      outputPath,
		RunCount:  header.RunCount,
		DayCount:  header.DayCount,
		SizeBytes: size,
		Deleted:   len(deleted),
		Message:   fmt.Sprintf("Backup created: %d runs, %d days -> %s", header.RunCount, header.DayCount, pathutil.RedactPath(outputPath)),
	}, nil
}

// handleRestore implements the epigraph_restore tool.
func (s *Server) handleRestore(ctx context.Context, req *sdk.CallToolRequest, args RestoreInput) (_ *sdk.CallToolResult, _ RestoreOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("epigraph_restore", start, "", retErr, sanitizeToolParams(map[string]any{
			"path": pathutil.RedactPath(args.InputPath),
			"mode": args.Mode,
		}))
	}()

	if err := s.limiters.Check("epigraph_restore", 1); err != nil {
		return nil, RestoreOutput{}, err
	}
	mode, err := backup.ParseRestoreMode(args.Mode)
	if err != nil {
		return nil, RestoreOutput{}, err
	}
	if err := pathutil.ValidatePath(args.InputPath, []string{s.backups}); err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore path rejected: %w", err)
	}

	result, err := backup.Restore(ctx, s.store, args.InputPath, mode)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore failed: %w", err)
	}
	return nil, RestoreOutput{
		RunsRestored: result.RunsRestored,
		RunsSkipped:  result.RunsSkipped,
		RunsDeleted:  result.RunsDeleted,
		DaysRestored: result.DaysRestored,
		Message:      fmt.Sprintf("Restored %d runs (%d skipped, %d deleted)", result.RunsRestored, result.RunsSkipped, result.RunsDeleted),
	}, nil
}

// handleConfigResource returns the server settings as YAML.
func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      configURI,
				MIMEType: "application/yaml",
				Text:     string(data),
			},
		},
	}, nil
}

// handleRunResource exports one stored run as JSON lines.
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, runURIStart)
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid run URI: %s", uri)
	}

	var buf bytes.Buffer
	if err := store.ExportJSONL(ctx, s.store, id, &buf); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, sdk.ResourceNotFoundError(uri)
		}
		return nil, err
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/x-ndjson",
				Text:     buf.String(),
			},
		},
	}, nil
}
