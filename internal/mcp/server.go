// Package mcp provides an MCP (Model Context Protocol) server for epigraph.
// Clients run simulations, compare policies, render contact graphs and read
// stored runs through tools; settings and stored runs are also exposed as
// resources.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/epigraph/internal/backup"
	"github.com/nvandessel/epigraph/internal/config"
	"github.com/nvandessel/epigraph/internal/logging"
	"github.com/nvandessel/epigraph/internal/metrics"
	"github.com/nvandessel/epigraph/internal/ratelimit"
	"github.com/nvandessel/epigraph/internal/simulation"
	"github.com/nvandessel/epigraph/internal/store"
)

// Server wraps the MCP SDK server and provides epigraph-specific tools.
type Server struct {
	server   *sdk.Server
	settings *config.Config
	store    store.RunStore
	audit    *AuditLogger
	backups  string
	limiters ratelimit.ToolLimiters
	metrics  *metrics.Metrics
	logger   *slog.Logger
	trace    *logging.TraceLog
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "epigraph")
	Version string // Server version

	// Settings supply the defaults for every tool argument. Nil means
	// config.Default().
	Settings *config.Config

	// Store keeps recorded runs. The server takes ownership and closes it.
	// Nil means an in-memory store.
	Store store.RunStore

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	// BackupDir confines the backup and restore tools. Empty means
	// ~/.epigraph/backups.
	BackupDir string

	// Metrics, when set, observes every simulated day.
	Metrics *metrics.Metrics

	Logger *slog.Logger
	Trace  *logging.TraceLog
}

// NewServer creates a new MCP server with epigraph tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	runs := cfg.Store
	if runs == nil {
		runs = store.NewInMemoryRunStore()
	}

	backups := cfg.BackupDir
	if backups == "" {
		dir, err := backup.DefaultDir()
		if err != nil {
			return nil, err
		}
		backups = dir
	}

	logger := cfg.Logger
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			if logger != nil {
				logger.Debug("mcp client initialized")
			}
		},
	})

	s := &Server{
		server:   mcpServer,
		settings: settings,
		store:    runs,
		audit:    NewAuditLogger(cfg.AuditDir),
		backups:  backups,
		limiters: ratelimit.NewToolLimiters(),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		trace:    cfg.Trace,
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until the client disconnects, the context is
// cancelled or the process is signalled. The server is closed on return.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := simulation.SignalContext(ctx)
	defer stop()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the run store and the audit log.
func (s *Server) Close() error {
	auditErr := s.audit.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return auditErr
}
