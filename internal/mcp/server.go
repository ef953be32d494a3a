// Package mcp provides an MCP (Model Context Protocol) server for rumorsim.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/rumorsim/internal/backup"
	"github.com/nvandessel/rumorsim/internal/config"
	"github.com/nvandessel/rumorsim/internal/logging"
	"github.com/nvandessel/rumorsim/internal/pathutil"
	"github.com/nvandessel/rumorsim/internal/ratelimit"
	"github.com/nvandessel/rumorsim/internal/store"
)

// Server wraps the MCP SDK server and exposes the simulator as tools.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	defaults     config.SimulationConfig
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger

	archiveDir string
	retention  backup.RetentionPolicy
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "rumorsim")
	Version string // Server version

	// Store receives saved runs. The server closes it on shutdown.
	Store store.RunStore

	// Defaults fill in any simulation parameter a tool call leaves unset.
	Defaults config.SimulationConfig

	// AuditDir, when set, enables the audit log at AuditDir/audit.jsonl.
	AuditDir string

	// ArchiveDir is where rumor_export writes archives and the only
	// directory it may write to. Defaults to ~/.rumorsim/backups.
	ArchiveDir string

	// Retention prunes ArchiveDir after each export. Defaults to keeping
	// the 10 newest archives.
	Retention backup.RetentionPolicy

	Logger *slog.Logger
}

// NewServer creates a new MCP server with rumorsim tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, errors.New("mcp server requires a run store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	archiveDir := cfg.ArchiveDir
	if archiveDir == "" {
		dir, err := pathutil.DefaultArchiveDir()
		if err != nil {
			return nil, err
		}
		archiveDir = dir
	}
	retention := cfg.Retention
	if retention == nil {
		retention = &backup.CountPolicy{MaxCount: 10}
	}

	s := &Server{
		server:       mcpServer,
		store:        cfg.Store,
		defaults:     cfg.Defaults,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
		archiveDir:   archiveDir,
		retention:    retention,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the store and the audit log.
func (s *Server) Close() error {
	auditErr := s.auditLogger.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return auditErr
}
