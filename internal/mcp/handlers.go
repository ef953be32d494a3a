package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/rumorsim/internal/backup"
	"github.com/nvandessel/rumorsim/internal/config"
	"github.com/nvandessel/rumorsim/internal/pathutil"
	"github.com/nvandessel/rumorsim/internal/ratelimit"
	"github.com/nvandessel/rumorsim/internal/spreading"
)

// Upper bounds on a single rumor_simulate call. Work per step grows with
// the square of the population under fixed capacities, so the population
// bound is far below what the engine accepts.
const (
	MaxPopulationSize = 20_000
	MaxSteps          = 10_000
)

// ErrSimulationTooLarge is returned when a rumor_simulate call exceeds the
// size bounds or would cost more than the simulate bucket can ever hold.
var ErrSimulationTooLarge = errors.New("simulation too large")

// registerTools registers all rumorsim MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Run a rumor-spreading simulation (ignorant/spreader/stifler with reputation-weighted trust) and report the outcome for the victim",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRuns,
		Description: "List saved simulation runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRun,
		Description: "Show a saved simulation run with its per-step series",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolExport,
		Description: "Archive all saved runs to a compressed, checksummed file in the rumorsim archive directory",
	}, s.handleExport)

	return nil
}

// simulationParams applies the call's overrides to the server defaults.
func (s *Server) simulationParams(args SimulateInput) config.SimulationConfig {
	p := s.defaults
	if args.PopulationSize != nil {
		p.PopulationSize = *args.PopulationSize
	}
	if args.SurpriseFactor != nil {
		p.SurpriseFactor = *args.SurpriseFactor
	}
	if args.ConfidenceFactor != nil {
		p.ConfidenceFactor = *args.ConfidenceFactor
	}
	if args.RandomizeInteractionCounts != nil {
		p.RandomizeInteractionCounts = *args.RandomizeInteractionCounts
	}
	if args.StifleProbability != nil {
		p.StifleProbability = *args.StifleProbability
	}
	if args.Steps != nil {
		p.Steps = *args.Steps
	}
	if args.Seed != nil {
		p.Seed = *args.Seed
	}
	if args.AllowRepeatPairs != nil {
		p.AllowRepeatPairs = *args.AllowRepeatPairs
	}
	return p
}

// handleSimulate implements the rumor_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, sanitizeToolParams(map[string]any{
			"population_size":              args.PopulationSize,
			"surprise_factor":              args.SurpriseFactor,
			"confidence_factor":            args.ConfidenceFactor,
			"randomize_interaction_counts": args.RandomizeInteractionCounts,
			"stifle_probability":           args.StifleProbability,
			"steps":                        args.Steps,
			"seed":                         args.Seed,
			"allow_repeat_pairs":           args.AllowRepeatPairs,
			"save":                         args.Save,
		}))
	}()

	params := s.simulationParams(args)
	if params.PopulationSize > MaxPopulationSize {
		return nil, SimulateOutput{}, fmt.Errorf("%w: population_size %d exceeds the maximum of %d", ErrSimulationTooLarge, params.PopulationSize, MaxPopulationSize)
	}
	if params.Steps > MaxSteps {
		return nil, SimulateOutput{}, fmt.Errorf("%w: steps %d exceeds the maximum of %d", ErrSimulationTooLarge, params.Steps, MaxSteps)
	}

	capacity := spreading.BaseCapacity(params.PopulationSize, params.RandomizeInteractionCounts)
	cost := ratelimit.SimulationCost(params.PopulationSize, capacity, params.Steps)
	if cost > ratelimit.MaxSimulationCost {
		return nil, SimulateOutput{}, fmt.Errorf("%w: %d agents with capacity %d over %d steps costs %d tokens, the limit per call is %d; reduce population_size or steps",
			ErrSimulationTooLarge, params.PopulationSize, capacity, params.Steps, cost, ratelimit.MaxSimulationCost)
	}
	if err := ratelimit.CheckLimitN(s.toolLimiters, ratelimit.ToolSimulate, cost); err != nil {
		return nil, SimulateOutput{}, err
	}

	sim, err := spreading.New(params.Spreading(), spreading.WithLogger(s.logger))
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	if err := sim.Run(ctx, params.Steps); err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	rec := sim.Record()
	out := SimulateOutput{
		Seed:                  rec.Parameters.Seed,
		Steps:                 rec.Steps,
		PopulationSize:        rec.Parameters.PopulationSize,
		BullyID:               rec.BullyID,
		VictimID:              rec.VictimID,
		FinalBelievers:        rec.FinalBelievers(),
		FinalVictimReputation: rec.FinalVictimReputation(),
		VictimWasHit:          rec.VictimWasHit,
		VictimHearsFraction:   rec.VictimHearsFraction,
	}
	if n := rec.Series.Len(); n > 0 {
		out.FinalIgnorant = rec.Series.Ignorant[n-1]
		out.FinalStiflers = rec.Series.Stiflers[n-1]
	}
	if args.IncludeSeries {
		out.Series = &rec.Series
	}

	if args.Save {
		id, err := s.store.SaveRun(ctx, rec)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = id
	}

	out.Message = fmt.Sprintf("%d steps over %d agents: %d believers, victim reputation %.4g",
		out.Steps, out.PopulationSize, out.FinalBelievers, out.FinalVictimReputation)
	if !out.VictimWasHit {
		out.Message += ", victim never heard the rumor"
	}
	if out.RunID != "" {
		out.Message += fmt.Sprintf(" (saved as %s)", out.RunID)
	}

	s.logger.Debug("simulation tool call complete",
		"seed", out.Seed,
		"steps", out.Steps,
		"population", out.PopulationSize,
		"saved", out.RunID != "")

	return nil, out, nil
}

// handleRuns implements the rumor_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRuns, start, retErr, sanitizeToolParams(map[string]any{
			"limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRuns); err != nil {
		return nil, RunsOutput{}, err
	}
	if args.Limit < 0 {
		return nil, RunsOutput{}, errors.New("limit must be non-negative")
	}

	runs, err := s.store.ListRuns(ctx, args.Limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	return nil, RunsOutput{
		Runs:  runs,
		Count: len(runs),
	}, nil
}

// handleRun implements the rumor_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRun, start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRun); err != nil {
		return nil, RunOutput{}, err
	}
	if args.ID == "" {
		return nil, RunOutput{}, errors.New("id is required")
	}

	run, err := s.store.GetRun(ctx, args.ID)
	if err != nil {
		return nil, RunOutput{}, err
	}

	return nil, RunOutput{Run: run}, nil
}

// handleExport implements the rumor_export tool.
func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (_ *sdk.CallToolResult, _ ExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolExport, start, retErr, sanitizeToolParams(map[string]any{
			"output_path": pathutil.RedactPath(args.OutputPath),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolExport); err != nil {
		return nil, ExportOutput{}, err
	}

	outputPath := args.OutputPath
	if outputPath == "" {
		outputPath = backup.GenerateBackupPath(s.archiveDir)
	} else if err := pathutil.ValidatePath(outputPath, []string{s.archiveDir}); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export path rejected: %w", err)
	}

	archive, err := backup.Backup(ctx, s.store, outputPath)
	if err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export failed: %w", err)
	}

	if _, err := backup.ApplyRetention(filepath.Dir(outputPath), s.retention); err != nil {
		s.logger.Warn("failed to apply archive retention", "error", err)
	}

	var sizeBytes int64
	if info, err := os.Stat(outputPath); err == nil {
		sizeBytes = info.Size()
	}

	return nil, ExportOutput{
		Path:      outputPath,
		RunCount:  len(archive.Runs),
		Version:   archive.Version,
		SizeBytes: sizeBytes,
		Message:   fmt.Sprintf("Exported %d runs to %s", len(archive.Runs), outputPath),
	}, nil
}
