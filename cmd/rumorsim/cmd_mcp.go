package main

import (
	"github.com/nvandessel/rumorsim/internal/mcp"
	"github.com/nvandessel/rumorsim/internal/store"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  rumor_simulate   Run a simulation (optionally saving it)
  rumor_runs       List saved runs
  rumor_run        Show a saved run
  rumor_export     Archive saved runs to ~/.rumorsim/backups/

Logs go to stderr so they never interleave with the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			noAudit, _ := cmd.Flags().GetBool("no-audit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runStore, err := openStore(cfg)
			if err != nil {
				return err
			}

			retention, err := cfg.Backup.RetentionPolicy()
			if err != nil {
				runStore.Close()
				return err
			}

			auditDir := ""
			if !noAudit {
				if auditDir, err = store.GlobalPath(); err != nil {
					runStore.Close()
					return err
				}
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "rumorsim",
				Version:   version,
				Store:     runStore,
				Defaults:  cfg.Simulation,
				AuditDir:  auditDir,
				Retention: retention,
				Logger:    newLogger(cmd, cfg),
			})
			if err != nil {
				runStore.Close()
				return err
			}

			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().Bool("no-audit", false, "Disable the tool call audit log (~/.rumorsim/audit.jsonl)")
	return cmd
}
