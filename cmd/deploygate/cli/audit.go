package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"deploygate/api"
	"deploygate/internal/audit"
	"deploygate/internal/config"
)

var (
	auditTool    string
	auditToEnv   string
	auditVerdict string
	auditLimit   int
	auditSince   string
	auditStats   bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
	Long: `Read the audit log written by a server and print matching records,
or aggregate statistics with --stats.`,
	Example: `  deploygate audit -c policy.yaml --to prod
  deploygate audit --verdict deny --since 2026-08-01T00:00:00Z
  deploygate audit --stats`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditTool, "tool", "", "filter by tool name")
	auditCmd.Flags().StringVar(&auditToEnv, "to", "", "filter by target environment")
	auditCmd.Flags().StringVar(&auditVerdict, "verdict", "", "filter by verdict (allow, deny, log)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "max records to print")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "only records at or after this RFC3339 time")
	auditCmd.Flags().BoolVar(&auditStats, "stats", false, "print aggregate statistics instead of records")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	filter := api.QueryFilter{
		Tool:    auditTool,
		ToEnv:   auditToEnv,
		Verdict: api.Verdict(auditVerdict),
		Limit:   auditLimit,
	}
	if auditSince != "" {
		since, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		filter.Since = since
	}

	records, err := audit.ReadDir(cfg.LogDir, filter)
	if err != nil {
		return fmt.Errorf("reading audit log: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if auditStats {
		return enc.Encode(audit.Summarize(records))
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
