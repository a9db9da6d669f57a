package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deploygate/api"
	"deploygate/internal/audit"
	"deploygate/internal/config"
	"deploygate/internal/policy"
	"deploygate/internal/runner"
	"deploygate/internal/tools"
	"deploygate/internal/transport"
)

var serveCommand string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stdio tool server",
	Long: `Start the JSON-RPC stdio server. The host connects over stdin/stdout,
performs the initialize handshake, and invokes tools. Diagnostics are
written to stderr only.`,
	Example: `  deploygate serve -c policy.yaml
  deploygate serve -c policy.yaml --command /usr/local/bin/deployctl`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveCommand, "command", "", "deployment CLI binary (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
	if serveCommand != "" {
		cfg.Command = serveCommand
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("creating policy engine: %w", err)
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	svc, err := tools.NewService(tools.Options{
		Runner:         runner.New(cfg.Command, logger),
		Store:          auditStore,
		Engine:         engine,
		Logger:         logger,
		QueryTimeout:   cfg.QueryTimeout,
		PromoteTimeout: cfg.PromoteTimeout,
	})
	if err != nil {
		return fmt.Errorf("building tool service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting stdio server",
		slog.String("command", cfg.Command),
		slog.String("log_dir", cfg.LogDir),
	)

	srv := transport.New(os.Stdin, os.Stdout, svc, logger, api.Implementation{
		Name:    "deploygate",
		Version: version,
	})
	return srv.Run(ctx)
}

func buildEngine(cfg *config.Config) (policy.Engine, error) {
	if cfg.OPAPolicy != "" {
		return policy.NewOPAEngine(cfg.OPAPolicy)
	}
	return policy.NewYAMLEngineFromPolicy(cfg.PolicyFile)
}
