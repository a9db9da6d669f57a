package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deploygate/api"
	"deploygate/internal/config"
	"deploygate/internal/policy"
	"deploygate/internal/validate"
)

var (
	checkApp     string
	checkVersion string
	checkFrom    string
	checkTo      string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a promotion without a running server",
	Long: `Check how a promotion request would fare without spawning anything.
The request goes through the same validation pipeline and policy
evaluation as a live promote_release call. Useful for testing and
debugging policy rules.`,
	Example: `  deploygate check -c policy.yaml --app web-api --app-version 1.4.2 --from dev --to staging
  deploygate check --app web-api --app-version 1.4.2 --from uat --to prod`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkApp, "app", "", "application to promote")
	checkCmd.Flags().StringVar(&checkVersion, "app-version", "", "release version")
	checkCmd.Flags().StringVar(&checkFrom, "from", "", "source environment")
	checkCmd.Flags().StringVar(&checkTo, "to", "", "target environment")
	_ = checkCmd.MarkFlagRequired("app")
	_ = checkCmd.MarkFlagRequired("app-version")
	_ = checkCmd.MarkFlagRequired("from")
	_ = checkCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	req := api.CheckRequest{
		App:     checkApp,
		Version: checkVersion,
		FromEnv: checkFrom,
		ToEnv:   checkTo,
	}

	resp := evaluateCheck(cmd.Context(), cfg, req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if resp.Verdict == api.VerdictDeny {
		os.Exit(1)
	}
	return nil
}

func evaluateCheck(ctx context.Context, cfg *config.Config, req api.CheckRequest) *api.CheckResponse {
	clean, err := validate.ValidatePromotion(validate.PromotionRequest{
		App:     req.App,
		Version: req.Version,
		FromEnv: req.FromEnv,
		ToEnv:   req.ToEnv,
	})
	if err != nil {
		return &api.CheckResponse{
			Verdict: api.VerdictDeny,
			Rule:    "validation",
			Message: err.Error(),
		}
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return &api.CheckResponse{
			Verdict: api.VerdictDeny,
			Rule:    "policy-load",
			Message: err.Error(),
		}
	}

	argsJSON, _ := json.Marshal(clean)
	result, err := engine.Evaluate(ctx, &policy.EvalInput{
		Tool:      "promote_release",
		Arguments: argsJSON,
		Promotion: &policy.PromotionFacts{
			App:        clean.App,
			Version:    clean.Version,
			FromEnv:    clean.FromEnv,
			ToEnv:      clean.ToEnv,
			Production: validate.IsProduction(clean.ToEnv),
		},
	})
	if err != nil {
		return &api.CheckResponse{
			Verdict: api.VerdictDeny,
			Rule:    "policy-error",
			Message: err.Error(),
		}
	}
	return &api.CheckResponse{
		Verdict: result.Verdict,
		Rule:    result.Rule,
		Message: result.Message,
	}
}
