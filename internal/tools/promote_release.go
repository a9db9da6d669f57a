package tools

import (
	"context"
	"encoding/json"
	"time"

	"deploygate/api"
	"deploygate/internal/validate"
)

var promoteReleaseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"app": {"type": "string", "description": "Application identifier"},
		"version": {"type": "string", "description": "Release version to promote"},
		"from_env": {"type": "string", "description": "Source environment"},
		"to_env": {"type": "string", "description": "Target environment"}
	},
	"required": ["app", "version", "from_env", "to_env"],
	"additionalProperties": false
}`)

// PromoteResult is the success payload for promote_release.
type PromoteResult struct {
	Status               string  `json:"status"`
	App                  string  `json:"app"`
	Version              string  `json:"version"`
	FromEnv              string  `json:"from_env"`
	ToEnv                string  `json:"to_env"`
	ProductionDeployment bool    `json:"production_deployment"`
	Output               string  `json:"output"`
	DurationSeconds      float64 `json:"duration_seconds"`
}

func (s *Service) handlePromoteRelease(ctx context.Context, raw json.RawMessage) (any, error) {
	var req validate.PromotionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &InvalidParamsError{Tool: "promote_release", Reason: err.Error()}
	}

	promo, err := validate.ValidatePromotion(req)
	if err != nil {
		s.logger.Warn("validation failed",
			"tool", "promote_release",
			"error", err,
			"app", req.App,
			"from_env", req.FromEnv,
			"to_env", req.ToEnv,
		)
		return nil, err
	}

	production := validate.IsProduction(promo.ToEnv)
	if production {
		// Intent is recorded before the command runs. The record never
		// blocks execution.
		s.logger.Warn("production promotion requested",
			"app", promo.App,
			"version", promo.Version,
			"from_env", promo.FromEnv,
			"to_env", promo.ToEnv,
			"timestamp", time.Now().UTC().Format(time.RFC3339),
		)
		s.writeAudit(ctx, &api.AuditRecord{
			Tool:       "promote_release",
			App:        promo.App,
			Version:    promo.Version,
			FromEnv:    promo.FromEnv,
			ToEnv:      promo.ToEnv,
			Verdict:    api.VerdictAllow,
			Production: true,
		})
	}

	argv := []string{"promote", promo.App, promo.Version, promo.FromEnv, promo.ToEnv}
	res, err := s.runner.Run(ctx, argv, s.promoteTimeout)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		return nil, &TimeoutError{Tool: "promote_release", Timeout: s.promoteTimeout}
	}
	if res.ExitCode != 0 {
		s.logger.Error("promotion failed",
			"app", promo.App,
			"version", promo.Version,
			"exit_code", res.ExitCode,
			"stderr", res.Stderr,
		)
		return nil, &ExecutionError{Tool: "promote_release", ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	return &PromoteResult{
		Status:               "success",
		App:                  promo.App,
		Version:              promo.Version,
		FromEnv:              promo.FromEnv,
		ToEnv:                promo.ToEnv,
		ProductionDeployment: production,
		Output:               res.Stdout,
		DurationSeconds:      res.Duration.Seconds(),
	}, nil
}
