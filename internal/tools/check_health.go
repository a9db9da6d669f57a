package tools

import (
	"context"
	"encoding/json"

	"deploygate/internal/validate"
)

var checkHealthSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"environment": {"type": "string", "description": "Environment to check; omit to check all"}
	},
	"additionalProperties": false
}`)

type checkHealthArgs struct {
	Environment string `json:"environment,omitempty"`
}

func (s *Service) handleCheckHealth(ctx context.Context, raw json.RawMessage) (any, error) {
	var args checkHealthArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &InvalidParamsError{Tool: "check_health", Reason: err.Error()}
	}

	env, err := validate.NormalizeEnvironment("environment", args.Environment)
	if err != nil {
		s.logger.Warn("validation failed", "tool", "check_health", "param", "environment", "value", args.Environment)
		return nil, err
	}

	argv := []string{"health"}
	checked := validate.SortedEnvironments()
	if env != "" {
		argv = append(argv, env)
		checked = []string{env}
	}

	res, err := s.runner.Run(ctx, argv, s.queryTimeout)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		return nil, &TimeoutError{Tool: "check_health", Timeout: s.queryTimeout}
	}
	if res.ExitCode != 0 {
		return nil, &ExecutionError{Tool: "check_health", ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	var records any
	if err := json.Unmarshal([]byte(res.Stdout), &records); err != nil {
		return nil, &ExecutionError{
			Tool:     "check_health",
			ExitCode: res.ExitCode,
			Stderr:   "unparseable output: " + res.Stdout,
		}
	}
	return map[string]any{
		"environments": checked,
		"records":      records,
	}, nil
}
