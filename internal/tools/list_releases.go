package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"deploygate/internal/validate"
)

var listReleasesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"app": {"type": "string", "description": "Application identifier"},
		"limit": {"type": "integer", "description": "Maximum number of releases to return"}
	},
	"required": ["app"],
	"additionalProperties": false
}`)

type listReleasesArgs struct {
	App   string `json:"app"`
	Limit *int   `json:"limit,omitempty"`
}

func (s *Service) handleListReleases(ctx context.Context, raw json.RawMessage) (any, error) {
	var args listReleasesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &InvalidParamsError{Tool: "list_releases", Reason: err.Error()}
	}

	app, err := validate.TrimNonEmpty("app", args.App)
	if err != nil {
		s.logger.Warn("validation failed", "tool", "list_releases", "param", "app", "value", args.App)
		return nil, err
	}
	if args.Limit != nil && *args.Limit < 1 {
		s.logger.Warn("validation failed", "tool", "list_releases", "param", "limit", "value", *args.Limit)
		return nil, &InvalidParamsError{Tool: "list_releases", Reason: "limit must be at least 1"}
	}

	argv := []string{"releases", app}
	if args.Limit != nil {
		argv = append(argv, "--limit", strconv.Itoa(*args.Limit))
	}

	res, err := s.runner.Run(ctx, argv, s.queryTimeout)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		return nil, &TimeoutError{Tool: "list_releases", Timeout: s.queryTimeout}
	}
	if res.ExitCode != 0 {
		return nil, &ExecutionError{Tool: "list_releases", ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	// deployctl emits JSON; pass it through verbatim. An unparseable payload
	// is returned raw so the caller can see what actually came back.
	var releases any
	if err := json.Unmarshal([]byte(res.Stdout), &releases); err != nil {
		return nil, &ExecutionError{
			Tool:     "list_releases",
			ExitCode: res.ExitCode,
			Stderr:   "unparseable output: " + res.Stdout,
		}
	}
	return map[string]any{
		"app":      app,
		"releases": releases,
	}, nil
}
