package api

import (
	"encoding/json"
	"time"
)

// Verdict represents the outcome of a policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictLog   Verdict = "log"
)

// AuditRecord represents a single audited tool invocation. Production
// promotions always produce one before the external command is launched;
// policy denials produce one with the matched rule.
type AuditRecord struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Tool       string          `json:"tool"`
	App        string          `json:"app,omitempty"`
	Version    string          `json:"version,omitempty"`
	FromEnv    string          `json:"from_env,omitempty"`
	ToEnv      string          `json:"to_env,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Verdict    Verdict         `json:"verdict"`
	Rule       string          `json:"rule,omitempty"`
	Message    string          `json:"message,omitempty"`
	Production bool            `json:"production,omitempty"`
	Duration   time.Duration   `json:"duration,omitempty"`
}

// CheckRequest is used by the CLI `check` command to dry-run validation and
// policy for a promotion without spawning anything.
type CheckRequest struct {
	App     string `json:"app"`
	Version string `json:"version"`
	FromEnv string `json:"from_env"`
	ToEnv   string `json:"to_env"`
}

// CheckResponse is the result of a dry-run check.
type CheckResponse struct {
	Verdict Verdict `json:"verdict"`
	Rule    string  `json:"rule,omitempty"`
	Message string  `json:"message,omitempty"`
}
