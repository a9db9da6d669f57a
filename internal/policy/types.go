package policy

import (
	"encoding/json"

	"deploygate/api"
)

// PolicyFile represents the top-level YAML configuration: server settings
// plus the gate rules evaluated before any tool handler runs.
type PolicyFile struct {
	Version  int      `yaml:"version" json:"version"`
	Settings Settings `yaml:"settings" json:"settings"`
	Rules    []Rule   `yaml:"rules" json:"rules"`
}

// Settings contains global server settings.
type Settings struct {
	Command        string `yaml:"command" json:"command"`
	QueryTimeout   string `yaml:"query_timeout,omitempty" json:"query_timeout,omitempty"`
	PromoteTimeout string `yaml:"promote_timeout,omitempty" json:"promote_timeout,omitempty"`
	LogDir         string `yaml:"log_dir,omitempty" json:"log_dir,omitempty"`

	DefaultAction api.Verdict `yaml:"default_action,omitempty" json:"default_action,omitempty"`
	OPAPolicy     string      `yaml:"opa_policy,omitempty" json:"opa_policy,omitempty"`
}

// Rule represents a single gate rule.
type Rule struct {
	Name    string    `yaml:"name" json:"name"`
	Match   RuleMatch `yaml:"match" json:"match"`
	Action  string    `yaml:"action" json:"action"`
	Message string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// RuleMatch specifies conditions for matching a tool call. ToEnv and
// Production match against the normalized promotion facts, so a rule can
// target production deployments without regex-matching raw arguments.
type RuleMatch struct {
	Tool       string                   `yaml:"tool,omitempty" json:"tool,omitempty"`
	ToEnv      string                   `yaml:"to_env,omitempty" json:"to_env,omitempty"`
	Production *bool                    `yaml:"production,omitempty" json:"production,omitempty"`
	Arguments  map[string]ArgumentMatch `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ArgumentMatch specifies a matching condition for a single argument.
type ArgumentMatch struct {
	Exact string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// Promotion carries normalized promotion parameters when the call is a
	// promotion whose parameters passed validation. Nil otherwise.
	Promotion *PromotionFacts `json:"promotion,omitempty"`
}

// PromotionFacts are the validated, normalized parameters of a promotion.
type PromotionFacts struct {
	App        string `json:"app"`
	Version    string `json:"version"`
	FromEnv    string `json:"from_env"`
	ToEnv      string `json:"to_env"`
	Production bool   `json:"production"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Verdict api.Verdict `json:"verdict"`
	Rule    string      `json:"rule,omitempty"`
	Message string      `json:"message,omitempty"`
}
