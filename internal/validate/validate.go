// Package validate holds the pure parameter checks that run before any
// external command is spawned. Every function is side-effect free: callers
// log rejections, the checks only decide.
package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Environment whitelist. The promotion chain below is the only ordering that
// matters between them.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvUAT     = "uat"
	EnvProd    = "prod"
)

// Environments is the fixed whitelist of deployment environments.
var Environments = map[string]bool{
	EnvDev:     true,
	EnvStaging: true,
	EnvUAT:     true,
	EnvProd:    true,
}

// promotionPaths is the fixed set of allowed forward transitions. Membership
// is the whole check: no search, no transitivity.
var promotionPaths = map[string]string{
	EnvDev:     EnvStaging,
	EnvStaging: EnvUAT,
	EnvUAT:     EnvProd,
}

// Error is a structured validation failure naming the offending parameter.
type Error struct {
	Param   string
	Value   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// TrimNonEmpty trims the value and fails if nothing remains.
func TrimNonEmpty(param, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &Error{
			Param:   param,
			Value:   value,
			Message: fmt.Sprintf("%s cannot be empty", param),
		}
	}
	return trimmed, nil
}

// NormalizeEnvironment lower-cases and trims an environment name and checks it
// against the whitelist. An empty value passes through unchanged: it means
// "all environments" to read-only tools.
func NormalizeEnvironment(param, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	norm := strings.ToLower(strings.TrimSpace(value))
	if !Environments[norm] {
		return "", &Error{
			Param:   param,
			Value:   value,
			Message: fmt.Sprintf("invalid %s %q: valid environments are %s", param, value, strings.Join(SortedEnvironments(), ", ")),
		}
	}
	return norm, nil
}

// ValidatePromotionPath checks that (from, to) is one of the allowed forward
// transitions. Both arguments must already be normalized.
func ValidatePromotionPath(from, to string) error {
	if from == to {
		return &Error{
			Param:   "to_env",
			Value:   to,
			Message: "cannot promote to same environment",
		}
	}
	next, ok := promotionPaths[from]
	if ok && next == to {
		return nil
	}
	if ok {
		return &Error{
			Param:   "to_env",
			Value:   to,
			Message: fmt.Sprintf("invalid promotion path %s -> %s: next valid target from %s is %s", from, to, from, next),
		}
	}
	return &Error{
		Param:   "to_env",
		Value:   to,
		Message: fmt.Sprintf("invalid promotion path %s -> %s: backward promotion is not allowed", from, to),
	}
}

// IsProduction reports whether env is the highest-risk environment.
func IsProduction(env string) bool { return env == EnvProd }

// SortedEnvironments returns the whitelist sorted for stable error messages.
func SortedEnvironments() []string {
	envs := make([]string, 0, len(Environments))
	for e := range Environments {
		envs = append(envs, e)
	}
	sort.Strings(envs)
	return envs
}
