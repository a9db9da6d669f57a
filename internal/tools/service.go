package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"deploygate/api"
	"deploygate/internal/audit"
	"deploygate/internal/policy"
	"deploygate/internal/runner"
	"deploygate/internal/validate"
)

// CommandRunner is the slice of runner.Runner the handlers need. Tests swap
// in a spy to prove the fail-fast invariant.
type CommandRunner interface {
	Run(ctx context.Context, args []string, timeout time.Duration) (*runner.Result, error)
}

// Service wires the tool handlers to their collaborators.
type Service struct {
	runner         CommandRunner
	store          audit.Store
	engine         policy.Engine
	logger         *slog.Logger
	queryTimeout   time.Duration
	promoteTimeout time.Duration

	registry *Registry
}

// Options configures a Service.
type Options struct {
	Runner         CommandRunner
	Store          audit.Store
	Engine         policy.Engine
	Logger         *slog.Logger
	QueryTimeout   time.Duration
	PromoteTimeout time.Duration
}

// NewService builds the service and registers the tool set.
func NewService(opts Options) (*Service, error) {
	s := &Service{
		runner:         opts.Runner,
		store:          opts.Store,
		engine:         opts.Engine,
		logger:         opts.Logger,
		queryTimeout:   opts.QueryTimeout,
		promoteTimeout: opts.PromoteTimeout,
		registry:       NewRegistry(),
	}

	regs := []struct {
		name, desc string
		schema     json.RawMessage
		handler    Handler
	}{
		{"list_releases", "List recorded releases for an application", listReleasesSchema, s.handleListReleases},
		{"check_health", "Check deployment health for one or all environments", checkHealthSchema, s.handleCheckHealth},
		{"promote_release", "Promote a release one step along the environment chain", promoteReleaseSchema, s.handlePromoteRelease},
	}
	for _, r := range regs {
		if err := s.registry.Register(r.name, r.desc, r.schema, r.handler); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Registry exposes the tool set for tools/list.
func (s *Service) Registry() *Registry { return s.registry }

// Dispatch runs one tool call: lookup, schema check, policy gate, handler.
// Every failure comes back as one of the typed errors MapError understands.
func (s *Service) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool := s.registry.Lookup(name)
	if tool == nil {
		return nil, &UnknownToolError{Name: name}
	}
	if err := tool.checkSchema(args); err != nil {
		s.logger.Warn("schema validation failed", "tool", name, "error", err)
		return nil, err
	}
	if err := s.checkPolicy(ctx, name, args); err != nil {
		return nil, err
	}
	return tool.handler(ctx, args)
}

func (s *Service) checkPolicy(ctx context.Context, name string, args json.RawMessage) error {
	if s.engine == nil {
		return nil
	}
	input := &policy.EvalInput{
		Tool:      name,
		Arguments: args,
		Promotion: promotionFacts(name, args),
	}
	result, err := s.engine.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	switch result.Verdict {
	case api.VerdictDeny:
		s.logger.Warn("tool call denied by policy",
			"tool", name,
			"rule", result.Rule,
			"message", result.Message,
		)
		s.writeAudit(ctx, policyRecord(name, args, input.Promotion, result))
		return &PolicyDeniedError{Tool: name, Rule: result.Rule, Message: result.Message}
	case api.VerdictLog:
		s.writeAudit(ctx, policyRecord(name, args, input.Promotion, result))
	}
	return nil
}

func policyRecord(name string, args json.RawMessage, facts *policy.PromotionFacts, result *policy.EvalResult) *api.AuditRecord {
	record := &api.AuditRecord{
		Tool:      name,
		Arguments: args,
		Verdict:   result.Verdict,
		Rule:      result.Rule,
		Message:   result.Message,
	}
	if facts != nil {
		record.App = facts.App
		record.Version = facts.Version
		record.FromEnv = facts.FromEnv
		record.ToEnv = facts.ToEnv
		record.Production = facts.Production
	}
	return record
}

// promotionFacts normalizes promotion arguments for policy matching. Facts
// exist only when the parameters would pass validation; anything else is
// left for the handler to reject.
func promotionFacts(name string, args json.RawMessage) *policy.PromotionFacts {
	if name != "promote_release" || args == nil {
		return nil
	}
	var req validate.PromotionRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil
	}
	promo, err := validate.ValidatePromotion(req)
	if err != nil {
		return nil
	}
	return &policy.PromotionFacts{
		App:        promo.App,
		Version:    promo.Version,
		FromEnv:    promo.FromEnv,
		ToEnv:      promo.ToEnv,
		Production: validate.IsProduction(promo.ToEnv),
	}
}

// writeAudit records intent. Audit failures are logged, never surfaced: the
// record is advisory and must not block execution.
func (s *Service) writeAudit(ctx context.Context, record *api.AuditRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.Write(ctx, record); err != nil {
		s.logger.Error("writing audit record", "tool", record.Tool, "error", err)
	}
}
