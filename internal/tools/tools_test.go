package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"deploygate/api"
	"deploygate/internal/runner"
)

// spyRunner records every invocation and replays a canned result.
type spyRunner struct {
	calls    [][]string
	timeouts []time.Duration
	result   *runner.Result
	err      error
	events   *[]string
}

func (s *spyRunner) Run(_ context.Context, args []string, timeout time.Duration) (*runner.Result, error) {
	s.calls = append(s.calls, args)
	s.timeouts = append(s.timeouts, timeout)
	if s.events != nil {
		*s.events = append(*s.events, "run")
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &runner.Result{ExitCode: 0, Stdout: `{}`, Duration: time.Millisecond}, nil
}

// spyStore records audit writes in order.
type spyStore struct {
	records []*api.AuditRecord
	events  *[]string
}

func (s *spyStore) Write(_ context.Context, r *api.AuditRecord) error {
	s.records = append(s.records, r)
	if s.events != nil {
		*s.events = append(*s.events, "audit")
	}
	return nil
}

func (s *spyStore) Query(context.Context, api.QueryFilter) ([]*api.AuditRecord, error) {
	return nil, nil
}

func (s *spyStore) Stats(context.Context) (*api.AuditStats, error) { return nil, nil }
func (s *spyStore) Close() error                                   { return nil }

func newTestService(t *testing.T, run *spyRunner, store *spyStore) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Runner:         run,
		Store:          store,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		QueryTimeout:   30 * time.Second,
		PromoteTimeout: 300 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func dispatch(t *testing.T, svc *Service, tool, args string) (any, error) {
	t.Helper()
	return svc.Dispatch(context.Background(), tool, json.RawMessage(args))
}

func TestPromote_ValidForward(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: "ok", Duration: 2 * time.Second}}
	svc := newTestService(t, run, &spyStore{})

	result, err := dispatch(t, svc, "promote_release",
		`{"app":"web-api","version":"1.2.3","from_env":"dev","to_env":"staging"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pr, ok := result.(*PromoteResult)
	if !ok {
		t.Fatalf("expected *PromoteResult, got %T", result)
	}
	if pr.Status != "success" {
		t.Errorf("expected status success, got %q", pr.Status)
	}
	if pr.ProductionDeployment {
		t.Error("staging promotion must not be flagged as production")
	}
	if pr.Output != "ok" {
		t.Errorf("expected captured output, got %q", pr.Output)
	}

	if len(run.calls) != 1 {
		t.Fatalf("expected 1 subprocess call, got %d", len(run.calls))
	}
	want := []string{"promote", "web-api", "1.2.3", "dev", "staging"}
	got := run.calls[0]
	if len(got) != len(want) {
		t.Fatalf("unexpected argv: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if run.timeouts[0] != 300*time.Second {
		t.Errorf("expected 300s timeout, got %s", run.timeouts[0])
	}
}

func TestPromote_SkipRejected(t *testing.T) {
	run := &spyRunner{}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "promote_release",
		`{"app":"web-api","version":"1.2.3","from_env":"dev","to_env":"uat"}`)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid promotion path") {
		t.Errorf("expected invalid promotion path, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "staging") {
		t.Errorf("expected message naming staging, got %q", err.Error())
	}
	if len(run.calls) != 0 {
		t.Error("subprocess must not run on validation failure")
	}
}

func TestPromote_BackwardRejected(t *testing.T) {
	run := &spyRunner{}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "promote_release",
		`{"app":"web-api","version":"1.2.3","from_env":"prod","to_env":"staging"}`)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "backward") {
		t.Errorf("expected backward in message, got %q", err.Error())
	}
	if len(run.calls) != 0 {
		t.Error("subprocess must not run on validation failure")
	}
}

func TestPromote_EmptyAppFailsFast(t *testing.T) {
	run := &spyRunner{}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "promote_release",
		`{"app":"   ","version":"1.2.3","from_env":"dev","to_env":"staging"}`)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "app cannot be empty") {
		t.Errorf("expected app cannot be empty, got %q", err.Error())
	}
	if len(run.calls) != 0 {
		t.Error("subprocess must not run on validation failure")
	}
}

func TestPromote_ProductionFlagAndAuditOrder(t *testing.T) {
	var events []string
	run := &spyRunner{
		result: &runner.Result{ExitCode: 0, Stdout: "deployed", Duration: time.Second},
		events: &events,
	}
	store := &spyStore{events: &events}
	svc := newTestService(t, run, store)

	result, err := dispatch(t, svc, "promote_release",
		`{"app":"web-api","version":"2.0.0","from_env":"uat","to_env":"prod"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pr := result.(*PromoteResult)
	if !pr.ProductionDeployment {
		t.Error("expected production_deployment to be true")
	}

	if len(store.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(store.records))
	}
	rec := store.records[0]
	if !rec.Production || rec.ToEnv != "prod" || rec.App != "web-api" {
		t.Errorf("unexpected audit record: %+v", rec)
	}

	// The audit record must land before the subprocess starts.
	if len(events) != 2 || events[0] != "audit" || events[1] != "run" {
		t.Errorf("expected audit before run, got %v", events)
	}
}

func TestPromote_NormalizesCaseAndWhitespace(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: "ok"}}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "promote_release",
		`{"app":" web-api ","version":"1.2.3","from_env":" DEV ","to_env":"Staging"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := run.calls[0]
	if got[3] != "dev" || got[4] != "staging" {
		t.Errorf("expected normalized environments in argv, got %v", got)
	}
}

func TestPromote_NoShellInjection(t *testing.T) {
	dangerous := `"; rm -rf /`
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: "ok"}}
	svc := newTestService(t, run, &spyStore{})

	args, _ := json.Marshal(map[string]string{
		"app":      dangerous,
		"version":  "1.0.0",
		"from_env": "dev",
		"to_env":   "staging",
	})
	_, err := svc.Dispatch(context.Background(), "promote_release", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	argv := run.calls[0]
	if len(argv) != 5 {
		t.Fatalf("expected 5 argv elements, got %d: %v", len(argv), argv)
	}
	if argv[1] != dangerous {
		t.Errorf("dangerous value must be one literal argument, got %q", argv[1])
	}
}

func TestPromote_NonZeroExit(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 1, Stderr: "release not found in uat"}}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "promote_release",
		`{"app":"web-api","version":"9.9.9","from_env":"uat","to_env":"prod"}`)
	if err == nil {
		t.Fatal("expected execution error")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if !strings.Contains(execErr.Error(), "release not found in uat") {
		t.Errorf("expected stderr embedded verbatim, got %q", execErr.Error())
	}
}

func TestPromote_Timeout(t *testing.T) {
	run := &spyRunner{result: &runner.Result{TimedOut: true, ExitCode: -1}}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "promote_release",
		`{"app":"web-api","version":"1.2.3","from_env":"uat","to_env":"prod"}`)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var toErr *TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("expected *TimeoutError, got %T", err)
	}
	if !strings.Contains(err.Error(), "out-of-band") {
		t.Errorf("timeout message must advise an out-of-band check, got %q", err.Error())
	}
}

func TestListReleases_BuildsArgv(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: `[{"version":"1.2.3"}]`}}
	svc := newTestService(t, run, &spyStore{})

	result, err := dispatch(t, svc, "list_releases", `{"app":"web-api","limit":5}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	argv := run.calls[0]
	want := []string{"releases", "web-api", "--limit", "5"}
	if len(argv) != len(want) {
		t.Fatalf("unexpected argv: %v", argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
	if run.timeouts[0] != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", run.timeouts[0])
	}

	m := result.(map[string]any)
	releases := m["releases"].([]any)
	if len(releases) != 1 {
		t.Errorf("expected parsed releases passed through, got %v", m)
	}
}

func TestListReleases_LimitTooSmall(t *testing.T) {
	run := &spyRunner{}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "list_releases", `{"app":"web-api","limit":0}`)
	if err == nil {
		t.Fatal("expected error for limit < 1")
	}
	if len(run.calls) != 0 {
		t.Error("subprocess must not run on validation failure")
	}
}

func TestListReleases_UnparseableOutput(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: "not json at all"}}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "list_releases", `{"app":"web-api"}`)
	if err == nil {
		t.Fatal("expected execution error for unparseable output")
	}
	if !strings.Contains(err.Error(), "not json at all") {
		t.Errorf("raw output must be embedded for diagnosis, got %q", err.Error())
	}
}

func TestCheckHealth_AllEnvironments(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: `[{"env":"dev","healthy":true}]`}}
	svc := newTestService(t, run, &spyStore{})

	result, err := dispatch(t, svc, "check_health", `{}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	argv := run.calls[0]
	if len(argv) != 1 || argv[0] != "health" {
		t.Errorf("expected bare health argv for all environments, got %v", argv)
	}

	m := result.(map[string]any)
	envs := m["environments"].([]string)
	if len(envs) != 4 {
		t.Errorf("expected all 4 environments checked, got %v", envs)
	}
}

func TestCheckHealth_SingleEnvironment(t *testing.T) {
	run := &spyRunner{result: &runner.Result{ExitCode: 0, Stdout: `[{"env":"uat","healthy":true}]`}}
	svc := newTestService(t, run, &spyStore{})

	result, err := dispatch(t, svc, "check_health", `{"environment":" UAT "}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	argv := run.calls[0]
	if len(argv) != 2 || argv[1] != "uat" {
		t.Errorf("expected normalized environment in argv, got %v", argv)
	}
	m := result.(map[string]any)
	envs := m["environments"].([]string)
	if len(envs) != 1 || envs[0] != "uat" {
		t.Errorf("expected single checked environment, got %v", envs)
	}
}

func TestCheckHealth_UnknownEnvironment(t *testing.T) {
	run := &spyRunner{}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "check_health", `{"environment":"qa"}`)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "dev, prod, staging, uat") {
		t.Errorf("expected valid options in message, got %q", err.Error())
	}
	if len(run.calls) != 0 {
		t.Error("subprocess must not run on validation failure")
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	svc := newTestService(t, &spyRunner{}, &spyStore{})

	_, err := dispatch(t, svc, "delete_everything", `{}`)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	code, _ := MapError(err)
	if code != api.CodeMethodNotFound {
		t.Errorf("expected method-not-found code, got %d", code)
	}
}

func TestDispatch_SchemaRejectsWrongType(t *testing.T) {
	run := &spyRunner{}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "list_releases", `{"app":"web-api","limit":"five"}`)
	if err == nil {
		t.Fatal("expected schema violation")
	}
	code, _ := MapError(err)
	if code != api.CodeInvalidParams {
		t.Errorf("expected invalid-params code, got %d", code)
	}
	if len(run.calls) != 0 {
		t.Error("subprocess must not run on schema failure")
	}
}

func TestDispatch_UnavailableCommand(t *testing.T) {
	run := &spyRunner{err: runner.ErrUnavailable}
	svc := newTestService(t, run, &spyStore{})

	_, err := dispatch(t, svc, "check_health", `{}`)
	if err == nil {
		t.Fatal("expected error")
	}
	code, _ := MapError(err)
	if code != api.CodeCommandUnavailable {
		t.Errorf("expected command-unavailable code, got %d", code)
	}
}

func TestRegistry_Descriptors(t *testing.T) {
	svc := newTestService(t, &spyRunner{}, &spyStore{})

	descs := svc.Registry().Descriptors()
	if len(descs) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(descs))
	}
	names := []string{descs[0].Name, descs[1].Name, descs[2].Name}
	want := []string{"list_releases", "check_health", "promote_release"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}
