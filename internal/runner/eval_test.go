package runner_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"planbench/internal/failure"
	"planbench/internal/plan"
	"planbench/internal/runner"
	"planbench/internal/sandbox"
	"planbench/internal/task"
)

type stubPlanner struct {
	planErr     error
	refineErr   error
	planCalls   int
	refineCalls int
	lastLog     string
	lastCases   []failure.Case
}

func (s *stubPlanner) Plan(ctx context.Context, t *task.Task, format plan.Format) (*plan.Plan, error) {
	s.planCalls++
	if s.planErr != nil {
		return nil, s.planErr
	}
	return &plan.Plan{Format: format, Content: "plan v1"}, nil
}

func (s *stubPlanner) Refine(ctx context.Context, t *task.Task, prev *plan.Plan, failureLog string, cases []failure.Case) (*plan.Plan, error) {
	s.refineCalls++
	s.lastLog = failureLog
	s.lastCases = cases
	if s.refineErr != nil {
		return nil, s.refineErr
	}
	return &plan.Plan{Format: prev.Format, Content: fmt.Sprintf("plan v%d", s.refineCalls+1)}, nil
}

type stubGenerator struct {
	genErr      error
	repairErr   error
	genCalls    int
	repairCalls int
}

func (s *stubGenerator) Generate(ctx context.Context, t *task.Task, p *plan.Plan) (string, error) {
	s.genCalls++
	if s.genErr != nil {
		return "", s.genErr
	}
	return fmt.Sprintf("code from %s", p.Content), nil
}

func (s *stubGenerator) Repair(ctx context.Context, t *task.Task, p *plan.Plan, badCode, failureLog string) (string, error) {
	s.repairCalls++
	if s.repairErr != nil {
		return "", s.repairErr
	}
	return fmt.Sprintf("repaired v%d", s.repairCalls), nil
}

// scriptedExecutor replays a fixed sequence of results, repeating the last
// one if called again.
type scriptedExecutor struct {
	results []*sandbox.Result
	err     error
	reqs    []*sandbox.Request
}

func (s *scriptedExecutor) Execute(ctx context.Context, req *sandbox.Request) (*sandbox.Result, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.reqs) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

func sampleTask() *task.Task {
	return &task.Task{
		ID:         "HumanEval/0",
		Prompt:     "def add(a, b):\n    \"\"\"Return the sum of a and b.\"\"\"\n",
		EntryPoint: "add",
		Test:       "def check(candidate):\n    assert candidate(1, 2) == 3\n\ncheck(add)\n",
	}
}

func pass() *sandbox.Result {
	return &sandbox.Result{Passed: true, Log: "[planbench] END_TESTS (PASSED)"}
}

func fail(log string) *sandbox.Result {
	return &sandbox.Result{Passed: false, Log: log}
}

func TestEvaluateInitialPass(t *testing.T) {
	p := &stubPlanner{}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{pass()}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: 8 * time.Second, ReplanRounds: 3, RepairRounds: 2,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rec.Passed {
		t.Error("expected passed record")
	}
	if rec.Replanned || rec.Repaired {
		t.Errorf("no rounds should be entered on first pass: %+v", rec)
	}
	if rec.ReplanRoundsUsed != 0 || rec.RepairRoundsUsed != 0 {
		t.Errorf("rounds used: got %d/%d, want 0/0", rec.ReplanRoundsUsed, rec.RepairRoundsUsed)
	}
	if rec.FirstCode != rec.Code || rec.Code != "code from plan v1" {
		t.Errorf("code: first %q final %q", rec.FirstCode, rec.Code)
	}
	if rec.Logs != "" {
		t.Errorf("passing record should not carry logs, got %q", rec.Logs)
	}
	if p.refineCalls != 0 || g.repairCalls != 0 {
		t.Errorf("refine/repair called on first pass: %d/%d", p.refineCalls, g.repairCalls)
	}
	if len(ex.reqs) != 1 {
		t.Fatalf("executor calls: got %d, want 1", len(ex.reqs))
	}
	req := ex.reqs[0]
	if req.EntryPoint != "add" || req.Timeout != 8*time.Second {
		t.Errorf("request: %+v", req)
	}
}

func TestEvaluateReplanRecovers(t *testing.T) {
	failLog := "Traceback (most recent call last):\n" +
		"  File \"candidate.py\", line 9, in check\n" +
		"    assert candidate(1, 2) == 3\n" +
		"AssertionError: 2 != 3"
	p := &stubPlanner{}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{
		fail(failLog),
		pass(),
	}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatYAML,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 3, RepairRounds: 2,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rec.Passed || !rec.Replanned || rec.Repaired {
		t.Errorf("flags: passed=%v replanned=%v repaired=%v", rec.Passed, rec.Replanned, rec.Repaired)
	}
	if rec.ReplanRoundsUsed != 1 {
		t.Errorf("replan rounds used: got %d, want 1", rec.ReplanRoundsUsed)
	}
	if rec.FirstLogs != failLog {
		t.Errorf("first logs: got %q", rec.FirstLogs)
	}
	if rec.Plan != "plan v2" {
		t.Errorf("final plan: got %q", rec.Plan)
	}
	if rec.FirstCode != "code from plan v1" || rec.Code != "code from plan v2" {
		t.Errorf("code: first %q final %q", rec.FirstCode, rec.Code)
	}
	if p.lastLog != failLog {
		t.Errorf("refine got log %q", p.lastLog)
	}
	// The failing cases come from the assert line in the traceback.
	if len(p.lastCases) != 1 || p.lastCases[0].Input != "1, 2" || p.lastCases[0].Expected != "3" {
		t.Errorf("refine got cases %+v", p.lastCases)
	}
}

func TestEvaluateReplanExhausted(t *testing.T) {
	p := &stubPlanner{}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{fail("TypeError: bad")}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 2, RepairRounds: 0,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Passed || !rec.Replanned || rec.Repaired {
		t.Errorf("flags: passed=%v replanned=%v repaired=%v", rec.Passed, rec.Replanned, rec.Repaired)
	}
	if rec.ReplanRoundsUsed != 2 {
		t.Errorf("replan rounds used: got %d, want 2", rec.ReplanRoundsUsed)
	}
	if len(ex.reqs) != 3 {
		t.Errorf("executor calls: got %d, want 3", len(ex.reqs))
	}
	if rec.Logs != "TypeError: bad" {
		t.Errorf("final logs: got %q", rec.Logs)
	}
}

func TestEvaluateRepairedSetOnEntry(t *testing.T) {
	p := &stubPlanner{}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{fail("AssertionError")}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 0, RepairRounds: 2,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Passed {
		t.Error("expected failing record")
	}
	if !rec.Repaired || rec.Replanned {
		t.Errorf("flags: replanned=%v repaired=%v", rec.Replanned, rec.Repaired)
	}
	if rec.RepairRoundsUsed != 2 {
		t.Errorf("repair rounds used: got %d, want 2", rec.RepairRoundsUsed)
	}
	if rec.FirstLogs != "AssertionError" {
		t.Errorf("first logs: got %q", rec.FirstLogs)
	}
	if rec.Code != "repaired v2" {
		t.Errorf("final code: got %q", rec.Code)
	}
	if g.repairCalls != 2 {
		t.Errorf("repair calls: got %d, want 2", g.repairCalls)
	}
}

func TestEvaluateRepairFixes(t *testing.T) {
	p := &stubPlanner{}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{
		fail("AssertionError"),
		pass(),
	}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatDSL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 0, RepairRounds: 3,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rec.Passed || !rec.Repaired {
		t.Errorf("flags: passed=%v repaired=%v", rec.Passed, rec.Repaired)
	}
	if rec.RepairRoundsUsed != 1 {
		t.Errorf("repair rounds used: got %d, want 1", rec.RepairRoundsUsed)
	}
	if rec.Code != "repaired v1" {
		t.Errorf("final code: got %q", rec.Code)
	}
	if rec.Logs != "" {
		t.Errorf("passing record should not carry logs, got %q", rec.Logs)
	}
}

func TestEvaluatePlannerFailureFeedsReplan(t *testing.T) {
	p := &stubPlanner{planErr: errors.New("model unavailable")}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{pass()}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 1, RepairRounds: 0,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rec.Passed || !rec.Replanned {
		t.Errorf("flags: passed=%v replanned=%v", rec.Passed, rec.Replanned)
	}
	if rec.FirstCode != "" {
		t.Errorf("first code should be empty, got %q", rec.FirstCode)
	}
	if !strings.Contains(rec.FirstLogs, "plan generation failed: model unavailable") {
		t.Errorf("first logs: got %q", rec.FirstLogs)
	}
	if !strings.Contains(p.lastLog, "plan generation failed") {
		t.Errorf("refine got log %q", p.lastLog)
	}
	// Nothing to execute until a plan exists.
	if len(ex.reqs) != 1 {
		t.Errorf("executor calls: got %d, want 1", len(ex.reqs))
	}
}

func TestEvaluateGenerateFailureFeedsRepair(t *testing.T) {
	p := &stubPlanner{}
	g := &stubGenerator{genErr: errors.New("model unavailable")}
	ex := &scriptedExecutor{results: []*sandbox.Result{pass()}}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 0, RepairRounds: 1,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rec.Passed || !rec.Repaired {
		t.Errorf("flags: passed=%v repaired=%v", rec.Passed, rec.Repaired)
	}
	if !strings.Contains(rec.FirstLogs, "code generation failed: model unavailable") {
		t.Errorf("first logs: got %q", rec.FirstLogs)
	}
	if rec.Code != "repaired v1" {
		t.Errorf("final code: got %q", rec.Code)
	}
	// The failed generation round never reaches the executor.
	if len(ex.reqs) != 1 {
		t.Errorf("executor calls: got %d, want 1", len(ex.reqs))
	}
}

func TestEvaluateExecutorErrorAborts(t *testing.T) {
	p := &stubPlanner{}
	g := &stubGenerator{}
	ex := &scriptedExecutor{err: errors.New("docker daemon unreachable")}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
	if !strings.Contains(err.Error(), "executing candidate for HumanEval/0") {
		t.Errorf("error: got %q", err)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &stubPlanner{planErr: errors.New("request aborted")}
	g := &stubGenerator{}
	ex := &scriptedExecutor{results: []*sandbox.Result{pass()}}

	_, err := runner.Evaluate(ctx, &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner: p, Generator: g, Executor: ex,
		Timeout: time.Second, ReplanRounds: 3,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type fixedPlanner struct{}

func (fixedPlanner) Plan(ctx context.Context, t *task.Task, format plan.Format) (*plan.Plan, error) {
	return &plan.Plan{Format: format, Content: "1. Return the sum of a and b."}, nil
}

func (fixedPlanner) Refine(ctx context.Context, t *task.Task, prev *plan.Plan, failureLog string, cases []failure.Case) (*plan.Plan, error) {
	return prev, nil
}

type fixingGenerator struct{}

func (fixingGenerator) Generate(ctx context.Context, t *task.Task, p *plan.Plan) (string, error) {
	return "def add(a, b):\n    return a - b\n", nil
}

func (fixingGenerator) Repair(ctx context.Context, t *task.Task, p *plan.Plan, badCode, failureLog string) (string, error) {
	return "def add(a, b):\n    return a + b\n", nil
}

func TestEvaluateEndToEndRepair(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found in PATH")
	}

	rec, err := runner.Evaluate(context.Background(), &runner.Opts{
		Task: sampleTask(), Format: plan.FormatNL,
		Planner:   fixedPlanner{},
		Generator: fixingGenerator{},
		Executor:  &sandbox.ProcessExecutor{},
		Timeout:   10 * time.Second, ReplanRounds: 0, RepairRounds: 1,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !rec.Passed {
		t.Errorf("expected repaired candidate to pass, logs:\n%s", rec.Logs)
	}
	if !rec.Repaired || rec.RepairRoundsUsed != 1 || rec.Replanned {
		t.Errorf("flags: %+v", rec)
	}
	if !strings.Contains(rec.FirstLogs, "AssertionError") {
		t.Errorf("first logs should show the assertion failure, got:\n%s", rec.FirstLogs)
	}
	if rec.FirstCode == rec.Code {
		t.Error("final code should differ from first code")
	}
}
