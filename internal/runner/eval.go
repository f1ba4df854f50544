package runner

import (
	"context"
	"fmt"
	"time"

	"planbench/internal/failure"
	"planbench/internal/plan"
	"planbench/internal/result"
	"planbench/internal/sandbox"
	"planbench/internal/task"
)

// Planner produces a plan for a task and refines it after a failure.
type Planner interface {
	Plan(ctx context.Context, t *task.Task, format plan.Format) (*plan.Plan, error)
	Refine(ctx context.Context, t *task.Task, prev *plan.Plan, failureLog string, cases []failure.Case) (*plan.Plan, error)
}

// Generator turns a plan into candidate code and patches failing candidates.
type Generator interface {
	Generate(ctx context.Context, t *task.Task, p *plan.Plan) (string, error)
	Repair(ctx context.Context, t *task.Task, p *plan.Plan, badCode, failureLog string) (string, error)
}

// Opts configures the evaluation of a single task.
type Opts struct {
	Task      *task.Task
	Format    plan.Format
	Planner   Planner
	Generator Generator
	Executor  sandbox.Executor

	Timeout      time.Duration
	ReplanRounds int
	RepairRounds int

	// ArtifactPath, when set, receives a copy of the most recently
	// executed candidate program.
	ArtifactPath string
}

// Evaluate runs one task through the pipeline. A failing initial candidate
// gets up to ReplanRounds plan refinements followed by up to RepairRounds
// code repairs; the first passing candidate ends the run.
//
// A candidate failing its tests is normal flow and is captured in the
// returned record. An error return means the harness itself broke and no
// record was produced.
func Evaluate(ctx context.Context, opts *Opts) (*result.Record, error) {
	start := time.Now()
	rec := &result.Record{
		TaskID:     opts.Task.ID,
		PlanFormat: string(opts.Format),
	}

	var curCode string
	var res *sandbox.Result
	curPlan, err := opts.Planner.Plan(ctx, opts.Task, opts.Format)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A planner failure counts as a failing first attempt; the
		// replan rounds retry from an empty plan.
		curPlan = &plan.Plan{Format: opts.Format}
		res = &sandbox.Result{Log: "plan generation failed: " + err.Error()}
	} else {
		curCode, res, err = generateAndRun(ctx, opts, curPlan)
		if err != nil {
			return nil, err
		}
	}
	rec.FirstCode = curCode
	logText := res.Log
	passed := res.Passed

	if !passed && opts.ReplanRounds > 0 {
		rec.Replanned = true
		rec.FirstLogs = logText
		for r := 1; r <= opts.ReplanRounds; r++ {
			rec.ReplanRoundsUsed = r
			cases := failure.ExtractCases(logText, failure.DefaultMaxCases)
			newPlan, err := opts.Planner.Refine(ctx, opts.Task, curPlan, logText, cases)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logText = "plan generation failed: " + err.Error()
				continue
			}
			curPlan = newPlan
			code, runRes, err := generateAndRun(ctx, opts, curPlan)
			if err != nil {
				return nil, err
			}
			curCode = code
			logText = runRes.Log
			if runRes.Passed {
				passed = true
				break
			}
		}
	}

	if !passed && opts.RepairRounds > 0 {
		rec.Repaired = true
		if rec.FirstLogs == "" {
			rec.FirstLogs = logText
		}
		for r := 1; r <= opts.RepairRounds; r++ {
			rec.RepairRoundsUsed = r
			newCode, err := opts.Generator.Repair(ctx, opts.Task, curPlan, curCode, logText)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logText = "code generation failed: " + err.Error()
				continue
			}
			curCode = newCode
			runRes, err := execute(ctx, opts, curCode)
			if err != nil {
				return nil, err
			}
			logText = runRes.Log
			if runRes.Passed {
				passed = true
				break
			}
		}
	}

	rec.Plan = curPlan.Content
	rec.Code = curCode
	rec.Passed = passed
	rec.DurationS = int(time.Since(start).Seconds())
	if !passed {
		rec.Logs = logText
	}
	return rec, nil
}

// generateAndRun turns a plan into code and executes it. A failing LLM call
// becomes a failing attempt with a synthetic log; nothing is executed that
// round.
func generateAndRun(ctx context.Context, opts *Opts, p *plan.Plan) (string, *sandbox.Result, error) {
	code, err := opts.Generator.Generate(ctx, opts.Task, p)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", &sandbox.Result{Log: "code generation failed: " + err.Error()}, nil
	}
	res, err := execute(ctx, opts, code)
	if err != nil {
		return "", nil, err
	}
	return code, res, nil
}

func execute(ctx context.Context, opts *Opts, code string) (*sandbox.Result, error) {
	res, err := opts.Executor.Execute(ctx, &sandbox.Request{
		Code:         code,
		Test:         opts.Task.Test,
		EntryPoint:   opts.Task.EntryPoint,
		Timeout:      opts.Timeout,
		ArtifactPath: opts.ArtifactPath,
	})
	if err != nil {
		return nil, fmt.Errorf("executing candidate for %s: %w", opts.Task.ID, err)
	}
	return res, nil
}
