package planner

import (
	"context"
	"fmt"
	"log"

	"planbench/internal/failure"
	"planbench/internal/llm"
	"planbench/internal/plan"
	"planbench/internal/task"
)

const (
	planTemperature   = 0.2
	planMaxTokens     = 800
	refineTemperature = 0.1
	refineMaxTokens   = 900
	maxContextChars   = 10000
)

// Planner produces and refines implementation plans through a chat model.
type Planner struct {
	Client *llm.Client
}

// Plan asks the model for a plan in the given format, using the format's
// few-shot template, and normalizes the response down to the plan block.
func (p *Planner) Plan(ctx context.Context, t *task.Task, format plan.Format) (*plan.Plan, error) {
	tpl, ok := templates[format]
	if !ok {
		return nil, fmt.Errorf("no prompt template for format %q", format)
	}

	msgs := []llm.Message{{Role: "system", Content: tpl.system}}
	for _, shot := range tpl.shots {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: fmt.Sprintf("Entry point: %s\nTask:\n%s", shot.entryPoint, shot.prompt)},
			llm.Message{Role: "assistant", Content: shot.plan},
		)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: fmt.Sprintf("Entry point: %s\nTask:\n%s", t.EntryPoint, t.Prompt)})

	content, err := p.Client.Complete(ctx, msgs, planTemperature, planMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("planning %s: %w", t.ID, err)
	}
	out := &plan.Plan{
		Format:  format,
		Content: plan.ExtractBlock(format, plan.StripFences(content)),
	}
	if err := plan.CheckSyntax(out); err != nil {
		log.Printf("task %s: plan syntax warning: %v", t.ID, err)
	}
	return out, nil
}

// Refine rewrites a failing plan in the same format, feeding the model the
// contract, the previous plan, the official tests and the failure evidence.
func (p *Planner) Refine(ctx context.Context, t *task.Task, prev *plan.Plan, failureLog string, cases []failure.Case) (*plan.Plan, error) {
	clippedLog := plan.Clip(failureLog, maxContextChars/2)
	clippedTest := plan.Clip(t.Test, maxContextChars/2)

	msgs := []llm.Message{
		{Role: "system", Content: replanSystems[prev.Format]},
		{Role: "user", Content: fmt.Sprintf("Entry point: %s\nFunction signature and docstring (contract):\n```\n%s\n```", t.EntryPoint, t.Prompt)},
	}
	if caseMsg := failure.FormatCases(cases); caseMsg != "" {
		msgs = append(msgs, llm.Message{Role: "user", Content: caseMsg})
	}
	msgs = append(msgs,
		llm.Message{Role: "user", Content: "Previous plan (same format):\n" + prev.Content},
		llm.Message{Role: "user", Content: "Official tests (reference):\n```\n" + clippedTest + "\n```"},
		llm.Message{Role: "user", Content: "Failing logs (full traceback):\n```\n" + clippedLog + "\n```"},
		llm.Message{Role: "user", Content: "Output the corrected plan in the SAME format ONLY."},
	)

	content, err := p.Client.Complete(ctx, msgs, refineTemperature, refineMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("refining plan for %s: %w", t.ID, err)
	}
	return &plan.Plan{
		Format:  prev.Format,
		Content: plan.ExtractBlock(prev.Format, plan.StripFences(content)),
	}, nil
}
