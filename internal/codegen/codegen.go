package codegen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"planbench/internal/llm"
	"planbench/internal/plan"
	"planbench/internal/task"
)

const (
	genTemperature    = 0.2
	genMaxTokens      = 1024
	repairTemperature = 0.1
	repairMaxTokens   = 1200
	assertWindow      = 3
)

const systemPrompt = `You are a precise Python coding assistant. Given ONLY a high-level PLAN, produce a single, self-contained Python solution that:
- defines exactly the required function with the specified name/signature from the task prompt,
- uses only the Python standard library,
- avoids any file/network/IO, randomness, or global side effects,
- is deterministic.
Return ONLY raw Python code (no markdown fences, no commentary).`

const repairSystemPrompt = `You are a Python debugging assistant. You will receive:
- the exact function signature + docstring (contract),
- a high-level PLAN that must be respected,
- a CURRENT (failing) implementation of the function,
- test failure information (traceback/assertion message).
Task: produce a corrected implementation that fixes the failure while preserving the signature, keeping the solution deterministic and only using the standard library.
Return ONLY raw Python code (no markdown, no explanations).`

// formatHints tell the coder model how to read each plan format.
var formatHints = map[plan.Format]string{
	plan.FormatNL: "Interpret the numbered natural-language steps as exact actions. " +
		"Translate each action into Python statements using the same parameter names. " +
		"Make conditionals explicit (if/else). Keep helpers local.",
	plan.FormatYAML: "YAML has keys: io (inputs/outputs), steps (list of short actions), edges (edge cases). " +
		"Implement the algorithm STRICTLY by following `steps`, translating each item to Python code. " +
		"Use real Python operations implied by the text (e.g., filtering with str.isalnum, lower(), slicing for reverse). " +
		"Honor edge cases when they affect control flow (e.g., 'empty string → None').",
	plan.FormatDSL: "The plan is a single STRUCTURED_PLAN{...} block. Semantics:\n" +
		"- NODE<ID>: single operation (e.g., SET x = expr)\n" +
		"- BRANCH<ID>: IF <cond> THEN GOTO <NODE/RETURN_ID> ELSE GOTO <NODE/RETURN_ID>\n" +
		"- LOOP<ID>: FOR <var> IN <expr>: GOTO <NODE_ID>\n" +
		"- RETURN<ID>: RETURN <expr>\n" +
		"All control flow is explicit via GOTO/RETURN. Implement EXACTLY this flow using Python if/else, for-loops, " +
		"assignments, and returns. Helpers may be local functions if needed.",
	plan.FormatFlow: "Treat each node label as a short action and execute them in the given flow order. " +
		"Translate nodes to Python statements; implement decision nodes as if/else; " +
		"finish with the final return node.",
}

// Generator turns plans into Python implementations through a chat model.
type Generator struct {
	Client *llm.Client
}

// Generate asks the model to implement the task's contract by following the
// plan exactly, then extracts the best code block from the response.
func (g *Generator) Generate(ctx context.Context, t *task.Task, p *plan.Plan) (string, error) {
	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Follow these constraints strictly:\n" +
			"- Entry point (function to implement): " + t.EntryPoint + "\n" +
			"- Do not change the function name.\n" +
			"- Do not add top-level prints or I/O.\n" +
			"- If helpers are used, define them locally in this file."},
		{Role: "user", Content: "Function signature and docstring (use as the exact contract):\n```\n" + t.Prompt + "\n```"},
		{Role: "user", Content: fmt.Sprintf("PLAN format = %s.\nGuidance for translation:\n%s\n\nPLAN (implement EXACTLY this algorithm):\n%s",
			p.Format, formatHints[p.Format], p.Content)},
	}

	raw, err := g.Client.Complete(ctx, msgs, genTemperature, genMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generating code for %s: %w", t.ID, err)
	}
	return BestCode(raw, t.EntryPoint), nil
}

// Repair asks the model for a minimal fix to a failing implementation,
// pointing it at the assertion context closest to the failure.
func (g *Generator) Repair(ctx context.Context, t *task.Task, p *plan.Plan, badCode, failureLog string) (string, error) {
	assertCtx := assertContext(failureLog, assertWindow)
	if assertCtx == "" {
		assertCtx = "(not found)"
	}

	msgs := []llm.Message{
		{Role: "system", Content: repairSystemPrompt},
		{Role: "user", Content: "Constraints:\n" +
			"- Entry point (function to implement): " + t.EntryPoint + "\n" +
			"- Keep the exact function name and signature.\n" +
			"- Use only Python standard library.\n" +
			"- No top-level I/O."},
		{Role: "user", Content: "Function signature and docstring:\n```\n" + t.Prompt + "\n```"},
		{Role: "user", Content: fmt.Sprintf("PLAN format = %s.\nGuidance for translation:\n%s\n\nPLAN (must be respected):\n%s",
			p.Format, formatHints[p.Format], p.Content)},
		{Role: "user", Content: "Current failing implementation:\n```python\n" + badCode + "\n```"},
		{Role: "user", Content: "Full failing logs:\n```\n" + failureLog + "\n```"},
		{Role: "user", Content: "Failing assertion context (closest lines):\n" + assertCtx},
	}
	if t.Test != "" {
		msgs = append(msgs, llm.Message{Role: "user", Content: "Official tests:\n```\n" + t.Test + "\n```"})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: "Apply the minimal necessary changes to fix the failure. " +
		"Do not rewrite unrelated parts. Return ONLY the full corrected Python code."})

	raw, err := g.Client.Complete(ctx, msgs, repairTemperature, repairMaxTokens)
	if err != nil {
		return "", fmt.Errorf("repairing code for %s: %w", t.ID, err)
	}
	return BestCode(raw, t.EntryPoint), nil
}

var fenceSplit = regexp.MustCompile("`{3,}")

// BestCode extracts Python source from a model response. Fenced responses
// prefer the block defining entryPoint, then the longest block; unfenced
// responses are kept with stray backticks removed.
func BestCode(text, entryPoint string) string {
	if text == "" {
		return ""
	}
	parts := fenceSplit.Split(text, -1)
	if len(parts) < 3 {
		return strings.TrimSpace(strings.ReplaceAll(text, "`", ""))
	}

	var blocks []string
	for i := 1; i < len(parts); i += 2 {
		block := parts[i]
		if strings.HasPrefix(strings.ToLower(block), "python") {
			if nl := strings.Index(block, "\n"); nl >= 0 {
				block = block[nl+1:]
			}
		}
		blocks = append(blocks, block)
	}

	defRe := regexp.MustCompile(`def\s+` + regexp.QuoteMeta(entryPoint) + `\s*\(`)
	for _, block := range blocks {
		if defRe.MatchString(block) {
			return strings.TrimSpace(block)
		}
	}
	longest := blocks[0]
	for _, block := range blocks[1:] {
		if len(block) > len(longest) {
			longest = block
		}
	}
	return strings.TrimSpace(longest)
}

// assertContext collects the lines around assertion failures so repair
// prompts can point at the exact failing comparison.
func assertContext(log string, window int) string {
	if log == "" {
		return ""
	}
	lines := strings.Split(log, "\n")
	var hits []string
	for i, line := range lines {
		if !strings.Contains(line, "AssertionError") && !strings.HasPrefix(strings.TrimSpace(line), "assert ") {
			continue
		}
		start := i - window
		if start < 0 {
			start = 0
		}
		end := i + window + 1
		if end > len(lines) {
			end = len(lines)
		}
		hits = append(hits, strings.Join(lines[start:end], "\n"))
	}
	return strings.Join(hits, "\n\n---\n\n")
}
