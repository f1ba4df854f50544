package planner

import "planbench/internal/plan"

// fewShot pairs an example contract with a plan in the target format.
type fewShot struct {
	entryPoint string
	prompt     string
	plan       string
}

type promptTemplate struct {
	system string
	shots  []fewShot
}

var templates = map[plan.Format]promptTemplate{
	plan.FormatNL: {
		system: `You are a planning specialist. Given a function signature and docstring, produce a numbered, minimal, purely natural-language PLAN for solving the task.
Rules:
- 5-8 steps, each a single action; keep each step short.
- Use the exact parameter names from the signature.
- Prefer real Python terms (len, lower, sorted, set, dict, Counter, hashlib.md5(...).hexdigest()).
- Make conditionals explicit: IF <condition> THEN <action> ELSE <action>.
- End with an explicit return description (e.g., 'return True', 'return the computed value').
No code blocks or pseudo-code; only crisp action steps.`,
		shots: []fewShot{
			{
				entryPoint: "is_palindrome",
				prompt: `def is_palindrome(s: str) -> bool:
    """Return True if s is a palindrome, ignoring case and non-alphanumerics."""
`,
				plan: `1. Remove all non-alphanumeric characters from s.
2. Convert the filtered string to lowercase.
3. Compute the reverse of the normalized string.
4. IF the normalized string equals its reverse THEN return True ELSE return False.
5. Edge cases: empty string or single character should return True.`,
			},
			{
				entryPoint: "sum_unique",
				prompt: `def sum_unique(nums: list[int]) -> int:
    """Return the sum of elements that occur exactly once in nums."""
`,
				plan: `1. Build a frequency map for nums (e.g., using a counter/dictionary).
2. Identify values whose frequency equals 1.
3. Sum those unique values.
4. Return the sum.
5. Edge cases: empty list returns 0.`,
			},
		},
	},

	plan.FormatYAML: {
		system: `You are a planning specialist. Output a VALID YAML object with keys:
  - io: inputs/outputs
  - steps: list of short, single-action instructions (use real Python terms)
  - edges: list of edge cases
Do NOT include code blocks or Markdown fences. Keep steps minimal and actionable.`,
		shots: []fewShot{
			{
				entryPoint: "is_palindrome",
				prompt: `def is_palindrome(s: str) -> bool:
    """Return True if s is a palindrome, ignoring case and non-alphanumerics."""
`,
				plan: `io:
  inputs: [s: str]
  outputs: [bool]
steps:
  - filter s to keep only alphanumeric characters
  - lowercase the filtered string
  - compute the reverse of the normalized string
  - if normalized equals its reverse then return True else return False
edges:
  - empty string → True
  - single char → True
`,
			},
			{
				entryPoint: "sum_unique",
				prompt: `def sum_unique(nums: list[int]) -> int:
    """Return the sum of elements that occur exactly once in nums."""
`,
				plan: `io:
  inputs: [nums: list[int]]
  outputs: [int]
steps:
  - build a frequency map of nums (e.g., counts)
  - identify values with count == 1
  - sum those unique values
  - return the sum
edges:
  - empty list → 0
`,
			},
		},
	},

	plan.FormatDSL: {
		system: `You are a senior Python algorithm-planning assistant. Produce ONLY a structured control-flow plan in the DSL below, with no extra commentary or code.

DSL SPEC (keywords uppercase):
--------------------------------------------------------------------
STRUCTURED_PLAN{
  NODE<ID>: <single operation>
  BRANCH<ID>: IF <condition> THEN GOTO <NODE/RETURN_ID> ELSE GOTO <NODE/RETURN_ID>
  LOOP<ID>: FOR <var> IN <expr>: GOTO <NODE_ID>
  RETURN<ID>: RETURN <expr>
}
All jumps must be explicit via GOTO or RETURN. Each branch must cover all outcomes. End every path with a RETURN statement.
--------------------------------------------------------------------
Output ONLY a single STRUCTURED_PLAN{...} block.`,
		shots: []fewShot{
			{
				entryPoint: "encrypt",
				prompt: `def encrypt(s):
    """
    Return an encrypted string where each character is shifted forward by 4 positions
    (alphabet rotation by 2 x 2).
    """
`,
				plan: `STRUCTURED_PLAN{
  BRANCH0: IF len(s) == 0 THEN GOTO RETURN_EMPTY ELSE GOTO NODE1
  NODE1: SET alpha = "abcdefghijklmnopqrstuvwxyz"
  NODE2: SET res = ""
  LOOP1: FOR ch IN s: GOTO BRANCH1

  BRANCH1: IF ch in alpha THEN GOTO NODE3 ELSE GOTO NODE4
  NODE3: SET idx = (index(alpha, ch) + 4) % 26
         SET res = res + alpha[idx]
         GOTO LOOP1
  NODE4: SET res = res + ch
         GOTO LOOP1

  RETURN_ENCRYPTED: RETURN res
  RETURN_EMPTY: RETURN ""
}`,
			},
			{
				entryPoint: "check_if_last_char_is_a_letter",
				prompt: `def check_if_last_char_is_a_letter(txt):
    """
    Return True iff the last non-space character of txt is a standalone alphabetical
    letter (word length = 1).
    """
`,
				plan: `STRUCTURED_PLAN{
  NODE1: SET stripped = txt.rstrip()
  BRANCH1: IF len(stripped) == 0 THEN GOTO RETURN_FALSE ELSE GOTO NODE2

  NODE2: SET last = stripped[-1]
  BRANCH2: IF last not in "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" THEN GOTO RETURN_FALSE ELSE GOTO NODE3

  NODE3: SET words = stripped.split()
  BRANCH3: IF len(words[-1]) == 1 THEN GOTO RETURN_TRUE ELSE GOTO RETURN_FALSE

  RETURN_TRUE: RETURN True
  RETURN_FALSE: RETURN False
}`,
			},
		},
	},

	plan.FormatFlow: {
		system: `You are a planning specialist. Output ONLY a Mermaid flowchart (no fences).
Use: flowchart TD
Nodes must describe single actions using Python terms. Keep them short.
Example syntax:
flowchart TD
N0[Step text]
N0 --> N1
...
No code, no commentary.`,
		shots: []fewShot{
			{
				entryPoint: "is_palindrome",
				prompt: `def is_palindrome(s: str) -> bool:
    """Return True if s is a palindrome, ignoring case and non-alphanumerics."""
`,
				plan: `flowchart TD
N0[filter to alphanumerics]
N1[to lowercase]
N2[compute reverse]
N3[if equal then return True else return False]
N0 --> N1
N1 --> N2
N2 --> N3
`,
			},
			{
				entryPoint: "sum_unique",
				prompt: `def sum_unique(nums: list[int]) -> int:
    """Return the sum of elements that occur exactly once in nums."""
`,
				plan: `flowchart TD
A[build frequency map]
B[select values with count==1]
C[sum selected values]
D[return the sum]
A --> B
B --> C
C --> D
`,
			},
		},
	},
}

var replanSystems = map[plan.Format]string{
	plan.FormatNL:   "Rewrite the plan as a numbered, concise natural-language plan (5-8 steps), fixing failing cases indicated by logs and tests. Use explicit IF/ELSE and explicit return conditions. Output ONLY the plan steps.",
	plan.FormatYAML: "You are a Python planning assistant. Rewrite the plan as a VALID YAML object with keys io/steps/edges, fixing the failing cases indicated by logs and tests. Use short actionable steps with real Python terms. Output ONLY YAML (no Markdown fences, no code).",
	plan.FormatDSL:  "You are a Python algorithm planning assistant. Rewrite the plan in the SAME DSL (STRUCTURED_PLAN{...}) to fix failing cases indicated by logs and tests. Keep it minimal, explicit, and correct. Output ONLY one STRUCTURED_PLAN{...} block.",
	plan.FormatFlow: "Rewrite the plan as ONLY a Mermaid flowchart (flowchart TD), fixing failing cases from logs and tests. Use short action nodes. Output ONLY the flowchart (no fences, no commentary).",
}
