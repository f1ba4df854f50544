package failure

import (
	"fmt"
	"regexp"
	"strings"
)

// Kinds are lowercase python exception names plus "timeout" and "unknown".

type category struct {
	name string
	re   *regexp.Regexp
}

// Ordered by how telling the category is when several appear in one log.
var categories = []category{
	{"SyntaxError", regexp.MustCompile(`SyntaxError:.*`)},
	{"AssertionError", regexp.MustCompile(`AssertionError:.*`)},
	{"ModuleNotFoundError", regexp.MustCompile(`ModuleNotFoundError:.*`)},
	{"NameError", regexp.MustCompile(`NameError:.*`)},
	{"TypeError", regexp.MustCompile(`TypeError:.*`)},
	{"ValueError", regexp.MustCompile(`ValueError:.*`)},
	{"ZeroDivisionError", regexp.MustCompile(`ZeroDivisionError:.*`)},
	{"IndexError", regexp.MustCompile(`IndexError:.*`)},
	{"KeyError", regexp.MustCompile(`KeyError:.*`)},
	{"AttributeError", regexp.MustCompile(`AttributeError:.*`)},
	{"ImportError", regexp.MustCompile(`ImportError:.*`)},
}

var (
	tracebackTail = regexp.MustCompile(`(?m)^[A-Za-z_]\w*Error:.*$`)
	bareAssert    = regexp.MustCompile(`(?m)^AssertionError$`)
)

const maxDetailLen = 300

// Classify maps a failure log to an error kind and a one-line detail.
func Classify(log string) (kind, detail string) {
	if log == "" {
		return "unknown", ""
	}
	if strings.Contains(strings.ToUpper(log), "TIMEOUT") {
		return "timeout", "Execution timed out"
	}
	for _, c := range categories {
		if !strings.Contains(log, c.name) {
			continue
		}
		if line := lastMatch(c.re, log); line != "" {
			return strings.ToLower(c.name), strings.TrimSpace(line)
		}
		return strings.ToLower(c.name), c.name
	}
	if tail := lastMatch(tracebackTail, log); tail != "" {
		name, _, _ := strings.Cut(tail, ":")
		return strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(tail)
	}
	if bareAssert.MatchString(log) {
		return "assertionerror", "AssertionError"
	}
	last := lastNonEmptyLine(log)
	if len(last) > maxDetailLen {
		last = last[:maxDetailLen]
	}
	return "unknown", last
}

func lastMatch(re *regexp.Regexp, s string) string {
	matches := re.FindAllString(s, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// Case is one failing example recovered from an assert line. Parsed cases
// carry the candidate call arguments, the comparison operator and the
// expected expression. Lines that resist parsing keep the raw expression
// and leave Op empty.
type Case struct {
	Input    string
	Op       string
	Expected string
	Raw      string
}

// DefaultMaxCases bounds how many examples a replan prompt carries.
const DefaultMaxCases = 6

var (
	opRe       = regexp.MustCompile(`\s(==|!=|<=|>=|<|>|not\s+in|in)\s`)
	trailerMsg = regexp.MustCompile(`,\s*('[^']*'|"[^"]*")\s*$`)
)

// ExtractCases pulls failing examples out of assert lines in a log, at most
// max of them.
func ExtractCases(log string, max int) []Case {
	if log == "" {
		return nil
	}
	var cases []Case
	for _, line := range strings.Split(log, "\n") {
		if len(cases) >= max {
			break
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "assert") {
			continue
		}
		expr := strings.TrimSpace(line[len("assert"):])
		expr = trailerMsg.ReplaceAllString(expr, "")

		loc := findOp(expr)
		if loc == nil {
			cases = append(cases, Case{Raw: expr})
			continue
		}
		left := strings.TrimSpace(expr[:loc[0]])
		op := expr[loc[2]:loc[3]]
		right := strings.TrimSpace(expr[loc[1]:])

		if strings.HasPrefix(left, "candidate(") {
			open := strings.Index(left, "(")
			if end := scanParens(left, open); end >= 0 {
				cases = append(cases, Case{
					Input:    strings.TrimSpace(left[open+1 : end]),
					Op:       op,
					Expected: right,
				})
				continue
			}
		}
		cases = append(cases, Case{Raw: left + " " + op + " " + right})
	}
	return cases
}

// findOp locates the first comparison operator that sits outside string
// literals. Operators inside quoted arguments do not split the expression.
func findOp(expr string) []int {
	for _, loc := range opRe.FindAllStringSubmatchIndex(expr, -1) {
		if !inQuotes(expr, loc[0]) {
			return loc
		}
	}
	return nil
}

func inQuotes(s string, idx int) bool {
	var inSingle, inDouble bool
	for i := 0; i < idx && i < len(s); i++ {
		switch s[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		}
	}
	return inSingle || inDouble
}

// scanParens returns the index of the ')' matching the '(' at open, skipping
// parentheses inside string literals, or -1 when unbalanced.
func scanParens(s string, open int) int {
	depth := 0
	var inSingle, inDouble bool
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '(':
			if !inSingle && !inDouble {
				depth++
			}
		case ')':
			if !inSingle && !inDouble {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// FormatCases renders extracted cases as an advisory block for replan
// prompts. An empty slice renders as an empty string.
func FormatCases(cases []Case) string {
	if len(cases) == 0 {
		return ""
	}
	lines := []string{"Failing examples extracted from assertions (satisfy these without hardcoding outputs):"}
	for _, c := range cases {
		if c.Op == "" {
			lines = append(lines, "- raw_assert: "+c.Raw)
			continue
		}
		lines = append(lines, "- input: ("+c.Input+")")
		if c.Op == "!=" {
			lines = append(lines, "  must_not_equal: "+c.Expected)
		} else {
			lines = append(lines, fmt.Sprintf("  expected_via_op: %q", c.Op+" "+c.Expected))
		}
	}
	return strings.Join(lines, "\n")
}
