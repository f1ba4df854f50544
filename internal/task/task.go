package task

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Task is one problem from the dataset: a function contract to implement
// and the test program that judges candidates.
type Task struct {
	ID         string `json:"task_id"`
	Prompt     string `json:"prompt"`
	EntryPoint string `json:"entry_point"`
	Test       string `json:"test"`
}

var defRe = regexp.MustCompile(`def\s+([a-zA-Z_]\w*)\s*\(`)

// SniffEntryPoint pulls the function name out of the first def in a prompt.
// Prompts without any def fall back to "solve".
func SniffEntryPoint(prompt string) string {
	if m := defRe.FindStringSubmatch(prompt); m != nil {
		return m[1]
	}
	return "solve"
}

// LoadJSONL reads tasks from a JSONL file, one object per line. Blank lines
// are skipped. A limit of zero or less loads everything. Tasks that arrive
// without an entry point get one sniffed from the prompt.
func LoadJSONL(path string, limit int) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	var tasks []Task
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var t Task
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", path, lineNum, err)
		}
		if strings.TrimSpace(t.EntryPoint) == "" {
			t.EntryPoint = SniffEntryPoint(t.Prompt)
		}
		tasks = append(tasks, t)
		if limit > 0 && len(tasks) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return tasks, nil
}
