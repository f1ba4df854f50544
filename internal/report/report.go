package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"planbench/internal/failure"
	"planbench/internal/result"
)

// Failure is one failing task with its classified error.
type Failure struct {
	TaskID     string `json:"task_id"`
	PlanFormat string `json:"plan_format"`
	ErrorKind  string `json:"error_kind"`
	Message    string `json:"message"`
}

// KindCount is one row of the failure breakdown.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

type Summary struct {
	Total       int         `json:"total"`
	Passed      int         `json:"passed"`
	Failed      int         `json:"failed"`
	Accuracy    float64     `json:"accuracy"`
	Failures    []Failure   `json:"failures"`
	Breakdown   []KindCount `json:"breakdown"`
	PassedTasks []string    `json:"passed_tasks,omitempty"`
}

type Options struct {
	// ShowPassed lists the passing task IDs alongside the failures.
	ShowPassed bool
	// MaxMsgLen caps each failure message. Zero means 160.
	MaxMsgLen int
}

// Generate reads a results file and writes a summary report.
func Generate(path, format string, w io.Writer, opts Options) error {
	recs, err := result.ReadAll(path)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no records in %s", path)
	}

	summary := Summarize(recs, opts)

	switch format {
	case "markdown":
		return writeMarkdown(summary, w)
	case "json":
		return writeJSON(summary, w)
	default:
		return writeTable(summary, w)
	}
}

// Summarize classifies every failing record and aggregates pass counts.
func Summarize(recs []*result.Record, opts Options) *Summary {
	maxMsg := opts.MaxMsgLen
	if maxMsg <= 0 {
		maxMsg = 160
	}

	s := &Summary{Total: len(recs)}
	counts := map[string]int{}
	for _, rec := range recs {
		if rec.Passed {
			s.Passed++
			if opts.ShowPassed {
				s.PassedTasks = append(s.PassedTasks, rec.TaskID)
			}
			continue
		}
		s.Failed++
		kind, detail := failure.Classify(rec.Logs)
		counts[kind]++
		s.Failures = append(s.Failures, Failure{
			TaskID:     rec.TaskID,
			PlanFormat: rec.PlanFormat,
			ErrorKind:  kind,
			Message:    clipMessage(detail, maxMsg),
		})
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Passed) / float64(s.Total)
	}

	sort.Slice(s.Failures, func(i, j int) bool {
		return s.Failures[i].TaskID < s.Failures[j].TaskID
	})
	sort.Strings(s.PassedTasks)

	for kind, count := range counts {
		s.Breakdown = append(s.Breakdown, KindCount{Kind: kind, Count: count})
	}
	sort.Slice(s.Breakdown, func(i, j int) bool {
		if s.Breakdown[i].Count != s.Breakdown[j].Count {
			return s.Breakdown[i].Count > s.Breakdown[j].Count
		}
		return s.Breakdown[i].Kind < s.Breakdown[j].Kind
	})
	return s
}

func clipMessage(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max] + " ..."
}

func writeTable(s *Summary, w io.Writer) error {
	fmt.Fprintf(w, "Total: %d  Passed: %d  Failed: %d  Accuracy (pass@1): %.3f\n",
		s.Total, s.Passed, s.Failed, s.Accuracy)

	if len(s.Failures) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TASK\tFORMAT\tKIND\tMESSAGE")
		fmt.Fprintln(tw, strings.Repeat("-", 80))
		for _, f := range s.Failures {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.TaskID, f.PlanFormat, f.ErrorKind, f.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tCOUNT")
		for _, kc := range s.Breakdown {
			fmt.Fprintf(tw, "%s\t%d\n", kc.Kind, kc.Count)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(s.PassedTasks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Passed:")
		for _, id := range s.PassedTasks {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return nil
}

func writeMarkdown(s *Summary, w io.Writer) error {
	fmt.Fprintln(w, "| Total | Passed | Failed | Accuracy |")
	fmt.Fprintln(w, "|---|---|---|---|")
	fmt.Fprintf(w, "| %d | %d | %d | %.3f |\n", s.Total, s.Passed, s.Failed, s.Accuracy)

	if len(s.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Failures")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Task | Format | Kind | Message |")
		fmt.Fprintln(w, "|---|---|---|---|")
		for _, f := range s.Failures {
			msg := strings.ReplaceAll(f.Message, "|", `\|`)
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n", f.TaskID, f.PlanFormat, f.ErrorKind, msg)
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Breakdown")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Kind | Count |")
		fmt.Fprintln(w, "|---|---|")
		for _, kc := range s.Breakdown {
			fmt.Fprintf(w, "| %s | %d |\n", kc.Kind, kc.Count)
		}
	}

	if len(s.PassedTasks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Passed")
		fmt.Fprintln(w)
		for _, id := range s.PassedTasks {
			fmt.Fprintf(w, "- %s\n", id)
		}
	}
	return nil
}

func writeJSON(s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
