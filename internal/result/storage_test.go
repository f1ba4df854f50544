package result_test

import (
	"os"
	"path/filepath"
	"testing"

	"planbench/internal/result"
)

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := result.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	recs := []*result.Record{
		{TaskID: "HumanEval/0", PlanFormat: "nl", Plan: "1. Do it", Code: "def f(): pass", Passed: true, DurationS: 3},
		{TaskID: "HumanEval/1", PlanFormat: "nl", Passed: false, Replanned: true, ReplanRoundsUsed: 2, Repaired: true, RepairRoundsUsed: 1, Logs: "AssertionError"},
	}
	for _, rec := range recs {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := result.ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].TaskID != "HumanEval/0" || !got[0].Passed {
		t.Errorf("first record: got %+v", got[0])
	}
	if got[1].ReplanRoundsUsed != 2 || !got[1].Repaired {
		t.Errorf("second record: got %+v", got[1])
	}
}

func TestAppendToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	for i := 0; i < 2; i++ {
		w, err := result.NewWriter(path)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		if err := w.Append(&result.Record{TaskID: "HumanEval/0", PlanFormat: "nl"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	got, err := result.ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records after two writer sessions, want 2", len(got))
	}
}

func TestNewWriterCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "nested", "out.jsonl")
	w, err := result.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()
	if w.Path() != path {
		t.Errorf("Path: got %q, want %q", w.Path(), path)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}

func TestReadAllSkipsGarbageLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	content := `{"task_id":"HumanEval/0","plan_format":"nl","plan":"","code":"","passed":true,"replanned":false,"replan_rounds_used":0,"repaired":false,"repair_rounds_used":0,"duration_s":1}
not json at all

{"task_id":"HumanEval/1","plan_format":"nl","plan":"","code":"","passed":false,"replanned":false,"replan_rounds_used":0,"repaired":false,"repair_rounds_used":0,"duration_s":2}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	got, err := result.ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (garbage and blank lines skipped)", len(got))
	}
	if got[1].TaskID != "HumanEval/1" {
		t.Errorf("second record: got %q", got[1].TaskID)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	if _, err := result.ReadAll(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultOutPath(t *testing.T) {
	got := result.DefaultOutPath("runs", "yaml", "openai/gpt-4o-mini", "gpt-4o")
	want := filepath.Join("runs", "yaml__plan-openai_gpt-4o-mini__code-gpt-4o.jsonl")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSafeName(t *testing.T) {
	if got := result.SafeName("org/model/v1"); got != "org_model_v1" {
		t.Errorf("got %q", got)
	}
	if got := result.SafeName("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
}
