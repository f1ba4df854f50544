package result

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// DefaultOutPath builds the conventional results path for a run
// configuration: {dir}/{format}__plan-{planModel}__code-{codeModel}.jsonl.
func DefaultOutPath(dir, format, planModel, codeModel string) string {
	name := fmt.Sprintf("%s__plan-%s__code-%s.jsonl", format, SafeName(planModel), SafeName(codeModel))
	return filepath.Join(dir, name)
}

// SafeName makes a model or task name usable as a file name component.
func SafeName(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}

// Writer appends records to a JSONL results file. The file is opened in
// append mode and each record is written under an advisory file lock, so
// concurrent workers and concurrent harness processes interleave whole
// lines only. Records survive a crash of any later task.
type Writer struct {
	path string
	file *os.File
	lock *flock.Flock
}

// NewWriter opens (or creates) the results file for appending.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating results dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening results file: %w", err)
	}
	return &Writer{
		path: path,
		file: f,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one record as a single line and flushes it to disk.
func (w *Writer) Append(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("locking results file: %w", err)
	}
	defer w.lock.Unlock()

	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return w.file.Sync()
}

func (w *Writer) Close() error {
	return w.file.Close()
}

// ReadAll loads every record in a results file. Unparseable lines are
// skipped with a warning so one corrupt record cannot hide a whole run.
func ReadAll(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()

	var recs []*Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Printf("skipping %s line %d: %v", path, lineNum, err)
			continue
		}
		recs = append(recs, &rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	return recs, nil
}
