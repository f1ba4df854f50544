package sandbox

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	beginMarker     = "[planbench] BEGIN_TESTS"
	endMarkerPassed = "[planbench] END_TESTS (PASSED)"
	endMarkerFailed = "[planbench] END_TESTS (FAILED)"
)

// buildProgram assembles the python program that gets executed: the
// candidate code followed by a __main__ harness that runs the test program
// and reports the verdict through markers and the exit code.
//
// The harness first runs any test_* functions the test program defined. If
// none exist it falls back to the HumanEval convention of a check(candidate)
// function, called with the entry point when one is known.
func buildProgram(code, test, entryPoint string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(code, " \t\n") + "\n\n")
	b.WriteString("if __name__ == '__main__':\n")
	b.WriteString("    import sys, traceback\n")
	if entryPoint != "" {
		b.WriteString("    # entry point: " + entryPoint + "\n")
	}
	b.WriteString("    print(\"" + beginMarker + "\")\n")
	b.WriteString("    try:\n")
	for _, line := range strings.Split(test, "\n") {
		b.WriteString("        " + line + "\n")
	}
	b.WriteString("        _ran_any = False\n")
	b.WriteString("        for _n, _obj in list(globals().items()):\n")
	b.WriteString("            if _n.startswith('test_') and callable(_obj):\n")
	b.WriteString("                _ran_any = True\n")
	b.WriteString("                _obj()\n")
	b.WriteString("        if not _ran_any and 'check' in globals() and callable(globals()['check']):\n")
	if entryPoint != "" {
		b.WriteString("            globals()['check'](" + entryPoint + ")\n")
	} else {
		b.WriteString("            # no entry point known; try the first non-builtin callable\n")
		b.WriteString("            import builtins\n")
		b.WriteString("            _cands = [v for k, v in globals().items() if callable(v) and k not in dir(builtins)]\n")
		b.WriteString("            if _cands:\n")
		b.WriteString("                try:\n")
		b.WriteString("                    globals()['check'](_cands[0])\n")
		b.WriteString("                except TypeError:\n")
		b.WriteString("                    pass\n")
	}
	b.WriteString("    except Exception:\n")
	b.WriteString("        traceback.print_exc()\n")
	b.WriteString("        print(\"" + endMarkerFailed + "\")\n")
	b.WriteString("        sys.exit(1)\n")
	b.WriteString("    else:\n")
	b.WriteString("        print(\"" + endMarkerPassed + "\")\n")
	b.WriteString("        sys.exit(0)\n")
	return b.String()
}

// writeProgram materializes the program in dir and optionally saves a copy
// as a run artifact. Artifact failures are logged, not fatal; losing a copy
// must not fail the evaluation.
func writeProgram(dir string, req *Request) (string, error) {
	path := filepath.Join(dir, "candidate.py")
	program := buildProgram(req.Code, req.Test, req.EntryPoint)
	if err := os.WriteFile(path, []byte(program), 0o644); err != nil {
		return "", fmt.Errorf("writing candidate program: %w", err)
	}
	if req.ArtifactPath != "" {
		saveArtifact(req.ArtifactPath, program)
	}
	return path, nil
}

func saveArtifact(path, program string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("saving artifact %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, []byte(program), 0o644); err != nil {
		log.Printf("saving artifact %s: %v", path, err)
	}
}

func timeoutLog(timeout int) string {
	return fmt.Sprintf("TIMEOUT after %ds", timeout)
}
