package sandbox

import (
	"context"
	"time"
)

// Request describes one candidate execution: the generated code, the test
// program that judges it, and the entry point the harness hands to check().
type Request struct {
	Code       string
	Test       string
	EntryPoint string
	Timeout    time.Duration

	// ArtifactPath, when set, receives a copy of the assembled program
	// before it runs.
	ArtifactPath string
}

// Result is the outcome of one execution. A candidate failing its tests is
// a normal Result, not an error; errors are reserved for the harness itself
// breaking.
type Result struct {
	Passed   bool
	Log      string
	TimedOut bool
	Duration time.Duration
}

// Executor runs a candidate against its test program in isolation.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}
