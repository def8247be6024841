// Package result holds the per-target classification records produced by a batch.
package result

import (
	"fmt"
	"strings"
)

// FailureKind represents the classification of a per-target failure
type FailureKind int

const (
	// KindUnexpectedExit means the process exited with a code other than the expected one
	KindUnexpectedExit FailureKind = iota

	// KindTimeout means the process exceeded the configured deadline and was killed
	KindTimeout

	// KindLaunch means the process could not be spawned or reaped
	KindLaunch
)

// String returns a string representation of the failure kind
func (k FailureKind) String() string {
	switch k {
	case KindUnexpectedExit:
		return "unexpected-exit"
	case KindTimeout:
		return "timeout"
	case KindLaunch:
		return "launch"
	default:
		return "unknown"
	}
}

// SuccessRecord describes a target whose command exited with the expected code
type SuccessRecord struct {
	Host     string // Target host identifier
	Stdout   string // Captured standard output, decoded as UTF-8
	Stderr   string // Captured standard error, decoded as UTF-8
	ExitCode int    // Observed exit code (equals the batch's expected code)
}

// FailureRecord describes a target that did not produce the expected exit code
type FailureRecord struct {
	Host     string      // Target host identifier
	Kind     FailureKind // Failure classification
	ExitCode *int        // Actual exit code; nil for timeout and launch failures
	Err      error       // Underlying error for launch failures, nil otherwise
}

// String returns a human-readable description of the failure
func (r FailureRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", r.Host, r.Kind)
	if r.ExitCode != nil {
		fmt.Fprintf(&b, " (exit code %d)", *r.ExitCode)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, ": %v", r.Err)
	}
	return b.String()
}

// Batch is the immutable outcome of one run: every configured target appears
// exactly once across the two sequences, in completion order.
type Batch struct {
	Successes []SuccessRecord
	Failures  []FailureRecord
}

// Total returns the number of classified targets
func (b *Batch) Total() int {
	return len(b.Successes) + len(b.Failures)
}

// Failed reports whether any target failed
func (b *Batch) Failed() bool {
	return len(b.Failures) > 0
}

// Collector accumulates records during a batch. It is only ever touched by
// the supervisor's control goroutine, so it carries no locking.
type Collector struct {
	successes []SuccessRecord
	failures  []FailureRecord
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Reset clears both sequences at the start of a batch
func (c *Collector) Reset() {
	c.successes = nil
	c.failures = nil
}

// AddSuccess appends a success record in completion order
func (c *Collector) AddSuccess(rec SuccessRecord) {
	c.successes = append(c.successes, rec)
}

// AddFailure appends a failure record in completion order
func (c *Collector) AddFailure(rec FailureRecord) {
	c.failures = append(c.failures, rec)
}

// Batch snapshots the accumulated records into an immutable result
func (c *Collector) Batch() *Batch {
	b := &Batch{
		Successes: make([]SuccessRecord, len(c.successes)),
		Failures:  make([]FailureRecord, len(c.failures)),
	}
	copy(b.Successes, c.successes)
	copy(b.Failures, c.failures)
	return b
}
