package compiler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrCellsFailed = errors.New("compiler: cells failed")

// Failure is one failed cell.
type Failure struct {
	Cell    string
	Message string
}

// Report summarizes one Compile call. It is only mutated on the draining
// goroutine.
type Report struct {
	RunID string
	Layer string

	Queued   int
	Compiled int
	Failed   int
	Skipped  int
	Empty    int
	Written  int
	Indexes  int
	Root     string
	Failures []Failure
	Warnings []string

	Started  time.Time
	Duration time.Duration
}

func newReport(layer, runID string, queued int) *Report {
	return &Report{RunID: runID, Layer: layer, Queued: queued, Started: time.Now()}
}

// add accounts one cell. before is its result as compiled, after the
// result once post-processed.
func (r *Report) add(cell string, before, after Result) {
	switch before.Status {
	case StatusCompiled:
		r.Compiled++
		if before.Node == nil {
			r.Empty++
		}
	case StatusFailed:
		r.Failed++
		r.Failures = append(r.Failures, Failure{Cell: cell, Message: before.Message})
	case StatusSkipped:
		r.Skipped++
	}
	if after.Written {
		r.Written++
	}
}

func (r *Report) warn(err error) { r.Warnings = append(r.Warnings, err.Error()) }

func (r *Report) finish() { r.Duration = time.Since(r.Started) }

// Done is the number of cells accounted so far.
func (r *Report) Done() int { return r.Compiled + r.Failed + r.Skipped }

// Summary renders one line in the form
// "one or more cell errors (n/m cells failed): a; b".
func (r *Report) Summary() string {
	if r.Failed == 0 {
		return fmt.Sprintf("%d/%d cells compiled, %d skipped, %d written, %d indexes",
			r.Compiled, r.Queued, r.Skipped, r.Written, r.Indexes)
	}
	var msg strings.Builder
	msg.WriteString("one or more cell errors (")
	msg.WriteString(fmt.Sprintf("%d/%d cells failed): ", r.Failed, r.Queued))
	for i, f := range r.Failures {
		if i > 0 {
			msg.WriteString("; ")
		}
		msg.WriteString(f.Cell + ": " + f.Message)
	}
	return msg.String()
}

// Err is nil when no cell failed.
func (r *Report) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCellsFailed, r.Summary())
}
