package bminor

import (
	"fmt"
	"io"
)

type Stage string

const (
	StageResolve   Stage = "resolve"
	StageTypecheck Stage = "typecheck"
)

// Diagnostics collects the user-facing errors of one pipeline stage run.
// Errors never stop analysis; callers look at Count before moving on.
type Diagnostics struct {
	out      io.Writer
	verbose  bool
	errors   int
	warnings int
}

func NewDiagnostics(out io.Writer) *Diagnostics {
	if out == nil {
		out = io.Discard
	}
	return &Diagnostics{out: out}
}

// SetVerbose enables Tracef output.
func (d *Diagnostics) SetVerbose(verbose bool) {
	d.verbose = verbose
}

func (d *Diagnostics) Errorf(stage Stage, format string, args ...interface{}) {
	d.errors++
	fmt.Fprintf(d.out, "[ERROR|%s] %s\n", stage, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Warnf(stage Stage, format string, args ...interface{}) {
	d.warnings++
	fmt.Fprintf(d.out, "[WARNING|%s] %s\n", stage, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Tracef(format string, args ...interface{}) {
	if d.verbose {
		fmt.Fprintf(d.out, format+"\n", args...)
	}
}

// Count returns the number of errors reported so far.
func (d *Diagnostics) Count() int {
	return d.errors
}

func (d *Diagnostics) Warnings() int {
	return d.warnings
}

// InternalError is the panic value for compiler defects: shapes that earlier
// stages should have rejected, or running out of scratch registers.
type InternalError struct {
	msg string
}

func internalErrorf(format string, args ...interface{}) InternalError {
	return InternalError{msg: fmt.Sprintf(format, args...)}
}

func (e InternalError) Error() string {
	return fmt.Sprintf("[ERROR|internal] %s", e.msg)
}
