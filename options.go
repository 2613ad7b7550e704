package main

import (
	"io"

	"github.com/loxi-lang/loxi/internal/flushio"
)

// VMOption configures a VM at construction time, following the teacher's
// functional-options shape: New(opts...) applies each, in order, over a
// zero-valued VM.
type VMOption interface{ apply(vm *VM) }

// VMOptions flattens any number of options (including nil and nested
// option lists) into one, exactly as the teacher's VMOptions does.
func VMOptions(opts ...VMOption) VMOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(*VM) {}

type options []VMOption

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type outputOption struct{ io.Writer }
type errOutputOption struct{ io.Writer }
type logfOption func(mess string, args ...interface{})

// WithOutput sets the writer PRINT writes program output to. It is
// wrapped in a flushio.WriteFlusher, which (*VM).Close flushes and the REPL
// driver flushes after each line, matching the teacher's own outputOption.
func WithOutput(w io.Writer) VMOption { return outputOption{w} }

// WithErrOutput sets the writer compile and runtime diagnostics are
// written to, per spec.md §6 ("All diagnostics go to the standard error
// stream").
func WithErrOutput(w io.Writer) VMOption { return errOutputOption{w} }

// WithLogf installs the ambient trace sink (gated behind --trace in
// main.go); it never receives program output or diagnostics.
func WithLogf(logf func(mess string, args ...interface{})) VMOption { return logfOption(logf) }

func (o outputOption) apply(vm *VM)    { vm.out = flushio.NewWriteFlusher(o.Writer) }
func (o errOutputOption) apply(vm *VM) { vm.errOut = o.Writer }
func (f logfOption) apply(vm *VM)      { vm.logf = f }
