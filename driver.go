package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loxi-lang/loxi/internal/fileinput"
	"github.com/loxi-lang/loxi/internal/logio"
	"github.com/loxi-lang/loxi/internal/panicerr"
)

// maxReplLine is the REPL's per-line cap: spec.md §6 says the interactive
// driver "reads a line at a time up to 1023 bytes", matching clox's
// stack-allocated `char line[1024]` input buffer.
const maxReplLine = 1023

// driver is the non-core collaborator spec.md §1 describes: it owns
// argument handling, file I/O, and REPL line-reading, and drives the core
// through Interpret. None of this is part of the interpreter itself.
type driver struct {
	log     *logio.Logger
	trace   bool
	dump    bool
	timeout time.Duration
}

func (d *driver) newVM(errOut io.Writer) *VM {
	opts := []VMOption{
		WithOutput(os.Stdout),
		WithErrOutput(errOut),
	}
	if d.trace {
		opts = append(opts, WithLogf(d.log.Leveledf("TRACE")))
	}
	return New(opts...)
}

// runFile implements spec.md §6's file mode: read the whole file, call
// Interpret once, and map the result to the documented exit code.
func (d *driver) runFile(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		d.log.Errorf("%v", err)
		return 74
	}

	vm := d.newVM(os.Stderr)
	defer vm.Close()

	result, err := d.interpret(vm, source)
	if d.dump {
		newVMDumper(vm, path, os.Stderr).dump()
	}
	if err != nil {
		d.log.Errorf("%v", err)
		return 70
	}

	switch result {
	case InterpretOK:
		return 0
	case InterpretCompileError:
		return 65
	case InterpretRuntimeError:
		return 70
	default:
		return 70
	}
}

// runPrompt implements spec.md §6's interactive mode: read stdin a line at
// a time, calling Interpret once per line, until EOF. A single VM persists
// across lines so interned strings and heap objects survive, per spec.md
// §5.
func (d *driver) runPrompt() int {
	vm := d.newVM(os.Stderr)
	defer vm.Close()

	var in fileinput.Input
	in.Queue = append(in.Queue, os.Stdin)

	for {
		line, ok := d.readLine(&in)
		if !ok {
			return 0
		}

		result, err := d.interpret(vm, line)
		if d.dump {
			newVMDumper(vm, "<stdin>", os.Stderr).dump()
		}
		if err != nil {
			d.log.Errorf("%v", err)
			continue
		}
		if ferr := vm.out.Flush(); ferr != nil {
			d.log.Errorf("%v", ferr)
		}
		_ = result // REPL keeps going regardless of per-line result, like clox's repl()
	}
}

// readLine reads one REPL line (up to maxReplLine bytes) using
// internal/fileinput's rune-at-a-time, line-tracked input. Returns ok=false
// at EOF with nothing left to interpret.
func (d *driver) readLine(in *fileinput.Input) ([]byte, bool) {
	for {
		// At EOF, ReadRune rolls the pending partial line over into Last.
		pending := in.Scan.Len()
		r, _, err := in.ReadRune()
		switch {
		case r == '\n':
			return append([]byte(nil), in.Last.Bytes()...), true
		case in.Scan.Len() >= maxReplLine:
			line := append([]byte(nil), in.Scan.Bytes()...)
			d.discardRestOfLine(in)
			return line, true
		case err == io.EOF:
			if pending > 0 {
				return append([]byte(nil), in.Last.Bytes()[:pending]...), true
			}
			return nil, false
		case err != nil:
			d.log.Errorf("%v", err)
			return nil, false
		}
	}
}

func (d *driver) discardRestOfLine(in *fileinput.Input) {
	for {
		r, _, err := in.ReadRune()
		if r == '\n' || err != nil {
			return
		}
	}
}

// interpret isolates one Interpret call behind the driver's configured
// timeout, if any. spec.md §5 forbids cancellation inside the core itself,
// so a timeout can only ever abandon waiting on the call from the outside
// (see VM.Interpret's doc comment); the underlying goroutine, if any, is
// still left running to completion since the VM is not safe to touch
// concurrently.
func (d *driver) interpret(vm *VM, source []byte) (InterpretResult, error) {
	if d.timeout == 0 {
		return vm.Interpret(source), nil
	}

	type outcome struct{ result InterpretResult }
	ch := make(chan outcome, 1)
	go func() {
		err := panicerr.Recover("interpret", func() error {
			ch <- outcome{vm.Interpret(source)}
			return nil
		})
		if err != nil {
			d.log.Errorf("%v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	select {
	case o := <-ch:
		return o.result, nil
	case <-ctx.Done():
		return InterpretRuntimeError, fmt.Errorf("timed out after %s", d.timeout)
	}
}
