// Package main implements loxi: a scanner, single-pass Pratt compiler, and
// stack-based bytecode VM for a small dynamically-typed scripting language
// in the Lox family. Source text compiles in one pass to a linear bytecode
// chunk, which the VM then executes directly.
//
// The surface language accepted by this core is arithmetic, comparison,
// equality, logical-not, grouping, numeric/boolean/nil literals, and string
// concatenation, in expression and print statements terminated by ';'.
// There are no user-defined variables, functions, classes, closures, or
// control flow beyond sequencing.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/loxi-lang/loxi/internal/logio"
)

func main() {
	var (
		trace   bool
		dump    bool
		timeout time.Duration
	)
	flag.BoolVar(&trace, "trace", false, "enable trace logging")
	flag.BoolVar(&dump, "dump", false, "print a chunk/stack dump after execution")
	flag.DurationVar(&timeout, "timeout", 0, "specify a time limit for one interpret call")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)

	args := flag.Args()
	if len(args) > 1 {
		log.Errorf("usage: loxi [script]")
		os.Exit(64)
	}

	d := driver{
		log:     &log,
		trace:   trace,
		dump:    dump,
		timeout: timeout,
	}

	var code int
	if len(args) == 1 {
		code = d.runFile(args[0])
	} else {
		code = d.runPrompt()
	}
	os.Exit(code)
}
