package main

import (
	"fmt"
	"io"

	"github.com/loxi-lang/loxi/internal/flushio"
	"github.com/loxi-lang/loxi/internal/panicerr"
)

// StackMax is the fixed value-stack depth spec.md §4.6 mandates. Well-formed
// bytecode (anything the compiler emits) never over/underflows it; this is
// not runtime-checked, matching the spec's "compiler output is required to
// be balanced" contract.
const StackMax = 256

// VM is a stack machine executing one Chunk at a time. It exclusively owns
// its value stack, its intrusive heap-object list, and its string-intern
// table; nothing is shared across VM instances. initVM/freeVM from
// spec.md §6 are modeled as New/(*VM).Close.
type VM struct {
	chunk *Chunk
	ip    int

	stack    [StackMax]Value
	stackTop int

	objects *object
	strings Table

	out    flushio.WriteFlusher
	errOut io.Writer
	logf   func(mess string, args ...interface{})

	// lastChunk keeps the most recently run chunk around for --dump,
	// independent of chunk's per-call ownership lifecycle below.
	lastChunk *Chunk
}

// New builds a freshly initialized VM, establishing the invariants spec.md
// §6's initVM documents: empty stack, nil object list, empty intern table.
// Options follow the teacher's functional-options shape (see options.go).
func New(opts ...VMOption) *VM {
	vm := &VM{
		out:    flushio.NewWriteFlusher(io.Discard),
		errOut: io.Discard,
		logf:   func(string, ...interface{}) {},
	}
	VMOptions(opts...).apply(vm)
	return vm
}

// Close releases every heap object reachable from the VM's object list and
// discards its intern table — the only release point spec.md §5 allows,
// since no collector runs before VM teardown.
func (vm *VM) Close() error {
	vm.objects = nil
	vm.strings = Table{}
	return vm.out.Flush()
}

func (vm *VM) resetStack() { vm.stackTop = 0 }

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles source into a fresh chunk and runs it, following
// spec.md §4.6 exactly: a compile failure frees the chunk and returns
// InterpretCompileError without ever pointing the VM at it; otherwise the
// VM executes the chunk from offset 0 and the chunk is released on every
// exit path.
//
// Per spec.md §5, the core has no suspension points, cancellation, or
// timeouts: Interpret takes no context.Context and dispatch cannot be
// interrupted mid-run. A driver that wants an overall time budget (the
// teacher's --timeout flag) must isolate the whole call from the outside,
// e.g. by racing it against a context in its own goroutine — see driver.go.
func (vm *VM) Interpret(source []byte) InterpretResult {
	chunk := &Chunk{}
	if !compile(vm, source, chunk, vm.errOut) {
		return InterpretCompileError
	}

	vm.chunk = chunk
	vm.lastChunk = chunk
	vm.ip = 0
	result := vm.run()
	vm.chunk = nil
	return result
}

// run is the fetch/decode/dispatch loop. Implementation defects (a bad
// opcode, an out-of-range jump) are caught by panicerr rather than
// crashing the host process, but that is a safety net for bugs, not the
// typed runtime-error path below for well-defined kind mismatches.
func (vm *VM) run() (result InterpretResult) {
	err := panicerr.Recover("vm.run", func() error {
		return vm.dispatch()
	})
	if err == nil {
		return InterpretOK
	}

	var rerr *runtimeError
	if ok := asRuntimeError(err, &rerr); ok {
		fmt.Fprintln(vm.errOut, rerr.message)
		fmt.Fprintf(vm.errOut, "[line %d] in script\n", rerr.line)
		vm.resetStack()
		return InterpretRuntimeError
	}

	fmt.Fprintln(vm.errOut, err.Error())
	vm.resetStack()
	return InterpretRuntimeError
}

func asRuntimeError(err error, target **runtimeError) bool {
	if re, ok := err.(*runtimeError); ok {
		*target = re
		return true
	}
	return false
}

func (vm *VM) readByte() byte {
	b := vm.chunk.code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readConstant() Value {
	return vm.chunk.constants[vm.readByte()]
}

func (vm *VM) currentLine() int {
	return vm.chunk.lines[vm.ip-1]
}

func (vm *VM) dispatch() error {
	for {
		vm.logf("stack=%v ip=%d", vm.stackSlice(), vm.ip)

		switch op := OpCode(vm.readByte()); op {
		case OpConstant:
			vm.push(vm.readConstant())

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(BoolVal(true))
		case OpFalse:
			vm.push(BoolVal(false))

		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(BoolVal(valuesEqual(a, b)))

		case OpGreater:
			if err := vm.numericCompare(func(a, b float64) bool { return a > b }); err != nil {
				return err
			}
		case OpLess:
			if err := vm.numericCompare(func(a, b float64) bool { return a < b }); err != nil {
				return err
			}

		case OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case OpSubtract:
			if err := vm.numericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case OpMultiply:
			if err := vm.numericBinary(func(a, b float64) float64 { return a * b }); err != nil {
				return err
			}
		case OpDivide:
			if err := vm.numericBinary(func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}

		case OpNot:
			vm.push(BoolVal(isFalsey(vm.pop())))

		case OpNegate:
			if !vm.peek(0).IsNumber() {
				return newRuntimeError(vm.currentLine(), "Operand must be a number.")
			}
			vm.push(NumberVal(-vm.pop().AsNumber()))

		case OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case OpPop:
			vm.pop()

		case OpReturn:
			return nil

		default:
			panic(fmt.Sprintf("unhandled opcode %d", op))
		}
	}
}

func (vm *VM) numericBinary(f func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return newRuntimeError(vm.currentLine(), "Operands must be numbers.")
	}
	b, a := vm.pop(), vm.pop()
	vm.push(NumberVal(f(a.AsNumber(), b.AsNumber())))
	return nil
}

func (vm *VM) numericCompare(f func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return newRuntimeError(vm.currentLine(), "Operands must be numbers.")
	}
	b, a := vm.pop(), vm.pop()
	vm.push(BoolVal(f(a.AsNumber(), b.AsNumber())))
	return nil
}

// add implements OpAdd's dual numeric/string semantics.
func (vm *VM) add() error {
	switch {
	case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
		b, a := vm.pop(), vm.pop()
		vm.push(NumberVal(a.AsNumber() + b.AsNumber()))
		return nil
	case vm.peek(0).IsString() && vm.peek(1).IsString():
		b, a := vm.pop(), vm.pop()
		vm.push(ObjectVal(vm.concatStrings(a.AsString(), b.AsString())))
		return nil
	default:
		return newRuntimeError(vm.currentLine(), "Operands must be two numbers or two strings.")
	}
}

func (vm *VM) stackSlice() []Value {
	return vm.stack[:vm.stackTop]
}
