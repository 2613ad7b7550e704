package main

import (
	"fmt"
	"io"
)

// vmDumper prints a post-execution snapshot of a chunk and the VM's value
// stack, gated behind --dump in main.go. This is the disassembler spec.md
// §1 calls "a debug aid whose output format is observable but not load
// bearing" — adapted from the teacher's own vmDumper in dumper.go, which
// dumped FORTH dictionary/memory state the same way.
type vmDumper struct {
	vm    *VM
	chunk *Chunk
	name  string
	out   io.Writer
}

func newVMDumper(vm *VM, name string, out io.Writer) vmDumper {
	return vmDumper{vm: vm, chunk: vm.lastChunk, name: name, out: out}
}

func (d vmDumper) dump() {
	if d.chunk == nil {
		fmt.Fprintf(d.out, "# Chunk Dump: %s (no chunk compiled)\n", d.name)
		return
	}
	fmt.Fprintf(d.out, "# Chunk Dump: %s\n", d.name)
	d.dumpCode()
	d.dumpConstants()
	d.dumpStack()
}

func (d vmDumper) dumpCode() {
	fmt.Fprintf(d.out, "  code:\n")
	for offset := 0; offset < len(d.chunk.code); {
		offset = d.dumpInstruction(offset)
	}
}

func (d vmDumper) dumpConstants() {
	fmt.Fprintf(d.out, "  constants:\n")
	for i, v := range d.chunk.constants {
		fmt.Fprintf(d.out, "    %4d %s\n", i, v)
	}
}

func (d vmDumper) dumpStack() {
	fmt.Fprintf(d.out, "  stack:\n")
	for i, v := range d.vm.stackSlice() {
		fmt.Fprintf(d.out, "    %4d %s\n", i, v)
	}
}

// dumpInstruction prints one disassembled instruction at offset, returning
// the offset of the next one. Line numbers repeat as "|" when unchanged
// from the previous instruction, matching clox's debug.c convention.
func (d vmDumper) dumpInstruction(offset int) int {
	fmt.Fprintf(d.out, "    %04d ", offset)
	if offset > 0 && d.chunk.lines[offset] == d.chunk.lines[offset-1] {
		fmt.Fprint(d.out, "   | ")
	} else {
		fmt.Fprintf(d.out, "%4d ", d.chunk.lines[offset])
	}

	op := OpCode(d.chunk.code[offset])
	switch op {
	case OpConstant:
		idx := d.chunk.code[offset+1]
		fmt.Fprintf(d.out, "%-16s %4d '%s'\n", opName(op), idx, d.chunk.constants[idx])
		return offset + 2
	default:
		fmt.Fprintf(d.out, "%s\n", opName(op))
		return offset + 1
	}
}

func opName(op OpCode) string {
	switch op {
	case OpConstant:
		return "OP_CONSTANT"
	case OpNil:
		return "OP_NIL"
	case OpTrue:
		return "OP_TRUE"
	case OpFalse:
		return "OP_FALSE"
	case OpEqual:
		return "OP_EQUAL"
	case OpGreater:
		return "OP_GREATER"
	case OpLess:
		return "OP_LESS"
	case OpAdd:
		return "OP_ADD"
	case OpSubtract:
		return "OP_SUBTRACT"
	case OpMultiply:
		return "OP_MULTIPLY"
	case OpDivide:
		return "OP_DIVIDE"
	case OpNot:
		return "OP_NOT"
	case OpNegate:
		return "OP_NEGATE"
	case OpPrint:
		return "OP_PRINT"
	case OpPop:
		return "OP_POP"
	case OpReturn:
		return "OP_RETURN"
	default:
		return fmt.Sprintf("OP_UNKNOWN(%d)", op)
	}
}
