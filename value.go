package main

import (
	"fmt"
	"strconv"
)

// valueKind discriminates the tagged Value union.
type valueKind uint8

const (
	valNil valueKind = iota
	valBool
	valNumber
	valObject
)

// Value is the dynamically-typed runtime value every stack slot, constant,
// and table entry holds. It is a closed sum over {Nil, Bool, Number, Object}:
// accessors below are total only on the matching variant, exactly like the
// opcode semantics that guard peek+predicate before pop+accessor.
type Value struct {
	kind   valueKind
	number float64
	obj    *object
}

// Nil is the singleton nil value.
var Nil = Value{kind: valNil}

// BoolVal wraps a boolean as a Value.
func BoolVal(b bool) Value {
	v := Value{kind: valBool}
	if b {
		v.number = 1
	}
	return v
}

// NumberVal wraps a float64 as a Value.
func NumberVal(n float64) Value { return Value{kind: valNumber, number: n} }

// ObjectVal wraps a heap object handle as a Value.
func ObjectVal(o *object) Value { return Value{kind: valObject, obj: o} }

func (v Value) IsNil() bool    { return v.kind == valNil }
func (v Value) IsBool() bool   { return v.kind == valBool }
func (v Value) IsNumber() bool { return v.kind == valNumber }
func (v Value) IsObject() bool { return v.kind == valObject }

func (v Value) IsString() bool { return v.kind == valObject && v.obj.kind == objString }

// AsBool is only meaningful when IsBool() is true.
func (v Value) AsBool() bool { return v.number != 0 }

// AsNumber is only meaningful when IsNumber() is true.
func (v Value) AsNumber() float64 { return v.number }

// AsString is only meaningful when IsString() is true.
func (v Value) AsString() *ObjString { return v.obj.str }

// isFalsey implements spec truthiness: Nil and Bool(false) are falsey,
// everything else is truthy.
func isFalsey(v Value) bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// valuesEqual implements the spec's value-kind-aware equality.
func valuesEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case valNil:
		return true
	case valBool:
		return a.AsBool() == b.AsBool()
	case valNumber:
		return a.number == b.number
	case valObject:
		// Valid for strings only because strings are interned: equal
		// byte content always yields the same handle.
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders v the way PRINT does: Nil -> "nil", Bool ->
// "true"/"false", Number -> %g, String -> its raw bytes.
func (v Value) String() string {
	switch v.kind {
	case valNil:
		return "nil"
	case valBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case valNumber:
		return strconv.FormatFloat(v.number, 'g', 6, 64)
	case valObject:
		switch v.obj.kind {
		case objString:
			return string(v.obj.str.chars)
		default:
			return fmt.Sprintf("<object %v>", v.obj.kind)
		}
	default:
		return "<invalid value>"
	}
}
