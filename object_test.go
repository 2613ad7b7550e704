package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyStringInterns(t *testing.T) {
	vm := New()
	defer vm.Close()

	a := vm.copyString([]byte("str"))
	c := vm.concatStrings(&ObjString{chars: []byte("st")}, &ObjString{chars: []byte("r")})
	assert.Same(t, a, c, `"st"+"r" must intern to the same handle as the literal "str"`)

	// exactly one live string object named "str" in the VM's heap list.
	count := 0
	for o := vm.objects; o != nil; o = o.next {
		if o.kind == objString && string(o.str.chars) == "str" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestTakeStringAdoptsOnMiss(t *testing.T) {
	vm := New()
	defer vm.Close()

	buf := []byte("adopted")
	o := vm.takeString(buf)
	require.NotNil(t, o)
	assert.Equal(t, "adopted", string(o.str.chars))
}

func TestConcatEmptyString(t *testing.T) {
	vm := New()
	defer vm.Close()

	empty := vm.copyString(nil)
	other := vm.copyString([]byte("hello"))

	result := vm.concatStrings(empty.str, other.str)
	assert.Same(t, other, result, "concatenating empty with any string yields that string's handle")
}

func TestFNV1a32KnownVectors(t *testing.T) {
	assert.Equal(t, uint32(2166136261), fnv1a32(nil))
	assert.Equal(t, uint32(0xe40c292c), fnv1a32([]byte("a")))
}
