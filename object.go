package main

// objKind discriminates the heap object union. String is the only variant
// the core language needs; the tag exists so the heap can grow new kinds
// without disturbing Value, exactly as spec.md describes.
type objKind uint8

const (
	objString objKind = iota
)

// object is a heap-allocated value. Every object is reachable from exactly
// one link in the owning VM's intrusive object list (vm.objects); no
// garbage collector runs before VM teardown, so freeing means dropping that
// list in (*VM).Close.
type object struct {
	kind objKind
	str  *ObjString

	next *object // intrusive link in the VM's live-object list
}

// ObjString is the only object variant: an interned, possibly-non-UTF8 byte
// string with a precomputed FNV-1a hash.
type ObjString struct {
	chars []byte
	hash  uint32
}

func (s *ObjString) length() int { return len(s.chars) }

// fnv1a32 computes the 32-bit FNV-1a hash spec.md mandates for string
// hashing and interning.
func fnv1a32(data []byte) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for _, b := range data {
		h ^= uint32(b)
		h *= prime
	}
	return h
}

// allocateObject links a freshly built object onto the VM's live-object
// list. Every object the VM ever hands out a handle for passes through here
// first, matching the teacher's single allocation choke point.
func (vm *VM) allocateObject(o *object) *object {
	o.next = vm.objects
	vm.objects = o
	return o
}

// copyString interns bytes and returns the owning heap object's handle: a
// hit returns the existing handle with no allocation, a miss copies the
// bytes into a freshly owned buffer, allocates a String object, and
// registers it in the VM's intern table (used as a set: values are always
// Nil). Returning the same *object for byte-equal input, always, is what
// makes Value equality on strings a pointer comparison.
func (vm *VM) copyString(data []byte) *object {
	hash := fnv1a32(data)
	if existing := vm.strings.findStringObj(data, hash); existing != nil {
		return existing
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	return vm.internNewString(owned, hash)
}

// takeString interns an owned buffer: on a hit the buffer is simply
// dropped (Go's GC reclaims it; the teacher's C frees it explicitly), on a
// miss the buffer is adopted directly without copying.
func (vm *VM) takeString(owned []byte) *object {
	hash := fnv1a32(owned)
	if existing := vm.strings.findStringObj(owned, hash); existing != nil {
		return existing
	}
	return vm.internNewString(owned, hash)
}

func (vm *VM) internNewString(owned []byte, hash uint32) *object {
	str := &ObjString{chars: owned, hash: hash}
	o := vm.allocateObject(&object{kind: objString, str: str})
	vm.strings.set(o, Nil)
	return o
}

// concatStrings implements the ADD opcode's string branch: allocate a
// fresh buffer holding a's bytes then b's bytes, and intern it.
func (vm *VM) concatStrings(a, b *ObjString) *object {
	buf := make([]byte, 0, len(a.chars)+len(b.chars))
	buf = append(buf, a.chars...)
	buf = append(buf, b.chars...)
	return vm.takeString(buf)
}
