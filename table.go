package main

// tableMaxLoad is the load-factor threshold past which Table grows before
// an insertion: count/capacity must never exceed this after a set.
const tableMaxLoad = 0.75

// entry is one Table cell. An empty cell has key == nil, value == Nil. A
// tombstone (a deleted entry) has key == nil, value == Bool(true); it is
// skipped on lookup but remembered as an insertion target so probe chains
// stay short without shrinking count prematurely.
//
// key is the heap *object handle owning the interned string, not a bare
// *ObjString: Value equality on strings is a pointer comparison against
// this same handle (see valuesEqual), so the table must key on it too.
type entry struct {
	key   *object
	value Value
}

func (e entry) isTombstone() bool { return e.key == nil && e.value.IsBool() && e.value.AsBool() }
func (e entry) isEmpty() bool     { return e.key == nil && e.value.IsNil() }

// Table is the open-addressed, linear-probing hash table spec.md mandates
// for string interning. Tombstones count toward count for load-factor
// purposes, trading slightly earlier growth for short probe sequences,
// matching the documented design note.
type Table struct {
	count   int // live entries + tombstones
	entries []entry
}

func (t *Table) capacity() int { return len(t.entries) }

// findEntry probes from hash(key) mod capacity, stopping at the first
// empty cell. Tombstones are skipped but the first one seen is remembered
// and returned if the key is never found, so callers can reuse that slot.
func findEntry(entries []entry, key *object) *entry {
	capacity := uint32(len(entries))
	index := key.str.hash % capacity
	var tombstone *entry
	for {
		e := &entries[index]
		switch {
		case e.isEmpty():
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.isTombstone():
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		index = (index + 1) % capacity
	}
}

// get looks up key, returning its value and whether it was found.
func (t *Table) get(key *object) (Value, bool) {
	if t.count == 0 {
		return Value{}, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return Value{}, false
	}
	return e.value, true
}

// set stores value under key, growing first if the load factor would be
// exceeded. Returns true iff key was not already present (it went into an
// empty cell or a reused tombstone); false when it overwrote an entry.
func (t *Table) set(key *object, value Value) bool {
	if float64(t.count+1) > float64(t.capacity())*tableMaxLoad {
		t.grow(growCapacity(t.capacity()))
	}

	e := findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && e.isEmpty() {
		t.count++
	}

	e.key = key
	e.value = value
	return isNewKey
}

// delete replaces key's cell with a tombstone. Returns whether a live
// entry was actually found and removed.
func (t *Table) delete(key *object) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	*e = entry{key: nil, value: BoolVal(true)}
	return true
}

// addAll copies every live (non-tombstone) entry from t into dst.
func (t *Table) addAll(dst *Table) {
	for _, e := range t.entries {
		if e.key != nil {
			dst.set(e.key, e.value)
		}
	}
}

// findStringObj is the interning primitive: probes for a stored key whose
// hash, length, and bytes all match, without needing an *object handle to
// compare against yet (there may not be one).
func (t *Table) findStringObj(data []byte, hash uint32) *object {
	if t.count == 0 {
		return nil
	}
	capacity := uint32(t.capacity())
	index := hash % capacity
	for {
		e := &t.entries[index]
		switch {
		case e.isEmpty():
			return nil
		case e.key != nil && e.key.str.hash == hash && len(e.key.str.chars) == len(data) && string(e.key.str.chars) == string(data):
			return e.key
		}
		index = (index + 1) % capacity
	}
}

// growCapacity implements the doubling policy shared with Chunk: capacity
// starts at 0, first growth goes to 8, then doubles.
func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// grow allocates a new backing array of newCapacity, rehashes every live
// (non-tombstone) entry into it, and resets count to the number of live
// entries actually reinserted — tombstones are dropped during rehash.
func (t *Table) grow(newCapacity int) {
	fresh := make([]entry, newCapacity)
	for i := range fresh {
		fresh[i] = entry{value: Nil}
	}

	old := t.entries
	t.entries = fresh
	t.count = 0
	for _, e := range old {
		if e.key == nil {
			continue
		}
		dst := findEntry(t.entries, e.key)
		dst.key = e.key
		dst.value = e.value
		t.count++
	}
}
