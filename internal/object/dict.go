package object

import (
	"sync"

	"kvm/internal/vmerr"
)

// DictType is a mutable, insertion-ordered hash mapping (spec §3 "dict").
//
// Implementation follows spec §3's "dict" paragraph: open addressing with a
// separate entries array preserving insertion order, and a bucket array of
// signed indices into the entries array. The spec additionally calls for
// the bucket-index width (8/16/32/64-bit) to be chosen by entry count as a
// memory micro-optimization (spec §9 "Dict bucket-width specialization");
// SPEC_FULL resolves that Open Question by keeping a single []int64 bucket
// array (see DESIGN.md) -- the externally observable behavior (ordering,
// resize/compaction thresholds, tombstones) is unaffected.
var DictType = NewType("dict", ObjectType)

const (
	bucketEmpty     = -1
	bucketTomb      = -2
	resizeLoad      = 0.6
	targetLoad      = 0.3
	compactionRatio = 0.5
)

type dictEntry struct {
	key     Object
	val     Object
	hash    uint64
	deleted bool
}

type Dict struct {
	Header
	mu      sync.Mutex
	entries []dictEntry
	buckets []int64
	live    int // non-deleted entry count
}

func (d *Dict) header() *Header { return &d.Header }

func NewDict() *Dict {
	d := &Dict{Header: NewHeader(DictType)}
	d.buckets = newBucketArray(8)
	return d
}

func newBucketArray(n int) []int64 {
	b := make([]int64, n)
	for i := range b {
		b[i] = bucketEmpty
	}
	return b
}

func nextPrime(n int) int {
	if n < 2 {
		return 2
	}
	isPrime := func(x int) bool {
		if x < 2 {
			return false
		}
		for i := 2; i*i <= x; i++ {
			if x%i == 0 {
				return false
			}
		}
		return true
	}
	for !isPrime(n) {
		n++
	}
	return n
}

// probe locates key's bucket slot index: if the key is present, returns
// (bucketIdx, entryIdx, true); otherwise returns the first usable (empty or
// tombstone) bucket slot for insertion and false.
func (d *Dict) probe(key Object, hash uint64) (bucketIdx int, entryIdx int64, found bool, exc Object) {
	n := len(d.buckets)
	start := int(hash % uint64(n))
	firstFree := -1
	for i := 0; i < n; i++ {
		bi := (start + i) % n
		ei := d.buckets[bi]
		if ei == bucketEmpty {
			if firstFree == -1 {
				firstFree = bi
			}
			return firstFree, 0, false, nil
		}
		if ei == bucketTomb {
			if firstFree == -1 {
				firstFree = bi
			}
			continue
		}
		entry := &d.entries[ei]
		if entry.hash == hash {
			eq, e := EqOf(entry.key, key)
			if e != nil {
				return 0, 0, false, e
			}
			if eq {
				return bi, ei, true, nil
			}
		}
	}
	return firstFree, 0, false, nil
}

func (d *Dict) Get(key Object) (Object, bool, Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hash, exc := HashOf(key)
	if exc != nil {
		return nil, false, exc
	}
	_, ei, found, exc := d.probe(key, hash)
	if exc != nil {
		return nil, false, exc
	}
	if !found {
		return nil, false, nil
	}
	return d.entries[ei].val, true, nil
}

func (d *Dict) Set(key, val Object) Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	hash, exc := HashOf(key)
	if exc != nil {
		return exc
	}
	bi, ei, found, exc := d.probe(key, hash)
	if exc != nil {
		return exc
	}
	if found {
		d.entries[ei].val = val
		return nil
	}
	newIdx := int64(len(d.entries))
	d.entries = append(d.entries, dictEntry{key: key, val: val, hash: hash})
	d.buckets[bi] = newIdx
	d.live++
	d.maybeResize()
	return nil
}

func (d *Dict) Delete(key Object) (bool, Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hash, exc := HashOf(key)
	if exc != nil {
		return false, exc
	}
	bi, ei, found, exc := d.probe(key, hash)
	if exc != nil {
		return false, exc
	}
	if !found {
		return false, nil
	}
	d.buckets[bi] = bucketTomb
	d.entries[ei].deleted = true
	d.entries[ei].key = nil
	d.entries[ei].val = nil
	d.live--
	d.maybeCompact()
	return true, nil
}

func (d *Dict) Len() int { return d.live }

// Keys returns keys in insertion order (spec §3 "dict: ... insertion-order
// iteration via the entries array").
func (d *Dict) Keys() []Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Object, 0, d.live)
	for _, e := range d.entries {
		if !e.deleted {
			out = append(out, e.key)
		}
	}
	return out
}

func (d *Dict) Items() [][2]Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][2]Object, 0, d.live)
	for _, e := range d.entries {
		if !e.deleted {
			out = append(out, [2]Object{e.key, e.val})
		}
	}
	return out
}

// maybeResize grows the bucket array to the next prime >= live/targetLoad
// once the load factor (live+tombstones)/buckets exceeds resizeLoad (spec
// §3 "Resize to next prime ≥ requested size when load factor exceeds 0.6;
// target load is 0.3").
func (d *Dict) maybeResize() Object {
	used := len(d.entries) // live + tombstoned, since tombstones still occupy a bucket slot
	if float64(used)/float64(len(d.buckets)) <= resizeLoad {
		return nil
	}
	requested := int(float64(d.live) / targetLoad)
	if requested < 8 {
		requested = 8
	}
	d.rehash(nextPrime(requested))
	return nil
}

// maybeCompact refills holes left by deletion once the tombstone ratio
// exceeds 0.5 (spec §3 "Deletion leaves tombstones; a compaction refills
// holes when their ratio exceeds 0.5").
func (d *Dict) maybeCompact() {
	tomb := len(d.entries) - d.live
	if d.live == 0 {
		if tomb > 0 {
			d.rehash(len(d.buckets))
		}
		return
	}
	if float64(tomb)/float64(d.live) > compactionRatio {
		d.rehash(len(d.buckets))
	}
}

// rehash rebuilds entries/buckets at the given bucket-array size, dropping
// tombstones and preserving insertion order (spec §3 "rehash preserves
// order").
func (d *Dict) rehash(newSize int) {
	old := d.entries
	d.entries = make([]dictEntry, 0, d.live)
	d.buckets = newBucketArray(newSize)
	for _, e := range old {
		if e.deleted {
			continue
		}
		n := len(d.buckets)
		start := int(e.hash % uint64(n))
		for i := 0; i < n; i++ {
			bi := (start + i) % n
			if d.buckets[bi] == bucketEmpty {
				d.buckets[bi] = int64(len(d.entries))
				d.entries = append(d.entries, e)
				break
			}
		}
	}
}

func init() {
	DictType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*Dict).Len())), nil
	}
	DictType.Slots.Bool = func(args []Object) (Object, Object) {
		return NewBool(args[0].(*Dict).Len() != 0), nil
	}
	DictType.Slots.GetElem = func(args []Object) (Object, Object) {
		v, found, exc := args[0].(*Dict).Get(args[1])
		if exc != nil {
			return nil, exc
		}
		if !found {
			return nil, NewException(vmerr.KeyError, "key not found")
		}
		return v, nil
	}
	DictType.Slots.SetElem = func(args []Object) (Object, Object) {
		if exc := args[0].(*Dict).Set(args[1], args[2]); exc != nil {
			return nil, exc
		}
		return NoneVal, nil
	}
	DictType.Slots.DelElem = func(args []Object) (Object, Object) {
		found, exc := args[0].(*Dict).Delete(args[1])
		if exc != nil {
			return nil, exc
		}
		if !found {
			return nil, NewException(vmerr.KeyError, "key not found")
		}
		return NoneVal, nil
	}
	DictType.Slots.Contains = func(args []Object) (Object, Object) {
		_, found, exc := args[0].(*Dict).Get(args[1])
		if exc != nil {
			return nil, exc
		}
		return NewBool(found), nil
	}
	DictType.Slots.Iter = func(args []Object) (Object, Object) {
		return NewSeqIterator(args[0].(*Dict).Keys()), nil
	}
	DictType.Slots.Repr = func(args []Object) (Object, Object) {
		d := args[0].(*Dict)
		items := d.Items()
		parts := make([]string, len(items))
		for i, kv := range items {
			ks, exc := ReprOf(kv[0], nil)
			if exc != nil {
				return nil, exc
			}
			vs, exc := ReprOf(kv[1], nil)
			if exc != nil {
				return nil, exc
			}
			parts[i] = ks + ": " + vs
		}
		s := "{"
		for i, p := range parts {
			if i > 0 {
				s += ", "
			}
			s += p
		}
		s += "}"
		return NewStr(s), nil
	}

	DictType.Methods = map[string]Object{
		"keys": NewNative("keys", func(args []Object) (Object, Object) {
			return NewList(args[0].(*Dict).Keys()), nil
		}),
		"values": NewNative("values", func(args []Object) (Object, Object) {
			items := args[0].(*Dict).Items()
			out := make([]Object, len(items))
			for i, kv := range items {
				out[i] = kv[1]
			}
			return NewList(out), nil
		}),
		"items": NewNative("items", func(args []Object) (Object, Object) {
			items := args[0].(*Dict).Items()
			out := make([]Object, len(items))
			for i, kv := range items {
				out[i] = NewTuple([]Object{kv[0], kv[1]})
			}
			return NewList(out), nil
		}),
		"get": NewNative("get", func(args []Object) (Object, Object) {
			d := args[0].(*Dict)
			v, found, exc := d.Get(args[1])
			if exc != nil {
				return nil, exc
			}
			if found {
				return v, nil
			}
			if len(args) > 2 {
				return args[2], nil
			}
			return NoneVal, nil
		}),
	}

	// dict(x) backs the builtin constructor internal/builtins registers:
	// with no argument, empty; otherwise built from an iterable of
	// (key, value) pairs.
	DictType.Slots.New = func(args []Object) (Object, Object) {
		d := NewDict()
		if len(args) == 0 {
			return d, nil
		}
		pairs, exc := CollectIter(args[0])
		if exc != nil {
			return nil, exc
		}
		for _, p := range pairs {
			kv, exc := CollectIter(p)
			if exc != nil {
				return nil, exc
			}
			if len(kv) != 2 {
				return nil, NewException(vmerr.ValError, "dict() pair must have exactly 2 elements")
			}
			if exc := d.Set(kv[0], kv[1]); exc != nil {
				return nil, exc
			}
		}
		return d, nil
	}
}

// ---- Set ----

// SetType is a mutable hash-set keyed by object hash and equality
// (spec §3 "set").
var SetType = NewType("set", ObjectType)

// Set reuses Dict's open-addressing storage with a nil value per slot,
// matching the teacher's convention of building the set type atop the map
// primitive rather than duplicating probing logic.
type Set struct {
	Header
	backing *Dict
}

func (s *Set) header() *Header { return &s.Header }

func NewSet(elems []Object) (*Set, Object) {
	s := &Set{Header: NewHeader(SetType), backing: NewDict()}
	for _, e := range elems {
		if exc := s.backing.Set(e, NoneVal); exc != nil {
			return nil, exc
		}
	}
	return s, nil
}

func (s *Set) Len() int            { return s.backing.Len() }
func (s *Set) Elems() []Object     { return s.backing.Keys() }
func (s *Set) Add(v Object) Object { return s.backing.Set(v, NoneVal) }

func (s *Set) Has(v Object) (bool, Object) {
	_, found, exc := s.backing.Get(v)
	return found, exc
}

func init() {
	SetType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*Set).Len())), nil
	}
	SetType.Slots.Contains = func(args []Object) (Object, Object) {
		found, exc := args[0].(*Set).Has(args[1])
		if exc != nil {
			return nil, exc
		}
		return NewBool(found), nil
	}
	SetType.Slots.Iter = func(args []Object) (Object, Object) {
		return NewSeqIterator(args[0].(*Set).Elems()), nil
	}
	SetType.Slots.Repr = func(args []Object) (Object, Object) {
		s := args[0].(*Set)
		if s.Len() == 0 {
			return NewStr("set()"), nil
		}
		return wrapStr(reprSeq(s.Elems(), "{", "}", nil))
	}
	SetType.Slots.Eq = func(args []Object) (Object, Object) {
		a, ok := args[0].(*Set)
		b, ok2 := args[1].(*Set)
		if !ok || !ok2 {
			return Undefined, nil
		}
		if a.Len() != b.Len() {
			return False, nil
		}
		for _, e := range a.Elems() {
			found, exc := b.Has(e)
			if exc != nil {
				return nil, exc
			}
			if !found {
				return False, nil
			}
		}
		return True, nil
	}

	SetType.Methods = map[string]Object{
		"add": NewNative("add", func(args []Object) (Object, Object) {
			s, ok := args[0].(*Set)
			if !ok {
				return nil, NewException(vmerr.TypeError, "add() requires a set receiver")
			}
			if exc := s.Add(args[1]); exc != nil {
				return nil, exc
			}
			return NoneVal, nil
		}),
	}

	// set(x) backs the builtin constructor internal/builtins registers:
	// with no argument, empty; otherwise drained from an iterable.
	SetType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			s, _ := NewSet(nil)
			return s, nil
		}
		elems, exc := CollectIter(args[0])
		if exc != nil {
			return nil, exc
		}
		s, exc := NewSet(elems)
		if exc != nil {
			return nil, exc
		}
		return s, nil
	}
}
