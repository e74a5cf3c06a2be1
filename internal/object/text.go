package object

import (
	"strings"
	"unicode/utf8"

	"kvm/internal/vmerr"
)

// StrType is immutable UTF-8 text (spec §3 "str").
var StrType = NewType("str", ObjectType)

// BytesType is an immutable byte sequence (spec §3 "bytes").
var BytesType = NewType("bytes", ObjectType)

// Str caches byte length, codepoint length, and hash at construction, per
// spec §3 "str: ... caches byte length, codepoint length, and hash."
type Str struct {
	Header
	val     string
	byteLen int
	runeLen int
	hash    uint64
	hashSet bool
}

func (s *Str) header() *Header { return &s.Header }

func NewStr(v string) *Str {
	s := &Str{Header: NewHeader(StrType), val: v, byteLen: len(v), runeLen: utf8.RuneCountInString(v)}
	s.hash = fnv1a(v)
	s.hashSet = true
	return s
}

func (s *Str) Value() string { return s.val }
func (s *Str) ByteLen() int  { return s.byteLen }
func (s *Str) RuneLen() int  { return s.runeLen }
func (s *Str) Hash() uint64  { return s.hash }

// Runes returns the codepoint slice, for indexing/slicing by codepoint
// rather than by byte (UTF-8 is variable width).
func (s *Str) Runes() []rune { return []rune(s.val) }

type Bytes struct {
	Header
	val []byte
}

func (b *Bytes) header() *Header { return &b.Header }

func NewBytes(v []byte) *Bytes {
	cp := make([]byte, len(v))
	copy(cp, v)
	return &Bytes{Header: NewHeader(BytesType), val: cp}
}

func (b *Bytes) Value() []byte { return b.val }

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func init() {
	StrType.Slots.Eq = func(args []Object) (Object, Object) {
		a, ok := args[0].(*Str)
		b, ok2 := args[1].(*Str)
		if !ok || !ok2 {
			return Undefined, nil
		}
		return NewBool(a.val == b.val), nil
	}
	StrType.Slots.Hash = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*Str).hash)), nil
	}
	StrType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*Str).runeLen)), nil
	}
	StrType.Slots.Str = func(args []Object) (Object, Object) { return args[0], nil }
	StrType.Slots.Repr = func(args []Object) (Object, Object) {
		return NewStr("'" + strings.ReplaceAll(args[0].(*Str).val, "'", "\\'") + "'"), nil
	}
	StrType.Slots.Bool = func(args []Object) (Object, Object) {
		return NewBool(args[0].(*Str).val != ""), nil
	}
	StrType.Slots.Add = func(args []Object) (Object, Object) {
		a, ok := args[0].(*Str)
		b, ok2 := args[1].(*Str)
		if !ok || !ok2 {
			return Undefined, nil
		}
		return NewStr(a.val + b.val), nil
	}
	StrType.Slots.Contains = func(args []Object) (Object, Object) {
		a := args[0].(*Str)
		b, ok := args[1].(*Str)
		if !ok {
			return Undefined, nil
		}
		return NewBool(strings.Contains(a.val, b.val)), nil
	}
	StrType.Slots.GetElem = func(args []Object) (Object, Object) {
		s := args[0].(*Str)
		idx, ok := args[1].(*Int)
		if !ok {
			return nil, NewException(vmerr.TypeError, "str index must be int")
		}
		runes := s.Runes()
		i := int(idx.Val.Int64())
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return nil, NewException(vmerr.IndexError, "str index out of range")
		}
		return NewStr(string(runes[i])), nil
	}
	StrType.Slots.Iter = func(args []Object) (Object, Object) {
		return NewSeqIterator(stringElems(args[0].(*Str))), nil
	}

	BytesType.Slots.Eq = func(args []Object) (Object, Object) {
		a, ok := args[0].(*Bytes)
		b, ok2 := args[1].(*Bytes)
		if !ok || !ok2 {
			return Undefined, nil
		}
		return NewBool(string(a.val) == string(b.val)), nil
	}
	BytesType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(len(args[0].(*Bytes).val))), nil
	}
	BytesType.Slots.Str = func(args []Object) (Object, Object) {
		return NewStr(string(args[0].(*Bytes).val)), nil
	}
	BytesType.Slots.Repr = BytesType.Slots.Str

	// str(x) backs the builtin conversion constructor (spec §8's str<->int
	// round trip and the general `str(x)` callable internal/builtins wires
	// into __builtins__): with no argument, the empty string; otherwise x's
	// own Str representation.
	StrType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return NewStr(""), nil
		}
		s, exc := StrOf(args[0])
		if exc != nil {
			return nil, exc
		}
		return NewStr(s), nil
	}
	BytesType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return NewBytes(nil), nil
		}
		switch v := args[0].(type) {
		case *Bytes:
			return v, nil
		case *Str:
			return NewBytes([]byte(v.Value())), nil
		default:
			return nil, NewException(vmerr.TypeError, "bytes() argument must be str or bytes, not '"+v.KType().Name+"'")
		}
	}
}

func stringElems(s *Str) []Object {
	runes := s.Runes()
	out := make([]Object, len(runes))
	for i, r := range runes {
		out[i] = NewStr(string(r))
	}
	return out
}
