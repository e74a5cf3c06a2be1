package object

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"kvm/internal/vmerr"
)

// IntType is the arbitrary-precision integer type (spec §3 "int").
var IntType = NewType("int", ObjectType)

// BoolType is a subtype of int with two process-wide singleton instances
// (spec §3 "bool: two-element enum with true>1, false>0, subtype of int").
var BoolType = NewType("bool", IntType)

// FloatType is IEEE-754 binary64 (spec §3 "float").
var FloatType = NewType("float", ObjectType)

// ComplexType is a pair of float reals (spec §3 "complex").
var ComplexType = NewType("complex", ObjectType)

// NoneType has exactly one instance, None (spec §3 "none").
var NoneType = NewType("none", ObjectType)

type Int struct {
	Header
	Val *big.Int
}

func (i *Int) header() *Header { return &i.Header }

func NewInt(v int64) *Int {
	return &Int{Header: NewHeader(IntType), Val: big.NewInt(v)}
}

func NewIntFromBig(v *big.Int) *Int {
	return &Int{Header: NewHeader(IntType), Val: v}
}

// NewIntFromString parses a string in the given base (2, 8, 10, 16), for
// the int<->str round trip of spec §8.
func NewIntFromString(s string, base int) (*Int, bool) {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	return NewIntFromBig(v), true
}

// StrInBase renders i in the given base, losslessly round-tripping with
// NewIntFromString per spec §8.
func (i *Int) StrInBase(base int) string {
	return i.Val.Text(base)
}

type Bool struct {
	Header
	Val bool
}

func (b *Bool) header() *Header { return &b.Header }

// True and False are the two process-wide bool singletons.
var (
	True  = &Bool{Header: NewHeader(BoolType), Val: true}
	False = &Bool{Header: NewHeader(BoolType), Val: false}
)

func NewBool(v bool) *Bool {
	if v {
		return True
	}
	return False
}

// AsInt reports bool's int value (true>1, false>0) per spec §3.
func (b *Bool) AsInt() int64 {
	if b.Val {
		return 1
	}
	return 0
}

type Float struct {
	Header
	Val float64
}

func (f *Float) header() *Header { return &f.Header }

func NewFloat(v float64) *Float {
	return &Float{Header: NewHeader(FloatType), Val: v}
}

type Complex struct {
	Header
	Re, Im float64
}

func (c *Complex) header() *Header { return &c.Header }

func NewComplex(re, im float64) *Complex {
	return &Complex{Header: NewHeader(ComplexType), Re: re, Im: im}
}

func (c *Complex) String() string {
	if c.Im >= 0 {
		return fmt.Sprintf("%g+%gi", c.Re, c.Im)
	}
	return fmt.Sprintf("%g%gi", c.Re, c.Im)
}

type None struct{ Header }

func (n *None) header() *Header { return &n.Header }

// NoneVal is the process-wide none singleton.
var NoneVal = &None{Header: NewHeader(NoneType)}

func init() {
	IntType.Slots.Eq = func(args []Object) (Object, Object) {
		a, b := asInt(args[0]), asInt(args[1])
		if a == nil || b == nil {
			return Undefined, nil
		}
		return NewBool(a.Val.Cmp(b.Val) == 0), nil
	}
	IntType.Slots.Cmp = func(args []Object) (Object, Object) {
		a, b := asInt(args[0]), asInt(args[1])
		if a == nil || b == nil {
			return Undefined, nil
		}
		return NewInt(int64(a.Val.Cmp(b.Val))), nil
	}
	cmpIntSlot := func(test func(c int) bool) NativeFn {
		return func(args []Object) (Object, Object) {
			a, b := asInt(args[0]), asInt(args[1])
			if a == nil || b == nil {
				return Undefined, nil
			}
			return NewBool(test(a.Val.Cmp(b.Val))), nil
		}
	}
	IntType.Slots.Lt = cmpIntSlot(func(c int) bool { return c < 0 })
	IntType.Slots.Le = cmpIntSlot(func(c int) bool { return c <= 0 })
	IntType.Slots.Gt = cmpIntSlot(func(c int) bool { return c > 0 })
	IntType.Slots.Ge = cmpIntSlot(func(c int) bool { return c >= 0 })
	IntType.Slots.Hash =func(args []Object) (Object, Object) {
		a := asInt(args[0])
		return NewInt(int64(hashBigInt(a.Val))), nil
	}
	IntType.Slots.Str = func(args []Object) (Object, Object) {
		return NewStr(args[0].(*Int).Val.String()), nil
	}
	IntType.Slots.Repr = IntType.Slots.Str
	IntType.Slots.Bool = func(args []Object) (Object, Object) {
		return NewBool(args[0].(*Int).Val.Sign() != 0), nil
	}
	IntType.Slots.Add = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) })
	IntType.Slots.Sub = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) })
	IntType.Slots.Mul = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) })
	IntType.Slots.FloorDiv = arithIntErr(func(a, b *big.Int) (*big.Int, Object) {
		if b.Sign() == 0 {
			return nil, NewException(vmerr.ValError, "division by zero")
		}
		q := new(big.Int)
		m := new(big.Int)
		q.DivMod(a, b, m)
		return q, nil
	})
	IntType.Slots.Div = func(args []Object) (Object, Object) {
		a, b := asInt(args[0]), asInt(args[1])
		if a == nil || b == nil {
			return Undefined, nil
		}
		if b.Val.Sign() == 0 {
			return nil, NewException(vmerr.ValError, "division by zero")
		}
		fa := new(big.Float).SetInt(a.Val)
		fb := new(big.Float).SetInt(b.Val)
		fa.Quo(fa, fb)
		v, _ := fa.Float64()
		return NewFloat(v), nil
	}
	IntType.Slots.Mod = arithIntErr(func(a, b *big.Int) (*big.Int, Object) {
		if b.Sign() == 0 {
			return nil, NewException(vmerr.ValError, "modulo by zero")
		}
		return new(big.Int).Mod(a, b), nil
	})
	IntType.Slots.Pow = arithIntErr(func(a, b *big.Int) (*big.Int, Object) {
		if b.Sign() < 0 {
			return nil, nil // defer to float pow
		}
		return new(big.Int).Exp(a, b, nil), nil
	})
	IntType.Slots.Lsh = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Lsh(a, uint(b.Int64())) })
	IntType.Slots.Rsh = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Rsh(a, uint(b.Int64())) })
	IntType.Slots.Or = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Or(a, b) })
	IntType.Slots.Xor = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).Xor(a, b) })
	IntType.Slots.And = arithInt(func(a, b *big.Int) *big.Int { return new(big.Int).And(a, b) })
	IntType.Slots.Neg = func(args []Object) (Object, Object) {
		return NewIntFromBig(new(big.Int).Neg(asInt(args[0]).Val)), nil
	}
	IntType.Slots.Pos = func(args []Object) (Object, Object) {
		return NewIntFromBig(new(big.Int).Set(asInt(args[0]).Val)), nil
	}
	IntType.Slots.Abs = func(args []Object) (Object, Object) {
		return NewIntFromBig(new(big.Int).Abs(asInt(args[0]).Val)), nil
	}
	IntType.Slots.Invert = func(args []Object) (Object, Object) {
		return NewIntFromBig(new(big.Int).Not(asInt(args[0]).Val)), nil
	}
	IntType.Slots.ToFloat = func(args []Object) (Object, Object) {
		f := new(big.Float).SetInt(asInt(args[0]).Val)
		v, _ := f.Float64()
		return NewFloat(v), nil
	}

	FloatType.Slots.Eq = cmpFloat(func(a, b float64) bool { return a == b })
	FloatType.Slots.Str = func(args []Object) (Object, Object) {
		return NewStr(formatFloat(args[0].(*Float).Val)), nil
	}
	FloatType.Slots.Repr = FloatType.Slots.Str
	FloatType.Slots.Bool = func(args []Object) (Object, Object) {
		return NewBool(args[0].(*Float).Val != 0), nil
	}
	FloatType.Slots.Add = arithFloat(func(a, b float64) float64 { return a + b })
	FloatType.Slots.Sub = arithFloat(func(a, b float64) float64 { return a - b })
	FloatType.Slots.Mul = arithFloat(func(a, b float64) float64 { return a * b })
	FloatType.Slots.Div = arithFloat(func(a, b float64) float64 { return a / b })
	FloatType.Slots.Neg = func(args []Object) (Object, Object) {
		return NewFloat(-args[0].(*Float).Val), nil
	}

	NoneType.Slots.Bool = func(args []Object) (Object, Object) { return False, nil }
	NoneType.Slots.Str = func(args []Object) (Object, Object) { return NewStr("none"), nil }
	NoneType.Slots.Repr = NoneType.Slots.Str
	NoneType.Slots.Eq = func(args []Object) (Object, Object) {
		_, ok := args[1].(*None)
		return NewBool(ok), nil
	}

	BoolType.Slots.Str = func(args []Object) (Object, Object) {
		if args[0].(*Bool).Val {
			return NewStr("true"), nil
		}
		return NewStr("false"), nil
	}
	BoolType.Slots.Repr = BoolType.Slots.Str
	BoolType.Slots.Bool = func(args []Object) (Object, Object) { return args[0], nil }

	// New slots back the builtin conversion constructors (spec §8 scenario
	// 1's int/str round trip, and the general `int(x)`/`float(x)`/`bool(x)`
	// callables internal/builtins registers in __builtins__).
	IntType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return NewInt(0), nil
		}
		base := 10
		if len(args) > 1 {
			b := asInt(args[1])
			if b == nil {
				return nil, NewException(vmerr.TypeError, "int() base must be int")
			}
			base = int(b.Val.Int64())
		}
		switch v := args[0].(type) {
		case *Int:
			return v, nil
		case *Bool:
			return NewInt(v.AsInt()), nil
		case *Float:
			i, _ := big.NewFloat(v.Val).Int(nil)
			return NewIntFromBig(i), nil
		case *Str:
			n, ok := NewIntFromString(strings.TrimSpace(v.Value()), base)
			if !ok {
				return nil, NewException(vmerr.ValError, "invalid literal for int(): '"+v.Value()+"'")
			}
			return n, nil
		default:
			return nil, NewException(vmerr.TypeError, "int() argument must be a string or number, not '"+v.KType().Name+"'")
		}
	}
	FloatType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return NewFloat(0), nil
		}
		switch v := args[0].(type) {
		case *Float:
			return v, nil
		case *Int, *Bool:
			f, _ := toFloat64(v)
			return NewFloat(f), nil
		case *Str:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Value()), 64)
			if err != nil {
				return nil, NewException(vmerr.ValError, "could not convert string to float: '"+v.Value()+"'")
			}
			return NewFloat(f), nil
		default:
			return nil, NewException(vmerr.TypeError, "float() argument must be a string or number, not '"+v.KType().Name+"'")
		}
	}
	BoolType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return False, nil
		}
		return NewBool(Truthy(args[0])), nil
	}
	NoneType.Slots.New = func(args []Object) (Object, Object) { return NoneVal, nil }
}

func asInt(o Object) *Int {
	if i, ok := o.(*Int); ok {
		return i
	}
	if b, ok := o.(*Bool); ok {
		return NewInt(b.AsInt())
	}
	return nil
}

func arithInt(f func(a, b *big.Int) *big.Int) NativeFn {
	return func(args []Object) (Object, Object) {
		a, b := asInt(args[0]), asInt(args[1])
		if a == nil || b == nil {
			return Undefined, nil
		}
		return NewIntFromBig(f(a.Val, b.Val)), nil
	}
}

func arithIntErr(f func(a, b *big.Int) (*big.Int, Object)) NativeFn {
	return func(args []Object) (Object, Object) {
		a, b := asInt(args[0]), asInt(args[1])
		if a == nil || b == nil {
			return Undefined, nil
		}
		v, exc := f(a.Val, b.Val)
		if exc != nil {
			return nil, exc
		}
		if v == nil {
			return Undefined, nil
		}
		return NewIntFromBig(v), nil
	}
}

func arithFloat(f func(a, b float64) float64) NativeFn {
	return func(args []Object) (Object, Object) {
		a, ok1 := toFloat64(args[0])
		b, ok2 := toFloat64(args[1])
		if !ok1 || !ok2 {
			return Undefined, nil
		}
		return NewFloat(f(a, b)), nil
	}
}

func cmpFloat(f func(a, b float64) bool) NativeFn {
	return func(args []Object) (Object, Object) {
		a, ok1 := toFloat64(args[0])
		b, ok2 := toFloat64(args[1])
		if !ok1 || !ok2 {
			return Undefined, nil
		}
		return NewBool(f(a, b)), nil
	}
}

func toFloat64(o Object) (float64, bool) {
	switch v := o.(type) {
	case *Float:
		return v.Val, true
	case *Int:
		f := new(big.Float).SetInt(v.Val)
		r, _ := f.Float64()
		return r, true
	case *Bool:
		return float64(v.AsInt()), true
	}
	return 0, false
}

func hashBigInt(v *big.Int) uint64 {
	var h uint64 = 14695981039346656037
	for _, b := range v.Bytes() {
		h ^= uint64(b)
		h *= 1099511628211
	}
	if v.Sign() < 0 {
		h ^= 1
	}
	return h
}

func formatFloat(f float64) string {
	return big.NewFloat(f).Text('g', -1)
}
