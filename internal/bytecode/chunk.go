package bytecode

import (
	"encoding/binary"
	"fmt"
	"sort"

	"kvm/internal/object"
)

// Assembler emits bytecode into an object.Code, maintaining the constant
// pool (spec §4.3 "Constant pool") and source map (spec §4.3 "Source
// map"). Grounded on the teacher's bytecode.Chunk append-only byte buffer,
// generalized to the packed opcode/immediate encoding and identity-aware
// constant interning spec.md requires.
type Assembler struct {
	code      *object.Code
	constKeys map[string]int
	srcMap    []object.SourceMapEntry
}

// NewAssembler wraps a freshly-created code object for emission.
func NewAssembler(code *object.Code) *Assembler {
	return &Assembler{code: code, constKeys: make(map[string]int)}
}

func (a *Assembler) Code() *object.Code {
	sort.Slice(a.srcMap, func(i, j int) bool { return a.srcMap[i].Offset < a.srcMap[j].Offset })
	a.code.SourceMap = a.srcMap
	return a.code
}

// Offset is the current end of the emitted instruction stream, used as a
// jump target and for stack-map bookkeeping.
func (a *Assembler) Offset() int { return len(a.code.Bytes) }

// Mark records the source line/col for the instruction about to be
// emitted at the current offset.
func (a *Assembler) Mark(line, col int) {
	a.srcMap = append(a.srcMap, object.SourceMapEntry{Offset: a.Offset(), Line: line, Col: col})
}

// Emit appends a bare (no-immediate) opcode.
func (a *Assembler) Emit(op Op) int {
	if op.hasArg() {
		panic(fmt.Sprintf("bytecode: %s requires an immediate", op))
	}
	off := a.Offset()
	a.code.Bytes = append(a.code.Bytes, byte(op))
	return off
}

// EmitArg appends an opcode with its packed signed 32-bit immediate
// (spec §4.3 "packed 5-byte record").
func (a *Assembler) EmitArg(op Op, arg int32) int {
	if !op.hasArg() {
		panic(fmt.Sprintf("bytecode: %s takes no immediate", op))
	}
	off := a.Offset()
	a.code.Bytes = append(a.code.Bytes, byte(op))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(arg))
	a.code.Bytes = append(a.code.Bytes, buf[:]...)
	return off
}

// PatchJump overwrites the immediate of the jump instruction at pos (the
// offset Emit/EmitArg returned) so it lands at target, expressed relative
// to the byte after the immediate (spec §4.3 "Bytecode layout").
func (a *Assembler) PatchJump(pos, target int) {
	rel := int32(target - (pos + 5))
	binary.LittleEndian.PutUint32(a.code.Bytes[pos+1:pos+5], uint32(rel))
}

// ReadArg decodes the signed 32-bit immediate at ip (the byte right after
// the opcode byte).
func ReadArg(code []byte, ip int) int32 {
	return int32(binary.LittleEndian.Uint32(code[ip+1 : ip+5]))
}

// AddConstant interns v by identity plus type-plus-value equality (spec
// §4.3 "so true and 1 do not collide") and returns its pool index.
func (a *Assembler) AddConstant(v object.Object) int32 {
	key := constantKey(v)
	if idx, ok := a.constKeys[key]; ok {
		return int32(idx)
	}
	idx := len(a.code.Constants)
	a.code.Constants = append(a.code.Constants, v)
	a.constKeys[key] = idx
	return int32(idx)
}

// constantKey builds a type-tagged interning key. Singletons (bool, none)
// and container/code/type values are keyed by pointer identity so that
// distinct mutable or nested objects are never unified.
func constantKey(v object.Object) string {
	switch o := v.(type) {
	case *object.Int:
		return "int:" + o.Val.String()
	case *object.Float:
		return fmt.Sprintf("float:%x", o.Val)
	case *object.Complex:
		return fmt.Sprintf("complex:%x:%x", o.Re, o.Im)
	case *object.Str:
		return "str:" + o.Value()
	case *object.Bool:
		return fmt.Sprintf("bool:%p", o)
	case *object.None:
		return fmt.Sprintf("none:%p", o)
	default:
		return fmt.Sprintf("id:%p", v)
	}
}
