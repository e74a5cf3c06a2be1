// Package buildutil implements the `kvm build` subcommand of SPEC_FULL.md
// §2 ("`build` (emit a serialized code object)"): a binary on-disk encoding
// of an *object.Code and its constant pool. Grounded on the teacher's
// internal/buildutil.BytecodeFile (magic number, version, length-prefixed
// binary.Write encoding of a flat chunk/constant-pool pair), generalized
// from the teacher's flat uint32-array chunk to this tree's single
// self-contained *object.Code (bytes + constants + source map). Constants
// of kind none, bool, int, float, str and *object.Code are encoded; any
// other constant, including the function and type descriptors the
// compiler emits for every func/type definition, has no serialized form
// and makes writing fail with an error.
package buildutil

import (
	"encoding/binary"
	"fmt"
	"io"

	"kvm/internal/object"
)

const (
	// Version is bumped whenever the on-disk encoding changes shape.
	Version = 1
	// Magic identifies a kvm compiled-code file ("KVMC" in hex nibbles).
	Magic uint32 = 0x4b564d43
)

const (
	tagNone byte = iota
	tagBool
	tagInt
	tagFloat
	tagStr
	tagCode
)

// Serialize writes a compiled code object to w in the format `kvm build`
// produces and `kvm run` reads back for a `.kvmc` file.
func Serialize(w io.Writer, code *object.Code) error {
	if err := binary.Write(w, binary.LittleEndian, Magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(Version)); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return writeCode(w, code)
}

func writeCode(w io.Writer, code *object.Code) error {
	if err := writeString(w, code.FileName); err != nil {
		return err
	}
	if err := writeString(w, code.Source); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(code.NumLocals)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(code.Bytes))); err != nil {
		return err
	}
	if _, err := w.Write(code.Bytes); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(code.SourceMap))); err != nil {
		return err
	}
	for _, e := range code.SourceMap {
		if err := binary.Write(w, binary.LittleEndian, int32(e.Offset)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(e.Line)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(e.Col)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(code.Constants))); err != nil {
		return err
	}
	for _, c := range code.Constants {
		if err := writeConstant(w, c); err != nil {
			return err
		}
	}
	return nil
}

func writeConstant(w io.Writer, v object.Object) error {
	switch c := v.(type) {
	case *object.None, nil:
		return binary.Write(w, binary.LittleEndian, tagNone)
	case *object.Bool:
		if err := binary.Write(w, binary.LittleEndian, tagBool); err != nil {
			return err
		}
		var b byte
		if c.Val {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)
	case *object.Int:
		if err := binary.Write(w, binary.LittleEndian, tagInt); err != nil {
			return err
		}
		return writeString(w, c.Val.String())
	case *object.Float:
		if err := binary.Write(w, binary.LittleEndian, tagFloat); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, c.Val)
	case *object.Str:
		if err := binary.Write(w, binary.LittleEndian, tagStr); err != nil {
			return err
		}
		return writeString(w, c.Value())
	case *object.Code:
		if err := binary.Write(w, binary.LittleEndian, tagCode); err != nil {
			return err
		}
		return writeCode(w, c)
	default:
		return fmt.Errorf("buildutil: constant type %T has no serialized form", v)
	}
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// Deserialize reads back a code object previously written by Serialize.
func Deserialize(r io.Reader) (*object.Code, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a kvm compiled-code file")
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version > Version {
		return nil, fmt.Errorf("unsupported kvm bytecode version: %d", version)
	}
	return readCode(r)
}

func readCode(r io.Reader) (*object.Code, error) {
	fileName, err := readString(r)
	if err != nil {
		return nil, err
	}
	source, err := readString(r)
	if err != nil {
		return nil, err
	}
	code := object.NewCode(fileName, source)

	var numLocals uint32
	if err := binary.Read(r, binary.LittleEndian, &numLocals); err != nil {
		return nil, err
	}
	code.NumLocals = int(numLocals)

	var codeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &codeLen); err != nil {
		return nil, err
	}
	code.Bytes = make([]byte, codeLen)
	if _, err := io.ReadFull(r, code.Bytes); err != nil {
		return nil, err
	}

	var mapLen uint32
	if err := binary.Read(r, binary.LittleEndian, &mapLen); err != nil {
		return nil, err
	}
	code.SourceMap = make([]object.SourceMapEntry, mapLen)
	for i := range code.SourceMap {
		var off, line, col int32
		if err := binary.Read(r, binary.LittleEndian, &off); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &col); err != nil {
			return nil, err
		}
		code.SourceMap[i] = object.SourceMapEntry{Offset: int(off), Line: int(line), Col: int(col)}
	}

	var numConsts uint32
	if err := binary.Read(r, binary.LittleEndian, &numConsts); err != nil {
		return nil, err
	}
	code.Constants = make([]object.Object, numConsts)
	for i := range code.Constants {
		c, err := readConstant(r)
		if err != nil {
			return nil, err
		}
		code.Constants[i] = c
	}

	return code, nil
}

func readConstant(r io.Reader) (object.Object, error) {
	var tag byte
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return nil, err
	}
	switch tag {
	case tagNone:
		return object.NoneVal, nil
	case tagBool:
		var b byte
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return nil, err
		}
		return object.NewBool(b != 0), nil
	case tagInt:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, ok := object.NewIntFromString(s, 10)
		if !ok {
			return nil, fmt.Errorf("buildutil: corrupt int constant %q", s)
		}
		return v, nil
	case tagFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return nil, err
		}
		return object.NewFloat(f), nil
	case tagStr:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return object.NewStr(s), nil
	case tagCode:
		return readCode(r)
	default:
		return nil, fmt.Errorf("buildutil: unknown constant tag %d", tag)
	}
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
