package buildutil

import (
	"bytes"
	"testing"

	"kvm/internal/bytecode"
	"kvm/internal/object"
)

func TestSerializeRoundTrip(t *testing.T) {
	inner := object.NewCode("inner.ks", "return 1")
	inner.NumLocals = 1
	inner.Bytes = []byte{byte(bytecode.Ret)}
	inner.Constants = []object.Object{object.NewInt(1)}

	code := object.NewCode("main.ks", "let x = 1\nreturn x")
	code.NumLocals = 2
	code.Bytes = []byte{byte(bytecode.Load), 0, byte(bytecode.Ret)}
	code.SourceMap = []object.SourceMapEntry{{Offset: 0, Line: 1, Col: 1}}
	code.Constants = []object.Object{
		object.NoneVal,
		object.NewBool(true),
		object.NewInt(-7),
		object.NewFloat(3.5),
		object.NewStr("hello"),
		inner,
	}

	var buf bytes.Buffer
	if err := Serialize(&buf, code); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(&buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.FileName != code.FileName || got.NumLocals != code.NumLocals {
		t.Fatalf("code header mismatch: got %+v", got)
	}
	if !bytes.Equal(got.Bytes, code.Bytes) {
		t.Fatalf("bytecode mismatch: got %v want %v", got.Bytes, code.Bytes)
	}
	if len(got.Constants) != len(code.Constants) {
		t.Fatalf("constants length mismatch: got %d want %d", len(got.Constants), len(code.Constants))
	}

	gotInt, ok := got.Constants[2].(*object.Int)
	if !ok || gotInt.Val.Int64() != -7 {
		t.Errorf("constant[2] = %#v, want Int(-7)", got.Constants[2])
	}
	gotStr, ok := got.Constants[4].(*object.Str)
	if !ok || gotStr.Value() != "hello" {
		t.Errorf("constant[4] = %#v, want Str(hello)", got.Constants[4])
	}
	gotInner, ok := got.Constants[5].(*object.Code)
	if !ok || gotInner.FileName != "inner.ks" {
		t.Errorf("constant[5] = %#v, want nested code inner.ks", got.Constants[5])
	}
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := Deserialize(bytes.NewReader([]byte{0, 0, 0, 0, 1, 0, 0, 0}))
	if err == nil {
		t.Fatal("expected an error for a non-kvm file")
	}
}
