package net

import (
	"testing"

	"kvm/internal/object"
	"kvm/internal/vm"
)

func testInterp() *vm.Interpreter {
	return vm.NewInterpreter(object.NewModule("__builtins__", "<builtins>"))
}

func TestWebsocketDialValidatesArguments(t *testing.T) {
	mod := Module(testInterp())
	fn, _ := mod.Get("websocket_dial")

	if _, exc := fn.(*object.Func).Native(nil); exc == nil {
		t.Error("expected an ArgError for a missing url argument")
	}
	if _, exc := fn.(*object.Func).Native([]object.Object{object.NewInt(1)}); exc == nil {
		t.Error("expected a TypeError for a non-string url argument")
	}
}

func TestWebsocketServeValidatesArguments(t *testing.T) {
	mod := Module(testInterp())
	fn, _ := mod.Get("websocket_serve")

	if _, exc := fn.(*object.Func).Native([]object.Object{object.NewStr(":0")}); exc == nil {
		t.Error("expected an ArgError for a missing handler argument")
	}
	if _, exc := fn.(*object.Func).Native([]object.Object{object.NewInt(1), object.NoneVal}); exc == nil {
		t.Error("expected a TypeError for a non-string address argument")
	}
}

func TestConnCloseIsIdempotent(t *testing.T) {
	c := &Conn{Header: object.NewHeader(ConnType), msgs: make(chan []byte)}
	c.closed = true // simulate an already-torn-down connection
	if _, exc := c.close(nil); exc != nil {
		t.Errorf("close() on an already-closed conn should be a no-op, got %v", exc)
	}
}
