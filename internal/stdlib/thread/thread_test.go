package thread

import (
	"testing"
	"time"

	"kvm/internal/object"
	"kvm/internal/vm"
	"kvm/internal/vmerr"
)

func newTestInterp() *vm.Interpreter {
	return vm.NewInterpreter(object.NewModule("__builtins__", "<builtins>"))
}

// echo returns a native that hands back its single argument, standing in
// for a user-defined callable passed to spawn().
func echo() *object.Func {
	return object.NewNative("echo", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 1 {
			return nil, object.NewException(vmerr.ArgError, "echo(x) takes exactly 1 argument")
		}
		return args[0], nil
	})
}

func TestSpawnJoinReturnsResult(t *testing.T) {
	interp := newTestInterp()
	mod := Module(interp)
	spawnFn, _ := mod.Get("spawn")
	main := object.NewThread("main")

	result, exc := interp.Call(main, spawnFn, []object.Object{echo(), object.NewInt(42)})
	if exc != nil {
		t.Fatalf("spawn: %v", exc)
	}
	th, ok := result.(*Thread)
	if !ok {
		t.Fatalf("spawn did not return a *Thread, got %#v", result)
	}

	joinFn := ThreadType.Methods["join"]
	joined, exc := interp.Call(main, joinFn, []object.Object{th})
	if exc != nil {
		t.Fatalf("join: %v", exc)
	}
	n, ok := joined.(*object.Int)
	if !ok || n.Val.Int64() != 42 {
		t.Errorf("join result = %#v, want Int(42)", joined)
	}
}

func TestMutexExcludesConcurrentAccess(t *testing.T) {
	interp := newTestInterp()
	mod := Module(interp)
	mutexFn, _ := mod.Get("mutex")
	main := object.NewThread("main")

	mv, exc := interp.Call(main, mutexFn, nil)
	if exc != nil {
		t.Fatalf("mutex(): %v", exc)
	}

	lockFn := MutexType.Methods["lock"]
	unlockFn := MutexType.Methods["unlock"]

	counter := 0
	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			worker := object.NewThread("worker")
			if _, exc := interp.Call(worker, lockFn, []object.Object{mv}); exc != nil {
				t.Error(exc)
			}
			cur := counter
			time.Sleep(time.Millisecond)
			counter = cur + 1
			if _, exc := interp.Call(worker, unlockFn, []object.Object{mv}); exc != nil {
				t.Error(exc)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	if counter != n {
		t.Errorf("counter = %d, want %d (mutex did not exclude concurrent increments)", counter, n)
	}
}
