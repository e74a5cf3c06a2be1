// Package fmtutil is the small formatting-helper collaborator named in
// SPEC_FULL.md §3: humanize_bytes/humanize_time, wired to
// github.com/dustin/go-humanize. HumanizeBytes also backs os.stat()'s
// size_human field and io's humanize_size function.
package fmtutil

import (
	"time"

	"github.com/dustin/go-humanize"

	"kvm/internal/object"
	"kvm/internal/vmerr"
)

// HumanizeBytes renders a byte count the way os.stat()'s size_human field
// and io.humanize_size report it, e.g. 82132 -> "82 kB".
func HumanizeBytes(n uint64) string {
	return humanize.Bytes(n)
}

// HumanizeTime renders a duration of seconds-ago as a relative phrase,
// e.g. 3600 -> "1 hour ago", matching humanize.Time's output shape.
func HumanizeTime(secondsAgo float64) string {
	return humanize.Time(time.Now().Add(-time.Duration(secondsAgo * float64(time.Second))))
}

func Module() *object.Module {
	mod := object.NewModule("fmtutil", "<builtin fmtutil>")

	mod.Set("humanize_bytes", object.NewNative("humanize_bytes", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 1 {
			return nil, object.NewException(vmerr.ArgError, "humanize_bytes(n) takes exactly 1 argument")
		}
		n, exc := asUint64(args[0])
		if exc != nil {
			return nil, exc
		}
		return object.NewStr(HumanizeBytes(n)), nil
	}))

	mod.Set("humanize_time", object.NewNative("humanize_time", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 1 {
			return nil, object.NewException(vmerr.ArgError, "humanize_time(seconds_ago) takes exactly 1 argument")
		}
		secs, exc := asFloat(args[0])
		if exc != nil {
			return nil, exc
		}
		return object.NewStr(HumanizeTime(secs)), nil
	}))

	return mod
}

func asUint64(o object.Object) (uint64, object.Object) {
	switch v := o.(type) {
	case *object.Int:
		return v.Val.Uint64(), nil
	case *object.Float:
		return uint64(v.Val), nil
	default:
		return 0, object.NewException(vmerr.TypeError, "expected a number")
	}
}

func asFloat(o object.Object) (float64, object.Object) {
	switch v := o.(type) {
	case *object.Float:
		return v.Val, nil
	case *object.Int:
		return float64(v.Val.Int64()), nil
	default:
		return 0, object.NewException(vmerr.TypeError, "expected a number")
	}
}
