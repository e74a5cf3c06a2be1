// Package uid is the uuid() collaborator named in SPEC_FULL.md §3, wired
// to github.com/google/uuid. New backs the module's uuid() function.
package uid

import (
	"github.com/google/uuid"

	"kvm/internal/object"
)

// New returns a fresh random (v4) UUID string.
func New() string {
	return uuid.New().String()
}

func Module() *object.Module {
	mod := object.NewModule("uid", "<builtin uid>")
	mod.Set("uuid", object.NewNative("uuid", func(args []object.Object) (object.Object, object.Object) {
		return object.NewStr(New()), nil
	}))
	return mod
}
