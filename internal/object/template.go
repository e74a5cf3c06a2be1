package object

import (
	"sync"

	"kvm/internal/vmerr"
)

// TemplateKey identifies a templated-type instantiation: a base type plus a
// tuple of template parameters (spec §3 "A templated-type is a type whose
// identity additionally includes a tuple of template parameters"; spec §9
// "Templated types ... memoize construction so Ptr<int> is a unique type
// object").
type TemplateKey struct {
	Base   *Type
	Params string // joined repr of params, used as the memo map key
}

var (
	templateMu    sync.Mutex
	templateCache = map[TemplateKey]*Type{}
)

// Instantiate returns the memoized templated type for base<params...>,
// constructing and registering it on first use via the base type's
// OnTemplate hook (spec §3 "a post-template hook (on_template)").
func Instantiate(base *Type, params []Object) (*Type, Object) {
	parts := make([]string, len(params))
	for i, p := range params {
		s, exc := ReprOf(p, nil)
		if exc != nil {
			return nil, exc
		}
		parts[i] = s
	}
	key := TemplateKey{Base: base, Params: joinParts(parts)}

	templateMu.Lock()
	defer templateMu.Unlock()
	if t, ok := templateCache[key]; ok {
		return t, nil
	}

	t := NewType(base.Name, base)
	t.TemplateParams = params
	if base.Slots.OnTemplate != nil {
		if err := base.Slots.OnTemplate(t, params); err != nil {
			if exc, ok := err.(Object); ok {
				return nil, exc
			}
			return nil, NewException(vmerr.InternalError, err.Error())
		}
	}
	templateCache[key] = t
	return t, nil
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
