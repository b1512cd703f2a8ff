package inline

import (
	"inliner/internal/il"
)

const stringInternName = "System.String System.String::Intern(System.String)"

// handlers is the registration surface shared by the literal-kind inliners.
type handlers struct {
	registry *Registry
	engine   *Engine
}

// Add registers h for calls to method. A nil method is ignored.
func (h *handlers) Add(method *il.MethodRef, handler Handler) {
	h.registry.Register(method, handler)
}

// HasHandlers reports whether anything is registered. When false, running
// the inliner cannot change a method.
func (h *handlers) HasHandlers() bool {
	return h.registry.Count() != 0
}

// Methods returns the registered methods.
func (h *handlers) Methods() []*il.MethodRef {
	return h.registry.Methods()
}

// Used returns the identities of registered methods that were inlined at
// least once.
func (h *handlers) Used() []il.MethodIdentity {
	return h.registry.Used()
}

// Inline runs the pass over m.
func (h *handlers) Inline(m *il.Method) (bool, error) {
	return h.engine.Run(m)
}

// StringInliner replaces calls to string decrypters with ldstr.
type StringInliner struct {
	handlers
}

// NewStringInliner creates a StringInliner with no handlers.
func NewStringInliner(opts ...Option) *StringInliner {
	si := &StringInliner{handlers: handlers{registry: NewRegistry()}}
	si.engine = NewEngine(stringVariant{registry: si.registry}, opts...)
	return si
}

type stringVariant struct {
	registry *Registry
}

func (v stringVariant) Kind() string        { return "string" }
func (v stringVariant) Registry() *Registry { return v.registry }

// Accept rejects targets that cannot return a string.
func (v stringVariant) Accept(site CallSite) (*CallResult, bool) {
	ret := site.Method.ReturnType
	if !ret.Is(il.TypeString) && !ret.Is(il.TypeObject) && !ret.IsGenericParam() {
		return nil, false
	}
	return NewCallResult(site), true
}

func (v stringVariant) Patch(r *CallResult) bool {
	s, ok := r.Value.(string)
	if !ok {
		return false
	}

	b := r.Block
	at := r.Start
	b.Replace(at, r.End-r.Start+1, il.LoadString(s))

	// The slot after the literal is read again after each removal.
	if at+1 < b.Len() && isCastToString(b.At(at+1)) {
		b.Remove(at+1, 1)
	}
	if at+1 < b.Len() && isStringIntern(b.At(at+1)) {
		b.Remove(at+1, 1)
	}
	return true
}

func isCastToString(in il.Instruction) bool {
	if in.Op != il.Castclass {
		return false
	}
	t, ok := in.Type()
	return ok && t.Is(il.TypeString)
}

func isStringIntern(in il.Instruction) bool {
	if in.Op != il.Call {
		return false
	}
	m, gim, ok := in.Method()
	return ok && gim == nil && m.FullName() == stringInternName
}
