package il

import (
	"fmt"
	"strings"
)

// Well-known type names.
const (
	TypeString = "System.String"
	TypeObject = "System.Object"
	TypeVoid   = "System.Void"
)

// TypeRef names a type. Generic instantiations carry their arguments in
// GenericArgs; Array counts trailing "[]" suffixes.
type TypeRef struct {
	Name        string
	GenericArgs []*TypeRef
	Array       int
}

// NewTypeRef returns a reference to a non-generic type.
func NewTypeRef(name string) *TypeRef {
	return &TypeRef{Name: name}
}

func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(t.Name)
	writeGenericArgs(&sb, t.GenericArgs)
	for i := 0; i < t.Array; i++ {
		sb.WriteString("[]")
	}
	return sb.String()
}

// Is reports whether t names the given type with no instantiation or array rank.
func (t *TypeRef) Is(name string) bool {
	return t != nil && t.Name == name && len(t.GenericArgs) == 0 && t.Array == 0
}

// IsGenericParam reports whether t is a type (!0) or method (!!0) generic parameter.
func (t *TypeRef) IsGenericParam() bool {
	return t != nil && strings.HasPrefix(t.Name, "!")
}

// open returns the type with instantiation arguments stripped from the outer
// name, which is how declaring types are compared.
func (t *TypeRef) open() string {
	if t == nil {
		return ""
	}
	name := t.Name
	for i := 0; i < t.Array; i++ {
		name += "[]"
	}
	return name
}

// MethodRef references a method by declaring type, name and signature.
// GenericParams is the method's generic arity; Params and ReturnType use !0/!!0
// for generic parameters, as metadata signatures do.
type MethodRef struct {
	DeclaringType *TypeRef
	Name          string
	ReturnType    *TypeRef
	Params        []*TypeRef
	GenericParams int
	HasThis       bool
}

// MethodIdentity is the structural key of a method. Two references to the same
// method compare equal regardless of where they came from or how the declaring
// type was instantiated.
type MethodIdentity struct {
	DeclaringType string
	Name          string
	Signature     string
}

func (id MethodIdentity) String() string {
	return id.DeclaringType + "::" + id.Name + id.Signature
}

// Identity returns the structural key for m.
func (m *MethodRef) Identity() MethodIdentity {
	var sig strings.Builder
	if m.GenericParams > 0 {
		fmt.Fprintf(&sig, "``%d", m.GenericParams)
	}
	sig.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sig.WriteByte(',')
		}
		sig.WriteString(p.String())
	}
	sig.WriteString(")")
	sig.WriteString(m.ReturnType.String())
	if m.HasThis {
		sig.WriteString(" instance")
	}
	return MethodIdentity{
		DeclaringType: m.DeclaringType.open(),
		Name:          m.Name,
		Signature:     sig.String(),
	}
}

// ArgCount is the number of stack values the call consumes.
func (m *MethodRef) ArgCount() int {
	n := len(m.Params)
	if m.HasThis {
		n++
	}
	return n
}

// Returns reports whether a call leaves a value on the stack.
func (m *MethodRef) Returns() bool {
	return m.ReturnType != nil && !m.ReturnType.Is(TypeVoid)
}

// FullName renders m as "Ret Decl::Name(Params)".
func (m *MethodRef) FullName() string {
	var sb strings.Builder
	m.write(&sb, nil)
	return sb.String()
}

func (m *MethodRef) String() string {
	return m.FullName()
}

func (m *MethodRef) write(sb *strings.Builder, genericArgs []*TypeRef) {
	if m.HasThis {
		sb.WriteString("instance ")
	}
	sb.WriteString(m.ReturnType.String())
	sb.WriteByte(' ')
	sb.WriteString(m.DeclaringType.String())
	sb.WriteString("::")
	sb.WriteString(m.Name)
	switch {
	case len(genericArgs) > 0:
		writeGenericArgs(sb, genericArgs)
	case m.GenericParams > 0:
		fmt.Fprintf(sb, "``%d", m.GenericParams)
	}
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
}

// MethodSpec is a generic method instantiated at one call site.
type MethodSpec struct {
	Method      *MethodRef
	GenericArgs []*TypeRef
}

func (s *MethodSpec) String() string {
	var sb strings.Builder
	s.Method.write(&sb, s.GenericArgs)
	return sb.String()
}

// FieldRef references a field.
type FieldRef struct {
	DeclaringType *TypeRef
	Name          string
	Type          *TypeRef
}

func (f *FieldRef) String() string {
	return f.Type.String() + " " + f.DeclaringType.String() + "::" + f.Name
}

// Local is a local variable index operand.
type Local int

// Arg is a method argument index operand.
type Arg int

func writeGenericArgs(sb *strings.Builder, args []*TypeRef) {
	if len(args) == 0 {
		return
	}
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte('>')
}
