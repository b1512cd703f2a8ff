package inline

import (
	"inliner/internal/il"
)

// Literal is the set of non-string literal kinds a ValueInliner can produce.
type Literal interface {
	int32 | int64 | float32 | float64 | bool
}

// ValueInliner replaces calls returning a numeric or boolean constant with
// the matching ldc instruction. Unlike StringInliner it does no cleanup of
// the instructions following the literal.
type ValueInliner[T Literal] struct {
	handlers
}

// NewInt32Inliner creates an inliner emitting ldc.i4.
func NewInt32Inliner(opts ...Option) *ValueInliner[int32] {
	return newValueInliner("int32", "System.Int32", il.LoadInt32, opts)
}

// NewInt64Inliner creates an inliner emitting ldc.i8.
func NewInt64Inliner(opts ...Option) *ValueInliner[int64] {
	return newValueInliner("int64", "System.Int64", il.LoadInt64, opts)
}

// NewSingleInliner creates an inliner emitting ldc.r4.
func NewSingleInliner(opts ...Option) *ValueInliner[float32] {
	return newValueInliner("float32", "System.Single", il.LoadFloat32, opts)
}

// NewDoubleInliner creates an inliner emitting ldc.r8.
func NewDoubleInliner(opts ...Option) *ValueInliner[float64] {
	return newValueInliner("float64", "System.Double", il.LoadFloat64, opts)
}

// NewBooleanInliner creates an inliner emitting ldc.i4 0 or 1.
func NewBooleanInliner(opts ...Option) *ValueInliner[bool] {
	return newValueInliner("bool", "System.Boolean", func(b bool) il.Instruction {
		if b {
			return il.LoadInt32(1)
		}
		return il.LoadInt32(0)
	}, opts)
}

func newValueInliner[T Literal](kind, typeName string, load func(T) il.Instruction, opts []Option) *ValueInliner[T] {
	vi := &ValueInliner[T]{handlers: handlers{registry: NewRegistry()}}
	vi.engine = NewEngine(valueVariant[T]{
		kind:     kind,
		typeName: typeName,
		registry: vi.registry,
		load:     load,
	}, opts...)
	return vi
}

type valueVariant[T Literal] struct {
	kind     string
	typeName string
	registry *Registry
	load     func(T) il.Instruction
}

func (v valueVariant[T]) Kind() string        { return v.kind }
func (v valueVariant[T]) Registry() *Registry { return v.registry }

func (v valueVariant[T]) Accept(site CallSite) (*CallResult, bool) {
	ret := site.Method.ReturnType
	if !ret.Is(v.typeName) && !ret.IsGenericParam() {
		return nil, false
	}
	return NewCallResult(site), true
}

func (v valueVariant[T]) Patch(r *CallResult) bool {
	x, ok := r.Value.(T)
	if !ok {
		return false
	}
	r.Block.Replace(r.Start, r.End-r.Start+1, v.load(x))
	return true
}
