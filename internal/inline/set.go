package inline

// Set holds one inliner per literal kind, sharing the same options.
type Set struct {
	String  *StringInliner
	Int32   *ValueInliner[int32]
	Int64   *ValueInliner[int64]
	Single  *ValueInliner[float32]
	Double  *ValueInliner[float64]
	Boolean *ValueInliner[bool]
}

// NewSet creates an empty inliner for every literal kind.
func NewSet(opts ...Option) *Set {
	return &Set{
		String:  NewStringInliner(opts...),
		Int32:   NewInt32Inliner(opts...),
		Int64:   NewInt64Inliner(opts...),
		Single:  NewSingleInliner(opts...),
		Double:  NewDoubleInliner(opts...),
		Boolean: NewBooleanInliner(opts...),
	}
}

// All returns the inliners in the order a Pass runs them. Strings go first
// since their results most often feed other decrypters.
func (s *Set) All() []Inliner {
	return []Inliner{s.String, s.Int32, s.Int64, s.Single, s.Double, s.Boolean}
}

// Used counts the registered methods of every kind that were inlined at
// least once, and how many are registered in total.
func (s *Set) Used() (used, registered int) {
	for _, h := range []*handlers{
		&s.String.handlers, &s.Int32.handlers, &s.Int64.handlers,
		&s.Single.handlers, &s.Double.handlers, &s.Boolean.handlers,
	} {
		used += len(h.Used())
		registered += h.registry.Count()
	}
	return used, registered
}
