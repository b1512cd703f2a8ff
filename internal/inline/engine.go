package inline

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"inliner/internal/analysis"
	"inliner/internal/il"
)

// CallSite is a call to a registered method whose arguments were recovered.
type CallSite struct {
	Block      *il.Block
	BlockIndex int
	Start      int // first argument-producing instruction
	Call       int // the call instruction
	Method     *il.MethodRef
	Generic    *il.MethodSpec
	Args       []any
}

// CallResult is an accepted call site. Start and End delimit the inclusive
// span that will be replaced; they are only valid against the block as it
// was when scanned.
type CallResult struct {
	Block      *il.Block
	BlockIndex int
	Start      int
	End        int
	Method     *il.MethodRef
	Generic    *il.MethodSpec
	Args       []any
	Value      any
}

// NewCallResult creates the result covering the whole call site.
func NewCallResult(site CallSite) *CallResult {
	return &CallResult{
		Block:      site.Block,
		BlockIndex: site.BlockIndex,
		Start:      site.Start,
		End:        site.Call,
		Method:     site.Method,
		Generic:    site.Generic,
		Args:       site.Args,
	}
}

// Variant supplies the literal-kind specific parts of a pass.
type Variant interface {
	// Kind names the literal kind in diagnostics.
	Kind() string
	// Registry holds the handlers for this kind.
	Registry() *Registry
	// Accept may veto a call site or bind extra data to its result.
	Accept(site CallSite) (*CallResult, bool)
	// Patch rewrites the block for r. It returns false, leaving the block
	// untouched, when r.Value is not of the expected kind.
	Patch(r *CallResult) bool
}

// Engine runs the scan, invoke and patch phases for one Variant.
// It holds no per-method state, so methods may be run concurrently as long
// as each method is owned by one goroutine.
type Engine struct {
	variant Variant
	logger  *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger receiving one debug entry per patch.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine for v.
func NewEngine(v Variant, opts ...Option) *Engine {
	e := &Engine{variant: v, logger: log.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run inlines every accepted call site of m and reports whether m changed.
// If a handler fails, the results ordered before it are still applied and a
// *HandlerError is returned.
func (e *Engine) Run(m *il.Method) (bool, error) {
	results := e.scan(m)
	if len(results) == 0 {
		return false, nil
	}
	sortForPatching(results)

	n, err := e.invokeAll(m, results)
	changed := e.patchAll(m, results[:n])
	return changed, err
}

func (e *Engine) scan(m *il.Method) []*CallResult {
	reg := e.variant.Registry()
	var results []*CallResult
	for bi, b := range m.Blocks {
		for i, in := range b.Instructions {
			if in.Op != il.Call {
				continue
			}
			method, gim, ok := in.Method()
			if !ok {
				continue
			}
			if _, ok := reg.Find(method); !ok {
				continue
			}

			start, ok := analysis.FindArgWindow(b.Instructions, i, method.ArgCount())
			if !ok {
				e.logger.Debug("No argument window", "method", m.Name, "block", bi, "index", i, "target", method.Name)
				continue
			}
			args, ok := analysis.EvalArgs(b.Instructions, start, i)
			if !ok {
				e.logger.Debug("Arguments not constant", "method", m.Name, "block", bi, "index", i, "target", method.Name)
				continue
			}

			r, ok := e.variant.Accept(CallSite{
				Block:      b,
				BlockIndex: bi,
				Start:      start,
				Call:       i,
				Method:     method,
				Generic:    gim,
				Args:       args,
			})
			if !ok || r == nil || r.Start > r.End || r.End >= b.Len() {
				continue
			}
			results = append(results, r)
		}
	}
	return results
}

// sortForPatching orders results by block, and within a block by descending
// start index, so that every replacement happens after all later spans of
// the same block were already replaced.
func sortForPatching(results []*CallResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].BlockIndex != results[j].BlockIndex {
			return results[i].BlockIndex < results[j].BlockIndex
		}
		return results[i].Start > results[j].Start
	})
}

// invokeAll computes the value of each result in order and returns how many
// succeeded before the first failure.
func (e *Engine) invokeAll(m *il.Method, results []*CallResult) (int, error) {
	reg := e.variant.Registry()
	for i, r := range results {
		h, ok := reg.Find(r.Method)
		if !ok {
			return i, e.handlerError(m, r, fmt.Errorf("no handler for %s", r.Method.Identity()))
		}
		v, err := invoke(h, r)
		if err != nil {
			return i, e.handlerError(m, r, err)
		}
		r.Value = v
	}
	return len(results), nil
}

func invoke(h Handler, r *CallResult) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(r.Method, r.Generic, r.Args)
}

func (e *Engine) handlerError(m *il.Method, r *CallResult, err error) error {
	herr := &HandlerError{
		Method: m.Name,
		Block:  r.BlockIndex,
		Index:  r.End,
		Target: r.Method.Identity(),
		Err:    err,
	}
	e.logger.Error("Handler failed", "method", m.Name, "block", r.BlockIndex, "index", r.End, "target", herr.Target, "err", err)
	return herr
}

func (e *Engine) patchAll(m *il.Method, results []*CallResult) bool {
	changed := false
	kind := e.variant.Kind()
	for _, r := range results {
		if !e.variant.Patch(r) {
			continue
		}
		changed = true
		e.variant.Registry().MarkUsed(r.Method)
		e.logger.Debug("Decrypted "+kind, "method", m.Name, "value", analysis.FormatValue(r.Value))
	}
	return changed
}
