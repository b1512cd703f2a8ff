package inline

import (
	"context"
	"errors"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"inliner/internal/il"
)

// Inliner is one literal-kind pass over a method.
type Inliner interface {
	HasHandlers() bool
	Inline(m *il.Method) (bool, error)
}

// Pass runs a set of inliners over many methods. Methods are independent:
// each one is owned by a single worker and a failure in one never stops the
// others. Handlers shared between workers must be safe for concurrent use.
type Pass struct {
	Inliners []Inliner

	// Workers bounds the number of methods processed at once.
	// Zero means GOMAXPROCS.
	Workers int

	// MaxPasses bounds how often a method is re-run while it keeps changing,
	// which lets calls whose arguments were themselves decrypted resolve.
	// Zero means one pass.
	MaxPasses int

	Logger *log.Logger
}

// MethodReport is the outcome for one method.
type MethodReport struct {
	Method  string
	Changed bool
	Passes  int
	Err     error
}

// Report collects the outcome of a Pass.
type Report struct {
	Methods []MethodReport
}

// Changed returns the number of methods that were modified.
func (r *Report) Changed() int {
	n := 0
	for _, m := range r.Methods {
		if m.Changed {
			n++
		}
	}
	return n
}

// Err joins the per-method failures, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, m := range r.Methods {
		if m.Err != nil {
			errs = append(errs, m.Err)
		}
	}
	return errors.Join(errs...)
}

// Run processes methods until all are done or ctx is cancelled. Cancellation
// is only observed between methods.
func (p *Pass) Run(ctx context.Context, methods []*il.Method) (*Report, error) {
	report := &Report{Methods: make([]MethodReport, len(methods))}
	for i, m := range methods {
		report.Methods[i].Method = m.Name
	}

	var active []Inliner
	for _, inl := range p.Inliners {
		if inl.HasHandlers() {
			active = append(active, inl)
		}
	}
	if len(active) == 0 {
		return report, nil
	}

	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	maxPasses := max(p.MaxPasses, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range methods {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Methods[i] = runMethod(active, m, maxPasses)
			if err := report.Methods[i].Err; err != nil {
				logger.Warn("Method left partially inlined", "method", m.Name, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, ctx.Err()
}

func runMethod(inliners []Inliner, m *il.Method, maxPasses int) MethodReport {
	mr := MethodReport{Method: m.Name}
	for mr.Passes < maxPasses {
		mr.Passes++
		changed := false
		for _, inl := range inliners {
			c, err := inl.Inline(m)
			if c {
				changed = true
				mr.Changed = true
			}
			if err != nil {
				mr.Err = err
				return mr
			}
		}
		if !changed {
			break
		}
	}
	return mr
}
