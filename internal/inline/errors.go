package inline

import (
	"fmt"

	"inliner/internal/il"
)

// HandlerError reports a handler failure at one call site. Patches applied to
// the method before the failing site are kept.
type HandlerError struct {
	Method string
	Block  int
	Index  int // call instruction index within the block, as scanned
	Target il.MethodIdentity
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: block %d, instruction %d: call to %s: %v", e.Method, e.Block, e.Index, e.Target, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
