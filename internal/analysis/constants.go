// Package analysis recovers the statically known arguments of a call from the
// instructions that precede it in the same basic block.
package analysis

// Constants for argument recovery
const (
	// MaxArgWindow is the maximum number of instructions walked backward from
	// a call while looking for its argument producers.
	MaxArgWindow = 64

	// MaxLocalLookback bounds the backward search for the store that defines a
	// local read inside an argument window.
	MaxLocalLookback = 32

	// MaxEscapedLength is the maximum number of runes rendered by EscapeString
	// before the literal is truncated with an ellipsis.
	MaxEscapedLength = 256
)
