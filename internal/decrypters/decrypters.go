// Package decrypters provides ready-made handlers for the inliner: fixed
// values, lookup tables and XXTEA-encrypted string literals.
package decrypters

import (
	"errors"
	"fmt"
	"sync"

	"inliner/internal/il"
	"inliner/internal/inline"
)

var (
	// ErrBadArgs is returned when a call site passes arguments the handler
	// cannot interpret.
	ErrBadArgs = errors.New("unexpected arguments")

	// ErrDecrypt is returned when a ciphertext does not decrypt.
	ErrDecrypt = errors.New("decryption failed")
)

// Constant returns a handler that always returns v.
func Constant(v any) inline.Handler {
	return func(*il.MethodRef, *il.MethodSpec, []any) (any, error) {
		return v, nil
	}
}

// Table returns a handler that takes a single int32 index argument and
// returns the value stored at that index.
func Table[T any](values []T) inline.Handler {
	return func(method *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: %w: want 1 argument, got %d", method.Name, ErrBadArgs, len(args))
		}
		idx, ok := args[0].(int32)
		if !ok {
			return nil, fmt.Errorf("%s: %w: index is %T", method.Name, ErrBadArgs, args[0])
		}
		if idx < 0 || int(idx) >= len(values) {
			return nil, fmt.Errorf("%s: %w: index %d out of range [0,%d)", method.Name, ErrBadArgs, idx, len(values))
		}
		return values[idx], nil
	}
}

// Serialize wraps h so that at most one call runs at a time. Use it for
// handlers that keep state and are shared by a parallel pass.
func Serialize(h inline.Handler) inline.Handler {
	var mu sync.Mutex
	return func(method *il.MethodRef, gim *il.MethodSpec, args []any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		return h(method, gim, args)
	}
}
