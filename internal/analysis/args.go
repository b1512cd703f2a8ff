package analysis

import (
	"math"

	"inliner/internal/il"
)

// FindArgWindow walks backward from the call at index call and returns the
// index of the first instruction of the shortest contiguous run that pushes
// exactly argc values. The run may only contain side-effect free,
// fall-through instructions; anything else, or running out of instructions,
// means the window is ambiguous and ok is false.
func FindArgWindow(instrs []il.Instruction, call, argc int) (start int, ok bool) {
	if argc == 0 {
		return call, true
	}
	need := argc
	limit := max(0, call-MaxArgWindow)
	for i := call - 1; i >= limit; i-- {
		in := instrs[i]
		info := il.GetOpcodeInfo(in.Op)
		if !info.Pure || info.Flow != il.FlowNext {
			return 0, false
		}
		pop, push, known := in.StackEffect()
		if !known {
			return 0, false
		}
		// A producer that pushes more than is still needed would leave a
		// value behind for some earlier consumer.
		need -= push
		if need < 0 {
			return 0, false
		}
		need += pop
		if need == 0 {
			return i, true
		}
	}
	return 0, false
}

// EvalArgs evaluates instrs[start:call] and returns the values left on the
// stack, first argument first. Literal loads yield their Go value (ldnull
// yields nil), ldsfld yields the *il.FieldRef, ldtoken yields its operand and
// ldloc yields the constant most recently stored to the local in the same
// block. ok is false if any value cannot be determined.
func EvalArgs(instrs []il.Instruction, start, call int) (args []any, ok bool) {
	ev := evaluator{instrs: instrs, start: start}
	for i := start; i < call; i++ {
		if !ev.step(instrs[i]) {
			return nil, false
		}
	}
	return ev.stack, true
}

type evaluator struct {
	instrs []il.Instruction
	start  int
	stack  []any
}

func (ev *evaluator) push(v any) {
	ev.stack = append(ev.stack, v)
}

func (ev *evaluator) pop() (any, bool) {
	if len(ev.stack) == 0 {
		return nil, false
	}
	v := ev.stack[len(ev.stack)-1]
	ev.stack = ev.stack[:len(ev.stack)-1]
	return v, true
}

func (ev *evaluator) step(in il.Instruction) bool {
	switch in.Op {
	case il.Nop:
		return true
	case il.Ldnull:
		ev.push(nil)
	case il.Ldstr, il.LdcI4, il.LdcI8, il.LdcR4, il.LdcR8, il.Ldsfld, il.Ldtoken:
		ev.push(in.Operand)
	case il.Ldloc:
		local, isLocal := in.Operand.(il.Local)
		if !isLocal {
			return false
		}
		v, found := LocalValue(ev.instrs, ev.start, local)
		if !found {
			return false
		}
		ev.push(v)
	case il.Dup:
		v, ok := ev.pop()
		if !ok {
			return false
		}
		ev.push(v)
		ev.push(v)
	case il.Box, il.Castclass, il.Isinst:
		// The value is unchanged for the purposes of a handler.
		return len(ev.stack) > 0
	case il.Neg, il.Not:
		v, ok := ev.pop()
		if !ok {
			return false
		}
		r, ok := unary(in.Op, v)
		if !ok {
			return false
		}
		ev.push(r)
	case il.Add, il.Sub, il.Mul, il.And, il.Or, il.Xor, il.Shl, il.Shr, il.ShrUn:
		b, ok1 := ev.pop()
		a, ok2 := ev.pop()
		if !ok1 || !ok2 {
			return false
		}
		r, ok := binary(in.Op, a, b)
		if !ok {
			return false
		}
		ev.push(r)
	case il.ConvI1, il.ConvI2, il.ConvI4, il.ConvI8, il.ConvU1, il.ConvU2, il.ConvU4, il.ConvU8, il.ConvR4, il.ConvR8:
		v, ok := ev.pop()
		if !ok {
			return false
		}
		r, ok := convert(in.Op, v)
		if !ok {
			return false
		}
		ev.push(r)
	default:
		return false
	}
	return true
}

// LocalValue finds the constant stored to local by the nearest stloc before
// index before. Only a constant load immediately followed by the store counts.
func LocalValue(instrs []il.Instruction, before int, local il.Local) (any, bool) {
	limit := max(1, before-MaxLocalLookback)
	for j := before - 1; j >= limit; j-- {
		in := instrs[j]
		if in.Op != il.Stloc {
			continue
		}
		if l, ok := in.Operand.(il.Local); !ok || l != local {
			continue
		}
		src := instrs[j-1]
		if !src.Op.IsConstant() {
			return nil, false
		}
		if src.Op == il.Ldnull {
			return nil, true
		}
		return src.Operand, true
	}
	return nil, false
}

func unary(op il.Opcode, v any) (any, bool) {
	switch x := v.(type) {
	case int32:
		if op == il.Neg {
			return -x, true
		}
		return ^x, true
	case int64:
		if op == il.Neg {
			return -x, true
		}
		return ^x, true
	case float32:
		if op == il.Neg {
			return -x, true
		}
	case float64:
		if op == il.Neg {
			return -x, true
		}
	}
	return nil, false
}

func binary(op il.Opcode, a, b any) (any, bool) {
	switch x := a.(type) {
	case int32:
		switch y := b.(type) {
		case int32:
			return int32Op(op, x, y)
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return int64Op(op, x, y)
		case int32:
			// Shift amounts are int32 even for 64-bit values.
			if op == il.Shl || op == il.Shr || op == il.ShrUn {
				return int64Op(op, x, int64(y))
			}
		}
	}
	return nil, false
}

func int32Op(op il.Opcode, x, y int32) (any, bool) {
	switch op {
	case il.Add:
		return x + y, true
	case il.Sub:
		return x - y, true
	case il.Mul:
		return x * y, true
	case il.And:
		return x & y, true
	case il.Or:
		return x | y, true
	case il.Xor:
		return x ^ y, true
	case il.Shl:
		return x << (uint32(y) & 31), true
	case il.Shr:
		return x >> (uint32(y) & 31), true
	case il.ShrUn:
		return int32(uint32(x) >> (uint32(y) & 31)), true
	}
	return nil, false
}

func int64Op(op il.Opcode, x, y int64) (any, bool) {
	switch op {
	case il.Add:
		return x + y, true
	case il.Sub:
		return x - y, true
	case il.Mul:
		return x * y, true
	case il.And:
		return x & y, true
	case il.Or:
		return x | y, true
	case il.Xor:
		return x ^ y, true
	case il.Shl:
		return x << (uint64(y) & 63), true
	case il.Shr:
		return x >> (uint64(y) & 63), true
	case il.ShrUn:
		return int64(uint64(x) >> (uint64(y) & 63)), true
	}
	return nil, false
}

func convert(op il.Opcode, v any) (any, bool) {
	var i int64
	var u uint64
	var f float64
	isFloat := false
	switch x := v.(type) {
	case int32:
		i, u = int64(x), uint64(uint32(x))
	case int64:
		i, u = x, uint64(x)
	case float32:
		f, isFloat = float64(x), true
	case float64:
		f, isFloat = x, true
	default:
		return nil, false
	}
	if isFloat {
		switch op {
		case il.ConvR4:
			return float32(f), true
		case il.ConvR8:
			return f, true
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		i, u = int64(f), uint64(int64(f))
	}

	switch op {
	case il.ConvI1:
		return int32(int8(i)), true
	case il.ConvI2:
		return int32(int16(i)), true
	case il.ConvI4:
		return int32(i), true
	case il.ConvI8:
		return i, true
	case il.ConvU1:
		return int32(uint8(i)), true
	case il.ConvU2:
		return int32(uint16(i)), true
	case il.ConvU4:
		return int32(uint32(i)), true
	case il.ConvU8:
		return int64(u), true
	case il.ConvR4:
		return float32(i), true
	case il.ConvR8:
		return float64(i), true
	}
	return nil, false
}
