package il

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is a single decoded instruction. Operand is nil or one of
// string, int32, int64, float32, float64, Local, Arg, *TypeRef, *MethodRef,
// *MethodSpec, *FieldRef, int (branch target block) or []int (switch targets).
type Instruction struct {
	Op      Opcode
	Operand any
}

// New creates an instruction with an operand.
func New(op Opcode, operand any) Instruction {
	return Instruction{Op: op, Operand: operand}
}

// Op0 creates an instruction without an operand.
func Op0(op Opcode) Instruction {
	return Instruction{Op: op}
}

// LoadString creates an ldstr instruction.
func LoadString(s string) Instruction { return Instruction{Op: Ldstr, Operand: s} }

// LoadInt32 creates an ldc.i4 instruction.
func LoadInt32(v int32) Instruction { return Instruction{Op: LdcI4, Operand: v} }

// LoadInt64 creates an ldc.i8 instruction.
func LoadInt64(v int64) Instruction { return Instruction{Op: LdcI8, Operand: v} }

// LoadFloat32 creates an ldc.r4 instruction.
func LoadFloat32(v float32) Instruction { return Instruction{Op: LdcR4, Operand: v} }

// LoadFloat64 creates an ldc.r8 instruction.
func LoadFloat64(v float64) Instruction { return Instruction{Op: LdcR8, Operand: v} }

// CallMethod creates a call instruction.
func CallMethod(m *MethodRef) Instruction { return Instruction{Op: Call, Operand: m} }

// CallGeneric creates a call to a generic method instantiation.
func CallGeneric(s *MethodSpec) Instruction { return Instruction{Op: Call, Operand: s} }

// CastTo creates a castclass instruction.
func CastTo(t *TypeRef) Instruction { return Instruction{Op: Castclass, Operand: t} }

// Method returns the called method and, for generic instantiations, the
// MethodSpec. ok is false when the operand is not a method reference.
func (in Instruction) Method() (m *MethodRef, gim *MethodSpec, ok bool) {
	switch v := in.Operand.(type) {
	case *MethodRef:
		return v, nil, v != nil
	case *MethodSpec:
		if v == nil || v.Method == nil {
			return nil, nil, false
		}
		return v.Method, v, true
	}
	return nil, nil, false
}

// Type returns the type operand, if any.
func (in Instruction) Type() (*TypeRef, bool) {
	t, ok := in.Operand.(*TypeRef)
	return t, ok && t != nil
}

// StackEffect returns how many values in pops and pushes. ok is false when the
// effect cannot be determined from the instruction alone.
func (in Instruction) StackEffect() (pop, push int, ok bool) {
	info := GetOpcodeInfo(in.Op)
	if info.StackPop >= 0 && info.StackPush >= 0 {
		return info.StackPop, info.StackPush, true
	}
	m, _, ok := in.Method()
	if !ok {
		return 0, 0, false
	}
	switch in.Op {
	case Newobj:
		return len(m.Params), 1, true
	case Call, Callvirt:
		push = 0
		if m.Returns() {
			push = 1
		}
		return m.ArgCount(), push, true
	}
	return 0, 0, false
}

func (in Instruction) String() string {
	name := in.Op.String()
	switch v := in.Operand.(type) {
	case nil:
		return name
	case string:
		return name + " " + strconv.Quote(v)
	case int32:
		return name + " " + strconv.FormatInt(int64(v), 10)
	case int64:
		return name + " " + strconv.FormatInt(v, 10)
	case float32:
		return name + " " + strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return name + " " + strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return name + " " + strconv.Itoa(v)
	case []int:
		targets := make([]string, len(v))
		for i, t := range v {
			targets[i] = strconv.Itoa(t)
		}
		return name + " " + strings.Join(targets, ",")
	case Local:
		return fmt.Sprintf("%s %d", name, int(v))
	case Arg:
		return fmt.Sprintf("%s %d", name, int(v))
	case fmt.Stringer:
		return name + " " + v.String()
	default:
		return fmt.Sprintf("%s %v", name, v)
	}
}
