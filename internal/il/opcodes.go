// Package il defines the instruction model the inliner rewrites: opcodes with
// their stack effects, instructions, basic blocks and method/type references.
package il

import "fmt"

// Opcode identifies an instruction.
type Opcode uint8

const (
	Nop Opcode = iota
	Ldnull
	Ldstr
	LdcI4
	LdcI8
	LdcR4
	LdcR8
	Ldarg
	Ldloc
	Stloc
	Ldsfld
	Stsfld
	Ldfld
	Stfld
	Ldtoken
	Dup
	Pop

	Add
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr
	ShrUn
	Neg
	Not

	ConvI1
	ConvI2
	ConvI4
	ConvI8
	ConvU1
	ConvU2
	ConvU4
	ConvU8
	ConvR4
	ConvR8

	Box
	UnboxAny
	Castclass
	Isinst
	Newarr
	Ldlen
	Ldelem
	Stelem

	Call
	Callvirt
	Newobj

	Br
	Brtrue
	Brfalse
	Beq
	Bne
	Blt
	Bgt
	Switch
	Leave
	Ret
	Throw
)

// Flow describes how an instruction affects control flow.
type Flow uint8

const (
	FlowNext Flow = iota
	FlowCall
	FlowBranch
	FlowCondBranch
	FlowReturn
	FlowThrow
)

// OpcodeInfo holds metadata for an opcode.
// StackPop is -1 when the count depends on the operand (calls).
type OpcodeInfo struct {
	Name      string
	StackPop  int
	StackPush int
	Flow      Flow
	Pure      bool // no side effects besides its stack effect
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	Nop:     {"nop", 0, 0, FlowNext, true},
	Ldnull:  {"ldnull", 0, 1, FlowNext, true},
	Ldstr:   {"ldstr", 0, 1, FlowNext, true},
	LdcI4:   {"ldc.i4", 0, 1, FlowNext, true},
	LdcI8:   {"ldc.i8", 0, 1, FlowNext, true},
	LdcR4:   {"ldc.r4", 0, 1, FlowNext, true},
	LdcR8:   {"ldc.r8", 0, 1, FlowNext, true},
	Ldarg:   {"ldarg", 0, 1, FlowNext, true},
	Ldloc:   {"ldloc", 0, 1, FlowNext, true},
	Stloc:   {"stloc", 1, 0, FlowNext, false},
	Ldsfld:  {"ldsfld", 0, 1, FlowNext, true},
	Stsfld:  {"stsfld", 1, 0, FlowNext, false},
	Ldfld:   {"ldfld", 1, 1, FlowNext, true},
	Stfld:   {"stfld", 2, 0, FlowNext, false},
	Ldtoken: {"ldtoken", 0, 1, FlowNext, true},
	Dup:     {"dup", 1, 2, FlowNext, true},
	Pop:     {"pop", 1, 0, FlowNext, false},

	Add:   {"add", 2, 1, FlowNext, true},
	Sub:   {"sub", 2, 1, FlowNext, true},
	Mul:   {"mul", 2, 1, FlowNext, true},
	Div:   {"div", 2, 1, FlowNext, false}, // may throw
	Rem:   {"rem", 2, 1, FlowNext, false},
	And:   {"and", 2, 1, FlowNext, true},
	Or:    {"or", 2, 1, FlowNext, true},
	Xor:   {"xor", 2, 1, FlowNext, true},
	Shl:   {"shl", 2, 1, FlowNext, true},
	Shr:   {"shr", 2, 1, FlowNext, true},
	ShrUn: {"shr.un", 2, 1, FlowNext, true},
	Neg:   {"neg", 1, 1, FlowNext, true},
	Not:   {"not", 1, 1, FlowNext, true},

	ConvI1: {"conv.i1", 1, 1, FlowNext, true},
	ConvI2: {"conv.i2", 1, 1, FlowNext, true},
	ConvI4: {"conv.i4", 1, 1, FlowNext, true},
	ConvI8: {"conv.i8", 1, 1, FlowNext, true},
	ConvU1: {"conv.u1", 1, 1, FlowNext, true},
	ConvU2: {"conv.u2", 1, 1, FlowNext, true},
	ConvU4: {"conv.u4", 1, 1, FlowNext, true},
	ConvU8: {"conv.u8", 1, 1, FlowNext, true},
	ConvR4: {"conv.r4", 1, 1, FlowNext, true},
	ConvR8: {"conv.r8", 1, 1, FlowNext, true},

	Box:       {"box", 1, 1, FlowNext, true},
	UnboxAny:  {"unbox.any", 1, 1, FlowNext, false},
	Castclass: {"castclass", 1, 1, FlowNext, true},
	Isinst:    {"isinst", 1, 1, FlowNext, true},
	Newarr:    {"newarr", 1, 1, FlowNext, false},
	Ldlen:     {"ldlen", 1, 1, FlowNext, false},
	Ldelem:    {"ldelem", 2, 1, FlowNext, false},
	Stelem:    {"stelem", 3, 0, FlowNext, false},

	Call:     {"call", -1, -1, FlowCall, false},
	Callvirt: {"callvirt", -1, -1, FlowCall, false},
	Newobj:   {"newobj", -1, 1, FlowCall, false},

	Br:      {"br", 0, 0, FlowBranch, false},
	Brtrue:  {"brtrue", 1, 0, FlowCondBranch, false},
	Brfalse: {"brfalse", 1, 0, FlowCondBranch, false},
	Beq:     {"beq", 2, 0, FlowCondBranch, false},
	Bne:     {"bne.un", 2, 0, FlowCondBranch, false},
	Blt:     {"blt", 2, 0, FlowCondBranch, false},
	Bgt:     {"bgt", 2, 0, FlowCondBranch, false},
	Switch:  {"switch", 1, 0, FlowCondBranch, false},
	Leave:   {"leave", 0, 0, FlowBranch, false},
	Ret:     {"ret", 0, 0, FlowReturn, false},
	Throw:   {"throw", 1, 0, FlowThrow, false},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Unknown opcodes get a name of the form "unknown(0x..)" and are not pure.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("unknown(0x%02x)", byte(op)), StackPop: -1, StackPush: -1, Flow: FlowNext}
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsBranch reports whether op transfers control anywhere but the next instruction.
func (op Opcode) IsBranch() bool {
	switch GetOpcodeInfo(op).Flow {
	case FlowBranch, FlowCondBranch, FlowReturn, FlowThrow:
		return true
	}
	return false
}

// IsCall reports whether op invokes a method.
func (op Opcode) IsCall() bool {
	return GetOpcodeInfo(op).Flow == FlowCall
}

// IsConstant reports whether op pushes a fixed value with no external dependency.
func (op Opcode) IsConstant() bool {
	switch op {
	case Ldnull, Ldstr, LdcI4, LdcI8, LdcR4, LdcR8:
		return true
	}
	return false
}
