package il

import (
	"fmt"
	"strings"
)

// Block is a basic block: an ordered instruction run with no internal branch
// targets. Indices into a block are only valid until the next edit.
type Block struct {
	Instructions []Instruction
}

// NewBlock creates a block holding the given instructions.
func NewBlock(instrs ...Instruction) *Block {
	return &Block{Instructions: instrs}
}

// Len returns the number of instructions.
func (b *Block) Len() int {
	return len(b.Instructions)
}

// At returns the instruction at index i.
func (b *Block) At(i int) Instruction {
	return b.Instructions[i]
}

// Replace replaces count instructions starting at index with in.
func (b *Block) Replace(index, count int, in Instruction) {
	if count < 1 {
		panic(fmt.Sprintf("il: replace of empty span at %d", index))
	}
	b.checkSpan(index, count)
	b.Instructions[index] = in
	b.Remove(index+1, count-1)
}

// Remove deletes count instructions starting at index.
func (b *Block) Remove(index, count int) {
	if count == 0 {
		return
	}
	b.checkSpan(index, count)
	b.Instructions = append(b.Instructions[:index], b.Instructions[index+count:]...)
}

// Insert inserts instructions before index.
func (b *Block) Insert(index int, instrs ...Instruction) {
	if index < 0 || index > len(b.Instructions) {
		panic(fmt.Sprintf("il: insert index %d out of range [0,%d]", index, len(b.Instructions)))
	}
	out := make([]Instruction, 0, len(b.Instructions)+len(instrs))
	out = append(out, b.Instructions[:index]...)
	out = append(out, instrs...)
	b.Instructions = append(out, b.Instructions[index:]...)
}

func (b *Block) checkSpan(index, count int) {
	if index < 0 || count < 0 || index+count > len(b.Instructions) {
		panic(fmt.Sprintf("il: span [%d,+%d) out of range [0,%d)", index, count, len(b.Instructions)))
	}
}

// Clone returns a copy of the block that shares no instruction storage with b.
func (b *Block) Clone() *Block {
	instrs := make([]Instruction, len(b.Instructions))
	copy(instrs, b.Instructions)
	return &Block{Instructions: instrs}
}

func (b *Block) String() string {
	lines := make([]string, len(b.Instructions))
	for i, in := range b.Instructions {
		lines[i] = in.String()
	}
	return strings.Join(lines, "\n")
}

// Method is a method body split into basic blocks.
type Method struct {
	Name   string
	Blocks []*Block
}

// InstructionCount returns the number of instructions across all blocks.
func (m *Method) InstructionCount() int {
	n := 0
	for _, b := range m.Blocks {
		n += b.Len()
	}
	return n
}
