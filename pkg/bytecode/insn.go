package bytecode

import (
	"fmt"
	"iter"
	"strconv"
)

// Insn is one instruction node of a method body.
type Insn interface {
	Opcode() byte
	String() string
}

// RawInsn is an instruction whose operands are carried as read.
// Branch offsets inside Operands stay valid as long as nothing is inserted
// before the instruction.
type RawInsn struct {
	Op       byte
	Operands []byte
}

func (i *RawInsn) Opcode() byte { return i.Op }

func (i *RawInsn) String() string {
	if len(i.Operands) == 0 {
		return Mnemonic(i.Op)
	}
	return fmt.Sprintf("%s % x", Mnemonic(i.Op), i.Operands)
}

// Op builds a RawInsn.
func Op(op byte, operands ...byte) *RawInsn {
	return &RawInsn{Op: op, Operands: operands}
}

// MethodInsn is an invokevirtual, invokespecial or invokestatic with a
// symbolic target. The constant pool index is chosen when the list is encoded.
type MethodInsn struct {
	Op        byte
	Owner     string
	Name      string
	Desc      string
	Interface bool
}

func (i *MethodInsn) Opcode() byte { return i.Op }

func (i *MethodInsn) String() string {
	return fmt.Sprintf("%s %s.%s%s", Mnemonic(i.Op), i.Owner, i.Name, i.Desc)
}

// FieldInsn is a getstatic, putstatic, getfield or putfield with a symbolic target.
type FieldInsn struct {
	Op    byte
	Owner string
	Name  string
	Desc  string
}

func (i *FieldInsn) Opcode() byte { return i.Op }

func (i *FieldInsn) String() string {
	return fmt.Sprintf("%s %s.%s:%s", Mnemonic(i.Op), i.Owner, i.Name, i.Desc)
}

// LdcInsn loads an int32 or string constant. Op is OpLdc or OpLdcW.
type LdcInsn struct {
	Op    byte
	Value any
}

func (i *LdcInsn) Opcode() byte { return i.Op }

func (i *LdcInsn) String() string {
	switch v := i.Value.(type) {
	case string:
		return Mnemonic(i.Op) + " " + strconv.Quote(v)
	default:
		return fmt.Sprintf("%s %v", Mnemonic(i.Op), v)
	}
}

// InsnList is the ordered instruction sequence of one method.
// Nodes live in a flat slice; the only mutation is Append.
type InsnList struct {
	nodes []Insn
}

// NewInsnList returns a list holding insns in order.
func NewInsnList(insns ...Insn) *InsnList {
	l := &InsnList{nodes: make([]Insn, 0, len(insns))}
	l.nodes = append(l.nodes, insns...)
	return l
}

// Len returns the number of instructions.
func (l *InsnList) Len() int { return len(l.nodes) }

// At returns the instruction at position i.
func (l *InsnList) At(i int) Insn { return l.nodes[i] }

// Last returns the final instruction, or nil for an empty list.
func (l *InsnList) Last() Insn {
	if len(l.nodes) == 0 {
		return nil
	}
	return l.nodes[len(l.nodes)-1]
}

// Append adds insn after the current last instruction.
func (l *InsnList) Append(insn Insn) {
	l.nodes = append(l.nodes, insn)
}

// All iterates over the instructions in order.
func (l *InsnList) All() iter.Seq2[int, Insn] {
	return func(yield func(int, Insn) bool) {
		for i, n := range l.nodes {
			if !yield(i, n) {
				return
			}
		}
	}
}

// Slice returns a copy of the instruction nodes.
func (l *InsnList) Slice() []Insn {
	out := make([]Insn, len(l.nodes))
	copy(out, l.nodes)
	return out
}
