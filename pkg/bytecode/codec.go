package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/daimatz/warzone-loader/pkg/classfile"
)

// decode splits a Code array into instruction nodes. Member references and
// int/string constants become symbolic nodes; everything else stays raw.
func decode(code []byte, pool []classfile.ConstantPoolEntry) ([]Insn, error) {
	var insns []Insn
	for pc := 0; pc < len(code); {
		op := code[pc]
		n, err := operandLength(code, pc)
		if err != nil {
			return nil, err
		}
		if pc+1+n > len(code) {
			return nil, fmt.Errorf("%s at pc=%d: truncated operands", Mnemonic(op), pc)
		}
		operands := code[pc+1 : pc+1+n]

		insn, err := symbolic(op, operands, pool)
		if err != nil {
			return nil, fmt.Errorf("%s at pc=%d: %w", Mnemonic(op), pc, err)
		}
		if insn == nil {
			raw := make([]byte, n)
			copy(raw, operands)
			insn = &RawInsn{Op: op, Operands: raw}
		}
		insns = append(insns, insn)
		pc += 1 + n
	}
	return insns, nil
}

// operandLength returns the number of operand bytes following the opcode at pc.
func operandLength(code []byte, pc int) (int, error) {
	op := code[pc]
	switch w := operandWidth[op]; {
	case w >= 0:
		return int(w), nil
	case w == -2:
		return 0, fmt.Errorf("unknown opcode 0x%02X at pc=%d", op, pc)
	}

	switch op {
	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("wide at pc=%d: truncated", pc)
		}
		if code[pc+1] == OpIinc {
			return 5, nil
		}
		return 3, nil

	case OpTableswitch, OpLookupswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+12 > len(code) {
			return 0, fmt.Errorf("%s at pc=%d: truncated", Mnemonic(op), pc)
		}
		if op == OpTableswitch {
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0, fmt.Errorf("tableswitch at pc=%d: high %d < low %d", pc, high, low)
			}
			return pad + 12 + 4*int(high-low+1), nil
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc=%d: negative npairs", pc)
		}
		return pad + 8 + 8*int(npairs), nil
	}
	return 0, fmt.Errorf("opcode 0x%02X at pc=%d has no operand layout", op, pc)
}

func symbolic(op byte, operands []byte, pool []classfile.ConstantPoolEntry) (Insn, error) {
	switch op {
	case OpInvokevirtual, OpInvokespecial, OpInvokestatic:
		ref, err := classfile.ResolveAnyMethodref(pool, binary.BigEndian.Uint16(operands))
		if err != nil {
			return nil, err
		}
		iface := pool[binary.BigEndian.Uint16(operands)].Tag() == classfile.TagInterfaceMethodref
		return &MethodInsn{Op: op, Owner: ref.ClassName, Name: ref.Name, Desc: ref.Descriptor, Interface: iface}, nil

	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield:
		ref, err := classfile.ResolveFieldref(pool, binary.BigEndian.Uint16(operands))
		if err != nil {
			return nil, err
		}
		return &FieldInsn{Op: op, Owner: ref.ClassName, Name: ref.Name, Desc: ref.Descriptor}, nil

	case OpLdc, OpLdcW:
		index := uint16(operands[0])
		if op == OpLdcW {
			index = binary.BigEndian.Uint16(operands)
		}
		if int(index) >= len(pool) || pool[index] == nil {
			return nil, fmt.Errorf("invalid constant pool index %d", index)
		}
		switch c := pool[index].(type) {
		case *classfile.ConstantInteger:
			return &LdcInsn{Op: op, Value: c.Value}, nil
		case *classfile.ConstantString:
			s, err := classfile.GetUtf8(pool, c.StringIndex)
			if err != nil {
				return nil, err
			}
			return &LdcInsn{Op: op, Value: s}, nil
		}
	}
	return nil, nil
}

// encode lays the instructions out back to back, resolving symbolic nodes
// against cf's constant pool (appending entries when they are missing).
func encode(cf *classfile.ClassFile, insns []Insn) ([]byte, error) {
	var code []byte
	u16 := func(v uint16) { code = binary.BigEndian.AppendUint16(code, v) }

	for i, insn := range insns {
		switch n := insn.(type) {
		case *RawInsn:
			code = append(code, n.Op)
			code = append(code, n.Operands...)

		case *MethodInsn:
			index, err := cf.MethodrefIndex(n.Owner, n.Name, n.Desc, n.Interface)
			if err != nil {
				return nil, fmt.Errorf("insn %d (%s): %w", i, n, err)
			}
			code = append(code, n.Op)
			u16(index)

		case *FieldInsn:
			index, err := cf.FieldrefIndex(n.Owner, n.Name, n.Desc)
			if err != nil {
				return nil, fmt.Errorf("insn %d (%s): %w", i, n, err)
			}
			code = append(code, n.Op)
			u16(index)

		case *LdcInsn:
			var index uint16
			var err error
			switch v := n.Value.(type) {
			case int32:
				index, err = cf.IntegerIndex(v)
			case string:
				index, err = cf.StringIndex(v)
			default:
				err = fmt.Errorf("unsupported constant type %T", n.Value)
			}
			if err != nil {
				return nil, fmt.Errorf("insn %d (%s): %w", i, n, err)
			}
			if n.Op == OpLdc {
				if index > 0xFF {
					return nil, fmt.Errorf("insn %d (%s): constant index %d needs ldc_w", i, n, index)
				}
				code = append(code, OpLdc, byte(index))
			} else {
				code = append(code, OpLdcW)
				u16(index)
			}

		default:
			return nil, fmt.Errorf("insn %d: unsupported node %T", i, insn)
		}
	}
	return code, nil
}
