package bytecode

import "fmt"

// Opcodes
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpIconstM1        = 0x02
	OpIconst0         = 0x03
	OpIconst1         = 0x04
	OpIconst2         = 0x05
	OpIconst3         = 0x06
	OpIconst4         = 0x07
	OpIconst5         = 0x08
	OpLconst0         = 0x09
	OpLconst1         = 0x0A
	OpFconst0         = 0x0B
	OpFconst1         = 0x0C
	OpFconst2         = 0x0D
	OpDconst0         = 0x0E
	OpDconst1         = 0x0F
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpLload           = 0x16
	OpFload           = 0x17
	OpDload           = 0x18
	OpAload           = 0x19
	OpIload0          = 0x1A
	OpIload1          = 0x1B
	OpIload2          = 0x1C
	OpIload3          = 0x1D
	OpAload0          = 0x2A
	OpAload1          = 0x2B
	OpAload2          = 0x2C
	OpAload3          = 0x2D
	OpIaload          = 0x2E
	OpAaload          = 0x32
	OpBaload          = 0x33
	OpCaload          = 0x34
	OpIstore          = 0x36
	OpLstore          = 0x37
	OpFstore          = 0x38
	OpDstore          = 0x39
	OpAstore          = 0x3A
	OpIstore0         = 0x3B
	OpIstore1         = 0x3C
	OpIstore2         = 0x3D
	OpIstore3         = 0x3E
	OpAstore0         = 0x4B
	OpAstore1         = 0x4C
	OpAstore2         = 0x4D
	OpAstore3         = 0x4E
	OpIastore         = 0x4F
	OpAastore         = 0x53
	OpBastore         = 0x54
	OpCastore         = 0x55
	OpPop             = 0x57
	OpPop2            = 0x58
	OpDup             = 0x59
	OpDupX1           = 0x5A
	OpDupX2           = 0x5B
	OpSwap            = 0x5F
	OpIadd            = 0x60
	OpIsub            = 0x64
	OpImul            = 0x68
	OpIdiv            = 0x6C
	OpIrem            = 0x70
	OpIneg            = 0x74
	OpIshl            = 0x78
	OpIshr            = 0x7A
	OpIushr           = 0x7C
	OpIand            = 0x7E
	OpIor             = 0x80
	OpIxor            = 0x82
	OpIinc            = 0x84
	OpI2b             = 0x91
	OpI2c             = 0x92
	OpI2s             = 0x93
	OpIfeq            = 0x99
	OpIfne            = 0x9A
	OpIflt            = 0x9B
	OpIfge            = 0x9C
	OpIfgt            = 0x9D
	OpIfle            = 0x9E
	OpIfIcmpeq        = 0x9F
	OpIfIcmpne        = 0xA0
	OpIfIcmplt        = 0xA1
	OpIfIcmpge        = 0xA2
	OpIfIcmpgt        = 0xA3
	OpIfIcmple        = 0xA4
	OpIfAcmpeq        = 0xA5
	OpIfAcmpne        = 0xA6
	OpGoto            = 0xA7
	OpJsr             = 0xA8
	OpRet             = 0xA9
	OpTableswitch     = 0xAA
	OpLookupswitch    = 0xAB
	OpIreturn         = 0xAC
	OpLreturn         = 0xAD
	OpFreturn         = 0xAE
	OpDreturn         = 0xAF
	OpAreturn         = 0xB0
	OpReturn          = 0xB1
	OpGetstatic       = 0xB2
	OpPutstatic       = 0xB3
	OpGetfield        = 0xB4
	OpPutfield        = 0xB5
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpInvokedynamic   = 0xBA
	OpNew             = 0xBB
	OpNewarray        = 0xBC
	OpAnewarray       = 0xBD
	OpArraylength     = 0xBE
	OpAthrow          = 0xBF
	OpCheckcast       = 0xC0
	OpInstanceof      = 0xC1
	OpMonitorenter    = 0xC2
	OpMonitorexit     = 0xC3
	OpWide            = 0xC4
	OpMultianewarray  = 0xC5
	OpIfnull          = 0xC6
	OpIfnonnull       = 0xC7
	OpGotoW           = 0xC8
	OpJsrW            = 0xC9
)

// operandWidth is the fixed operand length of each opcode. Opcodes with a
// variable layout (tableswitch, lookupswitch, wide) are handled by the decoder.
var operandWidth [256]int8

func init() {
	for _, op := range []byte{
		OpBipush, OpLdc, OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet, OpNewarray,
	} {
		operandWidth[op] = 1
	}
	for _, op := range []byte{
		OpSipush, OpLdcW, OpLdc2W, OpIinc, OpGoto, OpJsr,
		OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof, OpIfnull, OpIfnonnull,
	} {
		operandWidth[op] = 2
	}
	for op := OpIfeq; op <= OpIfAcmpne; op++ {
		operandWidth[op] = 2
	}
	operandWidth[OpMultianewarray] = 3
	for _, op := range []byte{OpInvokeinterface, OpInvokedynamic, OpGotoW, OpJsrW} {
		operandWidth[op] = 4
	}
	for _, op := range []byte{OpTableswitch, OpLookupswitch, OpWide} {
		operandWidth[op] = -1
	}
	// unassigned opcodes
	for op := 0xCA; op <= 0xFF; op++ {
		operandWidth[op] = -2
	}
}

var mnemonics = map[byte]string{
	OpNop: "nop", OpAconstNull: "aconst_null", OpIconstM1: "iconst_m1",
	OpIconst0: "iconst_0", OpIconst1: "iconst_1", OpIconst2: "iconst_2",
	OpIconst3: "iconst_3", OpIconst4: "iconst_4", OpIconst5: "iconst_5",
	OpBipush: "bipush", OpSipush: "sipush", OpLdc: "ldc", OpLdcW: "ldc_w", OpLdc2W: "ldc2_w",
	OpIload: "iload", OpAload: "aload", OpIload0: "iload_0", OpIload1: "iload_1",
	OpIload2: "iload_2", OpIload3: "iload_3", OpAload0: "aload_0", OpAload1: "aload_1",
	OpAload2: "aload_2", OpAload3: "aload_3", OpIstore: "istore", OpAstore: "astore",
	OpIstore0: "istore_0", OpIstore1: "istore_1", OpIstore2: "istore_2", OpIstore3: "istore_3",
	OpAstore0: "astore_0", OpAstore1: "astore_1", OpAstore2: "astore_2", OpAstore3: "astore_3",
	OpIaload: "iaload", OpAaload: "aaload", OpIastore: "iastore", OpAastore: "aastore",
	OpPop: "pop", OpDup: "dup", OpSwap: "swap", OpIadd: "iadd", OpIsub: "isub",
	OpImul: "imul", OpIdiv: "idiv", OpIrem: "irem", OpIneg: "ineg", OpIinc: "iinc",
	OpIfeq: "ifeq", OpIfne: "ifne", OpIflt: "iflt", OpIfge: "ifge", OpIfgt: "ifgt", OpIfle: "ifle",
	OpIfIcmpeq: "if_icmpeq", OpIfIcmpne: "if_icmpne", OpIfIcmplt: "if_icmplt",
	OpIfIcmpge: "if_icmpge", OpIfIcmpgt: "if_icmpgt", OpIfIcmple: "if_icmple",
	OpGoto: "goto", OpTableswitch: "tableswitch", OpLookupswitch: "lookupswitch",
	OpIreturn: "ireturn", OpAreturn: "areturn", OpReturn: "return",
	OpGetstatic: "getstatic", OpPutstatic: "putstatic", OpGetfield: "getfield", OpPutfield: "putfield",
	OpInvokevirtual: "invokevirtual", OpInvokespecial: "invokespecial",
	OpInvokestatic: "invokestatic", OpInvokeinterface: "invokeinterface",
	OpInvokedynamic: "invokedynamic", OpNew: "new", OpNewarray: "newarray",
	OpAnewarray: "anewarray", OpArraylength: "arraylength", OpAthrow: "athrow",
	OpCheckcast: "checkcast", OpInstanceof: "instanceof", OpIfnull: "ifnull", OpIfnonnull: "ifnonnull",
}

// Mnemonic returns the assembler name of op, or "op_0xNN" for opcodes without one.
func Mnemonic(op byte) string {
	if name, ok := mnemonics[op]; ok {
		return name
	}
	return fmt.Sprintf("op_0x%02x", op)
}
