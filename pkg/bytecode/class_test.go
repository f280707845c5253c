package bytecode

import (
	"bytes"
	"testing"

	"github.com/daimatz/warzone-loader/pkg/classfile"
	"github.com/davecgh/go-spew/spew"
)

const mainDesc = "([Ljava/lang/String;)V"

func assembleCounter(t *testing.T) []byte {
	t.Helper()
	raw, err := NewAssembler("demo/Counter", "java/lang/Object").
		Field(classfile.AccStatic, "count", "I").
		Method(classfile.AccPublic|classfile.AccStatic, "main", mainDesc, 3, 2,
			Field(OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;"),
			Ldc("counting"),
			Invoke(OpInvokevirtual, "java/io/PrintStream", "println", "(Ljava/lang/String;)V"),
			Op(OpIconst3),
			Op(OpIstore1),
			Op(OpIload1),
			// tableswitch at pc 11, no padding
			Op(OpTableswitch,
				0x00, 0x00, 0x00, 0x11, // default -> pc 28
				0x00, 0x00, 0x00, 0x00, // low 0
				0x00, 0x00, 0x00, 0x00, // high 0
				0x00, 0x00, 0x00, 0x11, // 0 -> pc 28
			),
			Op(OpIload1),
			Field(OpPutstatic, "demo/Counter", "count", "I"),
			Op(OpReturn),
		).
		Method(classfile.AccStatic, "helper", "()I", 1, 0,
			Op(OpBipush, 9),
			Op(OpIreturn),
		).
		Bytes()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return raw
}

func TestReadClassDecodesInstructions(t *testing.T) {
	node, err := ReadClass(assembleCounter(t))
	if err != nil {
		t.Fatalf("ReadClass: %v", err)
	}
	if node.Name != "demo/Counter" {
		t.Errorf("name: got %q, want %q", node.Name, "demo/Counter")
	}

	main := node.FindMethod(func(m *MethodNode) bool { return m.Name == "main" })
	if main == nil {
		t.Fatal("main not found")
	}
	if main.Desc != mainDesc {
		t.Errorf("desc: got %q, want %q", main.Desc, mainDesc)
	}
	if got := main.Instructions.Len(); got != 10 {
		t.Fatalf("instruction count: got %d, want 10\n%s", got, spew.Sdump(main.Instructions.Slice()))
	}

	call, ok := main.Instructions.At(2).(*MethodInsn)
	if !ok {
		t.Fatalf("insn 2: got %T, want *MethodInsn", main.Instructions.At(2))
	}
	if call.Owner != "java/io/PrintStream" || call.Name != "println" {
		t.Errorf("insn 2: got %s", call)
	}
	if ldc, ok := main.Instructions.At(1).(*LdcInsn); !ok || ldc.Value != "counting" {
		t.Errorf("insn 1: got %v, want ldc \"counting\"", main.Instructions.At(1))
	}
	if sw := main.Instructions.At(6); sw.Opcode() != OpTableswitch {
		t.Errorf("insn 6: got %s, want tableswitch", sw)
	}
	if last := main.Instructions.Last(); last.Opcode() != OpReturn {
		t.Errorf("last insn: got %s, want return", last)
	}
}

func TestBytesRoundTripIsStable(t *testing.T) {
	first := assembleCounter(t)
	node, err := ReadClass(first)
	if err != nil {
		t.Fatalf("ReadClass: %v", err)
	}
	second, err := node.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("unmodified class changed on re-encode (%d vs %d bytes)", len(first), len(second))
	}
}

func TestAppendKeepsPrefix(t *testing.T) {
	original := assembleCounter(t)
	node, err := ReadClass(original)
	if err != nil {
		t.Fatalf("ReadClass: %v", err)
	}
	main := node.FindMethod(func(m *MethodNode) bool { return m.Name == "main" })
	before := main.Instructions.Slice()

	main.Instructions.Append(Invoke(OpInvokestatic, "hooks/Hooks", "init", "()V"))
	patched, err := node.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	reread, err := ReadClass(patched)
	if err != nil {
		t.Fatalf("ReadClass(patched): %v", err)
	}
	after := reread.FindMethod(func(m *MethodNode) bool { return m.Name == "main" }).Instructions
	if after.Len() != len(before)+1 {
		t.Fatalf("instruction count: got %d, want %d", after.Len(), len(before)+1)
	}
	for i, want := range before {
		if got := after.At(i).String(); got != want.String() {
			t.Errorf("insn %d: got %s, want %s", i, got, want)
		}
	}
	hook, ok := after.Last().(*MethodInsn)
	if !ok || hook.Op != OpInvokestatic || hook.Owner != "hooks/Hooks" || hook.Name != "init" || hook.Desc != "()V" {
		t.Errorf("last insn: got %v, want invokestatic hooks/Hooks.init()V", after.Last())
	}

	cf, err := classfile.ParseBytes(patched)
	if err != nil {
		t.Fatal(err)
	}
	origCF, err := classfile.ParseBytes(original)
	if err != nil {
		t.Fatal(err)
	}
	code := cf.FindMethodByName("main").Code.Code
	origCode := origCF.FindMethodByName("main").Code.Code
	if !bytes.Equal(code[:len(origCode)], origCode) {
		t.Error("original bytecode prefix changed")
	}
	if len(code) != len(origCode)+3 {
		t.Errorf("code length: got %d, want %d", len(code), len(origCode)+3)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{0xFE}},
		{"truncated operand", []byte{OpSipush, 0x01}},
		{"truncated switch", []byte{OpNop, OpNop, OpNop, OpLookupswitch, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decode(tt.code, nil); err == nil {
				t.Errorf("decode(% x): expected error", tt.code)
			}
		})
	}
}

func TestOperandLengthWide(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int
	}{
		{"wide iload", []byte{OpWide, OpIload, 0x01, 0x00}, 3},
		{"wide iinc", []byte{OpWide, OpIinc, 0x01, 0x00, 0x00, 0x05}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := operandLength(tt.code, 0)
			if err != nil {
				t.Fatalf("operandLength: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLdcIndexOverflow(t *testing.T) {
	a := NewAssembler("demo/Big", "java/lang/Object")
	for i := 0; i < 300; i++ {
		a.Field(classfile.AccStatic, "f"+string(rune('a'+i%26))+string(rune('a'+i/26)), "I")
	}
	a.Method(classfile.AccStatic, "m", "()V", 1, 0, Ldc(int32(123456)), Op(OpPop), Op(OpReturn))
	if _, err := a.Bytes(); err == nil {
		t.Error("expected ldc index overflow error")
	}
}
