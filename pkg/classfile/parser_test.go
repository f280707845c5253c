package classfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// buildHello assembles the equivalent of
//
//	public class Hello { public static void main(String[] a) { System.out.println(42); } }
//
// through the constant pool append API.
func buildHello(t *testing.T) *ClassFile {
	t.Helper()

	cf := &ClassFile{MajorVersion: 61, AccessFlags: AccPublic | AccSuper}
	must := func(i uint16, err error) uint16 {
		t.Helper()
		if err != nil {
			t.Fatalf("constant pool: %v", err)
		}
		return i
	}

	cf.ThisClass = must(cf.ClassIndex("Hello"))
	cf.SuperClass = must(cf.ClassIndex("java/lang/Object"))
	out := must(cf.FieldrefIndex("java/lang/System", "out", "Ljava/io/PrintStream;"))
	printlnRef := must(cf.MethodrefIndex("java/io/PrintStream", "println", "(I)V", false))
	codeName := must(cf.Utf8Index("Code"))

	code := []byte{
		0xB2, byte(out >> 8), byte(out), // getstatic System.out
		0x10, 42, // bipush 42
		0xB6, byte(printlnRef >> 8), byte(printlnRef), // invokevirtual println(I)V
		0xB1, // return
	}
	cf.Methods = []MethodInfo{{
		AccessFlags:     AccPublic | AccStatic,
		NameIndex:       must(cf.Utf8Index("main")),
		DescriptorIndex: must(cf.Utf8Index("([Ljava/lang/String;)V")),
		Name:            "main",
		Descriptor:      "([Ljava/lang/String;)V",
		Attributes:      []AttributeInfo{{NameIndex: codeName, Name: "Code"}},
		Code:            &CodeAttribute{MaxStack: 2, MaxLocals: 1, Code: code},
	}}
	return cf
}

func TestParseClassFile(t *testing.T) {
	raw, err := buildHello(t).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cf, err := ParseBytes(raw)
	if err != nil {
		t.Fatalf("failed to parse Hello: %v", err)
	}

	if cf.MajorVersion != 61 {
		t.Errorf("major version: got %d, want 61", cf.MajorVersion)
	}

	className, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving this_class: %v", err)
	}
	if className != "Hello" {
		t.Errorf("this_class: got %q, want %q", className, "Hello")
	}
	if got := cf.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("super_class: got %q, want %q", got, "java/lang/Object")
	}

	mainMethod := cf.FindMethod("main", "([Ljava/lang/String;)V")
	if mainMethod == nil {
		t.Fatal("main method not found")
	}
	if !mainMethod.IsStatic() {
		t.Error("main should be static")
	}
	if mainMethod.Code == nil {
		t.Fatal("main method has no Code attribute")
	}
	if len(mainMethod.Code.Code) != 9 {
		t.Errorf("code length: got %d, want 9", len(mainMethod.Code.Code))
	}
	if mainMethod.Code.MaxStack != 2 || mainMethod.Code.MaxLocals != 1 {
		t.Errorf("max stack/locals: got %d/%d, want 2/1", mainMethod.Code.MaxStack, mainMethod.Code.MaxLocals)
	}
}

func TestParseFile(t *testing.T) {
	raw, err := buildHello(t).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "Hello.class")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	cf, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if cf.FindMethodByName("main") == nil {
		t.Error("main method not found by name")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	first, err := buildHello(t).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cf, err := ParseBytes(first)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	second, err := cf.Encode()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("re-encoded class differs: %d bytes vs %d bytes", len(first), len(second))
	}
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := ParseBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err == nil {
		t.Error("expected error for invalid magic number, got nil")
	}
}

func TestParseTruncated(t *testing.T) {
	raw, err := buildHello(t).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, n := range []int{3, 10, len(raw) / 2, len(raw) - 1} {
		if _, err := ParseBytes(raw[:n]); err == nil {
			t.Errorf("parse of %d/%d bytes: expected error, got nil", n, len(raw))
		}
	}
}

func TestParseOversizedAttributeLength(t *testing.T) {
	cf := buildHello(t)
	raw, err := cf.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	codeName, err := cf.Utf8Index("Code")
	if err != nil {
		t.Fatal(err)
	}
	// Replace the empty class attribute table with one attribute claiming
	// 0xFFFFFFFF bytes of data.
	bad := append([]byte{}, raw[:len(raw)-2]...)
	bad = binary.BigEndian.AppendUint16(bad, 1)
	bad = binary.BigEndian.AppendUint16(bad, codeName)
	bad = binary.BigEndian.AppendUint32(bad, 0xFFFFFFFF)

	tests := []struct {
		name string
		in   io.Reader
	}{
		{"sized reader", bytes.NewReader(bad)},
		{"stream", io.MultiReader(bytes.NewReader(bad))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("got %v, want %v", err, io.ErrUnexpectedEOF)
			}
		})
	}
}
