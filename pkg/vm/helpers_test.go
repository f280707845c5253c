package vm

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/classfile"
)

// mapLoader serves classes from memory.
type mapLoader map[string][]byte

func (m mapLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	raw, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return classfile.ParseBytes(raw)
}

func assemble(t *testing.T, a *bytecode.Assembler) []byte {
	t.Helper()
	raw, err := a.Bytes()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return raw
}

// mainClass assembles a class whose only method is main with the given body.
func mainClass(t *testing.T, name string, maxStack, maxLocals uint16, body ...bytecode.Insn) []byte {
	t.Helper()
	return assemble(t, bytecode.NewAssembler(name, "java/lang/Object").
		Method(classfile.AccPublic|classfile.AccStatic, "main", MainDescriptor, maxStack, maxLocals, body...))
}

func writeJar(t *testing.T, path string, classes map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, raw := range classes {
		w, err := zw.Create(name + ".class")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(raw); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeClassDir(t *testing.T, dir string, classes map[string][]byte) {
	t.Helper()
	for name, raw := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

var (
	printlnString = bytecode.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	printlnInt    = bytecode.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "(I)V")
	systemOut     = bytecode.Field(bytecode.OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
)
