package provider

import (
	"archive/zip"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/classfile"
	"github.com/daimatz/warzone-loader/pkg/errors"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

const mainInternal = "net/darktree/warzone/Main"

var (
	systemOut     = bytecode.Field(bytecode.OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
	printlnString = bytecode.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	printlnInt    = bytecode.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "(I)V")
)

// gameMain is a ten instruction main that prints "Warzone" and 2+3, then
// falls off the end of the method.
func gameMain() []bytecode.Insn {
	return []bytecode.Insn{
		systemOut,
		bytecode.Ldc("Warzone"),
		printlnString,
		bytecode.Op(bytecode.OpIconst2),
		bytecode.Op(bytecode.OpIconst3),
		bytecode.Op(bytecode.OpIadd),
		bytecode.Op(bytecode.OpIstore1),
		systemOut,
		bytecode.Op(bytecode.OpIload1),
		printlnInt,
	}
}

func assemble(t *testing.T, a *bytecode.Assembler) []byte {
	t.Helper()
	raw, err := a.Bytes()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return raw
}

func gameClass(t *testing.T) []byte {
	t.Helper()
	return assemble(t, bytecode.NewAssembler(mainInternal, "java/lang/Object").
		Method(classfile.AccPublic|classfile.AccStatic, "main", vm.MainDescriptor, 3, 2, gameMain()...))
}

func writeJar(t *testing.T, path string, files map[string][]byte) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, raw := range files {
		w, err := zw.Create(name)
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
	return path
}

// gameDir lays out a launch directory with game.jar holding classes.
func gameDir(t *testing.T, classes map[string][]byte) (dir, jar string) {
	t.Helper()
	dir = t.TempDir()
	files := make(map[string][]byte, len(classes))
	for name, raw := range classes {
		files[name+".class"] = raw
	}
	return dir, writeJar(t, filepath.Join(dir, "game.jar"), files)
}

type stubLauncher struct {
	entrypoint string
	classPath  []string
	dev        bool
}

func (l *stubLauncher) Entrypoint() string  { return l.entrypoint }
func (l *stubLauncher) IsDevelopment() bool { return l.dev }
func (l *stubLauncher) AddToClassPath(path string) error {
	l.classPath = append(l.classPath, path)
	return nil
}

type mapLoader map[string][]byte

func (m mapLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	raw, ok := m[name]
	if !ok {
		return nil, vm.ErrClassNotFound
	}
	return classfile.ParseBytes(raw)
}

func asError(err error, target **errors.Error) bool {
	return stderrors.As(err, target)
}
