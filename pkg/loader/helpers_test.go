package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/classfile"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

var (
	systemOut     = bytecode.Field(bytecode.OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
	printlnString = bytecode.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	hookKey       = vm.MethodKey{Owner: "demo/Hooks", Name: "init", Desc: "()V"}
)

func mainClass(t *testing.T, name string, body ...bytecode.Insn) []byte {
	t.Helper()
	raw, err := bytecode.NewAssembler(name, "java/lang/Object").
		Method(classfile.AccPublic|classfile.AccStatic, "main", vm.MainDescriptor, 3, 1, body...).
		Bytes()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return raw
}

func writeJar(t *testing.T, path string, classes map[string][]byte) string {
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
	return path
}

// hookPatch appends a call to demo/Hooks.init()V to the entrypoint's main.
var hookPatch = GamePatchFunc(func(l Launcher, source ClassSource, emit ClassEmitter) error {
	raw, err := source(l.Entrypoint())
	if err != nil {
		return err
	}
	node, err := bytecode.ReadClass(raw)
	if err != nil {
		return err
	}
	main := node.FindMethod(func(m *bytecode.MethodNode) bool { return m.Name == "main" })
	main.Instructions.Append(bytecode.Invoke(bytecode.OpInvokestatic, hookKey.Owner, hookKey.Name, hookKey.Desc))
	emit(node)
	return nil
})

// fakeProvider is a minimal game provider over a jar in a temp directory.
type fakeProvider struct {
	dir         string
	jar         string
	entrypoint  string
	candidates  []string
	transformer *GameTransformer
	args        *Arguments
	disabled    bool
	launchErr   error
}

func (p *fakeProvider) GameID() string                { return "demo" }
func (p *fakeProvider) GameName() string              { return "Demo" }
func (p *fakeProvider) RawGameVersion() string        { return "0.1.0" }
func (p *fakeProvider) NormalizedGameVersion() string { return "0.1.0" }
func (p *fakeProvider) BuiltinMods() []BuiltinMod {
	return []BuiltinMod{{Paths: []string{p.jar}, Metadata: ModMetadata{ID: "demo", Version: "0.1.0", Name: "Demo"}}}
}
func (p *fakeProvider) Entrypoint() string           { return p.entrypoint }
func (p *fakeProvider) LaunchDirectory() string      { return p.dir }
func (p *fakeProvider) IsObfuscated() bool           { return false }
func (p *fakeProvider) RequiresURLClassLoader() bool { return false }
func (p *fakeProvider) IsEnabled() bool              { return !p.disabled }

func (p *fakeProvider) LocateGame(_ Launcher, args []string) (bool, error) {
	p.args = NewArguments()
	p.args.Parse(args)
	jars, err := vm.NewClassPathLoader(nil, p.jar)
	if err != nil {
		return false, err
	}
	defer jars.Close()
	for _, c := range p.candidates {
		if _, err := jars.ReadClass(internalName(c)); err == nil {
			p.entrypoint = c
			return true, nil
		}
	}
	return false, nil
}

func (p *fakeProvider) Initialize(l Launcher) error {
	return p.transformer.LocateEntrypoints(l, []string{p.jar})
}

func (p *fakeProvider) EntrypointTransformer() *GameTransformer { return p.transformer }

func (p *fakeProvider) UnlockClassPath(l Launcher) error { return l.AddToClassPath(p.jar) }

func (p *fakeProvider) Natives(host *Loader) vm.Natives {
	return vm.Natives{
		hookKey: func([]vm.Value) (vm.Value, error) {
			if err := host.PrepareModInit(p.dir, host.GameInstance()); err != nil {
				return vm.Value{}, err
			}
			return vm.Value{}, Invoke(host, "main", ModInitializer.OnInitialize)
		},
	}
}

func (p *fakeProvider) Launch(machine *vm.VM) error {
	if p.launchErr != nil {
		return p.launchErr
	}
	return machine.Execute(p.entrypoint, p.args.ToArray())
}

func (p *fakeProvider) Arguments() *Arguments { return p.args }

func (p *fakeProvider) LaunchArguments(bool) []string { return p.args.ToArray() }

func newFakeProvider(t *testing.T, classes map[string][]byte) *fakeProvider {
	t.Helper()
	dir := t.TempDir()
	return &fakeProvider{
		dir:         dir,
		jar:         writeJar(t, filepath.Join(dir, "game.jar"), classes),
		candidates:  []string{"demo.Main"},
		transformer: NewGameTransformer(hookPatch),
	}
}
