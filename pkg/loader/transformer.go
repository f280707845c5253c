package loader

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

// ClassSource returns the raw bytes of a game class by binary name
// ("a.b.C").
type ClassSource func(name string) ([]byte, error)

// ClassEmitter hands a modified class back to the transformer.
type ClassEmitter func(node *bytecode.ClassNode)

// GamePatch rewrites game classes before they are loaded.
type GamePatch interface {
	Process(launcher Launcher, source ClassSource, emit ClassEmitter) error
}

// GamePatchFunc adapts a function to GamePatch.
type GamePatchFunc func(launcher Launcher, source ClassSource, emit ClassEmitter) error

func (f GamePatchFunc) Process(launcher Launcher, source ClassSource, emit ClassEmitter) error {
	return f(launcher, source, emit)
}

// GameTransformer runs the game patches once over the game jars and serves
// the patched class bytes to the class loader. It implements vm.Transformer.
type GameTransformer struct {
	patches []GamePatch

	mu      sync.RWMutex
	located bool
	patched map[string][]byte
}

// NewGameTransformer returns a transformer applying patches in order.
func NewGameTransformer(patches ...GamePatch) *GameTransformer {
	return &GameTransformer{patches: patches, patched: make(map[string][]byte)}
}

// LocateEntrypoints applies every patch against the classes of gameJars.
// It may run only once per transformer.
func (t *GameTransformer) LocateEntrypoints(launcher Launcher, gameJars []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.located {
		return fmt.Errorf("entrypoints already located")
	}
	t.located = true

	jars, err := vm.NewClassPathLoader(nil, gameJars...)
	if err != nil {
		return fmt.Errorf("opening game jars: %w", err)
	}
	defer jars.Close()

	nodes := make(map[string]*bytecode.ClassNode)
	var order []string
	source := func(name string) ([]byte, error) {
		return jars.ReadClass(internalName(name))
	}
	emit := func(node *bytecode.ClassNode) {
		if _, ok := nodes[node.Name]; !ok {
			order = append(order, node.Name)
		}
		nodes[node.Name] = node
	}

	for _, p := range t.patches {
		if err := p.Process(launcher, source, emit); err != nil {
			return err
		}
	}

	for _, name := range order {
		raw, err := nodes[name].Bytes()
		if err != nil {
			return fmt.Errorf("encoding patched class %s: %w", name, err)
		}
		t.patched[name] = raw
	}
	Logger().Debug("patched classes", zap.Strings("classes", order), zap.Int("patches", len(t.patches)))
	return nil
}

// Transform returns the patched bytes of name, if it was patched.
func (t *GameTransformer) Transform(name string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	raw, ok := t.patched[internalName(name)]
	return raw, ok
}

// Patched returns the internal names of the patched classes.
func (t *GameTransformer) Patched() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.patched))
	for name := range t.patched {
		out = append(out, name)
	}
	return out
}

func internalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
