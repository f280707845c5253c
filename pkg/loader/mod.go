package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/daimatz/warzone-loader/pkg/errors"
)

// Person is a mod author or contributor.
type Person struct {
	Name    string
	Contact map[string]string
}

// Dependency is a requirement of a mod on another mod or on the runtime.
type Dependency struct {
	Kind     string // "depends", "recommends", "breaks", ...
	ModID    string
	Versions []string
}

// ModMetadata describes a mod.
type ModMetadata struct {
	ID           string
	Version      string
	Name         string
	Description  string
	Authors      []Person
	Contact      map[string]string
	Dependencies []Dependency
}

// BuiltinMod is a mod supplied by the game provider itself, usually the game.
type BuiltinMod struct {
	Paths    []string
	Metadata ModMetadata
}

// ModContainer is a loaded mod: its metadata, where it came from and the
// entrypoint objects it registered under each key.
type ModContainer struct {
	Metadata ModMetadata
	Origin   []string

	keys        []string
	entrypoints map[string][]any
}

// NewModContainer returns a container without entrypoints.
func NewModContainer(meta ModMetadata, origin ...string) *ModContainer {
	return &ModContainer{Metadata: meta, Origin: origin, entrypoints: make(map[string][]any)}
}

// AddEntrypoint registers value under key. Values keep registration order.
func (m *ModContainer) AddEntrypoint(key string, value any) *ModContainer {
	if _, ok := m.entrypoints[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entrypoints[key] = append(m.entrypoints[key], value)
	return m
}

// Entrypoints returns the values registered under key.
func (m *ModContainer) Entrypoints(key string) []any {
	return m.entrypoints[key]
}

// EntrypointKeys returns the keys with at least one entrypoint.
func (m *ModContainer) EntrypointKeys() []string {
	return append([]string(nil), m.keys...)
}

// EntrypointContainer is one entrypoint object together with the mod that
// provided it.
type EntrypointContainer struct {
	ModID string
	Key   string
	Value any
}

// Loader is the mod registry of one launch. Mods are added during startup;
// Freeze closes the registry before the game runs.
type Loader struct {
	mu           sync.RWMutex
	mods         []*ModContainer
	byID         map[string]*ModContainer
	frozen       bool
	gameDir      string
	gameInstance any
}

// NewLoader returns an empty registry.
func NewLoader() *Loader {
	return &Loader{byID: make(map[string]*ModContainer)}
}

// AddMod registers mod. Mod ids are unique and the registry must not be frozen.
func (l *Loader) AddMod(mod *ModContainer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return fmt.Errorf("adding mod %s: loader is frozen", mod.Metadata.ID)
	}
	if mod.Metadata.ID == "" {
		return errors.InvalidData(errors.PhaseDiscover, []string{"id"}, "mod id is empty")
	}
	if prev, ok := l.byID[mod.Metadata.ID]; ok {
		return errors.New(errors.PhaseDiscover, errors.KindConfiguration).
			Path(mod.Metadata.ID).
			Detail("duplicate mod id, provided by %v and %v", prev.Origin, mod.Origin).
			Build()
	}
	l.mods = append(l.mods, mod)
	l.byID[mod.Metadata.ID] = mod
	Logger().Debug("mod added",
		zap.String("id", mod.Metadata.ID),
		zap.String("version", mod.Metadata.Version))
	return nil
}

// Mod returns the mod with the given id.
func (l *Loader) Mod(id string) (*ModContainer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byID[id]
	return m, ok
}

// Mods returns all mods in registration order.
func (l *Loader) Mods() []*ModContainer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*ModContainer(nil), l.mods...)
}

// Freeze closes the registry.
func (l *Loader) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (l *Loader) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

// Entrypoints returns every entrypoint registered under key, in mod order.
func (l *Loader) Entrypoints(key string) []EntrypointContainer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []EntrypointContainer
	for _, m := range l.mods {
		for _, v := range m.entrypoints[key] {
			out = append(out, EntrypointContainer{ModID: m.Metadata.ID, Key: key, Value: v})
		}
	}
	return out
}

// GameInstance returns the handle passed to the last PrepareModInit.
func (l *Loader) GameInstance() any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gameInstance
}

// SetGameDir records the game directory chosen at launch.
func (l *Loader) SetGameDir(dir string) {
	l.mu.Lock()
	l.gameDir = dir
	l.mu.Unlock()
}

// GameDir returns the game directory.
func (l *Loader) GameDir() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gameDir
}

// PrepareModInit records the game instance and run directory right before
// initializers run. The registry must be frozen. A run directory that
// differs from the recorded game directory is logged, not rejected.
func (l *Loader) PrepareModInit(runDir string, gameInstance any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.frozen {
		return errors.Configuration(errors.PhaseDispatch, "cannot instantiate mods when not frozen")
	}
	l.gameInstance = gameInstance

	if l.gameDir == "" {
		l.gameDir = runDir
		return nil
	}
	if !sameDir(l.gameDir, runDir) {
		Logger().Warn("inconsistent game execution directories",
			zap.String("gameDir", l.gameDir),
			zap.String("runDir", runDir))
	}
	return nil
}

func sameDir(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if ra == rb {
		return true
	}
	sa, errA := os.Stat(ra)
	sb, errB := os.Stat(rb)
	return errA == nil && errB == nil && os.SameFile(sa, sb)
}
