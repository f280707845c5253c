package loader

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/daimatz/warzone-loader/pkg/errors"
)

// ManifestFile is the name of the manifest inside a mod directory.
const ManifestFile = "mod.toml"

var modIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,63}$`)

// ModManifest is a parsed mod.toml.
type ModManifest struct {
	ID          string            `toml:"id"`
	Version     string            `toml:"version"`
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Authors     []string          `toml:"authors"`
	Contact     map[string]string `toml:"contact"`
	// Depends maps mod ids to version ranges.
	Depends map[string]string `toml:"depends"`

	// Object is the compiled Go object file holding the entrypoints,
	// relative to the mod directory.
	Object string `toml:"object"`
	// Package is the package path the object was compiled with.
	// It defaults to the mod id.
	Package string `toml:"package"`
	// Entrypoints maps entrypoint keys to factory symbols.
	Entrypoints map[string][]string `toml:"entrypoints"`

	// Dir is the directory containing the mod.toml file (set at load time).
	Dir string `toml:"-"`
}

// ObjectLinker links a compiled object file and returns the value produced
// by each factory symbol.
type ObjectLinker interface {
	Link(object, pkg string, symbols []string) (map[string]any, error)
}

// LoadManifest parses the mod.toml in dir.
func LoadManifest(dir string) (*ModManifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m ModManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseDiscover, errors.KindInvalidData, err, "parse error in "+path)
	}
	m.Dir = dir

	if !modIDPattern.MatchString(m.ID) {
		return nil, errors.InvalidData(errors.PhaseDiscover, []string{path, "id"},
			fmt.Sprintf("invalid mod id %q", m.ID))
	}
	if len(m.Entrypoints) > 0 && m.Object == "" {
		return nil, errors.InvalidData(errors.PhaseDiscover, []string{path, "object"},
			"entrypoints declared without an object file")
	}

	// Defaults
	if m.Package == "" {
		m.Package = m.ID
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	return &m, nil
}

// Metadata converts the manifest into mod metadata.
func (m *ModManifest) Metadata() ModMetadata {
	meta := ModMetadata{
		ID:          m.ID,
		Version:     m.Version,
		Name:        m.Name,
		Description: m.Description,
		Contact:     m.Contact,
	}
	for _, a := range m.Authors {
		meta.Authors = append(meta.Authors, Person{Name: a})
	}
	for _, id := range slices.Sorted(maps.Keys(m.Depends)) {
		meta.Dependencies = append(meta.Dependencies, Dependency{
			Kind:     "depends",
			ModID:    id,
			Versions: []string{m.Depends[id]},
		})
	}
	return meta
}

// Symbol qualifies an entrypoint name with the manifest package.
func (m *ModManifest) Symbol(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return m.Package + "." + name
}

// ObjectPath returns the absolute location of the object file.
func (m *ModManifest) ObjectPath() string {
	if filepath.IsAbs(m.Object) {
		return m.Object
	}
	return filepath.Join(m.Dir, m.Object)
}

// DiscoverMods loads every <dir>/<mod>/mod.toml. Directories without a
// manifest are skipped; a missing dir yields no mods.
func DiscoverMods(dir string, linker ObjectLinker) ([]*ModContainer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			Logger().Debug("mods directory missing", zap.String("dir", dir))
			return nil, nil
		}
		return nil, fmt.Errorf("reading mods directory: %w", err)
	}

	var mods []*ModContainer
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		modDir := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(modDir, ManifestFile)); err != nil {
			continue
		}
		m, err := LoadManifest(modDir)
		if err != nil {
			return nil, err
		}
		mod, err := m.container(linker)
		if err != nil {
			return nil, err
		}
		Logger().Info("discovered mod",
			zap.String("id", m.ID),
			zap.String("version", m.Version),
			zap.String("dir", modDir))
		mods = append(mods, mod)
	}
	return mods, nil
}

func (m *ModManifest) container(linker ObjectLinker) (*ModContainer, error) {
	mod := NewModContainer(m.Metadata(), m.Dir)
	if len(m.Entrypoints) == 0 {
		return mod, nil
	}
	if linker == nil {
		return nil, errors.Unsupported(errors.PhaseDiscover, "mod "+m.ID+" ships an object file but no object linker is configured")
	}

	keys := slices.Sorted(maps.Keys(m.Entrypoints))
	var symbols []string
	for _, key := range keys {
		for _, name := range m.Entrypoints[key] {
			symbols = append(symbols, m.Symbol(name))
		}
	}
	values, err := linker.Link(m.ObjectPath(), m.Package, symbols)
	if err != nil {
		kind := errors.KindOf(err)
		if kind == "" {
			kind = errors.KindInvalidData
		}
		return nil, errors.Wrap(errors.PhaseDiscover, kind, err, "linking mod "+m.ID)
	}
	for _, key := range keys {
		for _, name := range m.Entrypoints[key] {
			v, ok := values[m.Symbol(name)]
			if !ok {
				return nil, errors.NotFound(errors.PhaseDiscover, "symbol "+m.Symbol(name)+" in mod "+m.ID)
			}
			mod.AddEntrypoint(key, v)
		}
	}
	return mod, nil
}
