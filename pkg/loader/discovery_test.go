package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/daimatz/warzone-loader/pkg/errors"
)

func writeManifest(t *testing.T, modsDir, name, body string) string {
	t.Helper()
	dir := filepath.Join(modsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

type fakeLinker struct {
	linked  []string
	symbols map[string]any
	err     error
}

func (l *fakeLinker) Link(object, pkg string, symbols []string) (map[string]any, error) {
	l.linked = append(l.linked, fmt.Sprintf("%s|%s|%v", filepath.Base(object), pkg, symbols))
	if l.err != nil {
		return nil, l.err
	}
	return l.symbols, nil
}

func TestLoadManifest(t *testing.T) {
	dir := writeManifest(t, t.TempDir(), "radar", `
id = "radar"
version = "1.2.0"
description = "Shows enemy units"
authors = ["darktree"]
object = "radar.o"

[contact]
homepage = "https://example.org/radar"

[depends]
warzone = ">=1.0.0"
java = ">=17"

[entrypoints]
main = ["NewInitializer", "other.Extra"]
`)
	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Name != "radar" || m.Package != "radar" {
		t.Errorf("defaults: got name %q package %q", m.Name, m.Package)
	}
	if got := m.ObjectPath(); got != filepath.Join(dir, "radar.o") {
		t.Errorf("ObjectPath: got %q", got)
	}
	if got := m.Symbol("NewInitializer"); got != "radar.NewInitializer" {
		t.Errorf("Symbol: got %q", got)
	}
	if got := m.Symbol("other.Extra"); got != "other.Extra" {
		t.Errorf("qualified Symbol: got %q", got)
	}

	meta := m.Metadata()
	if meta.ID != "radar" || meta.Version != "1.2.0" || meta.Contact["homepage"] != "https://example.org/radar" {
		t.Errorf("metadata: got %+v", meta)
	}
	if len(meta.Authors) != 1 || meta.Authors[0].Name != "darktree" {
		t.Errorf("authors: got %+v", meta.Authors)
	}
	var deps []string
	for _, d := range meta.Dependencies {
		deps = append(deps, d.ModID+d.Versions[0])
	}
	if want := []string{"java>=17", "warzone>=1.0.0"}; !slices.Equal(deps, want) {
		t.Errorf("dependencies: got %v, want %v", deps, want)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind errors.Kind
	}{
		{"bad toml", `id = `, errors.KindInvalidData},
		{"missing id", `version = "1"`, errors.KindInvalidData},
		{"bad id", `id = "Radar Mod"`, errors.KindInvalidData},
		{"entrypoints without object", "id = \"radar\"\n[entrypoints]\nmain = [\"New\"]\n", errors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeManifest(t, t.TempDir(), "mod", tt.body)
			_, err := LoadManifest(dir)
			if !errors.HasKind(err, tt.kind) {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestDiscoverMods(t *testing.T) {
	modsDir := t.TempDir()
	writeManifest(t, modsDir, "b-radar", "id = \"radar\"\nobject = \"radar.o\"\n[entrypoints]\nmain = [\"New\"]\n")
	writeManifest(t, modsDir, "a-skins", "id = \"skins\"\nversion = \"0.3\"\n")
	if err := os.MkdirAll(filepath.Join(modsDir, "not-a-mod"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modsDir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls []string
	linker := &fakeLinker{symbols: map[string]any{"radar.New": recorder{name: "radar", calls: &calls}}}
	mods, err := DiscoverMods(modsDir, linker)
	if err != nil {
		t.Fatalf("DiscoverMods: %v", err)
	}
	var ids []string
	for _, m := range mods {
		ids = append(ids, m.Metadata.ID)
	}
	if want := []string{"skins", "radar"}; !slices.Equal(ids, want) {
		t.Fatalf("ids: got %v, want %v", ids, want)
	}
	if want := []string{"radar.o|radar|[radar.New]"}; !slices.Equal(linker.linked, want) {
		t.Errorf("linked: got %v, want %v", linker.linked, want)
	}
	if got := mods[1].Entrypoints("main"); len(got) != 1 {
		t.Fatalf("radar entrypoints: got %v", got)
	}
	if err := mods[1].Entrypoints("main")[0].(ModInitializer).OnInitialize(); err != nil || len(calls) != 1 {
		t.Errorf("initializer: err %v, calls %v", err, calls)
	}
}

func TestDiscoverModsErrors(t *testing.T) {
	radar := "id = \"radar\"\nobject = \"radar.o\"\n[entrypoints]\nmain = [\"New\"]\n"
	tests := []struct {
		name   string
		linker ObjectLinker
		kind   errors.Kind
	}{
		{"no linker", nil, errors.KindUnsupported},
		{"link failure", &fakeLinker{err: fmt.Errorf("bad object")}, errors.KindInvalidData},
		{"link unsupported", &fakeLinker{err: errors.Unsupported(errors.PhaseDiscover, "goloader")}, errors.KindUnsupported},
		{"missing symbol", &fakeLinker{symbols: map[string]any{}}, errors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modsDir := t.TempDir()
			writeManifest(t, modsDir, "radar", radar)
			_, err := DiscoverMods(modsDir, tt.linker)
			if !errors.HasKind(err, tt.kind) {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestDiscoverModsMissingDir(t *testing.T) {
	mods, err := DiscoverMods(filepath.Join(t.TempDir(), "mods"), nil)
	if err != nil || len(mods) != 0 {
		t.Errorf("got %v, %v; want no mods, nil", mods, err)
	}
}
