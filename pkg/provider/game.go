package provider

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/daimatz/warzone-loader/pkg/config"
	"github.com/daimatz/warzone-loader/pkg/errors"
	"github.com/daimatz/warzone-loader/pkg/loader"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

const (
	gameID      = "warzone"
	gameName    = "Warzone"
	gameVersion = "1.0.0"
)

// WarzoneProvider implements loader.GameProvider for Warzone.
type WarzoneProvider struct {
	cfg         config.Config
	locator     Locator
	transformer *loader.GameTransformer

	arguments   *loader.Arguments
	entrypoint  string
	gameJar     string
	launchDir   string
	libDir      string
	development bool
}

// NewWarzoneProvider returns a provider reading the game location from cfg.
func NewWarzoneProvider(cfg config.Config) *WarzoneProvider {
	return &WarzoneProvider{
		cfg:         cfg,
		transformer: loader.NewGameTransformer(EntrypointPatch{}),
	}
}

func (p *WarzoneProvider) GameID() string   { return gameID }
func (p *WarzoneProvider) GameName() string { return gameName }

func (p *WarzoneProvider) RawGameVersion() string { return gameVersion }

// NormalizedGameVersion is already SemVer.
func (p *WarzoneProvider) NormalizedGameVersion() string { return p.RawGameVersion() }

// BuiltinMods describes the game itself as a mod.
func (p *WarzoneProvider) BuiltinMods() []loader.BuiltinMod {
	contact := map[string]string{
		"homepage": "darktree.net",
		"issues":   "https://github.com/dark-tree/warzone/issues",
	}
	return []loader.BuiltinMod{{
		Paths: []string{p.gameJar},
		Metadata: loader.ModMetadata{
			ID:          gameID,
			Version:     p.NormalizedGameVersion(),
			Name:        gameName,
			Description: "The core of the Warzone game.",
			Authors:     []loader.Person{{Name: "magistermaks", Contact: contact}},
			Contact:     contact,
			Dependencies: []loader.Dependency{
				{Kind: "depends", ModID: "java", Versions: []string{">=17"}},
			},
		},
	}}
}

func (p *WarzoneProvider) Entrypoint() string { return p.entrypoint }

// LaunchDirectory is the gameDir argument, or "." before arguments are parsed.
func (p *WarzoneProvider) LaunchDirectory() string {
	if p.arguments == nil {
		return "."
	}
	return p.arguments.GetOrDefault("gameDir", ".")
}

func (p *WarzoneProvider) IsObfuscated() bool           { return false }
func (p *WarzoneProvider) RequiresURLClassLoader() bool { return false }
func (p *WarzoneProvider) IsEnabled() bool              { return true }

// GameJar returns the located game archive.
func (p *WarzoneProvider) GameJar() string { return p.gameJar }

// IsDevelopment reports whether development mode was requested.
func (p *WarzoneProvider) IsDevelopment() bool { return p.development }

// LocateGame parses args and finds the game jar and its entrypoint.
func (p *WarzoneProvider) LocateGame(launcher loader.Launcher, args []string) (bool, error) {
	p.arguments = loader.NewArguments()
	p.arguments.Parse(args)
	p.development = p.cfg.Development || launcher.IsDevelopment()

	path := p.cfg.GameJarPath
	if path == "" {
		path = "./game.jar"
	}
	res, found, err := p.locator.Locate(path)
	if err != nil || !found {
		return false, err
	}
	abs, err := filepath.Abs(res.ArchivePath)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", res.ArchivePath, err)
	}
	p.entrypoint = res.Entrypoint
	p.gameJar = abs

	return true, p.processArguments()
}

func (p *WarzoneProvider) processArguments() error {
	if !p.arguments.ContainsKey("gameDir") {
		dir, err := filepath.Abs(p.LaunchDirectory())
		if err != nil {
			return fmt.Errorf("resolving launch directory: %w", err)
		}
		p.arguments.Put("gameDir", dir)
	}
	p.launchDir = p.arguments.Get("gameDir")
	Logger().Named(CategoryGameProvider).Info("Launch directory is " + p.launchDir)
	p.libDir = filepath.Join(p.launchDir, "lib")
	return nil
}

// Initialize patches the entrypoint.
func (p *WarzoneProvider) Initialize(launcher loader.Launcher) error {
	return p.transformer.LocateEntrypoints(launcher, []string{p.gameJar})
}

func (p *WarzoneProvider) EntrypointTransformer() *loader.GameTransformer { return p.transformer }

// UnlockClassPath adds the game jar and every jar in <gameDir>/lib.
func (p *WarzoneProvider) UnlockClassPath(launcher loader.Launcher) error {
	if err := launcher.AddToClassPath(p.gameJar); err != nil {
		return err
	}
	libs, err := p.Libraries()
	if err != nil {
		return err
	}
	for _, lib := range libs {
		if err := launcher.AddToClassPath(lib); err != nil {
			return err
		}
	}
	return nil
}

// Libraries returns the jars in <gameDir>/lib, sorted.
func (p *WarzoneProvider) Libraries() ([]string, error) {
	if p.libDir == "" {
		return nil, nil
	}
	libs, err := filepath.Glob(filepath.Join(p.libDir, "*.jar"))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseClasspath, errors.KindConfiguration, err, "listing "+p.libDir)
	}
	slices.Sort(libs)
	return libs, nil
}

// Natives binds the hook to host.
func (p *WarzoneProvider) Natives(host *loader.Loader) vm.Natives {
	return NewHooks(host, ".").Natives()
}

// Launch runs the entrypoint's main method. Failing to load the class or
// find main is a launch error; anything raised while main runs is an
// invocation error.
func (p *WarzoneProvider) Launch(machine *vm.VM) error {
	cls, err := machine.LoadClass(p.entrypoint)
	if err != nil {
		return errors.Launch(err)
	}
	m := cls.FindMethod("main", vm.MainDescriptor)
	if m == nil || !m.IsStatic() {
		return errors.Launch(fmt.Errorf("%w: static %s.main%s", vm.ErrMethodNotFound, cls.Name, vm.MainDescriptor))
	}
	if _, err := machine.Invoke(cls, m, vm.RefValue(vm.StringArray(p.LaunchArguments(false)))); err != nil {
		return errors.Invocation(err)
	}
	return nil
}

func (p *WarzoneProvider) Arguments() *loader.Arguments { return p.arguments }

// LaunchArguments returns the arguments passed on to the game.
func (p *WarzoneProvider) LaunchArguments(bool) []string {
	if p.arguments == nil {
		return []string{}
	}
	return p.arguments.ToArray()
}
