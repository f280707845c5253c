package loader

import "github.com/daimatz/warzone-loader/pkg/vm"

// GameProvider adapts one game to the loader. Knot drives it through
// LocateGame, Initialize, UnlockClassPath and Launch, in that order.
type GameProvider interface {
	GameID() string
	GameName() string
	RawGameVersion() string
	NormalizedGameVersion() string
	BuiltinMods() []BuiltinMod

	// Entrypoint is the binary name of the main class, known after LocateGame.
	Entrypoint() string
	LaunchDirectory() string
	IsObfuscated() bool
	RequiresURLClassLoader() bool
	IsEnabled() bool

	// LocateGame finds the game. found is false when no entrypoint exists.
	LocateGame(launcher Launcher, args []string) (found bool, err error)
	Initialize(launcher Launcher) error
	EntrypointTransformer() *GameTransformer
	UnlockClassPath(launcher Launcher) error
	// Natives returns the Go bindings the game bytecode can call into.
	Natives(host *Loader) vm.Natives
	Launch(machine *vm.VM) error

	Arguments() *Arguments
	LaunchArguments(sanitize bool) []string
}
