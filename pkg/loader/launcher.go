package loader

// Launcher is the view of the running launcher handed to the game provider
// and to game patches.
type Launcher interface {
	// Entrypoint returns the binary name of the game's main class.
	Entrypoint() string
	// AddToClassPath appends a jar or directory to the game class path.
	AddToClassPath(path string) error
	// IsDevelopment reports whether the loader runs in development mode.
	IsDevelopment() bool
}
