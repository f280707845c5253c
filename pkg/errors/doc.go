// Package errors provides the structured error type of the loader.
//
// Errors are categorized by Phase (which startup step failed) and Kind (what
// went wrong). Three kinds carry the user-facing classification of a launch:
//
//	KindConfiguration  the environment or the game artifact is not usable
//	KindLaunch         the entrypoint could not be resolved ("Failed to start the game")
//	KindInvocation     the game raised an error while running ("The game has crashed!")
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhasePatch, errors.KindConfiguration).
//		Path("net/darktree/warzone/Main").
//		Detail("no main method").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
