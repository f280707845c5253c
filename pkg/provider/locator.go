// Package provider teaches the loader to run Warzone: it finds the game
// jar, patches the entrypoint so mod initializers run from inside main, and
// dispatches those initializers when the game reaches the hook.
package provider

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"

	"github.com/daimatz/warzone-loader/pkg/config"
	"github.com/daimatz/warzone-loader/pkg/errors"
)

// Entrypoints are the candidate main classes, in priority order.
var Entrypoints = []string{"net.darktree.warzone.Main"}

// ResolvedArtifact is the located game.
type ResolvedArtifact struct {
	ArchivePath string
	Entrypoint  string
}

// Locator finds the entrypoint class inside a game archive.
type Locator struct {
	// Candidates defaults to Entrypoints.
	Candidates []string
}

// Locate opens the archive at path and returns the first candidate class it
// contains. found is false, with a nil error, when none is present. A path
// that does not exist is a configuration error and nothing is opened.
func (l Locator) Locate(path string) (ResolvedArtifact, bool, error) {
	if _, err := os.Stat(path); err != nil {
		return ResolvedArtifact{}, false, errors.New(errors.PhaseLocate, errors.KindConfiguration).
			Path(config.GameJarPathKey).
			Cause(err).
			Detail("game jar %s configured through %s doesn't exist", path, config.GameJarPathKey).
			Build()
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return ResolvedArtifact{}, false, errors.Wrap(errors.PhaseLocate, errors.KindInvalidData, err, "opening "+path)
	}
	defer zr.Close()

	entries := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = true
	}
	candidates := l.Candidates
	if len(candidates) == 0 {
		candidates = Entrypoints
	}
	for _, c := range candidates {
		if entries[strings.ReplaceAll(c, ".", "/")+".class"] {
			Logger().Debug(fmt.Sprintf("Found entrypoint %s in %s", c, path))
			return ResolvedArtifact{ArchivePath: path, Entrypoint: c}, true, nil
		}
	}
	return ResolvedArtifact{}, false, nil
}
