//go:build !goloader

package objmod

import "github.com/daimatz/warzone-loader/pkg/errors"

// Linker implements loader.ObjectLinker. This build has no object linker.
type Linker struct {
	Types []any
}

// Link always fails with an unsupported error.
func (l *Linker) Link(object, _ string, _ []string) (map[string]any, error) {
	return nil, errors.Unsupported(errors.PhaseDiscover, "object mod "+object+" needs a build with -tags goloader")
}

// Close does nothing.
func (l *Linker) Close() error { return nil }
