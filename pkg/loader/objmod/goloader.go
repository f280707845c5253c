//go:build goloader

package objmod

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"

	"github.com/daimatz/warzone-loader/pkg/errors"
)

// Module is one linked object file.
type Module struct {
	file    string
	symbols map[string]uintptr
	linker  *goloader.Linker
	code    *goloader.CodeModule
}

// Open links file, compiled as package pkg, against the running binary.
// types are registered so the object can share them with the host.
func Open(file, pkg string, types ...any) (*Module, error) {
	m := &Module{file: file, symbols: make(map[string]uintptr)}
	if len(types) > 0 {
		goloader.RegTypes(m.symbols, types...)
	}
	if err := goloader.RegSymbol(m.symbols); err != nil {
		return nil, fmt.Errorf("objmod: registering host symbols: %w", err)
	}
	var err error
	if m.linker, err = goloader.ReadObj(file, pkg); err != nil {
		return nil, errors.Wrap(errors.PhaseDiscover, errors.KindInvalidData, err, "reading object "+file)
	}
	if m.code, err = goloader.Load(m.linker, m.symbols); err != nil {
		return nil, errors.Wrap(errors.PhaseDiscover, errors.KindInvalidData, err, "linking object "+file)
	}
	return m, nil
}

// Symbols returns the host symbols the module was linked against.
func (m *Module) Symbols() []string {
	return fn.MapKeys(m.symbols)
}

// Factory returns the func() any exported as sym.
func (m *Module) Factory(sym string) (func() any, error) {
	p, ok := m.code.Syms[sym]
	if !ok {
		return nil, errors.NotFound(errors.PhaseDiscover, "symbol "+sym+" in "+m.file)
	}
	container := uintptr(unsafe.Pointer(&p))
	return *(*func() any)(unsafe.Pointer(&container)), nil
}

// Close unloads the module. Values produced by its factories must not be
// used afterwards.
func (m *Module) Close() {
	if m.code != nil {
		_ = os.Stdout.Sync()
		m.code.Unload()
		m.code = nil
	}
}

// Linker implements loader.ObjectLinker. Linked modules stay loaded until
// Close.
type Linker struct {
	// Types are shared with every linked object.
	Types []any

	mu      sync.Mutex
	modules []*Module
}

// Link opens object and calls the factory behind each symbol.
func (l *Linker) Link(object, pkg string, symbols []string) (map[string]any, error) {
	m, err := Open(object, pkg, l.Types...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(symbols))
	for _, sym := range symbols {
		factory, err := m.Factory(sym)
		if err != nil {
			m.Close()
			return nil, err
		}
		out[sym] = factory()
	}
	l.mu.Lock()
	l.modules = append(l.modules, m)
	l.mu.Unlock()
	return out, nil
}

// Close unloads every linked module.
func (l *Linker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.modules {
		m.Close()
	}
	l.modules = nil
	return nil
}
