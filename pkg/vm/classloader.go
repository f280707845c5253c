package vm

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/daimatz/warzone-loader/pkg/classfile"
	"go.uber.org/zap"
)

// ErrClassNotFound is returned (wrapped) when no loader has the class.
var ErrClassNotFound = errors.New("class not found")

// ClassLoader loads .class files by internal class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// ClassPathLoader loads classes from an ordered list of jars and
// directories, delegating to the parent first.
type ClassPathLoader struct {
	Parent ClassLoader

	mu      sync.Mutex
	entries []classPathEntry
	cache   map[string]*classfile.ClassFile
}

type classPathEntry interface {
	read(name string) ([]byte, bool, error)
	path() string
	io.Closer
}

// NewClassPathLoader opens every entry of paths. Entries that are
// directories are searched as class roots; anything else must be a jar.
func NewClassPathLoader(parent ClassLoader, paths ...string) (*ClassPathLoader, error) {
	cl := &ClassPathLoader{
		Parent: parent,
		cache:  make(map[string]*classfile.ClassFile),
	}
	for _, p := range paths {
		if err := cl.Add(p); err != nil {
			cl.Close()
			return nil, err
		}
	}
	return cl, nil
}

// Add appends a jar or directory to the class path.
func (cl *ClassPathLoader) Add(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("classpath: %w", err)
	}
	var entry classPathEntry
	if stat.IsDir() {
		entry = dirEntry(path)
	} else {
		rc, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("classpath: opening %s: %w", path, err)
		}
		entry = newJarEntry(path, rc)
	}
	cl.mu.Lock()
	cl.entries = append(cl.entries, entry)
	cl.mu.Unlock()
	Logger().Debug("classpath entry added", zap.String("path", path))
	return nil
}

// Paths returns the class path entries in search order.
func (cl *ClassPathLoader) Paths() []string {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]string, len(cl.entries))
	for i, e := range cl.entries {
		out[i] = e.path()
	}
	return out
}

// ReadClass returns the raw bytes of name from the first entry holding it.
func (cl *ClassPathLoader) ReadClass(name string) ([]byte, error) {
	cl.mu.Lock()
	entries := cl.entries
	cl.mu.Unlock()

	for _, e := range entries {
		raw, ok, err := e.read(name)
		if err != nil {
			return nil, fmt.Errorf("classpath: reading %s from %s: %w", name, e.path(), err)
		}
		if ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

func (cl *ClassPathLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.Lock()
	cf, ok := cl.cache[name]
	cl.mu.Unlock()
	if ok {
		return cf, nil
	}

	if cl.Parent != nil {
		cf, err := cl.Parent.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}

	raw, err := cl.ReadClass(name)
	if err != nil {
		return nil, err
	}
	cf, err = classfile.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("classpath: parsing %s: %w", name, err)
	}

	cl.mu.Lock()
	cl.cache[name] = cf
	cl.mu.Unlock()
	return cf, nil
}

// Close releases every opened jar.
func (cl *ClassPathLoader) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	var errs []error
	for _, e := range cl.entries {
		errs = append(errs, e.Close())
	}
	cl.entries = nil
	return errors.Join(errs...)
}

type jarEntry struct {
	jarPath string
	rc      *zip.ReadCloser
	files   map[string]*zip.File
}

func newJarEntry(path string, rc *zip.ReadCloser) *jarEntry {
	files := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		files[f.Name] = f
	}
	return &jarEntry{jarPath: path, rc: rc, files: files}
}

func (j *jarEntry) read(name string) ([]byte, bool, error) {
	f, ok := j.files[name+".class"]
	if !ok {
		return nil, false, nil
	}
	r, err := f.Open()
	if err != nil {
		return nil, false, err
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (j *jarEntry) path() string { return j.jarPath }
func (j *jarEntry) Close() error { return j.rc.Close() }

type dirEntry string

func (d dirEntry) read(name string) ([]byte, bool, error) {
	raw, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)+".class"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (d dirEntry) path() string { return string(d) }
func (d dirEntry) Close() error { return nil }

// Transformer supplies rewritten class bytes. ok is false when the class
// is not transformed and should come from the parent loader unchanged.
type Transformer interface {
	Transform(name string) (raw []byte, ok bool)
}

// TransformingLoader consults a Transformer before its parent.
type TransformingLoader struct {
	transformer Transformer
	parent      ClassLoader

	mu    sync.Mutex
	cache map[string]*classfile.ClassFile
}

// NewTransformingLoader creates a loader serving transformed classes first.
func NewTransformingLoader(t Transformer, parent ClassLoader) *TransformingLoader {
	return &TransformingLoader{
		transformer: t,
		parent:      parent,
		cache:       make(map[string]*classfile.ClassFile),
	}
}

func (l *TransformingLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cf, ok := l.cache[name]; ok {
		return cf, nil
	}
	raw, ok := l.transformer.Transform(name)
	if !ok {
		return l.parent.LoadClass(name)
	}
	cf, err := classfile.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("transformed class %s: %w", name, err)
	}
	Logger().Debug("loaded transformed class", zap.String("class", name))
	l.cache[name] = cf
	return cf, nil
}
