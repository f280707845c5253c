package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/daimatz/warzone-loader/pkg/errors"
	"github.com/daimatz/warzone-loader/pkg/telemetry"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

// Knot is the launcher. It drives one game provider from locating the game
// to running its main method.
type Knot struct {
	provider    GameProvider
	loader      *Loader
	linker      ObjectLinker
	tracer      trace.Tracer
	modsDir     string
	development bool
	extraMods   []*ModContainer
	stdout      io.Writer
	stderr      io.Writer

	mu        sync.Mutex
	classPath []string
}

// Option configures a Knot.
type Option func(*Knot)

// WithLinker sets the linker used for object-file mods.
func WithLinker(l ObjectLinker) Option { return func(k *Knot) { k.linker = l } }

// WithModsDir overrides <gameDir>/mods.
func WithModsDir(dir string) Option { return func(k *Knot) { k.modsDir = dir } }

// WithDevelopment turns development mode on.
func WithDevelopment(on bool) Option { return func(k *Knot) { k.development = on } }

// WithMods registers in-process mods next to the discovered ones.
func WithMods(mods ...*ModContainer) Option {
	return func(k *Knot) { k.extraMods = append(k.extraMods, mods...) }
}

// WithTracer sets the tracer for the startup spans.
func WithTracer(t trace.Tracer) Option { return func(k *Knot) { k.tracer = t } }

// WithOutput redirects the game's System.out and System.err.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(k *Knot) { k.stdout, k.stderr = stdout, stderr }
}

// NewKnot returns a launcher for provider.
func NewKnot(provider GameProvider, opts ...Option) *Knot {
	k := &Knot{
		provider: provider,
		loader:   NewLoader(),
		tracer:   telemetry.Tracer(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Entrypoint implements Launcher.
func (k *Knot) Entrypoint() string { return k.provider.Entrypoint() }

// IsDevelopment implements Launcher.
func (k *Knot) IsDevelopment() bool { return k.development }

// AddToClassPath implements Launcher. Entries are kept once, in order.
func (k *Knot) AddToClassPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("classpath: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if slices.Contains(k.classPath, abs) {
		return nil
	}
	k.classPath = append(k.classPath, abs)
	Logger().Debug("added to classpath", zap.String("path", abs))
	return nil
}

// ClassPath returns the game class path.
func (k *Knot) ClassPath() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.classPath...)
}

// Loader returns the mod registry.
func (k *Knot) Loader() *Loader { return k.loader }

// Launch runs the whole startup sequence and then the game.
func (k *Knot) Launch(ctx context.Context, args []string) error {
	ctx, span := k.tracer.Start(ctx, "startup", trace.WithAttributes(
		attribute.String("game.id", k.provider.GameID()),
		attribute.Bool("development", k.development),
	))
	defer span.End()

	if !k.provider.IsEnabled() {
		return finish(span, errors.Configuration(errors.PhaseLocate, "game provider "+k.provider.GameID()+" is disabled"))
	}

	err := k.phase(ctx, "locate", func(context.Context) error {
		found, err := k.provider.LocateGame(k, args)
		if err != nil {
			return err
		}
		if !found {
			return errors.Configuration(errors.PhaseLocate, "no entrypoint of "+k.provider.GameName()+" found in the game archive")
		}
		Logger().Info("loading game",
			zap.String("game", k.provider.GameName()),
			zap.String("version", k.provider.RawGameVersion()),
			zap.String("entrypoint", k.provider.Entrypoint()))
		return nil
	})
	if err != nil {
		return finish(span, err)
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"initialize", func(context.Context) error { return k.provider.Initialize(k) }},
		{"discover", k.discover},
		{"classpath", func(context.Context) error { return k.provider.UnlockClassPath(k) }},
		{"launch", k.launch},
	}
	for _, s := range steps {
		if err := k.phase(ctx, s.name, s.run); err != nil {
			return finish(span, err)
		}
	}
	return nil
}

func (k *Knot) discover(ctx context.Context) error {
	for _, b := range k.provider.BuiltinMods() {
		if err := k.loader.AddMod(NewModContainer(b.Metadata, b.Paths...)); err != nil {
			return err
		}
	}
	for _, m := range k.extraMods {
		if err := k.loader.AddMod(m); err != nil {
			return err
		}
	}

	dir := k.modsDir
	if dir == "" {
		dir = filepath.Join(k.provider.LaunchDirectory(), "mods")
	}
	mods, err := DiscoverMods(dir, k.linker)
	if err != nil {
		return err
	}
	for _, m := range mods {
		if err := k.loader.AddMod(m); err != nil {
			return err
		}
	}

	k.loader.SetGameDir(k.provider.LaunchDirectory())
	k.loader.Freeze()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("mods", len(k.loader.Mods())))
	Logger().Info("mods loaded", zap.Int("count", len(k.loader.Mods())))
	return nil
}

func (k *Knot) launch(context.Context) error {
	cp, err := vm.NewClassPathLoader(nil, k.ClassPath()...)
	if err != nil {
		return errors.Wrap(errors.PhaseClasspath, errors.KindConfiguration, err, "opening game class path")
	}
	defer cp.Close()

	var cl vm.ClassLoader = cp
	if t := k.provider.EntrypointTransformer(); t != nil {
		cl = vm.NewTransformingLoader(t, cp)
	}
	machine := vm.NewVM(cl, k.provider.Natives(k.loader))
	machine.Stdout = k.stdout
	machine.Stderr = k.stderr
	return k.provider.Launch(machine)
}

func (k *Knot) phase(ctx context.Context, name string, run func(context.Context) error) error {
	ctx, span := k.tracer.Start(ctx, name)
	defer span.End()
	Logger().Debug("startup phase", zap.String("phase", name))
	return finish(span, run(ctx))
}

func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
