package main

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/config"
	"github.com/daimatz/warzone-loader/pkg/loader"
	"github.com/daimatz/warzone-loader/pkg/loader/objmod"
	"github.com/daimatz/warzone-loader/pkg/provider"
	"github.com/daimatz/warzone-loader/pkg/telemetry"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

const serviceName = "warzone-loader"

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if err := newApp(&cfg, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		config.Exitf("Error: %v", err)
	}
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = serviceName
	app.Usage = "Warzone game loader"
	app.Description = "locates the Warzone game jar, patches its entrypoint and runs it with mods"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "game-jar", Aliases: []string{"j"}, Usage: "game archive, overrides " + config.GameJarPathKey},
		&cli.BoolFlag{Name: "development", Aliases: []string{"dev"}, Usage: "development mode (debug logging)"},
		&cli.StringFlag{Name: "log-level", Usage: "minimum console log level"},
	}
	app.Before = func(ctx *cli.Context) error {
		if ctx.IsSet("game-jar") {
			cfg.GameJarPath = ctx.String("game-jar")
		}
		if ctx.IsSet("development") {
			cfg.Development = ctx.Bool("development")
		}
		if ctx.IsSet("log-level") {
			cfg.LogLevel = ctx.String("log-level")
		}
		return setupLogging(cfg, stdout, stderr)
	}
	app.Commands = []*cli.Command{
		{
			Name:      "launch",
			Usage:     "patch the game and run it; arguments after the flags go to the game",
			ArgsUsage: "[-- [--gameDir dir] game args...]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "mods", Aliases: []string{"m"}, Usage: "mods directory, defaults to <gameDir>/mods"},
			},
			Action: func(ctx *cli.Context) error { return launch(ctx, cfg, stdout, stderr) },
		},
		{
			Name:      "locate",
			Usage:     "print the entrypoint found in the game archive",
			ArgsUsage: "[game.jar]",
			Action:    func(ctx *cli.Context) error { return locate(ctx, cfg) },
		},
		{
			Name:      "patch",
			Usage:     "write the patched entrypoint class to a file",
			ArgsUsage: "[game.jar]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, defaults to <Entrypoint>.class"},
			},
			Action: func(ctx *cli.Context) error { return patch(ctx, cfg) },
		},
		{
			Name:      "inspect",
			Usage:     "list the methods and instructions of a class file",
			ArgsUsage: "<file.class>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "dump", Aliases: []string{"d"}, Usage: "dump the decoded class structure"},
			},
			Action: inspect,
		},
	}
	return app
}

func setupLogging(cfg *config.Config, stdout, stderr io.Writer) error {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		l, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	if cfg.Development && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	log := provider.NewLogger(stdout, stderr, level)
	provider.SetLogger(log)
	loader.SetLogger(log.Named(provider.CategoryKnot))
	vm.SetLogger(log.Named("VM"))
	return nil
}

func launch(ctx *cli.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	game := provider.NewWarzoneProvider(*cfg)
	shutdown, err := telemetry.Setup(ctx.Context, telemetry.Service{
		Name:        serviceName,
		Version:     game.RawGameVersion(),
		GameID:      game.GameID(),
		GameJar:     cfg.GameJarPath,
		Development: cfg.Development,
	}, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			provider.Logger().Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	modsDir := cfg.ModsDir
	if ctx.IsSet("mods") {
		modsDir = ctx.String("mods")
	}
	linker := &objmod.Linker{}
	defer linker.Close()

	knot := loader.NewKnot(game,
		loader.WithLinker(linker),
		loader.WithModsDir(modsDir),
		loader.WithDevelopment(cfg.Development),
		loader.WithOutput(stdout, stderr),
	)
	return knot.Launch(ctx.Context, ctx.Args().Slice())
}

func gameJar(ctx *cli.Context, cfg *config.Config) string {
	if ctx.Args().Present() {
		return ctx.Args().First()
	}
	return cfg.GameJarPath
}

func locate(ctx *cli.Context, cfg *config.Config) error {
	res, found, err := provider.Locator{}.Locate(gameJar(ctx, cfg))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no entrypoint (%s) in %s", strings.Join(provider.Entrypoints, ", "), gameJar(ctx, cfg))
	}
	fmt.Fprintf(ctx.App.Writer, "%s\t%s\n", res.Entrypoint, res.ArchivePath)
	return nil
}

func patch(ctx *cli.Context, cfg *config.Config) error {
	path := gameJar(ctx, cfg)
	res, found, err := provider.Locator{}.Locate(path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no entrypoint in %s", path)
	}
	raw, err := readEntry(path, strings.ReplaceAll(res.Entrypoint, ".", "/")+".class")
	if err != nil {
		return err
	}
	patched, err := provider.PatchClass(raw)
	if err != nil {
		return err
	}

	out := ctx.String("out")
	if out == "" {
		out = res.Entrypoint[strings.LastIndex(res.Entrypoint, ".")+1:] + ".class"
	}
	if err := os.WriteFile(out, patched, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(ctx.App.Writer, "patched %s -> %s\n", res.Entrypoint, out)
	return nil
}

func readEntry(jar, name string) ([]byte, error) {
	zr, err := zip.OpenReader(jar)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", jar, err)
	}
	defer zr.Close()
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", name, jar, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func inspect(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return fmt.Errorf("missing class file")
	}
	path := ctx.Args().First()
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	node, err := bytecode.ReadClass(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	w := ctx.App.Writer
	if ctx.Bool("dump") {
		spew.Fdump(w, node)
		return nil
	}
	fmt.Fprintf(w, "class %s\n", node.Name)
	for _, m := range node.Methods {
		fmt.Fprintf(w, "  %s%s\n", m.Name, m.Desc)
		if m.Instructions == nil {
			continue
		}
		for i, insn := range m.Instructions.All() {
			fmt.Fprintf(w, "    %3d: %s\n", i, insn)
		}
	}
	return nil
}
