package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZenLiuCN/hotswap"
	"github.com/ZenLiuCN/hotswap/build"
	"github.com/ZenLiuCN/hotswap/library"
	"github.com/ZenLiuCN/hotswap/monitor"
	"github.com/ZenLiuCN/hotswap/watch"
	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func app() *cli.App {
	a := cli.NewApp()
	a.Name = "hotswap"
	a.Usage = "live recompilation of a running module"
	a.Description = "hotswap builds a root module into a library, runs its root object and rebuilds, reloads and restarts it whenever its sources change"
	a.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}},
	}
	engineFlags := []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML configuration file"},
		&cli.StringFlag{Name: "tool", Aliases: []string{"t"}, Usage: "build tool: go or make"},
		&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path of go objects, default main"},
		&cli.BoolFlag{Name: "strict", Usage: "fail builds on non-zero exit status"},
		&cli.BoolFlag{Name: "fixed", Usage: "fixed entry point names create/destroy"},
		&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "build concurrency, processor count when zero"},
	}
	a.Commands = []*cli.Command{
		{
			Name:   "run",
			Action: run,
			Usage:  "execute the root module and reload it on every source change",
			Flags: append([]cli.Flag{
				&cli.DurationFlag{Name: "window", Aliases: []string{"w"}, Usage: "debounce window"},
				&cli.StringFlag{Name: "monitor", Aliases: []string{"m"}, Usage: "listen address of the event websocket"},
			}, engineFlags...),
			ArgsUsage: "<root source>",
		},
		{
			Name:      "build",
			Action:    buildOnce,
			Usage:     "build a module once and print the build log",
			Flags:     append([]cli.Flag{&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "library path"}}, engineFlags...),
			ArgsUsage: "<source>",
		},
		{
			Name:   "imports",
			Action: imports,
			Usage:  "display imports of objfile",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
			Args: true,
		},
		{
			Name:   "linkable",
			Action: linkable,
			Usage:  "display imports of serialized linker files",
			Args:   true,
		},
		{Name: "prepare", Action: prepare, Usage: "copy internals of go sdk"},
		{Name: "clean", Action: clean, Usage: "remove copied internals of go sdk"},
	}
	return a
}

// config loads the configuration file when given, then applies flags set on the command line.
func config(ctx *cli.Context) (cfg hotswap.Config, err error) {
	cfg = hotswap.DefaultConfig()
	if f := ctx.String("config"); f != "" {
		if cfg, err = hotswap.LoadConfig(f); err != nil {
			return
		}
	}
	if ctx.Args().Present() {
		cfg.Root = ctx.Args().First()
	}
	if ctx.IsSet("tool") {
		cfg.Tool = ctx.String("tool")
		cfg.Loader = ""
	}
	if ctx.IsSet("pkg") {
		cfg.Package = ctx.String("pkg")
	}
	if ctx.IsSet("strict") {
		cfg.StrictExit = ctx.Bool("strict")
	}
	if ctx.IsSet("fixed") {
		cfg.Fixed = ctx.Bool("fixed")
	}
	if ctx.IsSet("jobs") {
		cfg.Jobs = ctx.Int("jobs")
	}
	if ctx.IsSet("window") {
		cfg.Window = hotswap.Duration(ctx.Duration("window"))
	}
	if ctx.IsSet("monitor") {
		cfg.Monitor = ctx.String("monitor")
	}
	if ctx.Bool("debug") {
		cfg.Debug = true
	}
	if cfg.Root == "" {
		return cfg, fmt.Errorf("%w: missing root source", hotswap.ErrInvalidConfig)
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	if cfg.Debug {
		spew.Dump(cfg)
	}
	return
}

func run(ctx *cli.Context) (err error) {
	cfg, err := config(ctx)
	if err != nil {
		return
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return
	}
	e, err := hotswap.New(cfg)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, e.Close())
	}()
	w, err := watch.New(64, cfg.Debug)
	if err != nil {
		return
	}
	defer w.Close()
	if err = w.Add(filepath.Dir(root)); err != nil {
		return
	}
	sctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(sctx)
	if cfg.Monitor != "" {
		m := monitor.New(cfg.Debug)
		defer m.Close()
		e.Subscribe(m.Listener())
		mux := http.NewServeMux()
		mux.Handle("/events", m)
		srv := &http.Server{Addr: cfg.Monitor, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Printf("monitor listening on ws://%s/events", cfg.Monitor)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sd, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sd)
		})
	}
	if err = e.Execute(gctx, root); err != nil {
		stop()
		return errors.Join(err, g.Wait())
	}
	w.Start()
	g.Go(func() error {
		defer stop()
		if err := e.Run(gctx, w.Changes()); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func buildOnce(ctx *cli.Context) error {
	cfg, err := config(ctx)
	if err != nil {
		return err
	}
	src, err := filepath.Abs(cfg.Root)
	if err != nil {
		return err
	}
	b := hotswap.NewBuilder(cfg)
	lib := ctx.String("out")
	if lib == "" {
		lib = strings.TrimSuffix(src, filepath.Ext(src)) + b.Extension()
	}
	r := b.Build(ctx.Context, &build.Module{Path: src, Root: true}, lib)
	fmt.Println(r.Log)
	if !r.Success {
		return fmt.Errorf("build %s of %s failed", r.ID, src)
	}
	log.Printf("built %s in %s", lib, r.Elapsed())
	return nil
}

func linkable(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var f *os.File
		if f, err = os.Open(s); err != nil {
			return
		}
		var v library.Infos
		v, err = library.LinkableImports(f)
		_ = f.Close()
		if err != nil {
			return
		}
		log.Printf("\n%s", v.String())
	}
	return
}

func imports(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var v *library.Info
		if v, err = library.ObjectImports(s, ctx.String("pkg")); err != nil {
			return
		}
		log.Printf("\n%s", v.String())
	}
	return
}

func clean(ctx *cli.Context) (err error) {
	d := ctx.Bool("debug")
	dir := os.ExpandEnv("$GOROOT/src/cmd/objfile")
	if d {
		log.Printf("clean go sdk: %s", dir)
	}
	if _, err = os.Stat(dir); err == nil {
		err = os.RemoveAll(dir)
		if d {
			log.Printf("removed %s", dir)
		}
	} else if os.IsNotExist(err) {
		err = nil
		if d {
			log.Printf("did nothing for %s", dir)
		}
	}
	return
}

func prepare(ctx *cli.Context) (err error) {
	d := ctx.Bool("debug")
	src := os.ExpandEnv("$GOROOT/src/cmd/internal")
	dir := os.ExpandEnv("$GOROOT/src/cmd/objfile")
	if d {
		log.Printf("prepare go sdk from %s to %s", src, dir)
	}
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		err = library.CopyDir(src, dir)
		if d {
			log.Printf("copied %s from %s", dir, src)
		}
	} else if err == nil && d {
		log.Printf("did nothing for %s", dir)
	}
	return
}
