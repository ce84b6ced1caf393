package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bintree/internal/datasource"
	"github.com/vanderheijden86/bintree/pkg/config"
	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/server"
	"github.com/vanderheijden86/bintree/pkg/ui"
	"github.com/vanderheijden86/bintree/pkg/version"
	"github.com/vanderheijden86/bintree/pkg/watcher"
)

// options holds the parsed command line.
type options struct {
	source     string
	configPath string
	rootID     int
	depth      int
	search     string
	exports    []string
	serve      bool
	addr       string
	render     string
	touch      bool
	noWatch    bool
	metrics    bool
	version    bool
	cpuProfile string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	var exportList string

	fs := flag.NewFlagSet("bt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.source, "source", "", "Tree source: a .json/.db file or a source name from the config")
	fs.StringVar(&o.configPath, "config", "", "Config file (default: ~/.config/bt/config.yaml)")
	fs.IntVar(&o.rootID, "root", 0, "Member id to use as the root (0 = top of the source)")
	fs.IntVar(&o.depth, "depth", 0, "Levels to load below the root (0 = config default, -1 = unlimited)")
	fs.StringVar(&o.search, "search", "", "Highlight members whose id or email contains this text")
	fs.StringVar(&exportList, "export", "", "Write snapshots and exit: comma-separated .svg, .png, .json or .db paths")
	fs.BoolVar(&o.serve, "serve", false, "Serve the tree over HTTP instead of starting the TUI")
	fs.StringVar(&o.addr, "addr", "", "Listen address for --serve (default from config)")
	fs.StringVar(&o.render, "render", "", "Print one TUI frame of the given size (e.g. 120x40) and exit")
	fs.BoolVar(&o.touch, "touch", false, "Treat mouse presses as touches (tap to preview, long press for the menu)")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Disable live reload when the source changes")
	fs.BoolVar(&o.metrics, "metrics", false, "Print timing metrics on exit")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: bt [options]")
		fmt.Fprintln(stderr, "\nA viewer for binary referral trees.")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		if o.source != "" {
			return o, fmt.Errorf("unexpected argument %q", fs.Arg(0))
		}
		o.source = fs.Arg(0)
	}
	o.exports = splitList(exportList)

	modes := 0
	for _, on := range []bool{len(o.exports) > 0, o.serve, o.render != ""} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return o, errors.New("--export, --serve and --render are mutually exclusive")
	}
	if o.rootID < 0 {
		return o, errors.New("--root must not be negative")
	}
	return o, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSize parses "WxH".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("size %q: bad width", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("size %q: bad height", s)
	}
	return w, h, nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	_ = debug.Close()
	os.Exit(code)
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if o.version {
		fmt.Fprintf(stdout, "bt %s\n", version.Version)
		return 0
	}

	// CPU profiling support
	if o.cpuProfile != "" {
		f, err := os.Create(o.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}
	if o.metrics {
		defer metrics.WriteSummary(stderr)
	}

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		// Non-fatal: continue with defaults
		log.Printf("warning: %v (using defaults)", err)
		cfg = config.DefaultConfig()
	}
	if o.touch {
		cfg.UI.TouchMode = true
	}
	if o.depth == 0 {
		o.depth = cfg.UI.Depth
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := len(o.exports) == 0 && !o.serve && o.render == ""
	src, err := resolveSource(ctx, o.source, cfg, interactive && isTerminal())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	debug.Log("bt: using %s", src)

	provider, err := datasource.OpenSource(src)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening %s: %v\n", src.Path, err)
		return 1
	}
	defer provider.Close()

	switch {
	case len(o.exports) > 0:
		err = runExports(ctx, provider, cfg, o, stdout)
	case o.serve:
		err = runServer(ctx, provider, cfg, o, stderr)
	case o.render != "":
		err = runRender(ctx, provider, cfg, o, stdout)
	default:
		err = runTUI(ctx, provider, cfg, o)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func sourceTitle(src datasource.DataSource) string {
	return filepath.Base(src.Path)
}

func runServer(ctx context.Context, p datasource.Provider, cfg config.Config, o options, stderr io.Writer) error {
	addr := o.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	h := server.New(p, server.Options{
		Layout: cfg.Layout,
		Title:  sourceTitle(p.Source()),
		Depth:  o.depth,

		MaxPNGPixels: cfg.Server.MaxPNGPixels,
	})
	fmt.Fprintf(stderr, "Serving %s on http://%s/tree.svg\n", p.Source().Path, addr)
	return server.ListenAndServe(ctx, addr, h)
}

func newModel(ctx context.Context, p datasource.Provider, cfg config.Config, o options, w *watcher.Watcher) (ui.Model, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	root, err := p.Tree(loadCtx, o.rootID, o.depth)
	if err != nil {
		return ui.Model{}, fmt.Errorf("loading tree: %w", err)
	}
	return ui.NewModel(root, ui.Options{
		Config:   cfg,
		Provider: p,
		Watcher:  w,
		Title:    sourceTitle(p.Source()),
		RootID:   o.rootID,
		Depth:    o.depth,
		Query:    o.search,
	}), nil
}

func runRender(ctx context.Context, p datasource.Provider, cfg config.Config, o options, stdout io.Writer) error {
	w, h, err := parseSize(o.render)
	if err != nil {
		return err
	}
	m, err := newModel(ctx, p, cfg, o, nil)
	if err != nil {
		return err
	}
	defer m.Stop()
	fmt.Fprintln(stdout, m.RenderFrame(w, h))
	return nil
}

func runTUI(ctx context.Context, p datasource.Provider, cfg config.Config, o options) error {
	var w *watcher.Watcher
	if !o.noWatch {
		var err error
		w, err = watcher.NewWatcher(p.Source().Path,
			watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }))
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			log.Printf("warning: live reload disabled: %v", err)
			w = nil
		}
	}

	m, err := newModel(ctx, p, cfg, o, w)
	if err != nil {
		if w != nil {
			w.Stop()
		}
		return err
	}
	defer m.Stop()

	return runTUIProgram(m)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set BT_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("BT_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
