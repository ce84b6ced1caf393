package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/bintree/internal/datasource"
	"github.com/vanderheijden86/bintree/pkg/config"
)

// errNoSource is returned when neither the flags, the config nor the working
// directory name a usable tree.
var errNoSource = errors.New("no tree source found: pass --source or add sources to the config")

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// resolveSource turns the --source value into a validated source. A name
// from the config wins over a path of the same spelling. Without a value the
// configured sources come first, then the tree files in the working
// directory; with several candidates and interactive set the user picks one.
func resolveSource(ctx context.Context, name string, cfg config.Config, interactive bool) (datasource.DataSource, error) {
	if name != "" {
		path := name
		if s := cfg.FindSource(name); s != nil {
			path = s.Path
		}
		src, err := datasource.Detect(path)
		if err != nil {
			return src, err
		}
		if err := datasource.ValidateSource(ctx, &src); err != nil {
			return src, fmt.Errorf("%s: %w", path, err)
		}
		return src, nil
	}

	candidates, labels := candidateSources(ctx, cfg, ".")
	switch {
	case len(candidates) == 0:
		return datasource.DataSource{}, errNoSource
	case len(candidates) == 1 || !interactive:
		return datasource.SelectBestSource(candidates)
	}
	return pickSource(candidates, labels)
}

// candidateSources lists the valid configured sources followed by the valid
// sources discovered in dir, without duplicates.
func candidateSources(ctx context.Context, cfg config.Config, dir string) ([]datasource.DataSource, []string) {
	var out []datasource.DataSource
	var labels []string
	seen := map[string]bool{}

	for _, s := range cfg.Sources {
		src, err := datasource.Detect(s.Path)
		if err == nil {
			err = datasource.ValidateSource(ctx, &src)
		}
		if err != nil {
			log.Printf("warning: source %q: %v", s.Name, err)
			continue
		}
		seen[src.Path] = true
		out = append(out, src)
		labels = append(labels, fmt.Sprintf("%s (%d members)", s.Name, src.MemberCount))
	}

	found, err := datasource.DiscoverSources(ctx, dir, true)
	if err != nil {
		log.Printf("warning: %v", err)
	}
	for _, src := range found {
		if seen[src.Path] {
			continue
		}
		seen[src.Path] = true
		out = append(out, src)
		labels = append(labels, src.String())
	}
	return out, labels
}

func pickSource(candidates []datasource.DataSource, labels []string) (datasource.DataSource, error) {
	opts := make([]huh.Option[int], len(candidates))
	for i := range candidates {
		opts[i] = huh.NewOption(labels[i], i)
	}
	choice := defaultChoice(candidates, readLastSource())
	form := newForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which tree do you want to open?").
				Options(opts...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return datasource.DataSource{}, err
	}
	if err := saveLastSource(candidates[choice].Path); err != nil {
		log.Printf("warning: could not remember source: %v", err)
	}
	return candidates[choice], nil
}

// lastSourceFile remembers the most recently picked source between runs.
func lastSourceFile() string {
	dir := config.StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "last_source")
}

func readLastSource() string {
	path := lastSourceFile()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveLastSource(sourcePath string) error {
	path := lastSourceFile()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sourcePath+"\n"), 0o644)
}

// defaultChoice returns the index of the candidate at path, or 0.
func defaultChoice(candidates []datasource.DataSource, path string) int {
	for i, c := range candidates {
		if path != "" && c.Path == path {
			return i
		}
	}
	return 0
}
