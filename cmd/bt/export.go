package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/bintree/internal/datasource"
	"github.com/vanderheijden86/bintree/pkg/config"
	"github.com/vanderheijden86/bintree/pkg/export"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// runExports loads the tree once and writes every requested file in
// parallel. A .db target receives the members table; everything else is a
// rendered snapshot.
func runExports(ctx context.Context, p datasource.Provider, cfg config.Config, o options, stdout io.Writer) error {
	for _, path := range o.exports {
		if err := checkExportPath(path); err != nil {
			return err
		}
	}
	for _, path := range o.exports {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}

	root, err := p.Tree(ctx, o.rootID, o.depth)
	if err != nil {
		return fmt.Errorf("loading tree: %w", err)
	}
	title := "Binary tree: " + sourceTitle(p.Source())

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range o.exports {
		path := path
		g.Go(func() error {
			var err error
			if isDBPath(path) {
				err = exportDB(ctx, path, root)
			} else {
				err = export.SaveTreeSnapshot(export.TreeSnapshotOptions{
					Path:   path,
					Title:  title,
					Root:   root,
					Layout: cfg.Layout,
					Query:  o.search,
				})
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			fmt.Fprintf(stdout, "Wrote %s\n", path)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func isDBPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// checkExportPath rejects targets whose extension names no export format.
func checkExportPath(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".svg", ".png", ".json", ".db", ".sqlite", ".sqlite3":
		return nil
	default:
		return fmt.Errorf("%s: unknown export format %q (want .svg, .png, .json or .db)", path, ext)
	}
}

func exportDB(ctx context.Context, path string, root *model.TreeNode) error {
	rows, err := model.Flatten(root)
	if err != nil {
		return err
	}
	return datasource.WriteSQLite(ctx, path, rows)
}
