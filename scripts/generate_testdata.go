//go:build ignore

// generate_testdata.go creates sample referral trees for manual testing and
// benchmarking.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	tests/testdata/trees/small.json    (15 members, complete)
//	tests/testdata/trees/medium.json   (250 members, random)
//	tests/testdata/trees/large.json    (2000 members, random)
//	tests/testdata/trees/large.db      (same tree as large.json)
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/bintree/internal/datasource"
	"github.com/vanderheijden86/bintree/pkg/model"
	"github.com/vanderheijden86/bintree/pkg/testutil"
)

type datasetSpec struct {
	name   string
	size   int
	levels int // complete tree of this many levels when > 0
	db     bool
}

var datasets = []datasetSpec{
	{name: "small", levels: 4},
	{name: "medium", size: 250},
	{name: "large", size: 2000, db: true},
}

func main() {
	outputDir := "tests/testdata/trees"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		gen := testutil.New(testutil.GeneratorConfig{
			Seed:         int64(ds.size + ds.levels), // Reproducible per-size
			MemberPrefix: "BT",
			EmailDomain:  "referrals.example",
			ActiveRatio:  0.8,
		})

		var root *model.TreeNode
		if ds.levels > 0 {
			fmt.Printf("Generating %s dataset (%d levels)...\n", ds.name, ds.levels)
			root = gen.Complete(ds.levels)
		} else {
			fmt.Printf("Generating %s dataset (%d members)...\n", ds.name, ds.size)
			root = gen.Random(ds.size)
		}

		var buf bytes.Buffer
		if err := model.EncodeTree(&buf, root); err != nil {
			fail("encode %s: %v", ds.name, err)
		}
		outputPath := filepath.Join(outputDir, ds.name+".json")
		if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
			fail("write %s: %v", outputPath, err)
		}
		fmt.Printf("  Written %s (%d bytes)\n", outputPath, buf.Len())

		if !ds.db {
			continue
		}
		rows, err := model.Flatten(root)
		if err != nil {
			fail("flatten %s: %v", ds.name, err)
		}
		dbPath := filepath.Join(outputDir, ds.name+".db")
		_ = os.Remove(dbPath)
		if err := datasource.WriteSQLite(context.Background(), dbPath, rows); err != nil {
			fail("write %s: %v", dbPath, err)
		}
		fmt.Printf("  Written %s (%d rows)\n", dbPath, len(rows))
	}

	fmt.Println("\nDone! Sample trees created in", outputDir)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
