// Package datasource loads binary referral trees from JSON documents and
// SQLite member tables, and detects which of several candidate sources is
// freshest.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/bintree/pkg/model"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database with a members table
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSON is a nested JSON tree document
	SourceTypeJSON SourceType = "json"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSON   = 50
)

// ErrNotFound is returned when the requested root member does not exist.
var ErrNotFound = model.ErrNotFound

// ErrUnsupported is returned for paths whose extension maps to no reader.
var ErrUnsupported = errors.New("unsupported tree source")

// Provider serves subtrees of one source. Implementations must not retain
// the returned tree; every call yields a fresh copy.
type Provider interface {
	// Tree returns the subtree rooted at rootID, limited to depth levels.
	// rootID 0 selects the source's top-level member; depth <= 0 is unlimited.
	// A missing rootID yields ErrNotFound; an empty source yields (nil, nil).
	// Member id 0 is reserved: a source holding one fails with
	// model.ErrReservedID.
	Tree(ctx context.Context, rootID, depth int) (*model.TreeNode, error)
	// Source describes where the tree comes from.
	Source() DataSource
	Close() error
}

// DataSource represents a potential source of tree data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// MemberCount is the number of members in the source (set during validation)
	MemberCount int `json:"member_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, members=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.MemberCount, status)
}

// TypeForPath maps a file extension to a source type.
func TypeForPath(path string) (SourceType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceTypeJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return SourceTypeSQLite, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupported)
}

// Detect stats path and returns its DataSource description.
func Detect(path string) (DataSource, error) {
	typ, err := TypeForPath(path)
	if err != nil {
		return DataSource{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, err
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("%s is a directory", path)
	}
	src := DataSource{Type: typ, Path: abs, ModTime: info.ModTime(), Size: info.Size()}
	if typ == SourceTypeSQLite {
		src.Priority = PrioritySQLite
	} else {
		src.Priority = PriorityJSON
	}
	return src, nil
}

// DiscoverSources lists every readable tree source directly inside dir,
// freshest first, preferring SQLite on equal timestamps. When validate is
// set, sources that fail validation are dropped.
func DiscoverSources(ctx context.Context, dir string, validate bool) ([]DataSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.Contains(name, ".backup") {
			continue
		}
		src, err := Detect(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if validate {
			if err := ValidateSource(ctx, &src); err != nil {
				continue
			}
		}
		sources = append(sources, src)
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

// ValidateSource opens the source, loads its full tree and records the
// member count. The source is marked invalid on any error.
func ValidateSource(ctx context.Context, src *DataSource) error {
	p, err := OpenSource(*src)
	if err == nil {
		var root *model.TreeNode
		root, err = p.Tree(ctx, 0, 0)
		p.Close()
		if err == nil {
			var stats model.TreeStats
			stats, err = model.Stats(root)
			src.MemberCount = stats.Nodes
		}
	}
	src.Valid = err == nil
	if err != nil {
		src.ValidationError = err.Error()
	}
	return err
}

// SelectBestSource returns the first valid source of an already sorted list.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, fmt.Errorf("no valid sources")
}

// Open detects the source type of path and opens a Provider for it.
func Open(path string) (Provider, error) {
	src, err := Detect(path)
	if err != nil {
		return nil, err
	}
	return OpenSource(src)
}

// OpenSource opens a Provider for an already detected source.
func OpenSource(src DataSource) (Provider, error) {
	switch src.Type {
	case SourceTypeSQLite:
		return NewSQLiteProvider(src)
	case SourceTypeJSON:
		return NewJSONProvider(src), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}
