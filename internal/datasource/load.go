package datasource

import (
	"context"
	"fmt"
	"os"

	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// JSONProvider serves a nested JSON tree document. The file is re-read on
// every call so edits are picked up without reopening.
type JSONProvider struct {
	src DataSource
}

// NewJSONProvider creates a provider for a JSON source.
func NewJSONProvider(src DataSource) *JSONProvider {
	return &JSONProvider{src: src}
}

// Source implements Provider.
func (p *JSONProvider) Source() DataSource { return p.src }

// Close implements Provider.
func (p *JSONProvider) Close() error { return nil }

// Tree implements Provider.
func (p *JSONProvider) Tree(ctx context.Context, rootID, depth int) (*model.TreeNode, error) {
	defer metrics.Timer(metrics.TreeLoad)()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(p.src.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := model.ParseTree(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.src.Path, err)
	}
	if root == nil {
		if rootID != 0 {
			return nil, fmt.Errorf("root %d: %w", rootID, ErrNotFound)
		}
		return nil, nil
	}
	if rootID != 0 {
		sub := model.Find(root, rootID)
		if sub == nil {
			return nil, fmt.Errorf("root %d: %w", rootID, ErrNotFound)
		}
		root = sub
	}
	return model.Prune(root, depth), nil
}

// Load opens path, fetches one subtree and closes the provider.
func Load(ctx context.Context, path string, rootID, depth int) (*model.TreeNode, error) {
	p, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Tree(ctx, rootID, depth)
}
