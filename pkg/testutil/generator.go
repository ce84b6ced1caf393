// Package testutil provides test fixture generators for binary trees and a
// manually advanced clock. Generators are deterministic for a given seed.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/bintree/pkg/model"
)

// GeneratorConfig controls tree generation.
type GeneratorConfig struct {
	Seed         int64   // Random seed for determinism (0 = 42)
	MemberPrefix string  // Prefix for member ids (default: "M")
	EmailDomain  string  // Domain for generated emails (default: "example.com")
	ActiveRatio  float64 // Share of active members (default: 1)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:         42,
		MemberPrefix: "M",
		EmailDomain:  "example.com",
		ActiveRatio:  1,
	}
}

// Generator creates trees with various shapes. Node ids are assigned in
// creation order starting at 1.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	nextID int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.MemberPrefix == "" {
		cfg.MemberPrefix = "M"
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "example.com"
	}
	if cfg.ActiveRatio == 0 {
		cfg.ActiveRatio = 1
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Node creates a single childless member.
func (g *Generator) Node(pos model.Position) *model.TreeNode {
	g.nextID++
	id := g.nextID
	member := fmt.Sprintf("%s%04d", g.cfg.MemberPrefix, id)
	return &model.TreeNode{
		ID:       id,
		MemberID: member,
		Email:    strings.ToLower(member) + "@" + g.cfg.EmailDomain,
		Position: pos,
		IsActive: g.rng.Float64() < g.cfg.ActiveRatio,
		Name:     "Member " + member,
	}
}

// Spine builds a chain of size nodes that always descends on side.
func (g *Generator) Spine(size int, side model.Position) *model.TreeNode {
	if size <= 0 {
		return nil
	}
	root := g.Node("")
	cur := root
	for i := 1; i < size; i++ {
		child := g.Node(side)
		if side == model.PositionLeft {
			cur.LeftChild = child
		} else {
			cur.RightChild = child
		}
		cur = child
	}
	return root
}

// Complete builds a perfect binary tree with the given number of levels.
func (g *Generator) Complete(levels int) *model.TreeNode {
	if levels <= 0 {
		return nil
	}
	root := g.Node("")
	frontier := []*model.TreeNode{root}
	for lvl := 1; lvl < levels; lvl++ {
		var next []*model.TreeNode
		for _, n := range frontier {
			n.LeftChild = g.Node(model.PositionLeft)
			n.RightChild = g.Node(model.PositionRight)
			next = append(next, n.LeftChild, n.RightChild)
		}
		frontier = next
	}
	return root
}

// Random builds a tree of exactly size nodes by attaching each new node to a
// random free slot.
func (g *Generator) Random(size int) *model.TreeNode {
	if size <= 0 {
		return nil
	}
	root := g.Node("")
	type slot struct {
		parent *model.TreeNode
		side   model.Position
	}
	free := []slot{{root, model.PositionLeft}, {root, model.PositionRight}}
	for i := 1; i < size; i++ {
		k := g.rng.Intn(len(free))
		s := free[k]
		free[k] = free[len(free)-1]
		free = free[:len(free)-1]

		child := g.Node(s.side)
		if s.side == model.PositionLeft {
			s.parent.LeftChild = child
		} else {
			s.parent.RightChild = child
		}
		free = append(free, slot{child, model.PositionLeft}, slot{child, model.PositionRight})
	}
	return root
}

// OneLeftChild builds a root with a single left leaf.
func (g *Generator) OneLeftChild() *model.TreeNode {
	root := g.Node("")
	root.LeftChild = g.Node(model.PositionLeft)
	return root
}

// Quick helpers using the default generator.

// QuickRandom returns a random tree with size nodes.
func QuickRandom(size int) *model.TreeNode { return NewDefault().Random(size) }

// QuickComplete returns a perfect tree with the given levels.
func QuickComplete(levels int) *model.TreeNode { return NewDefault().Complete(levels) }

// TreeGen returns a rapid generator of trees with up to maxNodes nodes.
// Node ids are unique and member ids/emails are derived from them.
func TreeGen(maxNodes int) *rapid.Generator[*model.TreeNode] {
	return rapid.Custom(func(t *rapid.T) *model.TreeNode {
		size := rapid.IntRange(1, maxNodes).Draw(t, "size")
		seed := rapid.Int64Range(1, 1<<40).Draw(t, "seed")
		cfg := DefaultConfig()
		cfg.Seed = seed
		cfg.ActiveRatio = 0.7
		return New(cfg).Random(size)
	})
}
