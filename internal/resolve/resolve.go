// Package resolve maps class/module names to on-disk files and walks the
// resulting ancestor graph with depth bounding and cycle protection.
package resolve

import (
	"log/slog"

	"github.com/phobologic/sigscan/internal/model"
	"github.com/phobologic/sigscan/internal/visit"
)

// MaxDepth bounds the ancestor walk. Pathological inheritance chains stop
// here rather than dominating run time.
const MaxDepth = 5

// Loader parses and visits a file, returning nil when the file is missing
// or fails to parse.
type Loader func(path string) *visit.FileFacts

// Resolver resolves ancestor names to files. The memoization cache is
// keyed by bare name only, ignoring the originating file: two same-named
// classes in different subtrees alias to whichever resolves first.
type Resolver struct {
	strategies []Strategy
	cache      map[string]string
	load       Loader
	logger     *slog.Logger
}

// New builds a resolver for one collection run. Construct a fresh resolver
// per run; the cache must not outlive it.
func New(root string, load Loader, logger *slog.Logger) *Resolver {
	index := newRepoIndex(root)
	return &Resolver{
		strategies: []Strategy{
			&conventionStrategy{root: root, index: index},
			&textSearchStrategy{root: root, index: index},
		},
		cache:  make(map[string]string),
		load:   load,
		logger: logger,
	}
}

// Resolve returns the file defining name, or "" when no strategy finds one.
// Unresolvable names are common (framework classes, gems) and not an error.
func (r *Resolver) Resolve(name, fromFile string) string {
	if path, ok := r.cache[name]; ok {
		return path
	}
	var path string
	for _, s := range r.strategies {
		if path = s.Resolve(name, fromFile); path != "" {
			break
		}
	}
	r.cache[name] = path
	if path == "" {
		r.logger.Debug("ancestor unresolved", "name", name, "from", fromFile)
	}
	return path
}

// CollectAncestors walks the ancestor graph of one file's structure.
// The visited set is shared down the entire call tree, which is what makes
// mutual module inclusion terminate; it must stay private to one top-level
// changed file. Superclasses and include/prepend modules are walked;
// extend relations are not followed across files.
func (r *Resolver) CollectAncestors(facts *visit.FileFacts, fromFile string, depth int, visited map[string]struct{}) []model.AncestorNode {
	if depth >= MaxDepth {
		return nil
	}

	var nodes []model.AncestorNode
	for _, cs := range facts.Classes {
		if cs.Parent == "" {
			continue
		}
		nodes = append(nodes, r.walkRef(cs.Parent, model.ClassAncestor, fromFile, depth, visited)...)
	}
	for _, rel := range facts.Relations {
		if rel.Kind == model.Extend {
			continue
		}
		nodes = append(nodes, r.walkRef(rel.Module, model.ModuleAncestor, fromFile, depth, visited)...)
	}
	return nodes
}

func (r *Resolver) walkRef(name string, kind model.AncestorKind, fromFile string, depth int, visited map[string]struct{}) []model.AncestorNode {
	if _, seen := visited[name]; seen {
		return nil
	}
	path := r.Resolve(name, fromFile)
	if path == "" {
		return nil
	}
	visited[name] = struct{}{}

	nodes := []model.AncestorNode{{Name: name, File: path, Depth: depth + 1, Kind: kind}}
	if facts := r.load(path); facts != nil {
		nodes = append(nodes, r.CollectAncestors(facts, path, depth+1, visited)...)
	}
	return nodes
}
