// Package collect orchestrates one signal-collection run: parse and visit
// each changed file, walk its ancestors, resolve metric constants and
// deduplicate the combined output.
package collect

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phobologic/sigscan/internal/metricdefs"
	"github.com/phobologic/sigscan/internal/model"
	"github.com/phobologic/sigscan/internal/resolve"
	"github.com/phobologic/sigscan/internal/rubyast"
	"github.com/phobologic/sigscan/internal/visit"
)

// Result is the collector output, consumed read-only by renderers.
type Result struct {
	Signals      []model.Signal            `json:"signals"`
	DynamicCalls []model.DynamicMetricCall `json:"dynamic_calls"`
}

// Collector runs one collection over a set of changed files. Construct a
// fresh collector per run; its caches must not survive across runs.
type Collector struct {
	root     string
	rules    *visit.Rules
	defPaths []string
	logger   *slog.Logger
	facts    map[string]*visit.FileFacts
}

// New returns a collector rooted at the repository root. defPaths lists
// repo-relative metric-definition locations to seed the constant table.
func New(root string, rules *visit.Rules, defPaths []string, logger *slog.Logger) *Collector {
	return &Collector{
		root:     root,
		rules:    rules,
		defPaths: defPaths,
		logger:   logger,
		facts:    make(map[string]*visit.FileFacts),
	}
}

// Run collects signals for the given ordered list of changed files.
// Unreadable or unparseable files contribute nothing; the run continues.
func (c *Collector) Run(files []string) *Result {
	table := c.buildTable(files)
	resolver := resolve.New(c.root, c.loadFacts, c.logger)

	res := &Result{}
	for _, f := range files {
		facts := c.loadFacts(f)
		if facts == nil {
			c.logger.Warn("file skipped", "path", f)
			continue
		}
		c.fold(res, facts, 0, table)

		// One visited set per top-level changed file, shared across the
		// whole recursive walk below it.
		visited := make(map[string]struct{})
		for _, node := range resolver.CollectAncestors(facts, f, 0, visited) {
			ancestor := c.loadFacts(node.File)
			if ancestor == nil {
				continue
			}
			c.fold(res, ancestor, node.Depth, table)
		}
	}

	res.Signals = dedupe(res.Signals)
	c.logger.Debug("collection finished",
		"files", len(files), "signals", len(res.Signals), "dynamic", len(res.DynamicCalls))
	return res
}

// buildTable seeds the constant table from the configured definition
// locations plus every changed file, so in-diff registrations resolve too.
func (c *Collector) buildTable(files []string) *metricdefs.Table {
	table := metricdefs.NewTable(c.rules.MetricClients)
	seen := make(map[string]struct{})

	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		source, err := os.ReadFile(path)
		if err != nil {
			return
		}
		table.AddSource(source, path)
	}

	for _, rel := range c.defPaths {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.root, rel)
		}
		add(path)
	}
	for _, f := range files {
		add(f)
	}
	return table
}

// fold appends one file's facts to the running result at the given depth,
// resolving constant-receiver calls through the table.
func (c *Collector) fold(res *Result, facts *visit.FileFacts, depth int, table *metricdefs.Table) {
	for _, s := range facts.Signals {
		s.InheritanceDepth = depth
		res.Signals = append(res.Signals, s)
	}
	for _, call := range facts.ConstantCalls {
		entry, ok := table.Resolve(call.Namespace, call.ConstantPath)
		if !ok {
			continue
		}
		res.Signals = append(res.Signals, model.Signal{
			Type:             entry.Type,
			Name:             entry.Name,
			SourceFile:       call.File,
			DefiningClass:    call.DefiningClass,
			InheritanceDepth: depth,
			Line:             call.Line,
		})
	}
	res.DynamicCalls = append(res.DynamicCalls, facts.DynamicCalls...)
}

// loadFacts reads, parses and visits a file, caching per-path results for
// the run. Failures cache as nil so repeated ancestors are not re-read.
func (c *Collector) loadFacts(path string) *visit.FileFacts {
	if facts, ok := c.facts[path]; ok {
		return facts
	}
	var facts *visit.FileFacts
	if source, err := os.ReadFile(path); err == nil {
		if f := rubyast.Parse(source, path); f != nil {
			facts = visit.Visit(f, c.rules)
			f.Close()
		} else {
			c.logger.Debug("parse failed", "path", path)
		}
	}
	c.facts[path] = facts
	return facts
}

// dedupe drops later duplicates by signal key, keeping first occurrences in
// their original order.
func dedupe(signals []model.Signal) []model.Signal {
	seen := make(map[string]struct{}, len(signals))
	out := signals[:0]
	for _, s := range signals {
		key := s.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
