package resolve

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// Strategy resolves a class/module name to an on-disk file. Returns "" when
// the strategy has no answer. Strategies are tried in order; the first
// non-empty result wins.
type Strategy interface {
	Resolve(name, fromFile string) string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"vendor":       {},
	"tmp":          {},
	"log":          {},
	"coverage":     {},
}

// repoIndex is a lazily-built, gitignore-aware listing of ruby files under
// the repository root, shared by the strategies.
type repoIndex struct {
	root  string
	built bool
	files []string // relative paths, sorted
}

func newRepoIndex(root string) *repoIndex {
	return &repoIndex{root: root}
}

func (ri *repoIndex) rubyFiles() []string {
	if ri.built {
		return ri.files
	}
	ri.built = true

	gi := loadGitignore(ri.root)

	_ = filepath.WalkDir(ri.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		name := d.Name()
		if d.IsDir() {
			if path == ri.root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".rb") {
			return nil
		}
		rel, err := filepath.Rel(ri.root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		ri.files = append(ri.files, rel)
		return nil
	})

	sort.Strings(ri.files)
	return ri.files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// isTestPath reports whether a path belongs to spec/test trees, which are
// excluded from ancestor resolution.
func isTestPath(path string) bool {
	norm := filepath.ToSlash(path)
	for _, part := range strings.Split(norm, "/") {
		if part == "spec" || part == "test" {
			return true
		}
	}
	return strings.HasSuffix(norm, "_spec.rb") || strings.HasSuffix(norm, "_test.rb")
}

// conventionStrategy converts Name::Space to an expected relative path
// (:: to /, CamelCase to snake_case) and probes a fixed candidate list.
type conventionStrategy struct {
	root  string
	index *repoIndex
}

func (s *conventionStrategy) Resolve(name, fromFile string) string {
	rel := snakePath(name) + ".rb"
	base := filepath.Base(rel)
	dir := filepath.Dir(fromFile)

	candidates := []string{
		filepath.Join(dir, base),
		filepath.Join(dir, "..", base),
		filepath.Join(dir, "concerns", base),
	}
	for _, c := range candidates {
		if isTestPath(c) {
			continue
		}
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return filepath.Clean(c)
		}
	}

	// Repo-wide probe under app/ and lib/.
	suffix := "/" + filepath.ToSlash(rel)
	for _, f := range s.index.rubyFiles() {
		norm := filepath.ToSlash(f)
		if !strings.HasPrefix(norm, "app/") && !strings.HasPrefix(norm, "lib/") {
			continue
		}
		if isTestPath(norm) {
			continue
		}
		if norm == filepath.ToSlash(rel) || strings.HasSuffix(norm, suffix) {
			return filepath.Join(s.root, f)
		}
	}
	return ""
}

// snakePath converts A::BCamelCase to a/b_camel_case.
func snakePath(name string) string {
	parts := strings.Split(name, "::")
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, "/")
}

var (
	acronymRe = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	camelRe   = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

func snakeCase(s string) string {
	s = acronymRe.ReplaceAllString(s, "${1}_${2}")
	s = camelRe.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}

// textSearchStrategy is the fallback: a repository-wide search for a class
// or module definition line. It shells out to grep when available and
// degrades to a pure-Go scan otherwise.
type textSearchStrategy struct {
	root  string
	index *repoIndex
}

const searchTimeout = 10 * time.Second

func (s *textSearchStrategy) Resolve(name, fromFile string) string {
	pattern := definitionPattern(name)

	if matches, ok := s.grep(pattern); ok {
		return s.firstMatch(matches)
	}
	return s.firstMatch(s.scan(pattern))
}

func definitionPattern(name string) string {
	return `^[[:space:]]*(class|module)[[:space:]]+([A-Z][A-Za-z0-9_]*::)*` + name + `([^A-Za-z0-9_]|$)`
}

func (s *textSearchStrategy) grep(pattern string) ([]string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "grep", "-rlE", "--include=*.rb", pattern, ".")
	cmd.Dir = s.root
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return nil, true // ran fine, no matches
		}
		return nil, false // grep unavailable or failed, use the fallback
	}

	var matches []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		matches = append(matches, filepath.Join(s.root, strings.TrimPrefix(line, "./")))
	}
	return matches, true
}

func (s *textSearchStrategy) scan(pattern string) []string {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil
	}
	var matches []string
	for _, f := range s.index.rubyFiles() {
		path := filepath.Join(s.root, f)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if re.Match(data) {
			matches = append(matches, path)
		}
	}
	return matches
}

func (s *textSearchStrategy) firstMatch(matches []string) string {
	var kept []string
	for _, m := range matches {
		rel, err := filepath.Rel(s.root, m)
		if err != nil {
			rel = m
		}
		if isTestPath(rel) {
			continue
		}
		kept = append(kept, m)
	}
	sort.Strings(kept)
	if len(kept) == 0 {
		return ""
	}
	return kept[0]
}
