// Package gitdiff turns a pull request's diff into the ordered list of
// ruby source files the collector should scan.
package gitdiff

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	godiff "github.com/sourcegraph/go-diff/diff"
)

const gitTimeout = 30 * time.Second

// ChangedFiles parses a unified diff and returns absolute paths of the
// ruby source files it touches, in diff order, deduplicated. Deleted files
// are skipped: there is nothing left to scan.
func ChangedFiles(root string, diff []byte) ([]string, error) {
	if len(diff) == 0 {
		return nil, nil
	}
	fileDiffs, err := godiff.ParseMultiFileDiff(diff)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	var files []string
	seen := make(map[string]struct{})
	for _, fd := range fileDiffs {
		if fd.NewName == "/dev/null" || fd.NewName == "" {
			continue // deleted
		}
		rel := cleanPath(fd.NewName)
		if !isRubySource(rel) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
	}
	return files, nil
}

// FromGit asks git for the files changed against base and filters them the
// same way ChangedFiles does.
func FromGit(root, base string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", base)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --name-only %s: %w", base, err)
	}

	var files []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" || !isRubySource(line) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(line))
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
	}
	return files, nil
}

// cleanPath strips the a/ or b/ prefix git puts on diff paths.
func cleanPath(path string) string {
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

var skipPrefixes = []string{
	"spec/",
	"test/",
	"vendor/",
	"node_modules/",
	"db/migrate/",
}

var skipSuffixes = []string{
	"_spec.rb",
	"_test.rb",
}

// isRubySource reports whether a repo-relative path is a scannable ruby
// source file.
func isRubySource(path string) bool {
	if !strings.HasSuffix(path, ".rb") {
		return false
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return false
		}
	}
	return true
}
