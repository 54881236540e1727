// sigscan statically scans ruby files changed in a pull request for
// observability signals: structured log calls and metric calls, including
// ones inherited from superclasses and mixed-in modules.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/sigscan/internal/collect"
	"github.com/phobologic/sigscan/internal/config"
	"github.com/phobologic/sigscan/internal/gitdiff"
	"github.com/phobologic/sigscan/internal/logging"
	"github.com/phobologic/sigscan/internal/report"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("sigscan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		diffPath    string
		base        string
		filesCSV    string
		format      string
		cfgPath     string
		verbose     bool
		debugFlag   bool
		quiet       bool
		showVersion bool
	)

	fs.StringVar(&diffPath, "diff", "", "unified diff file to scan (\"-\" for stdin)")
	fs.StringVar(&base, "base", "", "git ref to diff against (default HEAD)")
	fs.StringVar(&filesCSV, "files", "", "comma-separated ruby files to scan (bypasses diff discovery)")
	fs.StringVar(&format, "format", "", "output format: text or json")
	fs.StringVar(&cfgPath, "config", "", "config file path (default <root>/.sigscan.yml)")
	fs.BoolVar(&verbose, "v", false, "verbose diagnostics")
	fs.BoolVar(&debugFlag, "debug", false, "debug diagnostics")
	fs.BoolVar(&quiet, "q", false, "suppress diagnostics")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "sigscan %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	cfg, err := config.Load(root, cfgPath)
	if err != nil {
		return err
	}
	if format == "" {
		format = cfg.Format
	}

	level := logging.LevelFromString(cfg.LogLevel)
	if verbose || debugFlag || quiet {
		verbosity := 0
		if verbose {
			verbosity = 1
		}
		if debugFlag {
			verbosity = 2
		}
		level = logging.LevelFromVerbosity(verbosity, quiet)
	}
	logger := logging.New(stderr, level)

	files, err := changedFiles(root, filesCSV, diffPath, base, stdin)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("no changed ruby files to scan")
	}

	collector := collect.New(root, cfg.Rules(), cfg.MetricDefinitionPaths, logger)
	res := collector.Run(files)

	out, err := report.Encode(res, format)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, out)
	return nil
}

// changedFiles picks the file source: an explicit list, a unified diff, or
// a git invocation against the base ref.
func changedFiles(root, filesCSV, diffPath, base string, stdin io.Reader) ([]string, error) {
	if filesCSV != "" {
		var files []string
		for _, f := range strings.Split(filesCSV, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if !filepath.IsAbs(f) {
				f = filepath.Join(root, f)
			}
			files = append(files, f)
		}
		return files, nil
	}

	if diffPath != "" {
		var (
			data []byte
			err  error
		)
		if diffPath == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(diffPath)
		}
		if err != nil {
			return nil, fmt.Errorf("reading diff: %w", err)
		}
		return gitdiff.ChangedFiles(root, data)
	}

	if base == "" {
		base = "HEAD"
	}
	return gitdiff.FromGit(root, base)
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-diff": true, "--diff": true,
	"-base": true, "--base": true,
	"-files": true, "--files": true,
	"-format": true, "--format": true,
	"-config": true, "--config": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
