package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/sigscan/internal/config"
)

const configHeader = `# sigscan configuration.
# Allow-lists drive call-site detection; paths are repo-relative.
`

// runInit implements the sigscan init subcommand, which writes a default
// .sigscan.yml into the target repository.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sigscan init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		force  bool
		dryRun bool
	)
	fs.BoolVar(&force, "force", false, "overwrite an existing config file")
	fs.BoolVar(&dryRun, "dry-run", false, "print the config without writing it")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: sigscan init [flags] [repo-root]

Write a default %s.yml into the repository root (default ".").

Flags:
`, config.ConfigName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}

	content, err := defaultConfigYAML()
	if err != nil {
		return err
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, content)
		return nil
	}

	path := filepath.Join(root, config.ConfigName+".yml")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote %s\n", path)
	return nil
}

func defaultConfigYAML() (string, error) {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	return configHeader + string(data), nil
}
