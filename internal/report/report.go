// Package report renders collector output for the CLI. Renderers treat
// the signal and dynamic-call lists as read-only.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phobologic/sigscan/internal/collect"
	"github.com/phobologic/sigscan/internal/model"
)

// Formats supported by Encode.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Encode renders the result in the named format.
func Encode(res *collect.Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return EncodeJSON(res)
	case FormatText:
		return EncodeText(res), nil
	}
	return "", fmt.Errorf("unsupported format %q", format)
}

// EncodeJSON renders the result as indented JSON. List order matches the
// collector's stable output order.
func EncodeJSON(res *collect.Result) (string, error) {
	out := *res
	if out.Signals == nil {
		out.Signals = []model.Signal{}
	}
	if out.DynamicCalls == nil {
		out.DynamicCalls = []model.DynamicMetricCall{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	return string(data), nil
}

// EncodeText renders a human summary grouped by source file, files in
// first-seen order.
func EncodeText(res *collect.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d signal(s), %d dynamic metric call(s)\n", len(res.Signals), len(res.DynamicCalls))

	var files []string
	byFile := make(map[string][]model.Signal)
	for _, s := range res.Signals {
		if _, ok := byFile[s.SourceFile]; !ok {
			files = append(files, s.SourceFile)
		}
		byFile[s.SourceFile] = append(byFile[s.SourceFile], s)
	}

	for _, file := range files {
		fmt.Fprintf(&b, "\n%s\n", file)
		for _, s := range byFile[file] {
			fmt.Fprintf(&b, "  %-9s %-40s %s", s.Type, displayName(s.Name), s.DefiningClass)
			if s.Type == model.Log {
				fmt.Fprintf(&b, " level=%s", s.Level)
				if s.Interpolated {
					b.WriteString(" interpolated")
				}
			}
			if s.InheritanceDepth > 0 {
				fmt.Fprintf(&b, " depth=%d", s.InheritanceDepth)
			}
			fmt.Fprintf(&b, " line=%d\n", s.Line)
		}
	}

	if len(res.DynamicCalls) > 0 {
		b.WriteString("\ndynamic metric calls (name not statically resolvable):\n")
		for _, d := range res.DynamicCalls {
			fmt.Fprintf(&b, "  %s %s %s:%d (%s)\n", d.Receiver, d.MetricType, d.File, d.Line, d.DefiningClass)
		}
	}
	return b.String()
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
