package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/phobologic/sigscan/internal/logging"
	"github.com/phobologic/sigscan/internal/model"
	"github.com/phobologic/sigscan/internal/rubyast"
	"github.com/phobologic/sigscan/internal/visit"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLoader(t *testing.T) Loader {
	t.Helper()
	rules := visit.DefaultRules()
	return func(path string) *visit.FileFacts {
		source, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f := rubyast.Parse(source, path)
		if f == nil {
			return nil
		}
		defer f.Close()
		return visit.Visit(f, rules)
	}
}

func newResolver(t *testing.T, root string) *Resolver {
	t.Helper()
	return New(root, testLoader(t), logging.Discard())
}

func factsFor(t *testing.T, path string) *visit.FileFacts {
	t.Helper()
	facts := testLoader(t)(path)
	if facts == nil {
		t.Fatalf("could not load %s", path)
	}
	return facts
}

// --- name resolution ---

func TestResolveSameDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	parent := writeFile(t, root, "app/models/payment.rb", "class Payment\nend\n")
	from := writeFile(t, root, "app/models/invoice.rb", "class Invoice < Payment\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("Payment", from); got != parent {
		t.Errorf("Resolve = %q, want %q", got, parent)
	}
}

func TestResolveCamelCase(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	want := writeFile(t, root, "app/services/payment_processor.rb", "class PaymentProcessor\nend\n")
	from := writeFile(t, root, "app/services/checkout.rb", "class Checkout\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("PaymentProcessor", from); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveConcernsSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	want := writeFile(t, root, "app/models/concerns/taggable.rb", "module Taggable\nend\n")
	from := writeFile(t, root, "app/models/invoice.rb", "class Invoice\n  include Taggable\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("Taggable", from); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveRepoWideByNamespacePath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	want := writeFile(t, root, "lib/billing/ledger.rb", "module Billing\n  class Ledger\n  end\nend\n")
	from := writeFile(t, root, "app/services/checkout.rb", "class Checkout\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("Billing::Ledger", from); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveTextSearchFallback(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	// Defined in a file whose name does not follow convention.
	want := writeFile(t, root, "lib/odds_and_ends.rb", "class WeirdlyPlaced\nend\n")
	from := writeFile(t, root, "app/models/invoice.rb", "class Invoice\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("WeirdlyPlaced", from); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveSkipsSpecPaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "spec/models/payment_spec.rb", "class Payment\nend\n")
	want := writeFile(t, root, "app/models/payment.rb", "class Payment\nend\n")
	from := writeFile(t, root, "app/services/checkout.rb", "class Checkout\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("Payment", from); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveSpecOnlyDefinitionIsNothing(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "spec/support/fake.rb", "class OnlyInSpec\nend\n")
	from := writeFile(t, root, "app/models/invoice.rb", "class Invoice\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("OnlyInSpec", from); got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}

func TestResolveUnknownName(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "app/models/invoice.rb", "class Invoice\nend\n")

	r := newResolver(t, root)
	if got := r.Resolve("ActiveRecord::Base", from); got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}

func TestSnakePath(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Payment":           "payment",
		"PaymentProcessor":  "payment_processor",
		"HTTPClient":        "http_client",
		"Billing::Ledger":   "billing/ledger",
		"Api::V2::Endpoint": "api/v2/endpoint",
	}
	for in, want := range cases {
		if got := snakePath(in); got != want {
			t.Errorf("snakePath(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- ancestor traversal ---

func collect(t *testing.T, root, fromFile string) []model.AncestorNode {
	t.Helper()
	r := newResolver(t, root)
	facts := factsFor(t, fromFile)
	return r.CollectAncestors(facts, fromFile, 0, make(map[string]struct{}))
}

func TestCollectSuperclassChain(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	child := writeFile(t, root, "app/models/child.rb", "class Child < Parent\nend\n")
	writeFile(t, root, "app/models/parent.rb", "class Parent < Base\nend\n")
	writeFile(t, root, "app/models/base.rb", "class Base\nend\n")

	nodes := collect(t, root, child)
	if len(nodes) != 2 {
		t.Fatalf("nodes = %+v", nodes)
	}
	if nodes[0].Name != "Parent" || nodes[0].Depth != 1 || nodes[0].Kind != model.ClassAncestor {
		t.Errorf("nodes[0] = %+v", nodes[0])
	}
	if nodes[1].Name != "Base" || nodes[1].Depth != 2 {
		t.Errorf("nodes[1] = %+v", nodes[1])
	}
}

func TestCollectMutualInclusionTerminates(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "app/models/a_mod.rb", "module AMod\n  include BMod\nend\n")
	writeFile(t, root, "app/models/b_mod.rb", "module BMod\n  include AMod\nend\n")
	thing := writeFile(t, root, "app/models/thing.rb", "class Thing\n  include AMod\nend\n")

	nodes := collect(t, root, thing)

	seen := make(map[string]int)
	for _, n := range nodes {
		seen[n.Name]++
	}
	if seen["AMod"] != 1 || seen["BMod"] != 1 {
		t.Errorf("ancestor emission counts = %v", seen)
	}
}

func TestCollectDepthBound(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for i := 1; i <= 7; i++ {
		body := fmt.Sprintf("class C%d < C%d\nend\n", i, i+1)
		if i == 7 {
			body = "class C7\nend\n"
		}
		writeFile(t, root, fmt.Sprintf("app/models/c%d.rb", i), body)
	}

	nodes := collect(t, root, filepath.Join(root, "app/models/c1.rb"))
	if len(nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d: %+v", len(nodes), nodes)
	}
	for _, n := range nodes {
		if n.Depth > MaxDepth {
			t.Errorf("node %s emitted at depth %d", n.Name, n.Depth)
		}
	}
}

func TestCollectExtendNotWalked(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "app/models/class_helpers.rb", "module ClassHelpers\nend\n")
	thing := writeFile(t, root, "app/models/thing.rb", "class Thing\n  extend ClassHelpers\nend\n")

	if nodes := collect(t, root, thing); len(nodes) != 0 {
		t.Errorf("extend relations walked: %+v", nodes)
	}
}

func TestCollectMissingAncestorSkipped(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	thing := writeFile(t, root, "app/models/thing.rb", "class Thing < GemProvided\n  include AlsoMissing\nend\n")

	if nodes := collect(t, root, thing); len(nodes) != 0 {
		t.Errorf("unresolvable ancestors emitted: %+v", nodes)
	}
}

func TestCollectIncludeAndSuperclassMixed(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "app/models/parent.rb", "class Parent\nend\n")
	writeFile(t, root, "app/models/concerns/auditable.rb", "module Auditable\nend\n")
	child := writeFile(t, root, "app/models/child.rb", "class Child < Parent\n  include Auditable\nend\n")

	nodes := collect(t, root, child)
	if len(nodes) != 2 {
		t.Fatalf("nodes = %+v", nodes)
	}
	if nodes[0].Kind != model.ClassAncestor || nodes[1].Kind != model.ModuleAncestor {
		t.Errorf("kinds = %q, %q", nodes[0].Kind, nodes[1].Kind)
	}
}
