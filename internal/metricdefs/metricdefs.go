// Package metricdefs scans metric-definition files for constant
// registrations like REQUEST_TOTAL = Prometheus.counter("requests_total")
// and resolves constant-receiver call sites against them.
package metricdefs

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/sigscan/internal/model"
	"github.com/phobologic/sigscan/internal/rubyast"
)

var factoryTypes = map[string]model.SignalType{
	"counter":   model.Counter,
	"gauge":     model.Gauge,
	"histogram": model.Histogram,
	"summary":   model.Summary,
}

// Table maps fully-qualified constant names to their registered metric.
// Built once per collection run.
type Table struct {
	clients map[string]struct{}
	entries map[string]model.MetricConstant
}

// NewTable returns an empty table recognizing the given client constants.
func NewTable(metricClients map[string]struct{}) *Table {
	return &Table{
		clients: metricClients,
		entries: make(map[string]model.MetricConstant),
	}
}

// AddSource scans one file's contents for metric constant assignments.
// Unparseable sources contribute nothing.
func (t *Table) AddSource(source []byte, path string) {
	f := rubyast.Parse(source, path)
	if f == nil {
		return
	}
	defer f.Close()
	t.scan(f, f.Root(), nil)
}

// scan walks the tree tracking the lexical namespace, recording every
// module/class-scope constant assignment whose right-hand side is an
// allow-listed factory call with a literal name.
func (t *Table) scan(f *rubyast.File, n *sitter.Node, stack []string) {
	switch n.Type() {
	case "class", "module":
		name := namespaceName(f, n)
		if name != "" {
			stack = append(stack, name)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			t.scan(f, n.Child(i), stack)
		}
	case "assignment":
		t.capture(f, n, stack)
	default:
		for i := 0; i < int(n.ChildCount()); i++ {
			t.scan(f, n.Child(i), stack)
		}
	}
}

func (t *Table) capture(f *rubyast.File, n *sitter.Node, stack []string) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || !rubyast.IsConstantPath(left) {
		return
	}

	name, metricType, ok := t.factoryCall(f, right)
	if !ok {
		return
	}

	// Fold the lexical namespace with any explicit namespace on the
	// assignment target.
	parts := append(append([]string{}, stack...), f.Text(left))
	t.entries[strings.Join(parts, "::")] = model.MetricConstant{Name: name, Type: metricType}
}

// factoryCall matches Client.factory("name") and returns the literal name
// and inferred type.
func (t *Table) factoryCall(f *rubyast.File, n *sitter.Node) (string, model.SignalType, bool) {
	if n.Type() != "call" {
		return "", "", false
	}
	receiver := n.ChildByFieldName("receiver")
	methodNode := n.ChildByFieldName("method")
	if receiver == nil || methodNode == nil || receiver.Type() != "constant" {
		return "", "", false
	}
	if _, ok := t.clients[f.Text(receiver)]; !ok {
		return "", "", false
	}
	metricType, ok := factoryTypes[strings.TrimPrefix(f.Text(methodNode), "register_")]
	if !ok {
		return "", "", false
	}

	args := rubyast.Arguments(n)
	if len(args) == 0 {
		return "", "", false
	}
	if s, ok := rubyast.StringLiteral(args[0], f.Source); ok {
		return s, metricType, true
	}
	if sym, ok := rubyast.SymbolLiteral(args[0], f.Source); ok {
		return sym, metricType, true
	}
	return "", "", false
}

// Resolve looks up a constant path as seen from the given lexical
// namespace, trying the most deeply nested qualification first, the way
// ruby constant lookup does. An unregistered constant resolves to nothing,
// never an error.
func (t *Table) Resolve(namespace, constantPath string) (model.MetricConstant, bool) {
	if len(t.entries) == 0 {
		return model.MetricConstant{}, false
	}
	parts := strings.Split(namespace, "::")
	if namespace == "" {
		parts = nil
	}
	for i := len(parts); i >= 0; i-- {
		key := strings.Join(append(append([]string{}, parts[:i]...), constantPath), "::")
		if entry, ok := t.entries[key]; ok {
			return entry, true
		}
	}
	return model.MetricConstant{}, false
}

// Len reports the number of registered constants.
func (t *Table) Len() int {
	return len(t.entries)
}

func namespaceName(f *rubyast.File, n *sitter.Node) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if rubyast.IsConstantPath(child) {
			return f.Text(child)
		}
	}
	return ""
}
