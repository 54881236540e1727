// Package visit extracts observability signals and structural facts from a
// parsed Ruby file in a single depth-first pass.
package visit

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/sigscan/internal/model"
	"github.com/phobologic/sigscan/internal/rubyast"
)

// Rules holds the allow-lists that drive call-site detection.
type Rules struct {
	// LoggerNamespaces are constants a logger call may be chained off,
	// e.g. Rails in Rails.logger.info.
	LoggerNamespaces map[string]struct{}
	// MetricClients are constants recognized as metric client receivers.
	MetricClients map[string]struct{}
	// LoggingTraits are module names whose inclusion makes bare log(...)
	// calls count as structured log calls.
	LoggingTraits map[string]struct{}
}

// DefaultRules returns the stock allow-lists.
func DefaultRules() *Rules {
	return &Rules{
		LoggerNamespaces: toSet([]string{"Rails", "App", "Application"}),
		MetricClients:    toSet([]string{"StatsD", "Statsd", "Prometheus", "Metrics", "Datadog"}),
		LoggingTraits:    toSet([]string{"Loggable", "StructuredLogging"}),
	}
}

// NewRules builds a rule set from explicit lists, falling back to the
// defaults for any empty list.
func NewRules(loggerNamespaces, metricClients, loggingTraits []string) *Rules {
	r := DefaultRules()
	if len(loggerNamespaces) > 0 {
		r.LoggerNamespaces = toSet(loggerNamespaces)
	}
	if len(metricClients) > 0 {
		r.MetricClients = toSet(metricClients)
	}
	if len(loggingTraits) > 0 {
		r.LoggingTraits = toSet(loggingTraits)
	}
	return r
}

func toSet(names []string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// FileFacts is everything one visit extracts from one file.
type FileFacts struct {
	Classes       []model.ClassStructure
	Relations     []model.ModuleRelation
	Signals       []model.Signal
	DynamicCalls  []model.DynamicMetricCall
	ConstantCalls []model.ConstantCall
}

// levelNames are the canonical severities in ruby Logger ordering, so the
// index doubles as the numeric severity.
var levelNames = []string{"debug", "info", "warn", "error", "fatal", "unknown"}

var levelSet = toSet(levelNames)

var actionTypes = map[string]model.SignalType{
	"increment": model.Counter,
	"incr":      model.Counter,
	"decrement": model.Counter,
	"decr":      model.Counter,
	"set":       model.Gauge,
	"observe":   model.Histogram,
	"time":      model.Histogram,
	"timing":    model.Histogram,
}

var factoryTypes = map[string]model.SignalType{
	"counter":   model.Counter,
	"gauge":     model.Gauge,
	"histogram": model.Histogram,
	"summary":   model.Summary,
}

// Visit walks the file's AST once and returns the extracted facts.
func Visit(f *rubyast.File, rules *Rules) *FileFacts {
	v := &visitor{
		file:   f,
		rules:  rules,
		facts:  &FileFacts{},
		traits: make(map[string]struct{}),
	}
	v.walk(f.Root())
	return v.facts
}

type visitor struct {
	file  *rubyast.File
	rules *Rules
	facts *FileFacts
	stack []string
	// traits holds qualified names of classes/modules that mix in a
	// recognized structured-logging trait.
	traits map[string]struct{}
}

func (v *visitor) walk(n *sitter.Node) {
	switch n.Type() {
	case "class":
		v.walkNamespace(n, true)
	case "module":
		v.walkNamespace(n, false)
	case "call":
		v.handleCall(n)
		v.walkChildren(n) // detections nest
	case "begin":
		v.walkChildren(n)
	default:
		v.walkChildren(n)
	}
}

func (v *visitor) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		v.walk(n.Child(i))
	}
}

// walkNamespace handles a class or module node: captures its structure,
// pushes one namespace frame (inline A::B::C names fold into that single
// frame) and recurses into the body.
func (v *visitor) walkNamespace(n *sitter.Node, isClass bool) {
	name := v.namespaceName(n)
	if name == "" {
		v.walkChildren(n)
		return
	}

	var parent string
	if isClass {
		parent = v.superclassName(n)
	}

	v.stack = append(v.stack, name)
	v.facts.Classes = append(v.facts.Classes, model.ClassStructure{
		QualifiedName: v.qualified(),
		Parent:        parent,
		File:          v.file.Path,
	})
	v.walkChildren(n)
	v.stack = v.stack[:len(v.stack)-1]
}

// namespaceName returns the declared name of a class/module node.
func (v *visitor) namespaceName(n *sitter.Node) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if rubyast.IsConstantPath(child) {
			return v.file.Text(child)
		}
	}
	return ""
}

// superclassName returns the superclass reference of a class node, "" if none.
func (v *visitor) superclassName(n *sitter.Node) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != "superclass" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			sc := child.Child(j)
			if rubyast.IsConstantPath(sc) {
				return v.file.Text(sc)
			}
		}
	}
	return ""
}

func (v *visitor) qualified() string {
	return strings.Join(v.stack, "::")
}

func (v *visitor) definingClass() string {
	if len(v.stack) == 0 {
		return model.TopLevel
	}
	return v.qualified()
}

func (v *visitor) handleCall(n *sitter.Node) {
	methodNode := n.ChildByFieldName("method")
	if methodNode == nil {
		return
	}
	method := v.file.Text(methodNode)
	receiver := n.ChildByFieldName("receiver")
	args := rubyast.Arguments(n)

	if receiver == nil {
		switch method {
		case "include", "prepend", "extend":
			v.captureRelation(model.RelationKind(method), args)
			return
		case "log":
			v.handleTraitLog(n, args)
			return
		}
		return
	}

	if v.handleLogCall(n, method, receiver, args) {
		return
	}
	v.handleMetricCall(n, method, receiver, args)
}

// captureRelation records one relation entry per constant argument of a
// zero-receiver include/prepend/extend statement.
func (v *visitor) captureRelation(kind model.RelationKind, args []*sitter.Node) {
	including := v.definingClass()
	for _, arg := range args {
		if !rubyast.IsConstantPath(arg) {
			continue
		}
		name := v.file.Text(arg)
		v.facts.Relations = append(v.facts.Relations, model.ModuleRelation{
			Module:         name,
			IncludingClass: including,
			Kind:           kind,
			File:           v.file.Path,
		})
		if _, ok := v.rules.LoggingTraits[name]; ok {
			v.traits[including] = struct{}{}
		}
	}
}

// handleLogCall classifies logger-receiver log calls. Returns true when the
// call was recognized as a log call.
func (v *visitor) handleLogCall(n *sitter.Node, method string, receiver *sitter.Node, args []*sitter.Node) bool {
	if !v.isLoggerReceiver(receiver) {
		return false
	}

	level := method
	nameArg := firstArg(args)
	if method == "add" || method == "log" {
		// Generic form: first argument must carry an explicit severity.
		sev, ok := v.severity(firstArg(args))
		if !ok {
			return false
		}
		level = sev
		nameArg = secondArg(args)
	} else if _, ok := levelSet[method]; !ok {
		return false
	}

	v.emitLog(n, level, nameArg)
	return true
}

// handleTraitLog classifies a bare log(...) call inside a class/module that
// mixes in a structured-logging trait. The level defaults to info unless
// the first argument is itself a severity symbol.
func (v *visitor) handleTraitLog(n *sitter.Node, args []*sitter.Node) {
	if _, ok := v.traits[v.definingClass()]; !ok {
		return
	}
	level := "info"
	nameArg := firstArg(args)
	if sym, ok := symbolSeverity(firstArg(args), v.file.Source); ok {
		level = sym
		nameArg = secondArg(args)
	}
	v.emitLog(n, level, nameArg)
}

// isLoggerReceiver implements the receiver allow-list: a call or identifier
// named logger (optionally chained off an allow-listed namespace constant),
// or any variable whose identifier contains "logger".
func (v *visitor) isLoggerReceiver(receiver *sitter.Node) bool {
	switch receiver.Type() {
	case "identifier", "instance_variable", "class_variable", "global_variable":
		return strings.Contains(v.file.Text(receiver), "logger")
	case "call":
		methodNode := receiver.ChildByFieldName("method")
		if methodNode == nil || v.file.Text(methodNode) != "logger" {
			return false
		}
		inner := receiver.ChildByFieldName("receiver")
		if inner == nil {
			return true
		}
		if inner.Type() != "constant" {
			return false
		}
		_, ok := v.rules.LoggerNamespaces[v.file.Text(inner)]
		return ok
	}
	return false
}

// severity recognizes an explicit severity argument: a symbol, a 0-5
// integer, or a named constant (INFO, Logger::INFO).
func (v *visitor) severity(arg *sitter.Node) (string, bool) {
	if arg == nil {
		return "", false
	}
	if sym, ok := symbolSeverity(arg, v.file.Source); ok {
		return sym, true
	}
	switch arg.Type() {
	case "integer":
		text := v.file.Text(arg)
		if len(text) == 1 && text[0] >= '0' && text[0] <= '5' {
			return levelNames[text[0]-'0'], true
		}
	case "constant", "scope_resolution":
		text := v.file.Text(arg)
		if i := strings.LastIndex(text, "::"); i >= 0 {
			text = text[i+2:]
		}
		lower := strings.ToLower(text)
		if _, ok := levelSet[lower]; ok {
			return lower, true
		}
	}
	return "", false
}

func symbolSeverity(arg *sitter.Node, source []byte) (string, bool) {
	if arg == nil {
		return "", false
	}
	sym, ok := rubyast.SymbolLiteral(arg, source)
	if !ok {
		return "", false
	}
	if _, ok := levelSet[sym]; !ok {
		return "", false
	}
	return sym, true
}

// emitLog derives the event name from the message argument and records the
// signal. The interpolated flag is set iff the argument is an interpolated
// string, whether or not a name could be derived.
func (v *visitor) emitLog(n *sitter.Node, level string, nameArg *sitter.Node) {
	var name string
	var interpolated bool
	if nameArg != nil {
		switch {
		case rubyast.IsInterpolated(nameArg):
			interpolated = true
			name = Slug(rubyast.LiteralFragments(nameArg, v.file.Source))
		default:
			if s, ok := rubyast.StringLiteral(nameArg, v.file.Source); ok {
				name = Slug(s)
			} else if sym, ok := rubyast.SymbolLiteral(nameArg, v.file.Source); ok {
				name = sym
			}
		}
	}
	v.facts.Signals = append(v.facts.Signals, model.Signal{
		Type:          model.Log,
		Name:          name,
		SourceFile:    v.file.Path,
		DefiningClass: v.definingClass(),
		Line:          rubyast.Line(n),
		Level:         level,
		Interpolated:  interpolated,
	})
}

// handleMetricCall classifies direct, chained and constant-receiver metric
// calls. Factory methods on the direct shape are deliberately not metric
// calls by themselves.
func (v *visitor) handleMetricCall(n *sitter.Node, method string, receiver *sitter.Node, args []*sitter.Node) {
	metricType, isAction := actionTypes[method]
	if !isAction {
		return
	}

	switch receiver.Type() {
	case "constant":
		name := v.file.Text(receiver)
		if _, ok := v.rules.MetricClients[name]; ok {
			v.emitMetric(n, name, metricType, firstArg(args))
			return
		}
		v.captureConstantCall(n, name, method)
	case "scope_resolution":
		v.captureConstantCall(n, v.file.Text(receiver), method)
	case "call":
		client, factory, nameArg := v.chainedFactory(receiver)
		if client == "" {
			return
		}
		if t, ok := factoryTypes[normalizeFactory(factory)]; ok {
			metricType = t
		}
		v.emitMetric(n, client, metricType, nameArg)
	}
}

// chainedFactory matches the Client.factory(args) receiver shape and
// returns the client constant, factory method and first factory argument.
func (v *visitor) chainedFactory(receiver *sitter.Node) (client, factory string, nameArg *sitter.Node) {
	inner := receiver.ChildByFieldName("receiver")
	methodNode := receiver.ChildByFieldName("method")
	if inner == nil || methodNode == nil || inner.Type() != "constant" {
		return "", "", nil
	}
	name := rubyast.NodeText(inner, v.file.Source)
	if _, ok := v.rules.MetricClients[name]; !ok {
		return "", "", nil
	}
	factory = rubyast.NodeText(methodNode, v.file.Source)
	if _, ok := factoryTypes[normalizeFactory(factory)]; !ok {
		return "", "", nil
	}
	return name, factory, firstArg(rubyast.Arguments(receiver))
}

func normalizeFactory(method string) string {
	return strings.TrimPrefix(method, "register_")
}

// emitMetric records a Signal when the name argument is a literal string or
// symbol, and a DynamicMetricCall otherwise. A dynamic name is never
// silently discarded.
func (v *visitor) emitMetric(n *sitter.Node, receiver string, metricType model.SignalType, nameArg *sitter.Node) {
	if nameArg != nil {
		if s, ok := rubyast.StringLiteral(nameArg, v.file.Source); ok {
			v.appendMetricSignal(n, metricType, s)
			return
		}
		if sym, ok := rubyast.SymbolLiteral(nameArg, v.file.Source); ok {
			v.appendMetricSignal(n, metricType, sym)
			return
		}
	}
	v.facts.DynamicCalls = append(v.facts.DynamicCalls, model.DynamicMetricCall{
		Receiver:      receiver,
		MetricType:    metricType,
		DefiningClass: v.definingClass(),
		File:          v.file.Path,
		Line:          rubyast.Line(n),
	})
}

func (v *visitor) appendMetricSignal(n *sitter.Node, metricType model.SignalType, name string) {
	v.facts.Signals = append(v.facts.Signals, model.Signal{
		Type:          metricType,
		Name:          name,
		SourceFile:    v.file.Path,
		DefiningClass: v.definingClass(),
		Line:          rubyast.Line(n),
	})
}

func (v *visitor) captureConstantCall(n *sitter.Node, constantPath, method string) {
	v.facts.ConstantCalls = append(v.facts.ConstantCalls, model.ConstantCall{
		ConstantPath:  constantPath,
		Namespace:     v.qualified(),
		Method:        method,
		DefiningClass: v.definingClass(),
		File:          v.file.Path,
		Line:          rubyast.Line(n),
	})
}

func firstArg(args []*sitter.Node) *sitter.Node {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func secondArg(args []*sitter.Node) *sitter.Node {
	if len(args) < 2 {
		return nil
	}
	return args[1]
}
