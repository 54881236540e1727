// Package model defines core data structures for sigscan.
package model

// TopLevel is the defining-class name used for signals found outside any
// class or module body.
const TopLevel = "(top-level)"

// SignalType classifies a detected observability signal.
type SignalType string

const (
	Log       SignalType = "log"
	Counter   SignalType = "counter"
	Gauge     SignalType = "gauge"
	Histogram SignalType = "histogram"
	Summary   SignalType = "summary"
)

// Signal is one detected observability call site.
type Signal struct {
	Type             SignalType `json:"type"`
	Name             string     `json:"name"`
	SourceFile       string     `json:"source_file"`
	DefiningClass    string     `json:"defining_class"`
	InheritanceDepth int        `json:"inheritance_depth"`
	Line             int        `json:"line"`

	// Log signals only.
	Level        string `json:"level,omitempty"`
	Interpolated bool   `json:"interpolated,omitempty"`
}

// Key returns the dedup identity of a signal. Two signals with the same key
// are the same signal; the first occurrence wins.
func (s Signal) Key() string {
	return string(s.Type) + "\x00" + s.Name + "\x00" + s.SourceFile + "\x00" + s.DefiningClass
}

// ClassStructure records one class or module definition within a single file.
// Transient: rebuilt on every visit, never persisted.
type ClassStructure struct {
	QualifiedName string
	Parent        string // superclass reference, "" for none
	File          string
}

// RelationKind is the kind of module mix-in statement.
type RelationKind string

const (
	Include RelationKind = "include"
	Prepend RelationKind = "prepend"
	Extend  RelationKind = "extend"
)

// ModuleRelation records one include/prepend/extend statement argument.
type ModuleRelation struct {
	Module         string
	IncludingClass string
	Kind           RelationKind
	File           string
}

// AncestorKind distinguishes superclass ancestors from mixed-in modules.
type AncestorKind string

const (
	ClassAncestor  AncestorKind = "class"
	ModuleAncestor AncestorKind = "module"
)

// AncestorNode is one resolved ancestor reached during a traversal.
type AncestorNode struct {
	Name  string
	File  string
	Depth int
	Kind  AncestorKind
}

// DynamicMetricCall is a metric-shaped call whose name argument is not a
// literal. It cannot become a Signal and is reported separately so users
// know static coverage is incomplete at that site.
type DynamicMetricCall struct {
	Receiver      string     `json:"receiver"`
	MetricType    SignalType `json:"metric_type"`
	DefiningClass string     `json:"defining_class"`
	File          string     `json:"file"`
	Line          int        `json:"line"`
}

// ConstantCall is an action-method call on a constant receiver that is not
// an allow-listed metric client, e.g. Metrics::RequestTotal.increment.
// The collector resolves these against the metric-definition table.
type ConstantCall struct {
	ConstantPath  string // receiver as written at the call site
	Namespace     string // lexical namespace active at the call site
	Method        string
	DefiningClass string
	File          string
	Line          int
}

// MetricConstant is one registered metric definition, looked up by
// fully-qualified constant name.
type MetricConstant struct {
	Name string
	Type SignalType
}
