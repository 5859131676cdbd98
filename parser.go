// FILE: typeconf/parser.go
package typeconf

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
)

// Arity is the number of values a command-line destination takes.
type Arity int

const (
	// ArityOne takes exactly one value.
	ArityOne Arity = iota
	// ArityList takes one or more values and always yields a list.
	ArityList
	// ArityToggle takes zero or one value; a bare flag means "true".
	ArityToggle
)

// parserNode mirrors one schema node. Leaves carry an arity; sections carry
// children; dynamic nodes accept any sub-key. Only the root of a select
// schema is both dynamic and has children (the reserved arguments).
type parserNode struct {
	dest     string
	leaf     bool
	arity    Arity
	dynamic  bool
	selects  bool // dynamic node built from a select field
	children map[string]*parserNode
}

// Parser turns a --dotted.path value... token stream into a Tree, checking
// every destination against the schema it was built from.
type Parser struct {
	root   *parserNode
	logger *slog.Logger
}

// NewParser builds the parser tree for schema. Nested fields become sections,
// select and map fields become dynamic nodes, everything else is a leaf.
func NewParser(schema *Schema) (*Parser, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	p := &Parser{
		root:   &parserNode{children: make(map[string]*parserNode)},
		logger: discardLogger(),
	}
	if schema.IsSelect() {
		p.root.dynamic = true
		p.root.selects = true
		return p, nil
	}
	if err := p.addSchema(p.root, schema); err != nil {
		return nil, err
	}
	return p, nil
}

// SetLogger sets the logger used for parse records.
func (p *Parser) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = discardLogger()
	}
	p.logger = logger
}

func (p *Parser) addSchema(parent *parserNode, schema *Schema) error {
	for _, f := range schema.Fields {
		dest := joinDest(parent.dest, f.Name)
		var child *parserNode

		switch f.Shape {
		case ShapeNested:
			child = &parserNode{dest: dest, children: make(map[string]*parserNode)}
			if err := p.addSchema(child, f.Nested); err != nil {
				return err
			}
		case ShapeSelect, ShapeMap:
			child = &parserNode{dest: dest, dynamic: true, selects: f.Shape == ShapeSelect}
		case ShapeList, ShapeTuple:
			child = &parserNode{dest: dest, leaf: true, arity: ArityList}
		default:
			child = &parserNode{dest: dest, leaf: true, arity: scalarArity(f.Type)}
		}

		if err := parent.add(f.Name, child); err != nil {
			return err
		}
	}
	return nil
}

func scalarArity(t reflect.Type) Arity {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Bool {
		return ArityToggle
	}
	return ArityOne
}

func (n *parserNode) add(name string, child *parserNode) error {
	if n.children == nil {
		return fmt.Errorf("%w: %q is not a section", ErrDuplicateDest, n.dest)
	}
	if _, exists := n.children[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDest, child.dest)
	}
	n.children[name] = child
	return nil
}

// AddArgument registers an extra top-level or dotted leaf destination, such as
// the reserved config_path, presets and system arguments.
func (p *Parser) AddArgument(dest string, arity Arity) error {
	segments, err := splitPath(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	n := p.root
	for i, seg := range segments[:len(segments)-1] {
		child, ok := n.children[seg]
		if !ok {
			child = &parserNode{dest: strings.Join(segments[:i+1], "."), children: make(map[string]*parserNode)}
			n.children[seg] = child
		}
		if child.leaf || child.dynamic {
			return fmt.Errorf("%w: %q", ErrDuplicateDest, dest)
		}
		n = child
	}
	return n.add(segments[len(segments)-1], &parserNode{dest: dest, leaf: true, arity: arity})
}

// Destinations returns every declared leaf and dynamic destination, sorted.
func (p *Parser) Destinations() []string {
	var dests []string
	var walk func(n *parserNode)
	walk = func(n *parserNode) {
		if n.dest != "" && (n.leaf || n.dynamic) {
			dests = append(dests, n.dest)
			return
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(p.root)
	sort.Strings(dests)
	return dests
}

// Parse consumes tokens of the form --a.b.c v1 v2 ... and returns the tree of
// supplied values. Only destinations present in tokens appear in the result.
// Values stay strings; a later decode converts them.
//
// On dynamic nodes a single value is stored as a scalar and several values as
// a list, because the concrete field type is unknown until resolution.
func (p *Parser) Parse(tokens []string) (Tree, error) {
	tree := make(Tree)

	i := 0
	for i < len(tokens) {
		token := tokens[i]
		if !isFlag(token) {
			return nil, &ParseError{Token: token, Err: ErrPositional}
		}
		i++

		dest := strings.TrimPrefix(token, "--")
		var values []string
		if key, value, found := strings.Cut(dest, "="); found {
			dest = key
			values = append(values, value)
		}
		for i < len(tokens) && !isFlag(tokens[i]) {
			values = append(values, tokens[i])
			i++
		}

		if err := p.apply(tree, token, dest, values); err != nil {
			return nil, err
		}
	}

	return tree, nil
}

func (p *Parser) apply(tree Tree, token, dest string, values []string) error {
	segments, err := splitPath(dest)
	if err != nil {
		return &ParseError{Token: token, Dest: dest, Err: fmt.Errorf("%w: %v", ErrUnknownDest, err)}
	}

	n := p.root
	depth := 0
	for ; depth < len(segments); depth++ {
		child, ok := n.children[segments[depth]]
		if !ok {
			if n.dynamic {
				break
			}
			return &ParseError{Token: token, Dest: dest, Err: ErrUnknownDest}
		}
		n = child
	}

	var value any
	target := segments
	switch {
	case depth < len(segments):
		// Sub-key of a dynamic node, accepted verbatim.
		if len(values) == 0 {
			return &ParseError{Token: token, Dest: dest, Err: ErrMissingValue}
		}
		value = collapse(values)

	case n.dynamic:
		// --model adam is shorthand for --model.name adam.
		if !n.selects {
			return &ParseError{Token: token, Dest: dest, Err: fmt.Errorf("%w: %q takes sub-keys", ErrUnknownDest, dest)}
		}
		switch len(values) {
		case 0:
			return &ParseError{Token: token, Dest: dest, Err: ErrMissingValue}
		case 1:
			// ${scheme:arg} fills the whole slot once interpolated.
			value = values[0]
			if !tokenPattern.MatchString(values[0]) {
				target = append(append([]string(nil), segments...), NameKey)
			}
		default:
			return &ParseError{Token: token, Dest: dest, Err: ErrExtraValue}
		}

	case n.leaf:
		v, err := n.take(values)
		if err != nil {
			return &ParseError{Token: token, Dest: dest, Err: err}
		}
		value = v

	default:
		return &ParseError{Token: token, Dest: dest, Err: fmt.Errorf("%w: %q is a section", ErrUnknownDest, dest)}
	}

	if err := setNestedValue(tree, target, value); err != nil {
		return err
	}
	p.logger.Debug("parsed destination", "dest", strings.Join(target, "."), "value", value)
	return nil
}

// take applies the leaf arity to the collected values.
func (n *parserNode) take(values []string) (any, error) {
	switch n.arity {
	case ArityList:
		if len(values) == 0 {
			return nil, ErrMissingValue
		}
		return toAnySlice(values), nil
	case ArityToggle:
		switch len(values) {
		case 0:
			return "true", nil
		case 1:
			return values[0], nil
		}
		return nil, ErrExtraValue
	default:
		switch len(values) {
		case 0:
			return nil, ErrMissingValue
		case 1:
			return values[0], nil
		}
		return nil, ErrExtraValue
	}
}

func collapse(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	return toAnySlice(values)
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func isFlag(token string) bool {
	return strings.HasPrefix(token, "--")
}

func joinDest(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
