// FILE: typeconf/schema.go
package typeconf

import (
	"encoding"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"
	"time"
)

//go:generate go tool stringer -type=Shape -trimprefix=Shape

// Shape is the structural kind of a schema field. It decides how the field is
// parsed from the command line and how it is resolved.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
	ShapeTuple
	ShapeNested
	ShapeSelect
	ShapeMap
)

// DefaultTagName is the struct tag read for field names.
const DefaultTagName = "toml"

// FieldDescriptor describes one field of a schema.
type FieldDescriptor struct {
	Name     string       // key in configuration trees
	GoName   string       // struct field name
	Index    []int        // reflect field index
	Type     reflect.Type // declared Go type
	Shape    Shape
	Elem     Shape // element shape of list, tuple and map fields
	Optional bool
	Nested   *Schema // struct schema for nested fields or nested elements
	Base     *Base   // select base for select fields or select elements

	HasDefault     bool
	Default        any
	DefaultVariant *Variant // variant of a select default
	DefaultSchema  *Schema  // schema of a select default, inspected from its value

	// Set on resolved schemas only.
	Items   []*Schema          // per-element schemas of resolved lists and tuples
	Entries map[string]*Schema // per-entry schemas of resolved maps
}

// Dynamic reports whether the field accepts keys that are only known after resolution.
func (f *FieldDescriptor) Dynamic() bool {
	return f.Shape == ShapeSelect || f.Shape == ShapeMap
}

// Schema is the read-only field tree of a configuration struct, or of a select
// base when the configuration root itself is polymorphic.
type Schema struct {
	Type    reflect.Type
	Fields  []*FieldDescriptor
	Base    *Base    // set when the schema is an unresolved select root
	Variant *Variant // set when the schema is a resolved variant
	Default any      // default value the schema was inspected with, if any

	byName map[string]*FieldDescriptor
}

// Field returns the descriptor with the given key.
func (s *Schema) Field(name string) (*FieldDescriptor, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// IsSelect reports whether the schema is an unresolved select root.
func (s *Schema) IsSelect() bool {
	return s.Base != nil && s.Variant == nil
}

// Paths returns the dotted leaf paths of the schema in declaration order.
// Select and map fields contribute their own path only.
func (s *Schema) Paths() []string {
	var paths []string
	var walk func(prefix string, sc *Schema)
	walk = func(prefix string, sc *Schema) {
		for _, f := range sc.Fields {
			path := prefix + f.Name
			if f.Shape == ShapeNested {
				walk(path+".", f.Nested)
				continue
			}
			paths = append(paths, path)
		}
	}
	walk("", s)
	return paths
}

// DefaultTree returns the schema defaults as a configuration tree. Select
// slots contribute only the name of their default variant, so that a higher
// source naming another variant does not inherit foreign fields.
func (s *Schema) DefaultTree() Tree {
	return s.defaultTree(false)
}

// defaultTree with full set also writes the fields of select defaults.
func (s *Schema) defaultTree(full bool) Tree {
	tree := make(Tree)
	for _, f := range s.Fields {
		if !f.HasDefault {
			continue
		}
		switch f.Shape {
		case ShapeNested:
			if sub := f.Nested.defaultTree(full); len(sub) > 0 || !f.Optional {
				tree[f.Name] = sub
			}
		case ShapeSelect:
			sub := Tree{}
			if full {
				sub = f.DefaultSchema.defaultTree(true)
			}
			sub[NameKey] = f.DefaultVariant.Name()
			tree[f.Name] = sub
		default:
			tree[f.Name] = cloneValue(f.Default)
		}
	}
	return tree
}

// inspector walks struct types; visiting guards against recursive types.
type inspector struct {
	reg      *Registry
	tagName  string
	visiting map[reflect.Type]bool
}

// Inspect builds the schema of a configuration. v may be a struct value, a
// pointer to a struct, a reflect.Type, or a nil pointer to a select interface
// (e.g. (*Model)(nil)). When v is a non-nil struct its field values become the
// schema defaults.
func Inspect(v any, reg *Registry) (*Schema, error) {
	return InspectWithTag(v, reg, DefaultTagName)
}

// InspectWithTag is like Inspect but reads field names from tagName.
func InspectWithTag(v any, reg *Registry, tagName string) (*Schema, error) {
	if tagName == "" {
		tagName = DefaultTagName
	}
	in := &inspector{reg: reg, tagName: tagName, visiting: make(map[reflect.Type]bool)}

	var t reflect.Type
	var dv reflect.Value
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: cannot inspect nil", ErrInvalidSchema)
	case reflect.Type:
		t = x
	default:
		dv = reflect.ValueOf(v)
		t = dv.Type()
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
		if dv.IsValid() {
			if dv.IsNil() {
				dv = reflect.Value{}
			} else {
				dv = dv.Elem()
			}
		}
	}

	switch t.Kind() {
	case reflect.Struct:
		return in.inspectStruct(t, dv)
	case reflect.Interface:
		base, ok := reg.BaseOf(t)
		if !ok {
			return nil, fmt.Errorf("%w: interface %v is not a select base", ErrInvalidSchema, t)
		}
		return &Schema{Type: t, Base: base, byName: map[string]*FieldDescriptor{}}, nil
	default:
		return nil, fmt.Errorf("%w: configuration must be a struct, got %v", ErrInvalidSchema, t)
	}
}

func (in *inspector) inspectStruct(t reflect.Type, dv reflect.Value) (*Schema, error) {
	if in.visiting[t] {
		return nil, fmt.Errorf("%w: recursive type %v", ErrInvalidSchema, t)
	}
	in.visiting[t] = true
	defer delete(in.visiting, t)

	s := &Schema{Type: t, byName: make(map[string]*FieldDescriptor)}
	if dv.IsValid() {
		s.Default = dv.Interface()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get(in.tagName)
		if tag == "-" {
			continue
		}
		key := field.Name
		optional := false
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				key = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "optional" || opt == "omitempty" {
					optional = true
				}
			}
		}
		if !isValidKeySegment(key) {
			return nil, fmt.Errorf("%w: invalid key %q for field %s.%s", ErrInvalidSchema, key, t.Name(), field.Name)
		}
		if _, dup := s.byName[key]; dup {
			return nil, fmt.Errorf("%w: key %q declared twice in %v", ErrInvalidSchema, key, t)
		}

		fd := &FieldDescriptor{
			Name:     key,
			GoName:   field.Name,
			Index:    field.Index,
			Type:     field.Type,
			Optional: optional,
		}

		var fv reflect.Value
		if dv.IsValid() {
			fv = dv.Field(i)
		}
		if err := in.describe(fd, field.Type, fv); err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name(), field.Name, err)
		}

		s.Fields = append(s.Fields, fd)
		s.byName[key] = fd
	}
	return s, nil
}

// describe fills shape, nested schema and default of fd from its type and the
// default value fv (invalid when no defaults were given).
func (in *inspector) describe(fd *FieldDescriptor, t reflect.Type, fv reflect.Value) error {
	if t.Kind() == reflect.Ptr {
		fd.Optional = true
		t = t.Elem()
		if fv.IsValid() {
			if fv.IsNil() {
				fv = reflect.Value{}
			} else {
				fv = fv.Elem()
			}
		}
	}

	shape, err := in.classify(t)
	if err != nil {
		return err
	}
	fd.Shape = shape

	switch shape {
	case ShapeNested:
		nested, err := in.inspectStruct(t, fv)
		if err != nil {
			return err
		}
		fd.Nested = nested
		fd.HasDefault = fv.IsValid()

	case ShapeSelect:
		fd.Base, _ = in.reg.BaseOf(t)
		if fv.IsValid() && !isNilSelect(fv) {
			variant, schema, err := in.selectDefault(fd.Base, fv.Elem())
			if err != nil {
				return err
			}
			fd.HasDefault = true
			fd.Default = fv.Interface()
			fd.DefaultVariant = variant
			fd.DefaultSchema = schema
		}

	case ShapeList, ShapeTuple, ShapeMap:
		elem := t.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		elemShape, err := in.classify(elem)
		if err != nil {
			return err
		}
		switch elemShape {
		case ShapeNested:
			nested, err := in.inspectStruct(elem, reflect.Value{})
			if err != nil {
				return err
			}
			fd.Nested = nested
		case ShapeSelect:
			fd.Base, _ = in.reg.BaseOf(elem)
		case ShapeList, ShapeTuple, ShapeMap:
			elemShape = ShapeScalar
		}
		fd.Elem = elemShape
		if !fv.IsValid() || (isNilable(fv) && fv.IsNil()) {
			break
		}
		if elemShape == ShapeScalar {
			fd.HasDefault = true
			fd.Default = toTreeValue(fv)
			break
		}
		def, err := in.elementDefaults(fd, fv)
		if err != nil {
			return err
		}
		fd.HasDefault = true
		fd.Default = def

	default:
		if fv.IsValid() && !(isNilable(fv) && fv.IsNil()) {
			fd.HasDefault = true
			fd.Default = toTreeValue(fv)
		}
	}
	return nil
}

// selectDefault returns the variant and value schema of a select default.
// concrete is the pointer stored in the interface.
func (in *inspector) selectDefault(base *Base, concrete reflect.Value) (*Variant, *Schema, error) {
	variant, ok := in.reg.VariantOf(base.Name(), concrete.Type())
	if !ok {
		return nil, nil, fmt.Errorf("%w: default %v is not registered in base %q", ErrInvalidSchema, concrete.Type(), base.Name())
	}
	schema, err := in.inspectStruct(concrete.Type().Elem(), concrete.Elem())
	if err != nil {
		return nil, nil, err
	}
	schema.Variant = variant
	return variant, schema, nil
}

// elementDefaults converts the elements of a list, tuple or map default with
// nested or select elements into full trees.
func (in *inspector) elementDefaults(fd *FieldDescriptor, fv reflect.Value) (any, error) {
	elemTree := func(v reflect.Value) (any, error) {
		if fd.Elem == ShapeSelect {
			if isNilSelect(v) {
				return nil, nil
			}
			variant, schema, err := in.selectDefault(fd.Base, v.Elem())
			if err != nil {
				return nil, err
			}
			tree := schema.defaultTree(true)
			tree[NameKey] = variant.Name()
			return tree, nil
		}
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil, nil
			}
			v = v.Elem()
		}
		schema, err := in.inspectStruct(v.Type(), v)
		if err != nil {
			return nil, err
		}
		return schema.defaultTree(true), nil
	}

	if fd.Shape == ShapeMap {
		out := make(Tree, fv.Len())
		iter := fv.MapRange()
		for iter.Next() {
			tree, err := elemTree(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = tree
		}
		return out, nil
	}

	out := make([]any, fv.Len())
	for i := range out {
		tree, err := elemTree(fv.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = tree
	}
	return out, nil
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	opaqueStructs       = map[reflect.Type]bool{
		reflect.TypeOf(time.Time{}): true,
		reflect.TypeOf(url.URL{}):   true,
		reflect.TypeOf(net.IPNet{}): true,
	}
)

func (in *inspector) classify(t reflect.Type) (Shape, error) {
	if opaqueStructs[t] || reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return ShapeScalar, nil
	}
	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return ShapeScalar, nil
		}
		if _, ok := in.reg.BaseOf(t); ok {
			return ShapeSelect, nil
		}
		return ShapeScalar, fmt.Errorf("%w: interface %v is not a select base", ErrInvalidSchema, t)
	case reflect.Struct:
		return ShapeNested, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return ShapeScalar, nil
		}
		return ShapeList, nil
	case reflect.Array:
		return ShapeTuple, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return ShapeScalar, fmt.Errorf("%w: map key must be a string, got %v", ErrInvalidSchema, t.Key())
		}
		return ShapeMap, nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return ShapeScalar, fmt.Errorf("%w: unsupported field type %v", ErrInvalidSchema, t)
	default:
		return ShapeScalar, nil
	}
}

// isNilSelect reports whether an interface value holds nothing or a nil pointer.
func isNilSelect(v reflect.Value) bool {
	if v.IsNil() {
		return true
	}
	e := v.Elem()
	return e.Kind() == reflect.Ptr && e.IsNil()
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// toTreeValue converts a default value into tree form: string-keyed maps become
// tables so that later sources can merge into them.
func toTreeValue(v reflect.Value) any {
	if v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
		out := make(Tree, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = toTreeValue(iter.Value())
		}
		return out
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		return toTreeValue(v.Elem())
	}
	return v.Interface()
}
