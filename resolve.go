// FILE: typeconf/resolve.go
package typeconf

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
)

// Resolver closes schemas over configuration trees: every select slot is
// replaced by the schema of the variant its table names.
type Resolver struct {
	reg     *Registry
	tagName string
	logger  *slog.Logger
	cache   map[reflect.Type]*Schema
}

// NewResolver returns a resolver inspecting variants with tagName.
func NewResolver(reg *Registry, tagName string) *Resolver {
	if tagName == "" {
		tagName = DefaultTagName
	}
	return &Resolver{
		reg:     reg,
		tagName: tagName,
		logger:  discardLogger(),
		cache:   make(map[reflect.Type]*Schema),
	}
}

// SetLogger sets the logger used for resolution records.
func (r *Resolver) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = discardLogger()
	}
	r.logger = logger
}

// Resolve is a shorthand for NewResolver(reg, DefaultTagName).Resolve.
func Resolve(schema *Schema, tree Tree, reg *Registry) (*Schema, error) {
	return NewResolver(reg, DefaultTagName).Resolve(schema, tree)
}

// Resolve returns a closed copy of schema for tree. A select slot without a
// name fails with ErrMissingName unless it is optional and absent; a name
// that is not registered fails with ErrUnknownVariant. Lists, tuples and maps
// of selects resolve element by element and any failing element fails the
// whole resolution. Neither schema nor tree is modified.
func (r *Resolver) Resolve(schema *Schema, tree Tree) (*Schema, error) {
	if schema.IsSelect() {
		return r.resolveSelect(schema.Base, tree, "")
	}
	return r.resolveStruct(schema, tree, "")
}

func (r *Resolver) resolveStruct(s *Schema, tree Tree, path string) (*Schema, error) {
	out := &Schema{
		Type:    s.Type,
		Fields:  make([]*FieldDescriptor, 0, len(s.Fields)),
		Variant: s.Variant,
		Default: s.Default,
		byName:  make(map[string]*FieldDescriptor, len(s.Fields)),
	}

	for _, f := range s.Fields {
		resolved, err := r.resolveField(f, tree, joinDest(path, f.Name))
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, resolved)
		out.byName[resolved.Name] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveField(f *FieldDescriptor, tree Tree, path string) (*FieldDescriptor, error) {
	value, present := tree[f.Name]
	if value == nil {
		present = false
	}

	switch f.Shape {
	case ShapeNested:
		if !present {
			if f.Optional {
				return f, nil
			}
			value = Tree{}
		}
		sub, ok := value.(map[string]any)
		if !ok {
			// Decode reports the type mismatch.
			return f, nil
		}
		nested, err := r.resolveStruct(f.Nested, sub, path)
		if err != nil {
			return nil, err
		}
		clone := *f
		clone.Nested = nested
		return &clone, nil

	case ShapeSelect:
		if !present {
			if f.Optional {
				return f, nil
			}
			return nil, &ResolveError{Path: path, Base: f.Base.Name(), Err: ErrMissingName}
		}
		variant, err := r.resolveSelect(f.Base, value, path)
		if err != nil {
			return nil, err
		}
		clone := *f
		clone.Nested = variant
		return &clone, nil

	case ShapeList, ShapeTuple, ShapeMap:
		if !present || (f.Elem != ShapeNested && f.Elem != ShapeSelect) {
			return f, nil
		}
		return r.resolveElements(f, value, path)
	}

	return f, nil
}

// resolveSelect picks the variant named by value and resolves its schema.
func (r *Resolver) resolveSelect(base *Base, value any, path string) (*Schema, error) {
	table, ok := value.(map[string]any)
	if !ok {
		return nil, &ResolveError{Path: path, Base: base.Name(), Value: value,
			Err: fmt.Errorf("%w: expected a table, got %T", ErrMissingName, value)}
	}
	raw, ok := table[NameKey]
	if !ok || raw == nil {
		return nil, &ResolveError{Path: path, Base: base.Name(), Err: ErrMissingName}
	}
	name := fmt.Sprint(raw)

	variant, err := r.reg.Lookup(base.Name(), name)
	if err != nil {
		return nil, &ResolveError{Path: path, Base: base.Name(), Value: name, Err: err}
	}

	schema, err := r.variantSchema(variant)
	if err != nil {
		return nil, err
	}
	resolved, err := r.resolveStruct(schema, table, path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved variant", "path", pathOrRoot(path), "base", base.Name(), "name", name, "type", variant.Type().String())
	return resolved, nil
}

// variantSchema inspects a variant with its factory defaults.
func (r *Resolver) variantSchema(v *Variant) (*Schema, error) {
	if s, ok := r.cache[v.Type()]; ok {
		return s, nil
	}
	s, err := InspectWithTag(v.New(), r.reg, r.tagName)
	if err != nil {
		return nil, fmt.Errorf("variant %q of base %q: %w", v.Name(), v.Base().Name(), err)
	}
	s.Variant = v
	r.cache[v.Type()] = s
	return s, nil
}

func (r *Resolver) resolveElements(f *FieldDescriptor, value any, path string) (*FieldDescriptor, error) {
	resolveOne := func(elem any, elemPath string) (*Schema, error) {
		if f.Elem == ShapeSelect {
			return r.resolveSelect(f.Base, elem, elemPath)
		}
		sub, ok := elem.(map[string]any)
		if !ok {
			return nil, &ResolveError{Path: elemPath, Base: f.Nested.Type.Name(), Value: elem,
				Err: fmt.Errorf("%w: expected a table, got %T", ErrResolution, elem)}
		}
		return r.resolveStruct(f.Nested, sub, elemPath)
	}

	clone := *f
	if f.Shape == ShapeMap {
		entries, ok := value.(map[string]any)
		if !ok {
			return f, nil
		}
		clone.Entries = make(map[string]*Schema, len(entries))
		for key, elem := range entries {
			s, err := resolveOne(elem, joinDest(path, key))
			if err != nil {
				return nil, err
			}
			clone.Entries[key] = s
		}
		return &clone, nil
	}

	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return f, nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}
	clone.Items = make([]*Schema, len(items))
	for i, elem := range items {
		s, err := resolveOne(elem, joinDest(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		clone.Items[i] = s
	}
	return &clone, nil
}

func pathOrRoot(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
