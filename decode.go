// FILE: typeconf/decode.go
package typeconf

import (
	"fmt"
	"net"
	"net/url"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// decoder constructs typed values from a resolved schema and its tree.
// Fields whose shape needs the schema (nested structs, selects and collections
// of them) are built here; everything else is handed to mapstructure.
type decoder struct {
	tagName string
}

// Decode builds the value described by a resolved schema into target, which
// must be a non-nil pointer to the schema type (a struct, or the select
// interface for a polymorphic root).
func Decode(resolved *Schema, tree Tree, target any) error {
	return (&decoder{tagName: DefaultTagName}).decode(resolved, tree, target)
}

func (d *decoder) decode(resolved *Schema, tree Tree, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("decode target must be non-nil pointer, got %T", target)
	}
	dst := rv.Elem()

	if resolved.Variant != nil && dst.Kind() == reflect.Interface {
		// Polymorphic root: construct the variant and store it.
		inst, err := d.buildVariant(resolved, tree, nil)
		if err != nil {
			return err
		}
		if !inst.Type().AssignableTo(dst.Type()) {
			return fmt.Errorf("variant %v is not assignable to %v", inst.Type(), dst.Type())
		}
		dst.Set(inst)
		return nil
	}

	if dst.Type() != resolved.Type {
		return fmt.Errorf("decode target must be *%v, got %T", resolved.Type, target)
	}
	if resolved.IsSelect() {
		return fmt.Errorf("schema of %v is not resolved", resolved.Type)
	}

	fresh := reflect.New(resolved.Type).Elem()
	if err := d.decodeStruct(resolved, tree, fresh, ""); err != nil {
		return err
	}
	dst.Set(fresh)
	return nil
}

// decodeStruct fills dst, an addressable struct, from tree. Fields present in
// tree are reset first so lists replace rather than extend earlier values.
func (d *decoder) decodeStruct(s *Schema, tree Tree, dst reflect.Value, path string) error {
	plain := make(Tree, len(tree))
	for key, value := range tree {
		plain[key] = value
	}
	if s.Variant != nil {
		if _, declared := s.Field(NameKey); !declared {
			delete(plain, NameKey)
		}
	}

	for _, f := range s.Fields {
		value, present := tree[f.Name]
		if !present {
			continue
		}
		field := dst.FieldByIndex(f.Index)
		if !d.structural(f) {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		delete(plain, f.Name)
		if value == nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		if err := d.decodeField(f, value, field, joinDest(path, f.Name)); err != nil {
			return err
		}
	}

	if len(plain) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst.Addr().Interface(),
		TagName:          d.tagName,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       getDecodeHook(),
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := dec.Decode(plain); err != nil {
		return fmt.Errorf("decode failed for %s: %w", pathOrRoot(path), err)
	}
	return nil
}

// structural reports whether a field is built from its schema rather than by mapstructure.
func (d *decoder) structural(f *FieldDescriptor) bool {
	switch f.Shape {
	case ShapeNested, ShapeSelect:
		return true
	case ShapeList, ShapeTuple:
		return f.Items != nil
	case ShapeMap:
		return f.Entries != nil
	}
	return false
}

func (d *decoder) decodeField(f *FieldDescriptor, value any, field reflect.Value, path string) error {
	switch f.Shape {
	case ShapeNested:
		sub, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("decode failed for %s: expected a table, got %T", path, value)
		}
		target := allocate(field)
		return d.decodeStruct(f.Nested, sub, target, path)

	case ShapeSelect:
		sub, _ := value.(map[string]any)
		inst, err := d.buildVariant(f.Nested, sub, f)
		if err != nil {
			return err
		}
		return assignSelect(field, inst, path)

	case ShapeList, ShapeTuple:
		return d.decodeItems(f, value, field, path)

	case ShapeMap:
		entries, _ := value.(map[string]any)
		t := field.Type()
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		m := reflect.MakeMapWithSize(t, len(entries))
		for key, elem := range entries {
			ev := reflect.New(t.Elem()).Elem()
			if err := d.decodeElement(f, f.Entries[key], elem, ev, joinDest(path, key)); err != nil {
				return err
			}
			m.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), ev)
		}
		allocate(field).Set(m)
		return nil
	}
	return nil
}

func (d *decoder) decodeItems(f *FieldDescriptor, value any, field reflect.Value, path string) error {
	elems, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		elems = make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
	}

	target := allocate(field)
	t := target.Type()
	var out reflect.Value
	if t.Kind() == reflect.Array {
		if t.Len() != len(elems) {
			return fmt.Errorf("decode failed for %s: expected %d elements, got %d", path, t.Len(), len(elems))
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(elems), len(elems))
	}

	for i, elem := range elems {
		if err := d.decodeElement(f, f.Items[i], elem, out.Index(i), fmt.Sprintf("%s.%d", path, i)); err != nil {
			return err
		}
	}
	target.Set(out)
	return nil
}

// decodeElement builds one element of a collection of nested or select values.
func (d *decoder) decodeElement(f *FieldDescriptor, s *Schema, value any, dst reflect.Value, path string) error {
	sub, _ := value.(map[string]any)
	if f.Elem == ShapeSelect {
		inst, err := d.buildVariant(s, sub, nil)
		if err != nil {
			return err
		}
		return assignSelect(dst, inst, path)
	}
	return d.decodeStruct(s, sub, allocate(dst), path)
}

// buildVariant constructs a variant from its resolved schema. When owner names
// the same variant as its default, construction starts from a copy of the
// default; otherwise from the factory.
func (d *decoder) buildVariant(s *Schema, tree Tree, owner *FieldDescriptor) (reflect.Value, error) {
	var inst reflect.Value
	if owner != nil && owner.DefaultVariant == s.Variant && owner.Default != nil {
		src := reflect.ValueOf(owner.Default).Elem()
		inst = reflect.New(src.Type())
		inst.Elem().Set(src)
	} else {
		inst = reflect.ValueOf(s.Variant.New())
	}
	if err := d.decodeStruct(s, tree, inst.Elem(), ""); err != nil {
		return reflect.Value{}, fmt.Errorf("variant %q: %w", s.Variant.Name(), err)
	}
	return inst, nil
}

// allocate returns the struct, slice, array or map behind v, creating pointers
// on the way. Pointers are copied before use so shared defaults stay intact.
func allocate(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		fresh := reflect.New(v.Type().Elem())
		if !v.IsNil() {
			fresh.Elem().Set(v.Elem())
		}
		v.Set(fresh)
		v = fresh.Elem()
	}
	return v
}

// assignSelect stores a constructed variant in an interface slot, allocating a
// pointer-to-interface field when needed.
func assignSelect(field, inst reflect.Value, path string) error {
	target := allocate(field)
	if !inst.Type().AssignableTo(target.Type()) {
		return fmt.Errorf("decode failed for %s: %v is not assignable to %v", path, inst.Type(), target.Type())
	}
	target.Set(inst)
	return nil
}

// getDecodeHook returns the composite decode hook for all type conversions
func getDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		// Network types
		stringToNetIPHookFunc(),
		stringToNetIPNetHookFunc(),
		stringToURLHookFunc(),

		// Standard hooks
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// stringToNetIPHookFunc handles net.IP conversion
func stringToNetIPHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(net.IP{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 45 { // Max IPv6 length
			return nil, fmt.Errorf("invalid IP length: %d", len(str))
		}
		ip := net.ParseIP(str)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", str)
		}
		return ip, nil
	}
}

// stringToNetIPNetHookFunc handles net.IPNet conversion
func stringToNetIPNetHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		targetType := t
		if isPtr {
			targetType = t.Elem()
		}
		if targetType != reflect.TypeOf(net.IPNet{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 49 { // Max IPv6 CIDR length
			return nil, fmt.Errorf("invalid CIDR length: %d", len(str))
		}
		_, ipnet, err := net.ParseCIDR(str)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR: %w", err)
		}
		if isPtr {
			return ipnet, nil
		}
		return *ipnet, nil
	}
}

// stringToURLHookFunc handles url.URL conversion
func stringToURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr := t.Kind() == reflect.Ptr
		targetType := t
		if isPtr {
			targetType = t.Elem()
		}
		if targetType != reflect.TypeOf(url.URL{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 2048 {
			return nil, fmt.Errorf("URL too long: %d bytes", len(str))
		}
		u, err := url.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if isPtr {
			return u, nil
		}
		return *u, nil
	}
}
