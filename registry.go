// FILE: typeconf/registry.go
package typeconf

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// SanitizeFunc normalises variant names before registration and lookup.
type SanitizeFunc func(name string) string

// Lower is the default SanitizeFunc; it makes variant names case-insensitive.
func Lower(name string) string {
	return strings.ToLower(name)
}

// Select is implemented by every variant of a select field. SelectBase returns
// the name of the base the variant belongs to; registration rejects variants
// whose declared base differs from the base they are added to.
type Select interface {
	SelectBase() string
}

// Factory returns a new variant value carrying the variant's own defaults.
// The returned value must be a non-nil pointer to a struct.
type Factory func() Select

// Variant is one registered concrete type of a base.
type Variant struct {
	names   []string
	typ     reflect.Type
	factory Factory
	base    *Base
}

// Name returns the first name the variant was registered under.
func (v *Variant) Name() string {
	return v.names[0]
}

// Names returns every name (aliases included) the variant was registered under.
func (v *Variant) Names() []string {
	return append([]string(nil), v.names...)
}

// Type returns the concrete pointer type of the variant.
func (v *Variant) Type() reflect.Type {
	return v.typ
}

// Base returns the base the variant is registered in.
func (v *Variant) Base() *Base {
	return v.base
}

// New returns a fresh instance from the variant factory.
func (v *Variant) New() Select {
	return v.factory()
}

// Base is the namespace of a select field: an interface type plus the
// variants registered for it.
type Base struct {
	name     string
	typ      reflect.Type
	sanitize SanitizeFunc
	variants map[string]*Variant // sanitized name -> variant, created on first Add
	byType   map[reflect.Type]*Variant
}

// Name returns the base tag.
func (b *Base) Name() string {
	return b.name
}

// Type returns the interface type select fields of this base are declared with.
// It is nil until the base is bound with DefineBase.
func (b *Base) Type() reflect.Type {
	return b.typ
}

// Registry maps select bases to their variants. It is built once by the
// application's composition root and passed to schema inspection, parsing and
// resolution.
type Registry struct {
	mu     sync.RWMutex
	bases  map[string]*Base
	byType map[reflect.Type]*Base
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bases:  make(map[string]*Base),
		byType: make(map[reflect.Type]*Base),
		logger: discardLogger(),
	}
}

// SetLogger sets the logger used for registration records.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = discardLogger()
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// DefineBase binds a base tag to the interface type used by select fields.
// A nil sanitize uses Lower. Variants added before the base is bound are
// checked against the interface now.
func (r *Registry) DefineBase(name string, iface reflect.Type, sanitize SanitizeFunc) (*Base, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: base name cannot be empty", ErrInvalidSchema)
	}
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: base %q must be bound to an interface type, got %v", ErrInvalidSchema, name, iface)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if other, exists := r.byType[iface]; exists && other.name != name {
		return nil, fmt.Errorf("%w: type %v already bound to base %q", ErrInvalidSchema, iface, other.name)
	}

	b := r.baseLocked(name)
	if b.typ != nil && b.typ != iface {
		return nil, fmt.Errorf("%w: base %q already bound to %v", ErrInvalidSchema, name, b.typ)
	}
	if sanitize != nil {
		if len(b.variants) > 0 {
			return nil, fmt.Errorf("%w: cannot change sanitizer of base %q after registration", ErrInvalidSchema, name)
		}
		b.sanitize = sanitize
	}

	for _, v := range b.byType {
		if !v.typ.Implements(iface) {
			return nil, fmt.Errorf("%w: %v does not implement %v", ErrWrongBase, v.typ, iface)
		}
	}

	b.typ = iface
	r.byType[iface] = b
	r.logger.Debug("select base defined", "base", name, "type", iface.String())
	return b, nil
}

// Add registers a variant under base with one or more names. The factory is
// called once to check the variant: it must declare base through SelectBase,
// be a pointer to a struct and implement the base interface when one is bound.
// Names are sanitized and must be free; on any error nothing is registered.
func (r *Registry) Add(base string, factory Factory, names ...string) error {
	if factory == nil {
		return fmt.Errorf("%w: nil factory for base %q", ErrInvalidSchema, base)
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: variant for base %q needs at least one name", ErrInvalidSchema, base)
	}

	sample := factory()
	if sample == nil {
		return fmt.Errorf("%w: factory for base %q returned nil", ErrInvalidSchema, base)
	}
	typ := reflect.TypeOf(sample)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: variant %v must be a pointer to a struct", ErrInvalidSchema, typ)
	}
	if declared := sample.SelectBase(); declared != base {
		return fmt.Errorf("%w: %v declares base %q, registered under %q", ErrWrongBase, typ, declared, base)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.baseLocked(base)
	if b.typ != nil && !typ.Implements(b.typ) {
		return fmt.Errorf("%w: %v does not implement %v", ErrWrongBase, typ, b.typ)
	}

	keys := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := b.sanitize(name)
		if key == "" {
			return fmt.Errorf("%w: empty variant name for base %q", ErrInvalidSchema, base)
		}
		if existing, taken := b.variants[key]; taken {
			return fmt.Errorf("%w: %q in base %q (held by %v)", ErrDuplicateName, name, base, existing.typ)
		}
		if seen[key] {
			return fmt.Errorf("%w: %q given twice for base %q", ErrDuplicateName, name, base)
		}
		seen[key] = true
		keys = append(keys, key)
	}

	if b.variants == nil {
		b.variants = make(map[string]*Variant)
		b.byType = make(map[reflect.Type]*Variant)
	}
	v, exists := b.byType[typ]
	if !exists {
		v = &Variant{typ: typ, factory: factory, base: b}
		b.byType[typ] = v
	}
	v.names = append(v.names, names...)
	for _, key := range keys {
		b.variants[key] = v
	}

	r.logger.Debug("variant registered", "base", base, "names", names, "type", typ.String())
	return nil
}

// MustAdd is like Add but panics on error. Useful in registration functions
// that run at start-up.
func (r *Registry) MustAdd(base string, factory Factory, names ...string) {
	if err := r.Add(base, factory, names...); err != nil {
		panic(err)
	}
}

// Lookup returns the variant registered under name in base.
func (r *Registry) Lookup(base, name string) (*Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.bases[base]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBase, base)
	}
	v, found := b.variants[b.sanitize(name)]
	if !found {
		return nil, fmt.Errorf("%w for %s: %s", ErrUnknownVariant, base, name)
	}
	return v, nil
}

// Base returns the base with the given tag.
func (r *Registry) Base(name string) (*Base, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bases[name]
	return b, ok
}

// BaseOf returns the base bound to the interface type t.
func (r *Registry) BaseOf(t reflect.Type) (*Base, bool) {
	if r == nil || t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byType[t]
	return b, ok
}

// VariantOf returns the variant of base whose concrete type is t.
func (r *Registry) VariantOf(base string, t reflect.Type) (*Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bases[base]
	if !ok {
		return nil, false
	}
	v, ok := b.byType[t]
	return v, ok
}

// Names returns the sanitized names registered in base, sorted.
func (r *Registry) Names(base string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bases[base]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(b.variants))
	for name := range b.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// baseLocked returns the base for name, creating it on first use.
func (r *Registry) baseLocked(name string) *Base {
	b, exists := r.bases[name]
	if !exists {
		b = &Base{name: name, sanitize: Lower}
		r.bases[name] = b
	}
	return b
}

// DefineBase binds base name to the interface type T.
func DefineBase[T any](r *Registry, name string) (*Base, error) {
	return r.DefineBase(name, reflect.TypeOf((*T)(nil)).Elem(), nil)
}

// Register adds a typed variant factory under base.
func Register[V Select](r *Registry, base string, factory func() V, names ...string) error {
	if factory == nil {
		return r.Add(base, nil, names...)
	}
	return r.Add(base, func() Select { return factory() }, names...)
}
