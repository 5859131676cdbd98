// FILE: typeconf/stats.go
package typeconf

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Tracker is a read-only view of a configuration tree that counts reads.
// Reading a.b.c counts a, a.b and a.b.c once each, so Stats shows which
// sections were used and Unused lists top-level keys nobody looked at.
type Tracker struct {
	tree   Tree
	prefix string
	counts *accessCounts
}

type accessCounts struct {
	mu sync.Mutex
	m  map[string]int
}

// Track returns a tracker over a copy of tree.
func Track(tree Tree) *Tracker {
	return &Tracker{
		tree:   cloneTree(tree),
		counts: &accessCounts{m: make(map[string]int)},
	}
}

func (t *Tracker) record(path string) {
	full := joinDest(t.prefix, path)
	segments := strings.Split(full, ".")

	t.counts.mu.Lock()
	defer t.counts.mu.Unlock()
	for i := range segments {
		t.counts.m[strings.Join(segments[:i+1], ".")]++
	}
}

// Get returns the value at the dotted path and records the access.
func (t *Tracker) Get(path string) (any, bool) {
	value, ok := navigateToPath(t.tree, path)
	if !ok {
		return nil, false
	}
	t.record(path)
	return cloneValue(value), true
}

// Sub returns a tracker for the table at path. Reads through it count
// towards the same statistics.
func (t *Tracker) Sub(path string) (*Tracker, error) {
	value, ok := navigateToPath(t.tree, path)
	if !ok {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	table, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("path %q refers to non-table value (type %T)", path, value)
	}
	t.record(path)
	return &Tracker{tree: table, prefix: joinDest(t.prefix, path), counts: t.counts}, nil
}

// Stats returns the number of reads per dotted path.
func (t *Tracker) Stats() map[string]int {
	t.counts.mu.Lock()
	defer t.counts.mu.Unlock()

	out := make(map[string]int, len(t.counts.m))
	for k, v := range t.counts.m {
		out[k] = v
	}
	return out
}

// Unused returns the keys of this tracker's table that were never read, sorted.
func (t *Tracker) Unused() []string {
	t.counts.mu.Lock()
	defer t.counts.mu.Unlock()

	var unused []string
	for key := range t.tree {
		if t.counts.m[joinDest(t.prefix, key)] == 0 {
			unused = append(unused, key)
		}
	}
	sort.Strings(unused)
	return unused
}

// String returns the value at path as a string. A nil value reads as "".
func (t *Tracker) String(path string) (string, error) {
	var out string
	err := t.read(path, &out, true)
	return out, err
}

// Int64 returns the value at path as an int64. Floats are truncated and
// numeric strings parsed, as when decoding a configuration.
func (t *Tracker) Int64(path string) (int64, error) {
	var out int64
	err := t.read(path, &out, false)
	return out, err
}

// Bool returns the value at path as a bool.
func (t *Tracker) Bool(path string) (bool, error) {
	var out bool
	err := t.read(path, &out, false)
	return out, err
}

// Float64 returns the value at path as a float64.
func (t *Tracker) Float64(path string) (float64, error) {
	var out float64
	err := t.read(path, &out, false)
	return out, err
}

// read converts the value at path into out with the weak conversions used
// for configuration fields, recording the access.
func (t *Tracker) read(path string, out any, nilOK bool) error {
	value, found := t.Get(path)
	if !found {
		return fmt.Errorf("path not found: %s", path)
	}
	if value == nil {
		if nilOK {
			return nil
		}
		return fmt.Errorf("value for path %s is nil", path)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       getDecodeHook(),
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("cannot read %s as %T: %w", path, reflect.ValueOf(out).Elem().Interface(), err)
	}
	return nil
}
