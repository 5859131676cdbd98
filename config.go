// FILE: typeconf/config.go
package typeconf

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/davecgh/go-spew/spew"
)

// Config is the result of one build: the per-source trees, their merge, the
// resolved schema and the constructed value. It is safe for concurrent reads.
type Config struct {
	mutex    sync.RWMutex
	registry *Registry
	schema   *Schema
	resolved *Schema
	options  LoadOptions
	sources  map[Source]Tree
	merged   Tree
	value    reflect.Value // pointer to the constructed root value
	filePath string
	tracker  *Tracker
}

// Get retrieves the merged value at a dot-separated path.
// The second return value reports whether the path is set.
func (c *Config) Get(path string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, ok := navigateToPath(c.merged, path)
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

// Source returns a copy of the tree contributed by one source, or nil.
func (c *Config) Source(source Source) Tree {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return cloneTree(c.sources[source])
}

// Tree returns a copy of the merged configuration tree.
func (c *Config) Tree() Tree {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return cloneTree(c.merged)
}

// Schema returns the schema the configuration was built from.
func (c *Config) Schema() *Schema {
	return c.schema
}

// Resolved returns the schema with every select slot closed over its variant.
func (c *Config) Resolved() *Schema {
	return c.resolved
}

// FilePath returns the configuration file that was loaded, if any.
func (c *Config) FilePath() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.filePath
}

// Value returns the constructed configuration: a pointer to the root struct,
// or the selected variant when the root is a select base.
func (c *Config) Value() any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.value.IsValid() {
		return nil
	}
	if c.value.Elem().Kind() == reflect.Interface {
		return c.value.Elem().Interface()
	}
	return c.value.Interface()
}

// Scan constructs a fresh copy of the configuration into target, a non-nil
// pointer to the root type.
func (c *Config) Scan(target any) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	d := &decoder{tagName: c.options.TagName}
	return d.decode(c.resolved, c.merged, target)
}

// Track returns the tracker over the merged tree. Every call returns the same
// tracker, so statistics accumulate across callers.
func (c *Config) Track() *Tracker {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.tracker == nil {
		c.tracker = Track(c.merged)
	}
	return c.tracker
}

// Stats returns the read counts recorded by Track.
func (c *Config) Stats() map[string]int {
	return c.Track().Stats()
}

// Unused returns the top-level keys never read through Track.
func (c *Config) Unused() []string {
	return c.Track().Unused()
}

// Validate checks that all required paths were supplied by a source other
// than the defaults.
func (c *Config) Validate(required ...string) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var missing []string
	for _, path := range required {
		found := false
		for source, tree := range c.sources {
			if source == SourceDefault {
				continue
			}
			if _, ok := navigateToPath(tree, path); ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Save writes the merged configuration atomically, in the format implied by
// the file extension.
func (c *Config) Save(path string) error {
	return SaveFile(path, c.Tree())
}

// SaveSource writes the values of a single source.
func (c *Config) SaveSource(path string, source Source) error {
	tree := c.Source(source)
	if tree == nil {
		tree = make(Tree)
	}
	if err := SaveFile(path, tree); err != nil {
		return fmt.Errorf("failed to save %s source: %w", source, err)
	}
	return nil
}

// Debug returns a formatted string showing all configuration values, the
// source each came from and the constructed value.
func (c *Config) Debug() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	b.WriteString(fmt.Sprintf("Precedence: %v\n", c.options.Sources))
	if c.filePath != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", c.filePath))
	}
	b.WriteString("Current values:\n")

	flat := flattenTree(c.merged, "")
	for _, path := range sortedPaths(flat) {
		b.WriteString(fmt.Sprintf("  %s:\n", path))
		b.WriteString(fmt.Sprintf("    Current: %v\n", flat[path]))
		for _, source := range c.options.Sources {
			if value, ok := navigateToPath(c.sources[source], path); ok {
				b.WriteString(fmt.Sprintf("    %s: %v\n", source, value))
			}
		}
	}

	if c.value.IsValid() {
		b.WriteString("Constructed value:\n")
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
		b.WriteString(cfg.Sdump(c.value.Interface()))
	}

	return b.String()
}

// Dump writes the merged configuration to w in TOML format
func (c *Config) Dump(w io.Writer) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	encoder := toml.NewEncoder(w)
	return encoder.Encode(c.merged)
}
