// FILE: typeconf/interp.go
package typeconf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SchemeFunc evaluates the argument of a ${scheme:arg} token.
type SchemeFunc func(arg string) (any, error)

// Reserved scheme names.
const (
	SchemePreset = "preset"
	SchemeSystem = "system"
)

// maxInterpolationDepth bounds presets that reference other presets.
const maxInterpolationDepth = 16

var tokenPattern = regexp.MustCompile(`^\$\{([A-Za-z0-9_-]+):([^}]*)\}$`)

// Interpolator replaces string values of the exact form ${scheme:arg} using a
// table of scheme handlers. preset and system are always registered.
type Interpolator struct {
	schemes    map[string]SchemeFunc
	presetDirs []string
	system     Tree
	load       func(path string) (Tree, error)
	logger     *slog.Logger
}

// NewInterpolator returns an interpolator with the preset and system schemes.
// Preset and system files are read with LoadFile.
func NewInterpolator() *Interpolator {
	ip := &Interpolator{
		schemes: make(map[string]SchemeFunc),
		system:  make(Tree),
		load:    LoadFile,
		logger:  discardLogger(),
	}
	ip.schemes[SchemePreset] = ip.loadPreset
	ip.schemes[SchemeSystem] = ip.lookupSystem
	return ip
}

// SetLogger sets the logger used for interpolation records.
func (ip *Interpolator) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = discardLogger()
	}
	ip.logger = logger
}

// Register adds a scheme handler. Existing schemes cannot be replaced.
func (ip *Interpolator) Register(scheme string, fn SchemeFunc) error {
	if fn == nil || !isValidKeySegment(scheme) {
		return fmt.Errorf("%w: invalid scheme %q", ErrInvalidSchema, scheme)
	}
	if _, exists := ip.schemes[scheme]; exists {
		return fmt.Errorf("%w: scheme %q", ErrDuplicateName, scheme)
	}
	ip.schemes[scheme] = fn
	return nil
}

// Schemes returns the registered scheme names, sorted.
func (ip *Interpolator) Schemes() []string {
	names := make([]string, 0, len(ip.schemes))
	for name := range ip.schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddPresetDir appends a directory to the preset search path. Directories are
// searched in the order they were added.
func (ip *Interpolator) AddPresetDir(dir string) {
	ip.presetDirs = append(ip.presetDirs, dir)
	ip.logger.Debug("preset directory added", "dir", dir)
}

// PresetDirs returns the preset search path.
func (ip *Interpolator) PresetDirs() []string {
	return append([]string(nil), ip.presetDirs...)
}

// LoadSystem merges the variables of a configuration file into the system table.
func (ip *Interpolator) LoadSystem(path string) error {
	vars, err := ip.load(path)
	if err != nil {
		return fmt.Errorf("failed to load system variables: %w", err)
	}
	if err := ip.SetSystem(vars); err != nil {
		return fmt.Errorf("failed to merge system variables from %s: %w", path, err)
	}
	ip.logger.Debug("system variables loaded", "path", path, "count", len(vars))
	return nil
}

// SetSystem merges vars into the system table; later values win. A table
// meeting a value fails with a *MergeError and leaves the table unchanged.
func (ip *Interpolator) SetSystem(vars Tree) error {
	merged, err := Merge(ip.system, vars)
	if err != nil {
		return err
	}
	ip.system = merged
	return nil
}

// Resolve evaluates one scheme:arg pair.
func (ip *Interpolator) Resolve(scheme, arg string) (any, error) {
	fn, exists := ip.schemes[scheme]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return fn(arg)
}

// Interpolate returns a copy of tree with every ${scheme:arg} string replaced
// by its value. Values produced by a scheme are interpolated in turn.
func (ip *Interpolator) Interpolate(tree Tree) (Tree, error) {
	out, err := ip.walk(tree, nil, 0)
	if err != nil {
		return nil, err
	}
	return out.(Tree), nil
}

func (ip *Interpolator) walk(v any, path []string, depth int) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		out := make(Tree, len(x))
		for k, e := range x {
			r, err := ip.walk(e, append(path, k), depth)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := ip.walk(e, append(path, fmt.Sprint(i)), depth)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case string:
		m := tokenPattern.FindStringSubmatch(x)
		if m == nil {
			return x, nil
		}
		if depth >= maxInterpolationDepth {
			return nil, fmt.Errorf("%w: %s nested too deeply", ErrInterpolation, x)
		}
		value, err := ip.Resolve(m[1], m[2])
		if err != nil {
			return nil, fmt.Errorf("interpolating %q: %w", strings.Join(path, "."), err)
		}
		ip.logger.Debug("interpolated value", "scheme", m[1], "arg", m[2])
		return ip.walk(value, path, depth+1)
	default:
		return cloneValue(v), nil
	}
}

// loadPreset finds arg in the preset directories and loads it. When arg has no
// extension every supported one is tried.
func (ip *Interpolator) loadPreset(arg string) (any, error) {
	candidates := []string{arg}
	if filepath.Ext(arg) == "" {
		candidates = candidates[:0]
		for _, ext := range supportedExtensions {
			candidates = append(candidates, arg+ext)
		}
	}

	for _, dir := range ip.presetDirs {
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			tree, err := ip.load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load preset %q: %w", path, err)
			}
			return tree, nil
		}
	}
	return nil, fmt.Errorf("%w: %q not found in %v", ErrPresetNotFound, arg, ip.presetDirs)
}

func (ip *Interpolator) lookupSystem(arg string) (any, error) {
	value, ok := navigateToPath(ip.system, arg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, arg)
	}
	return cloneValue(value), nil
}
