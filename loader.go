// FILE: typeconf/loader.go
package typeconf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Source represents a configuration source, used to define load precedence
type Source string

const (
	// SourceDefault represents the defaults declared with the schema
	SourceDefault Source = "default"
	// SourceFile represents values loaded from a configuration file
	SourceFile Source = "file"
	// SourceEnv represents values loaded from environment variables
	SourceEnv Source = "env"
	// SourceCLI represents values loaded from command-line arguments
	SourceCLI Source = "cli"
)

// Reserved command-line destinations, consumed before the ordinary merge.
const (
	ArgConfigPath = "config_path"
	ArgPresets    = "presets"
	ArgSystem     = "system"
)

// supportedExtensions lists the file extensions LoadFile understands, in the
// order they are tried during discovery and preset lookup.
var supportedExtensions = []string{".toml", ".json", ".yaml", ".yml", ".hcl"}

// EnvTransformFunc converts a configuration path to an environment variable name
type EnvTransformFunc func(path string) string

// LoadOptions configures how configuration is loaded from multiple sources
type LoadOptions struct {
	// Sources defines the precedence order (first = highest priority)
	// Default: [SourceCLI, SourceFile, SourceDefault]
	Sources []Source

	// EnvPrefix is prepended to environment variable names
	// Example: "MYAPP_" transforms "server.port" to "MYAPP_SERVER_PORT"
	EnvPrefix string

	// EnvTransform customizes how paths map to environment variables
	// If nil, uses default transformation (dots to underscores, uppercase)
	EnvTransform EnvTransformFunc

	// TagName is the struct tag holding field names. Default: "toml"
	TagName string

	// FileFormat forces a format ("toml", "json", "yaml", "hcl"); "" or "auto" detects it
	FileFormat string

	// MaxFileSize limits configuration files read from disk (0 = unlimited)
	MaxFileSize int64
}

// DefaultLoadOptions returns the standard load options.
// The environment is only consulted when SourceEnv is listed.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Sources: []Source{SourceCLI, SourceFile, SourceDefault},
		TagName: DefaultTagName,
	}
}

// LoadFile reads a configuration file into a tree, choosing the decoder from
// the file extension.
func LoadFile(path string) (Tree, error) {
	return loadFile(path, "", 0)
}

// loadFile reads and parses a configuration file
func loadFile(path, format string, maxSize int64) (Tree, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if maxSize > 0 && fileInfo.Size() > maxSize {
		return nil, fmt.Errorf("config file '%s' exceeds maximum size %d bytes", path, maxSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxSize > 0 {
		reader = io.LimitReader(file, maxSize)
	}

	fileData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	// Determine format
	if format == "" || format == "auto" {
		ext := strings.ToLower(filepath.Ext(path))
		format = detectFileFormat(ext)
		if format == "" {
			switch ext {
			case ".conf", ".config":
				format = detectFormatFromContent(fileData)
			}
		}
		if format == "" {
			return nil, fmt.Errorf("%w: %q (file '%s')", ErrUnsupportedFormat, ext, path)
		}
	}

	tree, err := decodeFormat(fileData, format, path)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// decodeFormat parses data in the named format into a tree
func decodeFormat(data []byte, format, name string) (Tree, error) {
	tree := make(Tree)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config file '%s': %w", name, err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // Preserve number precision
		if err := decoder.Decode(&tree); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file '%s': %w", name, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file '%s': %w", name, err)
		}
		normalizeYAML(tree)
	case "hcl":
		parsed, err := decodeHCL(data, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HCL config file '%s': %w", name, err)
		}
		tree = parsed
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return tree, nil
}

// normalizeYAML converts map[any]any tables nested inside lists, which yaml.v3
// produces for some documents, into string-keyed tables.
func normalizeYAML(tree Tree) {
	for k, v := range tree {
		tree[k] = normalizeYAMLValue(v)
	}
}

func normalizeYAMLValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		normalizeYAML(x)
		return x
	case map[any]any:
		out := make(Tree, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeYAMLValue(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalizeYAMLValue(e)
		}
		return x
	default:
		return v
	}
}

// detectFileFormat determines format from file extension
func detectFileFormat(ext string) string {
	switch ext {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".hcl":
		return "hcl"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) string {
	// Try JSON first (strict format)
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	// TOML before YAML: most key = value documents are also valid YAML scalars
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	return ""
}

// loadEnv collects environment variables for the given leaf paths. Values stay
// strings; decode converts them.
func loadEnv(paths []string, opts LoadOptions) (Tree, error) {
	transform := opts.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(opts.EnvPrefix)
	}

	tree := make(Tree)
	for _, path := range paths {
		envVar := transform(path)
		value, exists := os.LookupEnv(envVar)
		if !exists {
			continue
		}
		segments, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		if err := setNestedValue(tree, segments, value); err != nil {
			return nil, fmt.Errorf("environment variable %s: %w", envVar, err)
		}
	}
	return tree, nil
}

// envPaths returns the paths the environment can set: every leaf plus the
// name of every select field.
func envPaths(schema *Schema) []string {
	var paths []string
	var walk func(prefix string, s *Schema)
	walk = func(prefix string, s *Schema) {
		for _, f := range s.Fields {
			path := prefix + f.Name
			switch f.Shape {
			case ShapeNested:
				walk(path+".", f.Nested)
			case ShapeSelect:
				paths = append(paths, path+"."+NameKey)
			case ShapeMap:
			default:
				paths = append(paths, path)
			}
		}
	}
	if schema.IsSelect() {
		return []string{NameKey}
	}
	walk("", schema)
	return paths
}

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	return func(path string) string {
		env := strings.ReplaceAll(path, ".", "_")
		env = strings.ToUpper(env)
		if prefix != "" {
			env = prefix + env
		}
		return env
	}
}
