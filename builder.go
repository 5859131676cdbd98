// FILE: typeconf/builder.go
package typeconf

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
)

// ValidatorFunc defines the signature for a function that can validate a Config instance.
// It receives the fully built *Config object and should return an error if validation fails.
type ValidatorFunc func(c *Config) error

// Builder provides a fluent interface for building configurations
type Builder struct {
	registry    *Registry
	opts        LoadOptions
	defaults    any
	target      any
	file        string
	discovery   *FileDiscoveryOptions
	args        []string
	presetDirs  []string
	systemFiles []string
	schemes     map[string]SchemeFunc
	logger      *slog.Logger
	err         error
	validators  []ValidatorFunc
}

// NewBuilder creates a new configuration builder resolving select fields
// against reg. A nil reg is allowed for schemas without select fields.
func NewBuilder(reg *Registry) *Builder {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Builder{
		registry:   reg,
		opts:       DefaultLoadOptions(),
		args:       os.Args[1:],
		schemes:    make(map[string]SchemeFunc),
		logger:     discardLogger(),
		validators: make([]ValidatorFunc, 0),
	}
}

// WithDefaults sets the struct containing default values. It also defines
// the schema. A nil pointer to a select interface, e.g. (*Model)(nil), makes
// the root itself polymorphic.
func (b *Builder) WithDefaults(defaults any) *Builder {
	b.defaults = defaults
	return b
}

// WithTarget sets a pointer that receives the constructed configuration at the
// end of Build. Without WithDefaults, its current value defines the schema
// and the defaults.
func (b *Builder) WithTarget(target any) *Builder {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		b.err = fmt.Errorf("target must be a non-nil pointer, got %T", target)
		return b
	}
	b.target = target
	return b
}

// WithEnvPrefix sets the environment variable prefix and enables the
// environment source just above the file.
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.opts.EnvPrefix = prefix
	if !slices.Contains(b.opts.Sources, SourceEnv) {
		idx := slices.Index(b.opts.Sources, SourceFile)
		if idx < 0 {
			idx = len(b.opts.Sources)
		}
		b.opts.Sources = slices.Insert(slices.Clone(b.opts.Sources), idx, SourceEnv)
	}
	return b
}

// WithFile sets the configuration file path. A --config_path argument takes
// precedence.
func (b *Builder) WithFile(path string) *Builder {
	b.file = path
	return b
}

// WithArgs sets the command-line arguments
func (b *Builder) WithArgs(args []string) *Builder {
	b.args = args
	return b
}

// WithSources sets the precedence order for configuration sources, highest first
func (b *Builder) WithSources(sources ...Source) *Builder {
	for _, s := range sources {
		switch s {
		case SourceDefault, SourceFile, SourceEnv, SourceCLI:
		default:
			b.err = fmt.Errorf("unknown configuration source %q", s)
			return b
		}
	}
	b.opts.Sources = sources
	return b
}

// WithEnvTransform sets a custom environment variable transformer
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	b.opts.EnvTransform = fn
	return b
}

// WithTagName sets the struct tag holding field names
func (b *Builder) WithTagName(tagName string) *Builder {
	switch tagName {
	case "toml", "json", "yaml", "hcl", "mapstructure":
		b.opts.TagName = tagName
	default:
		b.err = fmt.Errorf("unsupported tag name %q, must be one of: toml, json, yaml, hcl, mapstructure", tagName)
	}
	return b
}

// WithFileFormat forces the configuration file format
func (b *Builder) WithFileFormat(format string) *Builder {
	switch format {
	case "toml", "json", "yaml", "hcl", "auto", "":
		b.opts.FileFormat = format
	default:
		b.err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return b
}

// WithMaxFileSize limits the size of configuration files read from disk
func (b *Builder) WithMaxFileSize(size int64) *Builder {
	b.opts.MaxFileSize = size
	return b
}

// WithPresetDir adds a directory searched by ${preset:...}. Directories given
// with --presets are searched after these.
func (b *Builder) WithPresetDir(dir string) *Builder {
	b.presetDirs = append(b.presetDirs, dir)
	return b
}

// WithSystemFile loads system variables consulted by ${system:...}.
func (b *Builder) WithSystemFile(path string) *Builder {
	b.systemFiles = append(b.systemFiles, path)
	return b
}

// WithScheme registers an additional ${scheme:arg} handler
func (b *Builder) WithScheme(scheme string, fn SchemeFunc) *Builder {
	b.schemes[scheme] = fn
	return b
}

// WithLogger sets the logger for build records. The registry keeps its own logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithValidator adds a validation function that runs at the end of the build process
// Multiple validators can be added and are executed in the order they are added
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build parses the arguments, loads every enabled source, merges them by
// precedence, resolves select fields and constructs the value.
// A missing file set with WithFile is not fatal: the Config is returned
// together with an error wrapping ErrConfigNotFound.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}

	root := b.defaults
	if root == nil {
		root = b.target
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no defaults or target given", ErrInvalidSchema)
	}

	schema, err := InspectWithTag(root, b.registry, b.opts.TagName)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect configuration: %w", err)
	}

	cfg := &Config{
		registry: b.registry,
		schema:   schema,
		options:  b.opts,
		sources:  make(map[Source]Tree),
	}

	// 1. Command line, including the reserved destinations
	parser, err := NewParser(schema)
	if err != nil {
		return nil, err
	}
	parser.SetLogger(b.logger)
	for dest, arity := range map[string]Arity{ArgConfigPath: ArityOne, ArgPresets: ArityList, ArgSystem: ArityOne} {
		if err := parser.AddArgument(dest, arity); err != nil {
			return nil, err
		}
	}
	cli, err := parser.Parse(b.args)
	if err != nil {
		return nil, err
	}

	interp := NewInterpolator()
	interp.SetLogger(b.logger)
	for scheme, fn := range b.schemes {
		if err := interp.Register(scheme, fn); err != nil {
			return nil, err
		}
	}
	configPath, explicit, err := b.consumeReserved(cli, interp)
	if err != nil {
		return nil, err
	}

	var loadErrors []error
	enabled := func(s Source) bool { return slices.Contains(b.opts.Sources, s) }

	// 2. Defaults
	if enabled(SourceDefault) {
		cfg.sources[SourceDefault] = schema.DefaultTree()
	}

	// 3. File
	if enabled(SourceFile) && configPath != "" {
		fileTree, err := loadFile(configPath, b.opts.FileFormat, b.opts.MaxFileSize)
		switch {
		case err == nil:
			cfg.sources[SourceFile] = fileTree
			cfg.filePath = configPath
			b.logger.Debug("configuration file loaded", "path", configPath)
		case errors.Is(err, ErrConfigNotFound) && !explicit:
			loadErrors = append(loadErrors, err)
		default:
			return nil, err
		}
	}

	// 4. Environment
	if enabled(SourceEnv) {
		envTree, err := loadEnv(envPaths(schema), b.opts)
		if err != nil {
			return nil, err
		}
		if len(envTree) > 0 {
			cfg.sources[SourceEnv] = envTree
		}
	}

	if enabled(SourceCLI) {
		cfg.sources[SourceCLI] = cli
	}

	// 5. Interpolate each source, then merge
	for source, tree := range cfg.sources {
		interpolated, err := interp.Interpolate(tree)
		if err != nil {
			return nil, fmt.Errorf("%s source: %w", source, err)
		}
		cfg.sources[source] = interpolated
	}

	merged, err := MergeSources(cfg.sources, b.opts.Sources)
	if err != nil {
		return nil, err
	}
	cfg.merged = merged
	b.logger.Debug("sources merged", "precedence", b.opts.Sources, "keys", len(merged))

	// 6. Resolve select fields and construct
	resolver := NewResolver(b.registry, b.opts.TagName)
	resolver.SetLogger(b.logger)
	resolved, err := resolver.Resolve(schema, merged)
	if err != nil {
		return nil, err
	}
	cfg.resolved = resolved

	value := reflect.New(schema.Type)
	d := &decoder{tagName: b.opts.TagName}
	if err := d.decode(resolved, merged, value.Interface()); err != nil {
		return nil, err
	}
	cfg.value = value

	// 7. Validate
	for _, validator := range b.validators {
		if err := validator(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	if b.target != nil {
		if err := cfg.Scan(b.target); err != nil {
			return nil, fmt.Errorf("failed to scan final config into target: %w", err)
		}
	}

	// ErrConfigNotFound or nil
	return cfg, errors.Join(loadErrors...)
}

// consumeReserved removes config_path, presets and system from the parsed
// command line and applies them. It returns the configuration file to load
// and whether it was named explicitly on the command line.
func (b *Builder) consumeReserved(cli Tree, interp *Interpolator) (string, bool, error) {
	for _, dir := range b.presetDirs {
		interp.AddPresetDir(dir)
	}
	if dirs, ok := cli[ArgPresets].([]any); ok {
		for _, dir := range dirs {
			interp.AddPresetDir(fmt.Sprint(dir))
		}
	}
	delete(cli, ArgPresets)

	systemFiles := slices.Clone(b.systemFiles)
	if path, ok := cli[ArgSystem].(string); ok {
		systemFiles = append(systemFiles, path)
	}
	delete(cli, ArgSystem)
	for _, path := range systemFiles {
		if err := interp.LoadSystem(path); err != nil {
			return "", false, err
		}
	}

	if path, ok := cli[ArgConfigPath].(string); ok {
		delete(cli, ArgConfigPath)
		return path, true, nil
	}

	path := b.file
	if path == "" && b.discovery != nil {
		path, _ = DiscoverFile(*b.discovery)
	}
	return path, false, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		// Ignore ErrConfigNotFound as it is not a fatal error for MustBuild.
		// The application can proceed with defaults/env vars.
		if cfg == nil || !errors.Is(err, ErrConfigNotFound) {
			panic(fmt.Sprintf("config build failed: %v", err))
		}
	}
	return cfg
}

// BuildAndScan builds and constructs the final configuration into the provided target pointer
func (b *Builder) BuildAndScan(target any) error {
	cfg, err := b.Build()
	if cfg == nil {
		return err
	}

	if err := cfg.Scan(target); err != nil {
		return fmt.Errorf("failed to scan final config into target: %w", err)
	}

	// ErrConfigNotFound or nil
	return err
}
