// FILE: typeconf/convenience.go
package typeconf

import (
	"fmt"
	"os"
)

// Quick builds a configuration from defaults and args with the standard
// precedence CLI > file (--config_path) > defaults.
// This is the recommended way to initialize configuration for most applications
func Quick(defaults any, reg *Registry, args []string) (*Config, error) {
	if args == nil {
		args = os.Args[1:]
	}
	return NewBuilder(reg).
		WithDefaults(defaults).
		WithArgs(args).
		Build()
}

// MustQuick is like Quick but panics on error
func MustQuick(defaults any, reg *Registry, args []string) *Config {
	cfg, err := Quick(defaults, reg, args)
	if err != nil {
		panic(fmt.Sprintf("config initialization failed: %v", err))
	}
	return cfg
}

// Load builds the configuration for defaults and returns the constructed value.
func Load[T any](defaults T, reg *Registry, args []string) (T, error) {
	var out T
	cfg, err := Quick(defaults, reg, args)
	if err != nil {
		return out, err
	}
	if err := cfg.Scan(&out); err != nil {
		return out, err
	}
	return out, nil
}
