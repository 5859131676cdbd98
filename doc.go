// FILE: typeconf/doc.go

// Package typeconf turns Go struct schemas into a command-line surface, merges
// defaults, configuration files, environment variables and command-line
// overrides into one tree, and constructs typed values from it. Fields declared
// with a select interface are polymorphic: the concrete type is chosen at run
// time from the "name" key of their table.
//
// Features:
//   - Dotted command-line overrides (--model.lr 0.1, --layers 1 2 3)
//   - Deep merge with configurable precedence and structural collision checks
//   - Select fields resolved through an explicit Registry, case-insensitive and alias-capable
//   - TOML, JSON, YAML and HCL files, with ${preset:file} and ${system:var} interpolation
//   - Field access statistics through Tracker
//
// Quick Start:
//
//	type Optimizer interface{ typeconf.Select }
//
//	type Adam struct {
//	    LR float64 `toml:"lr"`
//	}
//
//	func (*Adam) SelectBase() string { return "optimizer" }
//
//	type Experiment struct {
//	    Epochs    int       `toml:"epochs"`
//	    Optimizer Optimizer `toml:"optimizer"`
//	}
//
//	reg := typeconf.NewRegistry()
//	typeconf.DefineBase[Optimizer](reg, "optimizer")
//	typeconf.Register(reg, "optimizer", func() *Adam { return &Adam{LR: 1e-3} }, "adam")
//
//	cfg, err := typeconf.Quick(Experiment{Epochs: 10}, reg, os.Args[1:])
//	// ./train --optimizer adam --optimizer.lr 0.01 --epochs 5
//
// Default Precedence (highest to lowest):
//  1. Command-line arguments (--epochs 5)
//  2. Environment variables (MYAPP_EPOCHS=5), when enabled with WithEnvPrefix
//  3. Configuration file (--config_path exp.toml)
//  4. Default values
//
// Reserved arguments: --config_path names the configuration file, --presets adds
// preset directories and --system loads the system variable table.
package typeconf
