// FILE: typeconf/fixtures_test.go
package typeconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Optimizer is the select base used across tests.
type Optimizer interface {
	Select
}

type Adam struct {
	LR    float64   `toml:"lr"`
	Betas []float64 `toml:"betas"`
}

func NewAdam() *Adam { return &Adam{LR: 1e-3, Betas: []float64{0.9, 0.999}} }

func (*Adam) SelectBase() string { return "optimizer" }

type SGD struct {
	LR       float64 `toml:"lr"`
	Momentum float64 `toml:"momentum"`
	Nesterov bool    `toml:"nesterov"`
}

func NewSGD() *SGD { return &SGD{LR: 0.1} }

func (*SGD) SelectBase() string { return "optimizer" }

// Slave is a base whose variants disagree on the type of the same key.
type Slave interface {
	Select
}

type Slave1 struct {
	Test int `toml:"test"`
}

func (*Slave1) SelectBase() string { return "slave" }

type Slave2 struct {
	Test []int `toml:"test"`
}

func (*Slave2) SelectBase() string { return "slave" }

type DataConfig struct {
	Path    string `toml:"path"`
	Workers int    `toml:"workers"`
}

type Experiment struct {
	Epochs    int               `toml:"epochs"`
	Debug     bool              `toml:"debug"`
	Layers    []int             `toml:"layers"`
	Data      DataConfig        `toml:"data"`
	Optimizer Optimizer         `toml:"optimizer"`
	Tags      map[string]string `toml:"tags,optional"`
}

func defaultExperiment() *Experiment {
	return &Experiment{
		Epochs:    10,
		Layers:    []int{32, 16},
		Data:      DataConfig{Path: "/data", Workers: 2},
		Optimizer: &Adam{LR: 0.01, Betas: []float64{0.8, 0.9}},
	}
}

// newTestRegistry returns a registry with the optimizer and slave bases.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	_, err := DefineBase[Optimizer](reg, "optimizer")
	require.NoError(t, err)
	_, err = DefineBase[Slave](reg, "slave")
	require.NoError(t, err)

	require.NoError(t, Register(reg, "optimizer", NewAdam, "adam"))
	require.NoError(t, Register(reg, "optimizer", NewSGD, "sgd", "SGD_momentum"))
	require.NoError(t, Register(reg, "slave", func() *Slave1 { return &Slave1{} }, "slave1"))
	require.NoError(t, Register(reg, "slave", func() *Slave2 { return &Slave2{} }, "slave2"))
	return reg
}

// writeFile writes content below dir and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
