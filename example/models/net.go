// FILE: example/models/net.go

// Package models holds the network variants of the MNIST example.
package models

import (
	"fmt"

	typeconf "github.com/kilianyp/TypeConf"
)

// Base is the select base name of models.
const Base = "model"

// Model is a select field choosing the network.
type Model interface {
	typeconf.Select
	// Layers describes the network, one entry per layer.
	Layers() []string
}

// Register adds the model base and its variants to reg.
func Register(reg *typeconf.Registry) error {
	if _, err := typeconf.DefineBase[Model](reg, Base); err != nil {
		return err
	}
	if err := typeconf.Register(reg, Base, NewNet, "net"); err != nil {
		return err
	}
	return typeconf.Register(reg, Base, NewMLP, "mlp")
}

// Net is the two-convolution MNIST network.
type Net struct {
	DropoutRate1 float64 `toml:"dropout_rate1"`
	DropoutRate2 float64 `toml:"dropout_rate2"`
}

func NewNet() *Net {
	return &Net{DropoutRate1: 0.25, DropoutRate2: 0.5}
}

func (*Net) SelectBase() string { return Base }

func (n *Net) Layers() []string {
	return []string{
		"conv2d(1, 32, 3)",
		"conv2d(32, 64, 3)",
		"max_pool2d(2)",
		fmt.Sprintf("dropout(%g)", n.DropoutRate1),
		"linear(9216, 128)",
		fmt.Sprintf("dropout(%g)", n.DropoutRate2),
		"linear(128, 10)",
	}
}

// MLP is a fully connected network with configurable hidden sizes.
type MLP struct {
	Hidden  []int   `toml:"hidden"`
	Dropout float64 `toml:"dropout"`
}

func NewMLP() *MLP {
	return &MLP{Hidden: []int{128}, Dropout: 0.2}
}

func (*MLP) SelectBase() string { return Base }

func (m *MLP) Layers() []string {
	layers := make([]string, 0, len(m.Hidden)*2+1)
	in := 784
	for _, h := range m.Hidden {
		layers = append(layers, fmt.Sprintf("linear(%d, %d)", in, h))
		if m.Dropout > 0 {
			layers = append(layers, fmt.Sprintf("dropout(%g)", m.Dropout))
		}
		in = h
	}
	return append(layers, fmt.Sprintf("linear(%d, 10)", in))
}
