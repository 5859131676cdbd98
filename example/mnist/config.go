// FILE: example/mnist/config.go

// Package mnist defines the configuration of the MNIST training example.
package mnist

import (
	"fmt"
	"math"

	typeconf "github.com/kilianyp/TypeConf"
	"github.com/kilianyp/TypeConf/example/models"
	"github.com/kilianyp/TypeConf/example/optim"
)

// Config is the experiment configuration.
type Config struct {
	BatchSize     int             `toml:"batch_size"`
	TestBatchSize int             `toml:"test_batch_size"`
	Epochs        int             `toml:"epochs"`
	NoCuda        bool            `toml:"no_cuda"`
	DryRun        bool            `toml:"dry_run"`
	Seed          int64           `toml:"seed"`
	LogInterval   int             `toml:"log_interval"`
	SaveModel     bool            `toml:"save_model"`
	DataDir       string          `toml:"data_dir"`
	Model         models.Model    `toml:"model"`
	Optimizer     optim.Optimizer `toml:"optimizer"`
	LRScheduler   optim.Scheduler `toml:"lr_scheduler"`
}

// Defaults returns the experiment defaults.
func Defaults() *Config {
	adadelta := optim.NewAdadelta()
	adadelta.LR = 1.0
	stepLR := optim.NewStepLR()
	stepLR.Gamma = 0.7

	return &Config{
		BatchSize:     64,
		TestBatchSize: 1000,
		Epochs:        14,
		Seed:          1,
		LogInterval:   10,
		SaveModel:     true,
		DataDir:       "..",
		Model:         models.NewNet(),
		Optimizer:     adadelta,
		LRScheduler:   stepLR,
	}
}

// NewRegistry returns a registry with every variant the experiment can select.
func NewRegistry() (*typeconf.Registry, error) {
	reg := typeconf.NewRegistry()
	if err := optim.Register(reg); err != nil {
		return nil, fmt.Errorf("register optimizers: %w", err)
	}
	if err := models.Register(reg); err != nil {
		return nil, fmt.Errorf("register models: %w", err)
	}
	return reg, nil
}

// EpochResult is the outcome of one simulated epoch.
type EpochResult struct {
	Epoch int
	LR    float64
	Loss  float64
}

// Simulate runs the configured optimizer and scheduler on a quadratic loss
// for cfg.Epochs epochs. It stands in for training so the example runs
// without data.
func Simulate(cfg *Config, params, target []float64) []EpochResult {
	stepper := cfg.Optimizer.New(params)
	base := stepper.LR()

	steps := max(1, cfg.BatchSize/8)
	if cfg.DryRun {
		steps = 1
	}

	results := make([]EpochResult, 0, max(0, cfg.Epochs))
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		stepper.SetLR(cfg.LRScheduler.Rate(base, epoch-1, 1))
		for i := 0; i < steps; i++ {
			stepper.Step(gradient(stepper.Params(), target))
		}
		results = append(results, EpochResult{Epoch: epoch, LR: stepper.LR(), Loss: loss(stepper.Params(), target)})
	}
	return results
}

func gradient(params, target []float64) []float64 {
	grads := make([]float64, len(params))
	for i := range params {
		grads[i] = 2 * (params[i] - target[i])
	}
	return grads
}

func loss(params, target []float64) float64 {
	var sum float64
	for i := range params {
		sum += math.Pow(params[i]-target[i], 2)
	}
	return sum
}
