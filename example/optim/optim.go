// FILE: example/optim/optim.go

// Package optim holds optimizer and learning-rate scheduler variants that can
// be selected by name from configuration.
package optim

import (
	"errors"
	"math"

	typeconf "github.com/kilianyp/TypeConf"
)

// Base names used in configuration trees.
const (
	OptimizerBase = "optimizer"
	SchedulerBase = "lr_scheduler"
)

// Optimizer is a select field choosing the update rule.
type Optimizer interface {
	typeconf.Select
	// New returns an optimizer state over params.
	New(params []float64) Stepper
}

// Stepper applies one update per call.
type Stepper interface {
	Step(grads []float64)
	Params() []float64
	LR() float64
	SetLR(lr float64)
}

// Scheduler is a select field choosing how the learning rate decays.
type Scheduler interface {
	typeconf.Select
	// Rate returns the learning rate for epoch given the initial rate.
	Rate(base float64, epoch, stepSize int) float64
}

// Register adds the optimizer and scheduler bases and their variants to reg.
func Register(reg *typeconf.Registry) error {
	_, err := typeconf.DefineBase[Optimizer](reg, OptimizerBase)
	if err != nil {
		return err
	}
	if _, err := typeconf.DefineBase[Scheduler](reg, SchedulerBase); err != nil {
		return err
	}
	return errors.Join(
		typeconf.Register(reg, OptimizerBase, NewAdadelta, "Adadelta"),
		typeconf.Register(reg, OptimizerBase, NewAdagrad, "Adagrad"),
		typeconf.Register(reg, SchedulerBase, NewStepLR, "step_lr", "steplr"),
	)
}

// Adadelta configures the Adadelta update rule.
type Adadelta struct {
	LR          float64 `toml:"lr"`
	Rho         float64 `toml:"rho"`
	Eps         float64 `toml:"eps"`
	WeightDecay float64 `toml:"weight_decay"`
}

// NewAdadelta returns Adadelta with its defaults.
func NewAdadelta() *Adadelta {
	return &Adadelta{LR: 1.0, Rho: 0.9, Eps: 1e-6}
}

func (*Adadelta) SelectBase() string { return OptimizerBase }

func (a *Adadelta) New(params []float64) Stepper {
	return &adadeltaState{
		cfg:      *a,
		lr:       a.LR,
		params:   append([]float64(nil), params...),
		sqAvg:    make([]float64, len(params)),
		accDelta: make([]float64, len(params)),
	}
}

type adadeltaState struct {
	cfg      Adadelta
	lr       float64
	params   []float64
	sqAvg    []float64
	accDelta []float64
}

func (s *adadeltaState) Step(grads []float64) {
	rho := s.cfg.Rho
	for i := range s.params {
		g := grads[i] + s.cfg.WeightDecay*s.params[i]
		s.sqAvg[i] = rho*s.sqAvg[i] + (1-rho)*g*g
		delta := math.Sqrt(s.accDelta[i]+s.cfg.Eps) / math.Sqrt(s.sqAvg[i]+s.cfg.Eps) * g
		s.accDelta[i] = rho*s.accDelta[i] + (1-rho)*delta*delta
		s.params[i] -= s.lr * delta
	}
}

func (s *adadeltaState) Params() []float64 { return append([]float64(nil), s.params...) }
func (s *adadeltaState) LR() float64       { return s.lr }
func (s *adadeltaState) SetLR(lr float64)  { s.lr = lr }

// Adagrad configures the Adagrad update rule.
type Adagrad struct {
	LR                      float64 `toml:"lr"`
	LRDecay                 float64 `toml:"lr_decay"`
	WeightDecay             float64 `toml:"weight_decay"`
	Eps                     float64 `toml:"eps"`
	InitialAccumulatorValue float64 `toml:"initial_accumulator_value"`
}

// NewAdagrad returns Adagrad with its defaults.
func NewAdagrad() *Adagrad {
	return &Adagrad{LR: 1e-2, Eps: 1e-10}
}

func (*Adagrad) SelectBase() string { return OptimizerBase }

func (a *Adagrad) New(params []float64) Stepper {
	sum := make([]float64, len(params))
	for i := range sum {
		sum[i] = a.InitialAccumulatorValue
	}
	return &adagradState{cfg: *a, lr: a.LR, params: append([]float64(nil), params...), sum: sum}
}

type adagradState struct {
	cfg    Adagrad
	lr     float64
	step   int
	params []float64
	sum    []float64
}

func (s *adagradState) Step(grads []float64) {
	s.step++
	clr := s.lr / (1 + float64(s.step-1)*s.cfg.LRDecay)
	for i := range s.params {
		g := grads[i] + s.cfg.WeightDecay*s.params[i]
		s.sum[i] += g * g
		s.params[i] -= clr * g / (math.Sqrt(s.sum[i]) + s.cfg.Eps)
	}
}

func (s *adagradState) Params() []float64 { return append([]float64(nil), s.params...) }
func (s *adagradState) LR() float64       { return s.lr }
func (s *adagradState) SetLR(lr float64)  { s.lr = lr }

// StepLR decays the learning rate by Gamma every stepSize epochs.
type StepLR struct {
	Gamma     float64 `toml:"gamma"`
	LastEpoch int     `toml:"last_epoch"`
	Verbose   bool    `toml:"verbose"`
}

// NewStepLR returns StepLR with its defaults.
func NewStepLR() *StepLR {
	return &StepLR{Gamma: 0.1, LastEpoch: -1}
}

func (*StepLR) SelectBase() string { return SchedulerBase }

func (s *StepLR) Rate(base float64, epoch, stepSize int) float64 {
	if stepSize <= 0 {
		return base
	}
	if s.LastEpoch >= 0 {
		epoch += s.LastEpoch + 1
	}
	return base * math.Pow(s.Gamma, float64(epoch/stepSize))
}
