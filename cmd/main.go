// FILE: cmd/main.go
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	typeconf "github.com/kilianyp/TypeConf"
	"github.com/kilianyp/TypeConf/example/mnist"
)

// configureLogger returns a text logger for development and JSON otherwise.
func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	logger := configureLogger(os.Getenv("MNIST_LOG_LEVEL"), os.Getenv("MNIST_LOG_DEV") != "")
	slog.SetDefault(logger)

	if err := run(os.Args[1:], logger); err != nil {
		logger.Error("mnist failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger) error {
	reg, err := mnist.NewRegistry()
	if err != nil {
		return err
	}
	reg.SetLogger(logger)

	var exp mnist.Config
	cfg, err := typeconf.NewBuilder(reg).
		WithDefaults(mnist.Defaults()).
		WithTarget(&exp).
		WithArgs(args).
		WithEnvPrefix("MNIST_").
		WithFileDiscovery(typeconf.DefaultDiscoveryOptions("mnist")).
		WithLogger(logger).
		Build()
	switch {
	case err == nil:
	case cfg != nil && errors.Is(err, typeconf.ErrConfigNotFound):
		logger.Warn("configuration file not found, using defaults", "error", err)
	default:
		var resolveErr *typeconf.ResolveError
		if errors.As(err, &resolveErr) {
			return fmt.Errorf("%w (registered: %s)", err, strings.Join(reg.Names(resolveErr.Base), ", "))
		}
		return err
	}

	logger.Info("configuration built",
		"file", cfg.FilePath(),
		"model", fmt.Sprintf("%T", exp.Model),
		"optimizer", fmt.Sprintf("%T", exp.Optimizer),
		"scheduler", fmt.Sprintf("%T", exp.LRScheduler))

	if err := cfg.Dump(os.Stdout); err != nil {
		return fmt.Errorf("dump configuration: %w", err)
	}
	logger.Debug(cfg.Debug())

	results := mnist.Simulate(&exp, []float64{0.5, -1.5, 2}, []float64{0, 0, 0})
	for _, r := range results {
		logger.Info("epoch finished", "epoch", r.Epoch, "lr", r.LR, "loss", r.Loss)
	}

	tracker := cfg.Track()
	for _, path := range []string{"epochs", "batch_size", "optimizer", "lr_scheduler", "model"} {
		tracker.Get(path)
	}
	logger.Info("configuration stats", "stats", tracker.Stats(), "unused", tracker.Unused())
	return nil
}
