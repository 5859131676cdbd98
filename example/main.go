// FILE: example/main.go
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	typeconf "github.com/kilianyp/TypeConf"
	"github.com/kilianyp/TypeConf/example/mnist"
)

const experimentFile = "experiment.toml"

func main() {
	// =========================================================================
	// PART 1: INITIAL SETUP
	// Write an experiment file, a preset directory and a system file.
	// =========================================================================
	log.Println("---")
	log.Println("PART 1: Creating experiment, preset and system files...")

	dir, err := os.MkdirTemp("", "typeconf-example-")
	if err != nil {
		log.Fatalf("Failed to create working directory: %v", err)
	}
	defer func() {
		log.Println("---")
		log.Println("Cleaning up...")
		os.RemoveAll(dir)
		log.Printf("Removed %s.", dir)
	}()

	presets := filepath.Join(dir, "presets")
	files := map[string]string{
		filepath.Join(presets, "adagrad_fast.toml"): "name = \"Adagrad\"\nlr = 0.1\nlr_decay = 0.01\n",
		filepath.Join(dir, "system.yaml"):            "paths:\n  data: /tmp/mnist\n",
		filepath.Join(dir, experimentFile): `epochs = 3
data_dir = "${system:paths.data}"
optimizer = "${preset:adagrad_fast}"

[model]
name = "mlp"
hidden = [256, 64]
`,
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	log.Printf("Files written to %s.", dir)

	// =========================================================================
	// PART 2: BUILD
	// The file selects Adagrad through a preset; the command line overrides
	// one of its fields and the scheduler gamma.
	// =========================================================================
	log.Println("---")
	log.Println("PART 2: Building the configuration...")

	reg, err := mnist.NewRegistry()
	if err != nil {
		log.Fatalf("Registry setup failed: %v", err)
	}

	args := []string{
		"--config_path", filepath.Join(dir, experimentFile),
		"--presets", presets,
		"--system", filepath.Join(dir, "system.yaml"),
		"--optimizer.lr", "0.05",
		"--lr_scheduler.gamma", "0.5",
		"--dry_run",
	}
	log.Printf("   args: %v", args)

	target := mnist.Defaults()
	cfg, err := typeconf.NewBuilder(reg).
		WithDefaults(mnist.Defaults()).
		WithTarget(target).
		WithArgs(args).
		WithValidator(func(c *typeconf.Config) error {
			epochs, _ := c.Get("epochs")
			if fmt.Sprint(epochs) == "0" {
				return errors.New("epochs must be positive")
			}
			return nil
		}).
		Build()
	if err != nil {
		log.Fatalf("Builder failed: %v", err)
	}
	log.Println("Builder finished successfully.")
	printExperiment(target)

	// =========================================================================
	// PART 3: RUN
	// Simulate training and show which settings were read.
	// =========================================================================
	log.Println("---")
	log.Println("PART 3: Simulating training...")

	for _, r := range mnist.Simulate(target, []float64{1, -2, 3}, []float64{0, 0, 0}) {
		log.Printf("   epoch %d  lr %.4f  loss %.6f", r.Epoch, r.LR, r.Loss)
	}

	tracker := cfg.Track()
	for _, path := range []string{"epochs", "optimizer.name", "optimizer.lr", "model.name"} {
		if v, ok := tracker.Get(path); ok {
			log.Printf("   %s = %v", path, v)
		}
	}
	log.Printf("Access stats: %v", tracker.Stats())
	log.Printf("Unused keys: %v", tracker.Unused())
}

// printExperiment displays the constructed configuration.
func printExperiment(cfg *mnist.Config) {
	fmt.Println("   --------------------------------------------------")
	fmt.Printf("     Epochs:      %d (dry run: %v)\n", cfg.Epochs, cfg.DryRun)
	fmt.Printf("     Data dir:    %s\n", cfg.DataDir)
	fmt.Printf("     Model:       %T %v\n", cfg.Model, cfg.Model.Layers())
	fmt.Printf("     Optimizer:   %T %+v\n", cfg.Optimizer, cfg.Optimizer)
	fmt.Printf("     Scheduler:   %T %+v\n", cfg.LRScheduler, cfg.LRScheduler)
	fmt.Println("   --------------------------------------------------")
}
