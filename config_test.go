// FILE: typeconf/config_test.go
package typeconf

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildExperiment(t *testing.T, args ...string) *Config {
	t.Helper()
	cfg, err := NewBuilder(newTestRegistry(t)).
		WithDefaults(defaultExperiment()).
		WithArgs(args).
		Build()
	require.NoError(t, err)
	return cfg
}

func TestConfig(t *testing.T) {
	t.Run("GetReturnsCopies", func(t *testing.T) {
		cfg := buildExperiment(t, "--data.workers", "6")

		data, ok := cfg.Get("data")
		require.True(t, ok)
		data.(Tree)["workers"] = "changed"

		workers, ok := cfg.Get("data.workers")
		require.True(t, ok)
		assert.Equal(t, "6", workers)

		_, ok = cfg.Get("data.missing")
		assert.False(t, ok)
	})

	t.Run("TypedSlicesAreCopied", func(t *testing.T) {
		defaults := defaultExperiment()
		cfg, err := NewBuilder(newTestRegistry(t)).
			WithDefaults(defaults).
			WithArgs([]string{}).
			Build()
		require.NoError(t, err)

		layers, ok := cfg.Get("layers")
		require.True(t, ok)
		layers.([]int)[0] = 999
		defaults.Layers[1] = 777

		again, _ := cfg.Get("layers")
		assert.Equal(t, []int{32, 16}, again)
		assert.Equal(t, []int{32, 16}, cfg.Source(SourceDefault)["layers"])
		assert.Equal(t, []int{32, 777}, defaults.Layers)
	})

	t.Run("SourcesAndSchemas", func(t *testing.T) {
		cfg := buildExperiment(t, "--optimizer", "sgd")

		assert.Equal(t, Tree{"optimizer": Tree{"name": "sgd"}}, cfg.Source(SourceCLI))
		assert.Nil(t, cfg.Source(SourceFile))
		assert.Equal(t, 10, cfg.Source(SourceDefault)["epochs"])

		f, ok := cfg.Resolved().Field("optimizer")
		require.True(t, ok)
		assert.Equal(t, "sgd", f.Nested.Variant.Name())
		assert.Equal(t, cfg.Schema().Type, cfg.Resolved().Type)

		exp, ok := cfg.Value().(*Experiment)
		require.True(t, ok)
		assert.Equal(t, NewSGD(), exp.Optimizer)
	})

	t.Run("ScanIsIndependent", func(t *testing.T) {
		cfg := buildExperiment(t)

		var a, b Experiment
		require.NoError(t, cfg.Scan(&a))
		require.NoError(t, cfg.Scan(&b))
		a.Layers[0] = 999
		a.Optimizer.(*Adam).LR = 5

		assert.Equal(t, 32, b.Layers[0])
		assert.Equal(t, 0.01, b.Optimizer.(*Adam).LR)
		assert.Error(t, cfg.Scan(&DataConfig{}))
	})

	t.Run("Validate", func(t *testing.T) {
		cfg := buildExperiment(t, "--epochs", "3")

		assert.NoError(t, cfg.Validate("epochs"))
		err := cfg.Validate("epochs", "data.path", "optimizer.name")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data.path, optimizer.name")
	})

	t.Run("StatsThroughTrack", func(t *testing.T) {
		cfg := buildExperiment(t)

		assert.Same(t, cfg.Track(), cfg.Track())
		cfg.Track().Get("epochs")
		cfg.Track().Get("optimizer.name")

		assert.Equal(t, 1, cfg.Stats()["epochs"])
		assert.Equal(t, []string{"data", "debug", "layers"}, cfg.Unused())
	})

	t.Run("DebugAndDump", func(t *testing.T) {
		cfg := buildExperiment(t, "--epochs", "3")

		debug := cfg.Debug()
		assert.Contains(t, debug, "epochs:")
		assert.Contains(t, debug, "cli: 3")
		assert.Contains(t, debug, "default: 10")
		assert.Contains(t, debug, "Constructed value:")
		assert.Contains(t, debug, "Adam")

		var buf bytes.Buffer
		require.NoError(t, cfg.Dump(&buf))
		var dumped Tree
		_, err := toml.Decode(buf.String(), &dumped)
		require.NoError(t, err)
		assert.Equal(t, "3", dumped["epochs"])
		assert.Equal(t, "adam", dumped["optimizer"].(map[string]any)["name"])
	})

	t.Run("SaveAndReload", func(t *testing.T) {
		dir := t.TempDir()
		cfg := buildExperiment(t, "--optimizer.lr", "0.2")

		merged := filepath.Join(dir, "merged.toml")
		require.NoError(t, cfg.Save(merged))
		cli := filepath.Join(dir, "cli.json")
		require.NoError(t, cfg.SaveSource(cli, SourceCLI))

		var got Experiment
		_, err := NewBuilder(newTestRegistry(t)).
			WithDefaults(defaultExperiment()).
			WithTarget(&got).
			WithArgs([]string{"--config_path", merged}).
			Build()
		require.NoError(t, err)
		assert.Equal(t, &Adam{LR: 0.2, Betas: []float64{0.8, 0.9}}, got.Optimizer)

		loaded, err := LoadFile(cli)
		require.NoError(t, err)
		assert.Equal(t, Tree{"optimizer": Tree{"lr": "0.2"}}, loaded)
	})
}
