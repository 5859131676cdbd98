// FILE: typeconf/loader_test.go
package typeconf

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("TOML", func(t *testing.T) {
		path := writeFile(t, dir, "exp.toml", `
epochs = 5
layers = [64, 32]

[optimizer]
name = "sgd"
lr = 0.5
`)
		got, err := LoadFile(path)
		require.NoError(t, err)

		want := Tree{
			"epochs":    int64(5),
			"layers":    []any{int64(64), int64(32)},
			"optimizer": Tree{"name": "sgd", "lr": 0.5},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("JSONKeepsNumbers", func(t *testing.T) {
		path := writeFile(t, dir, "exp.json", `{"test": 2, "big": 12345678901234567890, "nested": {"ok": true}}`)
		got, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, json.Number("2"), got["test"])
		assert.Equal(t, json.Number("12345678901234567890"), got["big"])
		assert.Equal(t, Tree{"ok": true}, got["nested"])
	})

	t.Run("YAML", func(t *testing.T) {
		path := writeFile(t, dir, "exp.yml", `
epochs: 3
stages:
  - path: a
    workers: 1
  - path: b
optimizer:
  name: adam
  betas: [0.1, 0.2]
`)
		got, err := LoadFile(path)
		require.NoError(t, err)

		want := Tree{
			"epochs":    3,
			"stages":    []any{Tree{"path": "a", "workers": 1}, Tree{"path": "b"}},
			"optimizer": Tree{"name": "adam", "betas": []any{0.1, 0.2}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("HCL", func(t *testing.T) {
		path := writeFile(t, dir, "exp.hcl", `
epochs = 4
layers = [8, 4]
ratio  = 0.25

optimizer {
  name = "sgd"
  lr   = 1.5
}

tags "env" {
  value = "prod"
}

stage {
  path = "a"
}

stage {
  path = "b"
}
`)
		got, err := LoadFile(path)
		require.NoError(t, err)

		want := Tree{
			"epochs":    int64(4),
			"layers":    []any{int64(8), int64(4)},
			"ratio":     0.25,
			"optimizer": Tree{"name": "sgd", "lr": 1.5},
			"tags":      Tree{"env": Tree{"value": "prod"}},
			"stage":     []any{Tree{"path": "a"}, Tree{"path": "b"}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ContentDetection", func(t *testing.T) {
		path := writeFile(t, dir, "app.conf", "port = 8080\n")
		got, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, int64(8080), got["port"])
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := LoadFile(dir + "/missing.toml")
		assert.ErrorIs(t, err, ErrConfigNotFound)

		py := writeFile(t, dir, "exp.py", "epochs = 3\n")
		_, err = LoadFile(py)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)

		bad := writeFile(t, dir, "bad.json", "{nope")
		_, err = LoadFile(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSON")

		badHCL := writeFile(t, dir, "bad.hcl", "a = \n")
		_, err = LoadFile(badHCL)
		assert.Error(t, err)
	})

	t.Run("MaxFileSize", func(t *testing.T) {
		path := writeFile(t, dir, "large.toml", "key = \""+strings.Repeat("x", 512)+"\"\n")
		_, err := loadFile(path, "", 64)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum size")
	})

	t.Run("ForcedFormat", func(t *testing.T) {
		path := writeFile(t, dir, "settings.txt", `{"a": "b"}`)
		got, err := loadFile(path, "json", 0)
		require.NoError(t, err)
		assert.Equal(t, Tree{"a": "b"}, got)
	})
}

func TestLoadEnv(t *testing.T) {
	reg := newTestRegistry(t)
	s, err := Inspect(defaultExperiment(), reg)
	require.NoError(t, err)

	paths := envPaths(s)
	assert.Equal(t, []string{"epochs", "debug", "layers", "data.path", "data.workers", "optimizer.name"}, paths)

	t.Setenv("EXP_EPOCHS", "12")
	t.Setenv("EXP_DATA_PATH", "/env")
	t.Setenv("EXP_OPTIMIZER_NAME", "sgd")

	got, err := loadEnv(paths, LoadOptions{EnvPrefix: "EXP_"})
	require.NoError(t, err)
	assert.Equal(t, Tree{"epochs": "12", "data": Tree{"path": "/env"}, "optimizer": Tree{"name": "sgd"}}, got)

	t.Run("CustomTransform", func(t *testing.T) {
		require.NoError(t, os.Setenv("custom.epochs", "1"))
		defer os.Unsetenv("custom.epochs")

		got, err := loadEnv(paths, LoadOptions{EnvTransform: func(path string) string { return "custom." + path }})
		require.NoError(t, err)
		assert.Equal(t, Tree{"epochs": "1"}, got)
	})

	t.Run("SelectRoot", func(t *testing.T) {
		root, err := Inspect((*Slave)(nil), reg)
		require.NoError(t, err)
		assert.Equal(t, []string{"name"}, envPaths(root))
	})
}
