// FILE: typeconf/discovery_test.go
package typeconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFile(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		opts := DefaultDiscoveryOptions("trainer")
		assert.Equal(t, "TRAINER_CONFIG", opts.EnvVar)
		assert.Equal(t, supportedExtensions, opts.Extensions)
		assert.True(t, opts.UseXDG)
		assert.True(t, opts.UseCurrentDir)
	})

	t.Run("EnvVarWins", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "app.toml", "a = 1\n")
		t.Setenv("APP_CONFIG", "/explicit/app.json")

		path, ok := DiscoverFile(FileDiscoveryOptions{Name: "app", Paths: []string{dir}, EnvVar: "APP_CONFIG"})
		require.True(t, ok)
		assert.Equal(t, "/explicit/app.json", path)
	})

	t.Run("PathsInOrder", func(t *testing.T) {
		first, second := t.TempDir(), t.TempDir()
		want := writeFile(t, second, "app.yaml", "a: 1\n")
		writeFile(t, second, "app.json", "{}")

		path, ok := DiscoverFile(FileDiscoveryOptions{
			Name:       "app",
			Paths:      []string{first, second},
			Extensions: []string{".yaml", ".json"},
		})
		require.True(t, ok)
		assert.Equal(t, want, path)
	})

	t.Run("DirectoriesIgnored", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "app.toml"), 0o755))

		_, ok := DiscoverFile(FileDiscoveryOptions{Name: "app", Paths: []string{dir}})
		assert.False(t, ok)
	})

	t.Run("XDGConfigHome", func(t *testing.T) {
		home := t.TempDir()
		want := writeFile(t, filepath.Join(home, "app"), "app.hcl", "a = 1\n")
		t.Setenv("XDG_CONFIG_HOME", home)
		t.Setenv("XDG_CONFIG_DIRS", t.TempDir())

		path, ok := DiscoverFile(FileDiscoveryOptions{Name: "app", UseXDG: true})
		require.True(t, ok)
		assert.Equal(t, want, path)
	})

	t.Run("NothingFound", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("XDG_CONFIG_DIRS", t.TempDir())

		_, ok := DiscoverFile(FileDiscoveryOptions{Name: "missing-app", Paths: []string{t.TempDir()}, UseXDG: true})
		assert.False(t, ok)
	})
}
