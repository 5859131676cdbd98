// FILE: typeconf/save_test.go
package typeconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()
	tree := Tree{
		"epochs": 3,
		"layers": []any{8, 4},
		"optimizer": Tree{
			"name": "sgd",
			"lr":   0.5,
		},
	}

	for _, name := range []string{"out.toml", "out.json", "out.yaml", "out.hcl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveFile(path, tree))

			loaded, err := LoadFile(path)
			require.NoError(t, err)

			tr := Track(loaded)
			epochs, err := tr.Int64("epochs")
			require.NoError(t, err)
			assert.Equal(t, int64(3), epochs)
			lr, err := tr.Float64("optimizer.lr")
			require.NoError(t, err)
			assert.Equal(t, 0.5, lr)
			optName, err := tr.String("optimizer.name")
			require.NoError(t, err)
			assert.Equal(t, "sgd", optName)
			layers, ok := tr.Get("layers")
			require.True(t, ok)
			assert.Len(t, layers, 2)
		})
	}

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		sub := t.TempDir()
		require.NoError(t, SaveFile(filepath.Join(sub, "cfg.toml"), tree))
		require.NoError(t, SaveFile(filepath.Join(sub, "cfg.toml"), Tree{"epochs": 4}))

		entries, err := os.ReadDir(sub)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		loaded, err := LoadFile(filepath.Join(sub, "cfg.toml"))
		require.NoError(t, err)
		assert.Equal(t, Tree{"epochs": int64(4)}, loaded)
	})

	t.Run("UnsupportedExtension", func(t *testing.T) {
		err := SaveFile(filepath.Join(dir, "out.ini"), tree)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
