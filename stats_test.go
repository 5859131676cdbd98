// FILE: typeconf/stats_test.go
package typeconf

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	tree := Tree{
		"epochs": int64(5),
		"debug":  "true",
		"ratio":  "0.5",
		"model": Tree{
			"name":   "net",
			"layers": Tree{"hidden": 128},
		},
		"seed": nil,
	}

	t.Run("CountsEveryPrefix", func(t *testing.T) {
		tr := Track(tree)

		_, ok := tr.Get("model.layers.hidden")
		require.True(t, ok)
		tr.Get("model.name")
		tr.Get("epochs")
		tr.Get("epochs")

		assert.Equal(t, map[string]int{
			"epochs":              2,
			"model":               2,
			"model.name":          1,
			"model.layers":        1,
			"model.layers.hidden": 1,
		}, tr.Stats())
		assert.Equal(t, []string{"debug", "ratio", "seed"}, tr.Unused())
	})

	t.Run("MissingPathsAreNotCounted", func(t *testing.T) {
		tr := Track(tree)
		_, ok := tr.Get("model.missing")
		assert.False(t, ok)
		assert.Empty(t, tr.Stats())
	})

	t.Run("SubSharesCounts", func(t *testing.T) {
		tr := Track(tree)
		model, err := tr.Sub("model")
		require.NoError(t, err)

		model.Get("name")
		assert.Equal(t, 2, tr.Stats()["model"])
		assert.Equal(t, 1, tr.Stats()["model.name"])
		assert.Equal(t, []string{"layers"}, model.Unused())

		_, err = tr.Sub("epochs")
		assert.Error(t, err)
		_, err = tr.Sub("nope")
		assert.Error(t, err)
	})

	t.Run("CopiesInput", func(t *testing.T) {
		in := Tree{"a": Tree{"b": 1}}
		tr := Track(in)
		in["a"].(Tree)["b"] = 2

		v, _ := tr.Get("a.b")
		assert.Equal(t, 1, v)
	})

	t.Run("Conversions", func(t *testing.T) {
		tr := Track(tree)

		epochs, err := tr.Int64("epochs")
		require.NoError(t, err)
		assert.Equal(t, int64(5), epochs)

		debug, err := tr.Bool("debug")
		require.NoError(t, err)
		assert.True(t, debug)

		ratio, err := tr.Float64("ratio")
		require.NoError(t, err)
		assert.Equal(t, 0.5, ratio)

		hidden, err := tr.String("model.layers.hidden")
		require.NoError(t, err)
		assert.Equal(t, "128", hidden)

		seed, err := tr.String("seed")
		require.NoError(t, err)
		assert.Empty(t, seed)

		_, err = tr.Int64("seed")
		assert.Error(t, err)
		_, err = tr.Bool("model.name")
		assert.Error(t, err)
		_, err = tr.Float64("missing")
		assert.Error(t, err)
	})

	t.Run("NumbersFromFiles", func(t *testing.T) {
		tr := Track(Tree{"n": json.Number("42"), "f": 2.9, "hex": "0x10", "on": int64(1)})

		n, err := tr.Int64("n")
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
		s, err := tr.String("n")
		require.NoError(t, err)
		assert.Equal(t, "42", s)

		f, err := tr.Int64("f")
		require.NoError(t, err)
		assert.Equal(t, int64(2), f)

		hex, err := tr.Int64("hex")
		require.NoError(t, err)
		assert.Equal(t, int64(16), hex)

		on, err := tr.Bool("on")
		require.NoError(t, err)
		assert.True(t, on)
	})

	t.Run("ConcurrentReads", func(t *testing.T) {
		tr := Track(tree)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					tr.Get("model.name")
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 800, tr.Stats()["model.name"])
	})
}
