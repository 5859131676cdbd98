// FILE: typeconf/parser_test.go
package typeconf

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type innerTest struct {
	Test int `toml:"test"`
}

type outerTest struct {
	Test   int       `toml:"test"`
	Nested innerTest `toml:"nested"`
}

type nestedRoot struct {
	Nested outerTest `toml:"nested"`
}

type listRoot struct {
	Test []int `toml:"test"`
}

func newTestParser(t *testing.T, v any, reg *Registry) *Parser {
	t.Helper()
	s, err := Inspect(v, reg)
	require.NoError(t, err)
	p, err := NewParser(s)
	require.NoError(t, err)
	return p
}

func TestParser(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("NestedDestinations", func(t *testing.T) {
		p := newTestParser(t, nestedRoot{}, reg)

		got, err := p.Parse([]string{"--nested.test", "123", "--nested.nested.test", "456"})
		require.NoError(t, err)

		want := Tree{"nested": Tree{"test": "123", "nested": Tree{"test": "456"}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ListDestination", func(t *testing.T) {
		p := newTestParser(t, listRoot{}, reg)

		got, err := p.Parse([]string{"--test", "123", "456"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"test": []any{"123", "456"}}, got)

		got, err = p.Parse([]string{"--test", "123"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"test": []any{"123"}}, got)
	})

	t.Run("UnknownDestination", func(t *testing.T) {
		p := newTestParser(t, nestedRoot{}, reg)

		_, err := p.Parse([]string{"--bogus", "1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownDest)
		assert.ErrorIs(t, err, ErrParse)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, "--bogus", parseErr.Token)
		assert.Equal(t, "bogus", parseErr.Dest)
	})

	t.Run("OnlySuppliedDestinations", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		got, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = p.Parse([]string{"--data.workers", "4"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"data": Tree{"workers": "4"}}, got)
	})

	t.Run("EveryLeafParsesToItsPath", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		dests := p.Destinations()
		assert.Equal(t, []string{"data.path", "data.workers", "debug", "epochs", "layers", "optimizer", "tags"}, dests)

		for _, dest := range dests {
			if dest == "tags" {
				continue
			}
			got, err := p.Parse([]string{"--" + dest, "v"})
			require.NoError(t, err, dest)

			flat := flattenTree(got, "")
			require.Len(t, flat, 1, dest)
			for path := range flat {
				if dest == "optimizer" {
					assert.Equal(t, "optimizer.name", path)
					continue
				}
				assert.Equal(t, dest, path)
			}
		}
	})

	t.Run("Toggle", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		got, err := p.Parse([]string{"--debug", "--epochs", "3"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"debug": "true", "epochs": "3"}, got)

		got, err = p.Parse([]string{"--debug", "false"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"debug": "false"}, got)
	})

	t.Run("EqualsForm", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		got, err := p.Parse([]string{"--epochs=7", "--data.path=/tmp/x=y"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"epochs": "7", "data": Tree{"path": "/tmp/x=y"}}, got)
	})

	t.Run("SelectSubKeys", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		got, err := p.Parse([]string{"--optimizer", "sgd", "--optimizer.lr", "0.5", "--optimizer.betas", "0.1", "0.2"})
		require.NoError(t, err)

		want := Tree{"optimizer": Tree{"name": "sgd", "lr": "0.5", "betas": []any{"0.1", "0.2"}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("SelectInterpolationFillsSlot", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		got, err := p.Parse([]string{"--optimizer", "${preset:fast}"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"optimizer": "${preset:fast}"}, got)

		got, err = p.Parse([]string{"--optimizer", "pre${preset:fast}"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"optimizer": Tree{"name": "pre${preset:fast}"}}, got)
	})

	t.Run("MapSubKeys", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		got, err := p.Parse([]string{"--tags.owner", "me", "--tags.team", "ml"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"tags": Tree{"owner": "me", "team": "ml"}}, got)

		_, err = p.Parse([]string{"--tags", "me"})
		assert.ErrorIs(t, err, ErrUnknownDest)
	})

	t.Run("SelectRoot", func(t *testing.T) {
		p := newTestParser(t, (*Slave)(nil), reg)
		require.NoError(t, p.AddArgument(ArgConfigPath, ArityOne))

		got, err := p.Parse([]string{"--test", "3", "4", "--name", "slave2", "--config_path", "x.toml"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"test": []any{"3", "4"}, "name": "slave2", "config_path": "x.toml"}, got)
		assert.Equal(t, []string{"config_path"}, p.Destinations())
	})

	t.Run("MalformedInput", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		cases := []struct {
			name   string
			tokens []string
			want   error
		}{
			{"Positional", []string{"epochs", "3"}, ErrPositional},
			{"MissingValue", []string{"--epochs"}, ErrMissingValue},
			{"MissingListValue", []string{"--layers", "--epochs", "1"}, ErrMissingValue},
			{"ExtraValue", []string{"--epochs", "1", "2"}, ErrExtraValue},
			{"SelectExtraValue", []string{"--optimizer", "adam", "sgd"}, ErrExtraValue},
			{"SectionAsLeaf", []string{"--data", "x"}, ErrUnknownDest},
			{"LeafAsSection", []string{"--epochs.x", "1"}, ErrUnknownDest},
			{"EmptySegment", []string{"--data..path", "x"}, ErrUnknownDest},
			{"MissingDynamicValue", []string{"--optimizer.lr"}, ErrMissingValue},
		}
		for _, tc := range cases {
			_, err := p.Parse(tc.tokens)
			assert.ErrorIs(t, err, tc.want, tc.name)
		}
	})

	t.Run("DynamicCollision", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		_, err := p.Parse([]string{"--optimizer.lr", "1", "--optimizer.lr.x", "2"})
		assert.ErrorIs(t, err, ErrCollision)
	})

	t.Run("AddArgument", func(t *testing.T) {
		p := newTestParser(t, defaultExperiment(), reg)

		require.NoError(t, p.AddArgument("run.id", ArityOne))
		assert.ErrorIs(t, p.AddArgument("epochs", ArityOne), ErrDuplicateDest)
		assert.ErrorIs(t, p.AddArgument("optimizer.extra", ArityOne), ErrDuplicateDest)

		got, err := p.Parse([]string{"--run.id", "abc"})
		require.NoError(t, err)
		assert.Equal(t, Tree{"run": Tree{"id": "abc"}}, got)
		assert.True(t, strings.Contains(strings.Join(p.Destinations(), ","), "run.id"))
	})
}
