// FILE: typeconf/save.go
package typeconf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// SaveFile writes tree atomically in the format implied by the extension of path.
func SaveFile(path string, tree Tree) error {
	ext := strings.ToLower(filepath.Ext(path))
	format := detectFileFormat(ext)
	if format == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	data, err := encodeFormat(tree, format)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data)
}

// encodeFormat marshals tree in the named format
func encodeFormat(tree Tree, format string) ([]byte, error) {
	switch format {
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return nil, fmt.Errorf("failed to marshal config data to TOML: %w", err)
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config data to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config data to YAML: %w", err)
		}
		return data, nil
	case "hcl":
		f := hclwrite.NewEmptyFile()
		if err := writeHCLBody(f.Body(), tree); err != nil {
			return nil, fmt.Errorf("failed to marshal config data to HCL: %w", err)
		}
		return f.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// writeHCLBody writes leaves as attributes and tables as blocks, keys sorted.
func writeHCLBody(body *hclwrite.Body, tree Tree) error {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var blocks []string
	for _, k := range keys {
		if _, isMap := tree[k].(map[string]any); isMap {
			blocks = append(blocks, k)
			continue
		}
		if tree[k] == nil {
			continue
		}
		val, err := nativeToCty(tree[k])
		if err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
		body.SetAttributeValue(k, val)
	}

	for _, k := range blocks {
		block := body.AppendNewBlock(k, nil)
		if err := writeHCLBody(block.Body(), tree[k].(map[string]any)); err != nil {
			return fmt.Errorf("block %q: %w", k, err)
		}
	}
	return nil
}

// nativeToCty converts tree values to cty values. Values of other types are
// written as their string form.
func nativeToCty(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case json.Number:
		return cty.ParseNumberVal(x.String())
	case map[string]any:
		attrs := make(map[string]cty.Value, len(x))
		for k, e := range x {
			val, err := nativeToCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = val
		}
		return cty.ObjectVal(attrs), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cty.NumberIntVal(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cty.NumberVal(new(big.Float).SetUint64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return cty.NumberFloatVal(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, rv.Len())
		for i := range elems {
			val, err := nativeToCty(rv.Index(i).Interface())
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = val
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.StringVal(fmt.Sprint(v)), nil
	}
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
