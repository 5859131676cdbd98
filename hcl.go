// FILE: typeconf/hcl.go
package typeconf

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// decodeHCL reads an HCL document into a tree. Attributes become leaves and
// blocks become tables; block labels add one nesting level each. A block type
// repeated without labels becomes a list of tables.
func decodeHCL(data []byte, filename string) (Tree, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unexpected HCL body type %T", file.Body)
	}
	return hclBodyToTree(body)
}

func hclBodyToTree(body *hclsyntax.Body) (Tree, error) {
	tree := make(Tree, len(body.Attributes)+len(body.Blocks))

	for name, attr := range body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %w", name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		tree[name] = native
	}

	counts := make(map[string]int)
	for _, block := range body.Blocks {
		if len(block.Labels) == 0 {
			counts[block.Type]++
		}
	}

	for _, block := range body.Blocks {
		sub, err := hclBodyToTree(block.Body)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", block.Type, err)
		}

		if len(block.Labels) == 0 && counts[block.Type] > 1 {
			list, _ := tree[block.Type].([]any)
			tree[block.Type] = append(list, sub)
			continue
		}

		segments := append([]string{block.Type}, block.Labels...)
		if err := mergeAt(tree, segments, sub); err != nil {
			return nil, fmt.Errorf("block %q at %s: %w", block.Type, rangeOf(block), err)
		}
	}

	return tree, nil
}

// mergeAt deep-merges sub into the table at segments.
func mergeAt(tree Tree, segments []string, sub Tree) error {
	wrapped := sub
	for i := len(segments) - 1; i >= 0; i-- {
		wrapped = Tree{segments[i]: wrapped}
	}
	return mergeInto(tree, wrapped, nil)
}

func rangeOf(block *hclsyntax.Block) hcl.Range {
	return block.TypeRange
}

// ctyToNative recursively converts a cty.Value to its natural Go counterpart.
// Integral numbers become int64, other numbers float64.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nativeVal)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(Tree)
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			keyStr := key.AsString()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = nativeVal
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported cty type: %s", ty.FriendlyName())
	}
}
