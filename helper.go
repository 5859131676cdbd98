// FILE: typeconf/helper.go
package typeconf

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
)

// Tree is the nested, merge-friendly form of a configuration: tables are
// map[string]any, everything else is a leaf. Unset leaves are absent.
type Tree = map[string]any

// NameKey is the key a select table uses to name its variant.
const NameKey = "name"

// discardLogger returns the logger used when the caller configured none.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// splitPath splits a dotted path into validated segments.
func splitPath(path string) ([]string, error) {
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if !isValidKeySegment(segment) {
			return nil, fmt.Errorf("invalid key segment %q in path %q", segment, path)
		}
	}
	return segments, nil
}

// flattenTree converts a nested tree to a flat map with dot-notation paths.
func flattenTree(nested Tree, prefix string) map[string]any {
	flat := make(map[string]any)

	for key, value := range nested {
		newPath := key
		if prefix != "" {
			newPath = prefix + "." + key
		}

		if nestedMap, isMap := value.(map[string]any); isMap && len(nestedMap) > 0 {
			for subPath, subValue := range flattenTree(nestedMap, newPath) {
				flat[subPath] = subValue
			}
		} else {
			flat[newPath] = value
		}
	}

	return flat
}

// sortedPaths returns the keys of a flat map in lexical order.
func sortedPaths(flat map[string]any) []string {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// setNestedValue writes value at the segment path, creating intermediate tables.
// Walking through a leaf, or replacing a table with a leaf, is a collision.
// A nil leaf may be replaced by a table.
func setNestedValue(nested Tree, segments []string, value any) error {
	current := nested

	for i := 0; i < len(segments)-1; i++ {
		segment := segments[i]

		next, exists := current[segment]
		switch nextMap, isMap := next.(map[string]any); {
		case !exists || next == nil:
			newMap := make(Tree)
			current[segment] = newMap
			current = newMap
		case isMap:
			current = nextMap
		default:
			return &MergeError{Path: append([]string(nil), segments[:i+1]...), Err: ErrCollision}
		}
	}

	last := segments[len(segments)-1]
	if _, isMap := current[last].(map[string]any); isMap {
		if _, incomingMap := value.(map[string]any); !incomingMap && value != nil {
			return &MergeError{Path: append([]string(nil), segments...), Err: ErrCollision}
		}
	}
	current[last] = value
	return nil
}

// navigateToPath traverses the tree to reach the specified dotted path.
func navigateToPath(nested Tree, path string) (any, bool) {
	path = strings.TrimSuffix(path, ".")
	if path == "" {
		return nested, true
	}

	current := any(nested)
	for _, segment := range strings.Split(path, ".") {
		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, exists := currentMap[segment]
		if !exists {
			return nil, false
		}
		current = value
	}

	return current, true
}

// cloneTree deep-copies tables and lists so the result shares no mutable
// state with the input.
func cloneTree(t Tree) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneTree(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case nil:
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneElem(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneElem(rv.Index(i)))
		}
		return out.Interface()
	}
	return v
}

// cloneElem copies a slice or array element, recursing into nested tables
// and lists held in interface or typed elements.
func cloneElem(e reflect.Value) reflect.Value {
	switch e.Kind() {
	case reflect.Interface:
		if e.IsNil() {
			return e
		}
		c := cloneValue(e.Interface())
		if c == nil {
			return reflect.Zero(e.Type())
		}
		return reflect.ValueOf(c)
	case reflect.Slice, reflect.Array:
		return reflect.ValueOf(cloneValue(e.Interface()))
	case reflect.Map:
		if m, ok := e.Interface().(map[string]any); ok {
			return reflect.ValueOf(cloneTree(m))
		}
	}
	return e
}

// isValidKeySegment checks if a single path segment is a valid bare key.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	// Bare keys are sequences of ASCII letters, ASCII digits, underscores, and dashes (A-Za-z0-9_-).
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isUnderscore := r == '_'
		isDash := r == '-'

		if !(isLetter || isDigit || isUnderscore || isDash) {
			return false
		}
	}
	return true
}
