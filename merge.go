// FILE: typeconf/merge.go
package typeconf

// Merge deep-merges trees given from lowest to highest precedence and returns a
// fresh tree. Tables merge key by key; any other value from a higher tree
// replaces the lower one wholesale, lists included. A table meeting a non-nil
// leaf at the same key is an ErrCollision naming the key path. Inputs are never
// modified and the result shares no tables or lists with them.
func Merge(trees ...Tree) (Tree, error) {
	result := make(Tree)
	for _, t := range trees {
		if err := mergeInto(result, t, nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// MergeSources merges per-source trees following precedence, whose first entry
// is the highest priority. Sources absent from the map are skipped.
func MergeSources(sources map[Source]Tree, precedence []Source) (Tree, error) {
	ordered := make([]Tree, 0, len(precedence))
	for i := len(precedence) - 1; i >= 0; i-- {
		if t, ok := sources[precedence[i]]; ok {
			ordered = append(ordered, t)
		}
	}
	return Merge(ordered...)
}

func mergeInto(dst, src Tree, path []string) error {
	for key, incoming := range src {
		existing, exists := dst[key]
		if !exists || existing == nil || incoming == nil {
			dst[key] = cloneValue(incoming)
			continue
		}

		existingMap, existingIsMap := existing.(map[string]any)
		incomingMap, incomingIsMap := incoming.(map[string]any)
		switch {
		case existingIsMap && incomingIsMap:
			if err := mergeInto(existingMap, incomingMap, append(path, key)); err != nil {
				return err
			}
		case existingIsMap != incomingIsMap:
			keyPath := append(append([]string(nil), path...), key)
			return &MergeError{Path: keyPath, Err: ErrCollision}
		default:
			dst[key] = cloneValue(incoming)
		}
	}
	return nil
}
