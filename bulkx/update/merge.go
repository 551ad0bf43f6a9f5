package update

import "reflect"

// Merge applies changes to source in place. Nested objects are merged recursively, any
// other value is overwritten. When checkUnequal is set, overwriting a value with an equal
// one does not count as a modification. Merge reports whether source was modified.
func Merge(source, changes map[string]any, checkUnequal bool) bool {
	modified := false
	for k, v := range changes {
		old, ok := source[k]
		if !ok {
			source[k] = v
			modified = true
			continue
		}

		oldMap, oldIsMap := old.(map[string]any)
		newMap, newIsMap := v.(map[string]any)
		if oldIsMap && newIsMap {
			if Merge(oldMap, newMap, checkUnequal && !modified) {
				modified = true
			}
			continue
		}

		source[k] = v
		if modified {
			continue
		}
		if !checkUnequal {
			modified = true
			continue
		}
		modified = !reflect.DeepEqual(old, v)
	}
	return modified
}
