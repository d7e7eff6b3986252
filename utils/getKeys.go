package utils

import (
	"cmp"
	"slices"
)

// GetKeys returns the keys of m in ascending order
func GetKeys[K cmp.Ordered, T any](m map[K]T) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
