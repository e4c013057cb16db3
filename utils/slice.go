package utils

// UniqueBy keeps the first element for every key, preserving order.
func UniqueBy[T any, K comparable](slice []T, key func(T) K) []T {
	seen := make(map[K]bool, len(slice))
	list := make([]T, 0, len(slice))
	for _, entry := range slice {
		k := key(entry)
		if seen[k] {
			continue
		}
		seen[k] = true
		list = append(list, entry)
	}
	return list
}
