// Package dedupe collapses records that share a natural key.
package dedupe

// ByKey returns one element per distinct key. When several elements share a
// key the last one in input order wins entirely; the output keeps the order in
// which each key first appeared. Elements with an empty key are dropped.
func ByKey[T any](items []T, key func(T) string) []T {
	if len(items) == 0 {
		return nil
	}

	pos := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if i, ok := pos[k]; ok {
			out[i] = it
			continue
		}
		pos[k] = len(out)
		out = append(out, it)
	}
	return out
}
