package cmp

// check a == b
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || vb != va {
			return false
		}
	}
	return true
}

// check a == b, in context of pred.
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, pred func(a V, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || !pred(va, vb) {
			return false
		}
	}
	return true
}
