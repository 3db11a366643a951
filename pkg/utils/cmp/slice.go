package cmp

// check a == b, element-wise, ordering matters.
func SliceEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for nth, va := range a {
		if va != b[nth] {
			return false
		}
	}
	return true
}

// check a == b, element-wise in context of pred, ordering matters.
func SliceEqWith[T any, U any](a []T, b []U, pred func(a T, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// check a and b have same elements, ignoring ordering.
//
// Multiplicity matters: SliceContentEq([x, x, y], [x, y, y]) is false.
func SliceContentEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}

	pool := make(map[T]int, len(a))
	for _, va := range a {
		pool[va] += 1
	}
	for _, vb := range b {
		rest, ok := pool[vb]
		if !ok || rest <= 0 {
			return false
		}
		pool[vb] = rest - 1
	}
	return true
}
