// ABOUTME: Forward-only iterator used for element, variation and template listings
// ABOUTME: Values are produced lazily and an exhausted iterator stays exhausted

package contentfragment

// Iterator is a single-pass sequence of values
type Iterator[T any] struct {
	next func() (T, bool)
	cur  T
	done bool
}

func newIterator[T any](next func() (T, bool)) *Iterator[T] {
	return &Iterator[T]{next: next}
}

// mapIterator converts items to values one at a time as the iterator advances
func mapIterator[S, T any](items []S, conv func(S) (T, bool)) *Iterator[T] {
	i := 0
	return newIterator(func() (T, bool) {
		for i < len(items) {
			item := items[i]
			i++
			if v, ok := conv(item); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	})
}

func emptyIterator[T any]() *Iterator[T] {
	return &Iterator[T]{done: true}
}

// Next advances to the next value and reports whether one exists
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}
	v, ok := it.next()
	if !ok {
		var zero T
		it.cur = zero
		it.done = true
		return false
	}
	it.cur = v
	return true
}

// Value returns the value at the current position
func (it *Iterator[T]) Value() T {
	return it.cur
}

// Collect drains the remaining values into a slice
func (it *Iterator[T]) Collect() []T {
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out
}
