// Package msgq implements the ordered message set used for pending-message
// queues and for merging message histories from multiple sources.
package msgq

import "sort"

// HashID returns a stable non-negative hash of an id in [0, 10000).
// It is the tie-breaker for messages sharing a timestamp, so any two
// processes merging the same messages produce the same order.
func HashID(id string) int64 {
	var h int32
	for _, c := range id {
		h = 31*h + int32(c)
	}
	v := int64(h) % 10000
	if v < 0 {
		v = -v
	}
	return v
}

// Set is an ordered set of items keyed by a string id and sorted by an
// int64 ordering key. Insertions keep the set sorted; ids are unique.
type Set[T any] struct {
	orderKey func(T) int64
	id       func(T) string

	items []T
	byID  map[string]int // id -> index in items
}

func NewSet[T any](orderKey func(T) int64, id func(T) string) *Set[T] {
	return &Set[T]{
		orderKey: orderKey,
		id:       id,
		byID:     make(map[string]int),
	}
}

// Insert adds an item unless its id is already present.
func (s *Set[T]) Insert(item T) {
	id := s.id(item)
	if _, ok := s.byID[id]; ok {
		return
	}
	key := s.orderKey(item)
	idx := sort.Search(len(s.items), func(i int) bool {
		return s.orderKey(s.items[i]) > key
	})
	s.items = append(s.items, item)
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = item
	s.reindex(idx)
}

func (s *Set[T]) Get(id string) (T, bool) {
	idx, ok := s.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[idx], true
}

func (s *Set[T]) Delete(id string) bool {
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	delete(s.byID, id)
	s.reindex(idx)
	return true
}

// UpdateKey mutates an item in a way that may change its ordering key and
// re-sorts the set accordingly.
func (s *Set[T]) UpdateKey(id string, mutate func(T)) bool {
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	item := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	delete(s.byID, id)
	s.reindex(idx)

	mutate(item)
	s.Insert(item)
	return true
}

// First returns the item with the smallest ordering key.
func (s *Set[T]) First() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[0], true
}

// All returns the items in order. The returned slice is a copy.
func (s *Set[T]) All() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Set[T]) Len() int {
	return len(s.items)
}

func (s *Set[T]) reindex(from int) {
	for i := from; i < len(s.items); i++ {
		s.byID[s.id(s.items[i])] = i
	}
}

// Merge merges two slices that are each sorted by key into one sorted
// slice. Equal keys keep items from a before items from b.
func Merge[T any](a, b []T, key func(T) int64) []T {
	out := make([]T, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if key(a[i]) <= key(b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
