package capture

// Set is an unordered set of filter values. An empty set matches anything.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](values ...T) Set[T] {
	s := make(Set[T], len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s Set[T]) Add(v T) { s[v] = struct{}{} }

func (s Set[T]) Contains(v T) bool {
	_, ok := s[v]
	return ok
}

func (s Set[T]) Len() int { return len(s) }

func (s Set[T]) Values() []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

// match is true when the set is empty, or the frame has the field and its
// value is in the set.
func (s Set[T]) match(v T, ok bool) bool {
	if len(s) == 0 {
		return true
	}
	return ok && s.Contains(v)
}
