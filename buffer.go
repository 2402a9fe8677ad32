package alsahal

// scratch is a growable buffer that keeps its contents and never shrinks.
type scratch[T any] struct {
	buf []T
}

// ensure returns a slice of exactly n elements, growing the backing array when needed.
func (s *scratch[T]) ensure(n int) []T {
	if n > cap(s.buf) {
		grown := make([]T, n)
		copy(grown, s.buf)
		s.buf = grown
	}

	s.buf = s.buf[:n]

	return s.buf
}

// len returns the current logical length.
func (s *scratch[T]) len() int {
	return len(s.buf)
}

// capacity returns the allocated capacity.
func (s *scratch[T]) capacity() int {
	return cap(s.buf)
}

func (s *scratch[T]) release() {
	s.buf = nil
}
