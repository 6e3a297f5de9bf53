package core

// ToChanMany feeds values in order on an unbuffered channel and closes it
// once every value was taken.
func ToChanMany[T any](values []T) <-chan T {
	in := make(chan T)

	go func() {
		defer close(in)

		for _, v := range values {
			in <- v
		}
	}()

	return in
}

// ToChanManyReversed feeds values last to first.
func ToChanManyReversed[T any](values []T) <-chan T {
	in := make(chan T)

	go func() {
		defer close(in)

		for i := len(values) - 1; i >= 0; i-- {
			in <- values[i]
		}
	}()

	return in
}

// Slots returns the indexes 0..n-1.
func Slots(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
