// internal/discovery/singular.go
package discovery

import "fmt"

// MultiplicityError reports that a discovery result did not contain exactly
// one board when exactly one was required.
type MultiplicityError struct {
	Count int
}

func (e *MultiplicityError) Error() string {
	if e.Count == 0 {
		return "no boards of this type found"
	}
	return fmt.Sprintf("expected only one board to be connected, but found %d", e.Count)
}

// Singular extracts the sole value from a discovery result. This is how
// callers access a board without knowing its asset tag; zero or multiple
// boards is always surfaced, never silently resolved.
func Singular[T any](boards map[string]T) (T, error) {
	if len(boards) != 1 {
		var zero T
		return zero, &MultiplicityError{Count: len(boards)}
	}
	for _, b := range boards {
		return b, nil
	}
	panic("unreachable")
}
