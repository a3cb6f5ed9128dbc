package model

// Page is one page of a counted result set. Page starts at 1. Producers
// do not clamp Page against TotalCount; an out-of-range page simply has
// no items and must render as empty, never as an error.
type Page[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	PageSize   int
}

// Empty reports whether the whole result set is empty.
func (p Page[T]) Empty() bool { return p.TotalCount == 0 }
