// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// DefaultPageSize is used when a caller gives no usable page size.
const DefaultPageSize = 20

// Page is a bounded, 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// ClampPage bounds number to >= 1 and size to [1, maxSize]. A size <= 0
// selects DefaultPageSize; maxSize <= 0 disables the upper bound.
func ClampPage(number, size, maxSize int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return Page{Number: number, Size: size}
}

// ParsePage reads page and page_size query values. Unparseable values fall
// back to the defaults before clamping.
func ParsePage(number, size string, maxSize int) Page {
	return ClampPage(AtoiDefault(number, 1), AtoiDefault(size, DefaultPageSize), maxSize)
}

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty
// or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
