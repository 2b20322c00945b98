// Package utils provides small helpers shared across layers: numeric query
// parameter parsing and the pagination window used by list endpoints.
package utils

import "strconv"

// AtoiDefault converts a string to an int, returning def when the string is
// empty or not a valid integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageWindow bounds user-supplied pagination inputs. The page defaults to 1
// (anything below is coerced up), the size defaults to def and is clamped to
// [1, max]. Inputs are raw query strings so handlers can pass c.Query values
// straight through.
func PageWindow(pageStr, sizeStr string, def, max int) (page, size int) {
	page = AtoiDefault(pageStr, 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(sizeStr, def)
	if size < 1 {
		size = 1
	}
	if size > max {
		size = max
	}
	return page, size
}
