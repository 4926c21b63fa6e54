// Package utils holds small helpers shared by the HTTP layer. Nothing here
// knows about the domain.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not an
// integer. Whitespace is not trimmed.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("", 10)  // 10
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page limits for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ClampPage parses page and page_size query values. page is at least 1;
// pageSize falls back to DefaultPageSize and is capped at MaxPageSize.
func ClampPage(rawPage, rawSize string) (page, pageSize int) {
	page = AtoiDefault(rawPage, 1)
	if page < 1 {
		page = 1
	}
	pageSize = AtoiDefault(rawSize, DefaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// TotalPages is the number of pages of pageSize needed for total items.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
