// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Offset converts a 1-based page number and page size into the row
// offset used by the storage layer. Page numbers below 1 are treated
// as the first page.
//
// Example:
//
//	utils.Offset(1, 20) // returns 0
//	utils.Offset(3, 20) // returns 40
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// TotalPages computes how many pages of the given size are needed to
// hold total rows. A zero or negative page size yields zero pages, as
// does an empty result set.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	return int(pages)
}

// PageInfo describes the position of one page inside a larger result
// set. It is embedded in list responses so callers can render
// pagination controls without re-deriving the arithmetic.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPageInfo builds the PageInfo for the given page/pageSize pair and
// the total row count reported by the store.
func NewPageInfo(page, pageSize int, total int64) PageInfo {
	if page < 1 {
		page = 1
	}
	tp := TotalPages(total, pageSize)
	return PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: tp,
		HasNext:    page < tp,
		HasPrev:    page > 1 && total > 0,
	}
}
