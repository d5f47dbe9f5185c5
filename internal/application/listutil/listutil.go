package listutil

import (
	"net/url"
	"strconv"
	"strings"
)

// PageParams carries pagination parameters parsed from a request.
type PageParams struct {
	Page    int // 1-indexed page number
	PerPage int // rows per page
}

// PageInfo carries pagination metadata for rendering.
type PageInfo struct {
	Page       int // current page (1-indexed)
	PerPage    int // rows per page
	Total      int // total matching rows
	TotalPages int // ceil(Total / PerPage)
}

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 50

// PerPageOptions are the allowed rows-per-page values. 0 means all rows.
var PerPageOptions = []int{0, 20, 50, 100, 200}

// ParsePageParams extracts page and per_page from URL query values.
// PRE: none
// POST: returns valid PageParams with defaults applied
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage := DefaultPerPage
	if raw := q.Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && isValidPerPage(n) {
			perPage = n
		}
	}
	return PageParams{Page: page, PerPage: perPage}
}

// ParseSearch returns the trimmed free-text query from q.
func ParseSearch(q url.Values) string {
	return strings.TrimSpace(q.Get("q"))
}

// NewPageInfo computes pagination metadata. perPage 0 puts every row on one page.
// PRE: total >= 0
// POST: returns PageInfo with TotalPages >= 1 and Page clamped to range
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 0 {
		perPage = DefaultPerPage
	}
	totalPages := 1
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return PageInfo{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the index of the first row on the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// StartRow returns the 1-indexed first row number on the current page, 0 when empty.
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return p.Offset() + 1
}

// EndRow returns the 1-indexed last row number on the current page.
func (p PageInfo) EndRow() int {
	if p.PerPage == 0 {
		return p.Total
	}
	return min(p.Offset()+p.PerPage, p.Total)
}

// ShowPagination returns true if rows span more than one page.
func (p PageInfo) ShowPagination() bool {
	return p.TotalPages > 1
}

// Slice returns the items on the page described by info.
// PRE: info was computed from len(items)
func Slice[T any](items []T, info PageInfo) []T {
	if info.PerPage == 0 {
		return items
	}
	start := min(info.Offset(), len(items))
	end := min(start+info.PerPage, len(items))
	return items[start:end]
}

// Matches reports whether text contains query, ignoring case. An empty query matches everything.
func Matches(text, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

// Filter keeps the items whose rendered text matches query, preserving order.
func Filter[T any](items []T, query string, text func(T) string) []T {
	if strings.TrimSpace(query) == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Matches(text(it), query) {
			out = append(out, it)
		}
	}
	return out
}

func isValidPerPage(n int) bool {
	for _, opt := range PerPageOptions {
		if n == opt {
			return true
		}
	}
	return false
}
