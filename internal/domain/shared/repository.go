package shared

// Filter carries the paging, ordering and free-text search shared by list queries.
// OrderBy is checked against a per-table whitelist by the repository.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter returns the first page of 20, newest first
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// TotalPages returns the page count for total rows at the filter's page size
func (f Filter) TotalPages(total int64) int {
	if f.PageSize < 1 {
		return 0
	}
	return int((total + int64(f.PageSize) - 1) / int64(f.PageSize))
}
