package shared

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool

	// Entity specific filters
	CategoryID *int64
	SupplierID *int64
	GroupID    *int64
	StoreType  string
}

// Offset derives the SQL offset for the page.
func (f ListFilters) Offset() int {
	page := f.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := f.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	return (page - 1) * limit
}

// Pagination carries metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate computes pagination metadata for a filter and total count.
func (f ListFilters) Paginate(total int) Pagination {
	page := f.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := f.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	totalPages := (total + limit - 1) / limit
	return Pagination{Page: page, PerPage: limit, Total: total, TotalPages: totalPages}
}
