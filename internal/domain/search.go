package domain

// SortOrder constants for listings and search.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SearchQuery captures the parameters of a product search request.
type SearchQuery struct {
	Query     string `json:"query"`
	Category  string `json:"category,omitempty"`
	Status    string `json:"status,omitempty"`
	MinCents  *int64 `json:"min_cents,omitempty"`
	MaxCents  *int64 `json:"max_cents,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

// SearchResult is the outcome of a product search. Degraded is true when the
// primary search engine was unavailable and the database fallback served the
// request; degraded results are best-effort and are never cached.
type SearchResult struct {
	Products []*Product `json:"products"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PerPage  int        `json:"per_page"`
	Degraded bool       `json:"degraded"`
}
