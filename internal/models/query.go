package models

import "strings"

// SearchQuery is the body of a search request. The tenant is deliberately
// absent: identity comes exclusively from the credential header, and any
// tenant hint in the body is ignored by construction.
type SearchQuery struct {
	Query string `json:"query"`
}

// IsEmpty reports whether the query is empty or whitespace-only.
func (q *SearchQuery) IsEmpty() bool {
	return strings.TrimSpace(q.Query) == ""
}
