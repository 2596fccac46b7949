package models

// SearchResponse is the uniform response for a search request. The shape is
// identical for every tenant and for the no-match case: Answer carries the
// configured no-match message and Sources is empty.
type SearchResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	QueryTime int64    `json:"query_time_ms"`
	RequestID string   `json:"request_id,omitempty"`
}
