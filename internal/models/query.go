package models

import "fmt"

// SearchQuery represents a search request with optional metadata filters.
type SearchQuery struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Filters Filter `json:"filters,omitempty"`
}

// Validate ensures the query is non-empty and clamps Limit into [1, maxLimit].
// A zero Limit becomes defaultLimit.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// ChatQuery is a free-form question answered from retrieved notices.
type ChatQuery struct {
	Question string `json:"question"`
}
