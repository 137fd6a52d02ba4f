// Package search indexes chapters in Meilisearch with a Postgres full-text
// fallback when Meilisearch is unconfigured or unhealthy.
package search

// Query is a chapter search request.
type Query struct {
	Text         string
	FilterStatus string
	Limit        int
	Offset       int
}

// ChapterRecord is the indexed projection of a chapter.
type ChapterRecord struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Original string `json:"original"`
	Edited   string `json:"edited"`
}

// Result is one search hit.
type Result struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
}

// Response is the payload returned to the HTTP layer.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
