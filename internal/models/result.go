package models

// QueryResult is a single ranked chunk returned by the retrieval engine.
// RelevanceScore is 1 - distance; higher is more similar.
type QueryResult struct {
	ID             string   `json:"id"`
	Document       string   `json:"document"`
	Metadata       Metadata `json:"metadata"`
	RelevanceScore float64  `json:"relevance_score"`
}

// SearchResult is the public shape of a search hit returned by the API.
type SearchResult struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	SourceURL       string  `json:"source_url"`
	Date            string  `json:"date"`
	RelevanceScore  float64 `json:"relevance_score"`
	Category        string  `json:"category"`
	ExtractedAnswer *string `json:"extracted_answer"`
}

// NewSearchResult maps a QueryResult into the API shape, filling metadata defaults.
func NewSearchResult(r QueryResult) SearchResult {
	return SearchResult{
		ID:             r.ID,
		Title:          valueOr(r.Metadata[MetaTitle], "Untitled"),
		Content:        r.Document,
		SourceURL:      valueOr(r.Metadata[MetaSourceURL], "#"),
		Date:           valueOr(r.Metadata[MetaDate], "N/A"),
		RelevanceScore: r.RelevanceScore,
		Category:       valueOr(r.Metadata[MetaCategory], string(CategoryGeneral)),
	}
}

// ChatResponse is the answer to a ChatQuery with the metadata of the chunks used.
type ChatResponse struct {
	Answer  string     `json:"answer"`
	Sources []Metadata `json:"sources"`
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
