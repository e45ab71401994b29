// Package models defines core data structures for notices, chunks, queries, and search results.
package models

// Metadata keys stored with every chunk.
const (
	MetaTitle     = "title"
	MetaSourceURL = "source_url"
	MetaDate      = "date"
	MetaCategory  = "category"
)

// Category is the notice category assigned by keyword rules.
type Category string

const (
	CategoryGeneral      Category = "General"
	CategoryResume       Category = "Resume"
	CategoryExams        Category = "Exams"
	CategoryFees         Category = "Fees"
	CategoryScholarships Category = "Scholarships"
	CategoryAcademics    Category = "Academics"
)

// Metadata is the flat key/value metadata copied onto each chunk of a document.
// Filters compare against these values for exact equality.
type Metadata map[string]string

// Title returns the document title, empty when unset.
func (m Metadata) Title() string { return m[MetaTitle] }

// SourceURL returns the canonical source locator, empty when unset.
func (m Metadata) SourceURL() string { return m[MetaSourceURL] }

// Clone returns a copy of m so callers can mutate it without affecting other chunks.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Matches reports whether every filter pair is present in m with the same value.
// A nil or empty filter matches everything.
func (m Metadata) Matches(filter Filter) bool {
	for k, v := range filter {
		if got, ok := m[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Filter is an equality predicate over metadata fields.
type Filter map[string]string

// DocumentChunk is one stored unit: chunk text, its embedding, and the owning document's metadata.
type DocumentChunk struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   Metadata  `json:"metadata"`
	Embedding  []float32 `json:"-"`
}

// DocumentInput is the input for indexing raw text directly.
type DocumentInput struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}
