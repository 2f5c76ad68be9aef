// Package search provides full-text search functionality using Bleve.
// It enables federated search across books and authors with faceted
// filtering and fuzzy matching.
package search

import (
	"github.com/inkwellapp/inkwell-server/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeBook   DocType = "book"
	DocTypeAuthor DocType = "author"
)

// SearchDocument is the unified document structure for the Bleve index.
// All searchable entities are indexed as SearchDocuments with type
// discrimination.
//
// The author name is denormalized into book documents so a single query
// matches "clean code" and "robert martin" alike. The cost is that a
// rename must reindex the author's books.
type SearchDocument struct {
	// Identity
	ID   string  `json:"id"`   // Original entity ID (book-xxx, author-xxx)
	Type DocType `json:"type"` // Discriminator for result grouping

	// Primary searchable text: book title or author name
	Name string `json:"name"`

	// Book-specific fields (empty for authors)
	Author     string   `json:"author,omitempty"` // Denormalized for search
	GenreSlugs []string `json:"genre_slugs,omitempty"`
	Published  int      `json:"published,omitempty"`

	// Author-specific fields
	BookCount int `json:"book_count,omitempty"`

	// Timestamps for sorting
	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *SearchDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"type":       string(d.Type),
		"name":       d.Name,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	// Optional fields - only add if non-empty
	if d.Author != "" {
		m["author"] = d.Author
	}
	if len(d.GenreSlugs) > 0 {
		m["genre_slugs"] = d.GenreSlugs
	}
	if d.Published != 0 {
		m["published"] = d.Published
	}
	if d.BookCount > 0 {
		m["book_count"] = d.BookCount
	}

	return m
}

// BookToSearchDocument converts a domain Book to a SearchDocument.
// The author name and genre slugs are provided by the caller, as the
// search package shouldn't depend on store.
func BookToSearchDocument(book *domain.Book, authorName string, genreSlugs []string) *SearchDocument {
	return &SearchDocument{
		ID:         book.ID,
		Type:       DocTypeBook,
		Name:       book.Title,
		Author:     authorName,
		GenreSlugs: genreSlugs,
		Published:  book.Published,
		CreatedAt:  book.CreatedAt.UnixMilli(),
		UpdatedAt:  book.UpdatedAt.UnixMilli(),
	}
}

// AuthorToSearchDocument converts a domain Author to a SearchDocument.
func AuthorToSearchDocument(author *domain.Author, bookCount int) *SearchDocument {
	return &SearchDocument{
		ID:        author.ID,
		Type:      DocTypeAuthor,
		Name:      author.Name,
		BookCount: bookCount,
		CreatedAt: author.CreatedAt.UnixMilli(),
		UpdatedAt: author.UpdatedAt.UnixMilli(),
	}
}
