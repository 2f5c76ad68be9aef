// Package domain contains the core business entities and domain logic for the Inkwell catalog.
package domain

import "strings"

// Book represents a published work in the catalog.
type Book struct {
	Record
	Title string `json:"title"`
	// Published is the year of publication.
	Published int `json:"published"`
	// AuthorID references the book's author. Books are always created
	// against an existing author record.
	AuthorID string   `json:"author_id"`
	Genres   []string `json:"genres,omitempty"`
}

// HasGenre reports whether the book carries the genre, compared
// case-insensitively. Stored labels keep their original casing.
func (b *Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}
